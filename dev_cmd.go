package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tluyben/dun/devtools"
)

func devCommand() *cli.Command {
	return &cli.Command{
		Name:  "dev",
		Usage: "Format, lint and test the Go sources in the current directory",
		Subcommands: []*cli.Command{
			devStep("format", "Rewrite sources with gofmt"),
			devStep("lint", "Run go vet and report unformatted files"),
			devStep("test", "Run go test"),
			devStep("all", "Format, lint and test"),
		},
	}
}

func devStep(group, usage string) *cli.Command {
	return &cli.Command{
		Name:  group,
		Usage: usage,
		Action: func(c *cli.Context) error {
			steps, err := devtools.Steps(group)
			if err != nil {
				return err
			}
			results, runErr := devtools.New(".", logger).Run(c.Context, steps)
			for _, r := range results {
				status := "passed"
				if !r.OK() {
					status = "FAILED"
				}
				fmt.Printf("%s %s\n", r.Step.Name, status)
				if !r.OK() && r.Output != "" {
					fmt.Println(r.Output)
				}
			}
			return runErr
		},
	}
}
