package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tluyben/dun/config"
	"github.com/tluyben/dun/flow"
	"github.com/tluyben/dun/plugin"
	"github.com/tluyben/dun/plugins"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Dispatch a natural-language request to a handler",
		ArgsUsage: "<request...>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "action",
				Usage: "Post-process the handler output with a script from the actions directory",
			},
			&cli.StringFlag{
				Name:  "fallback",
				Usage: "What to do when the LLM is unusable: csv or none",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the whole result, including the descriptor, as JSON",
			},
		},
		Action: runRequest,
	}
}

func combineCommand() *cli.Command {
	return &cli.Command{
		Name:  "combine",
		Usage: "Combine CSV files into one, tagging each row with its source file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Usage: "Directory holding the CSV files (default: input dir)"},
			&cli.StringFlag{Name: "output", Usage: "Combined file (default: <output dir>/combined.csv)"},
			&cli.StringFlag{Name: "files", Usage: "Comma-separated file names to combine instead of the whole directory"},
			&cli.StringFlag{Name: "source-column", Value: "source_file", Usage: "Name of the column holding the source file"},
		},
		Action: combineFiles,
	}
}

func handlersCommand() *cli.Command {
	return &cli.Command{
		Name:   "handlers",
		Usage:  "List the handlers a request can be dispatched to",
		Action: listHandlers,
	}
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Run every request of a commands file, one log file per request",
		ArgsUsage: "<commands-file> <output-dir>",
		Action:    runBatch,
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Ask the LLM to analyze a text file (stdin when no file is given)",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "instruction", Usage: "What to ask about the text (default: extract key information)"},
		},
		Action: analyzeText,
	}
}

func runRequest(c *cli.Context) error {
	request := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if request == "" {
		return fmt.Errorf("a request is required, e.g. dun run \"combine the CSV files\"")
	}
	if fb := c.String("fallback"); fb != "" {
		if fb != config.FallbackCSV && fb != config.FallbackNone {
			return fmt.Errorf("--fallback must be %q or %q", config.FallbackCSV, config.FallbackNone)
		}
		cfg.LLM.Fallback = fb
	}

	fe, client, err := newExecutor()
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(c.Context, 3*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("LLM endpoint not reachable", zap.String("url", cfg.LLM.BaseURL), zap.Error(err))
	}
	cancel()

	result, err := fe.Dispatch(c.Context, request)
	if err != nil {
		return err
	}
	if result.Degraded {
		fmt.Fprintf(os.Stderr, "LLM unavailable (%s); ran %s instead\n", result.Reason, result.Handler)
	}

	if name := c.String("action"); name != "" {
		actions, err := flow.LoadActions(cfg.Paths.ActionsDir)
		if err != nil {
			return err
		}
		action, ok := actions[name]
		if !ok {
			return fmt.Errorf("action '%s' not found in %s", name, cfg.Paths.ActionsDir)
		}
		if result.Output, err = flow.ExecuteAction(action, result.Output); err != nil {
			return err
		}
	}

	if c.Bool("json") {
		return printJSON(result)
	}
	fmt.Printf("Handler: %s\n", result.Handler)
	return printJSON(result.Output)
}

func combineFiles(c *cli.Context) error {
	input := c.String("input")
	if input == "" {
		input = cfg.Paths.InputDir
	}
	output := c.String("output")
	if output == "" {
		output = filepath.Join(cfg.Paths.OutputDir, "combined.csv")
	}
	var files []string
	for _, f := range strings.Split(c.String("files"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}

	res, err := plugins.CombineCSV(c.Context, logger, plugins.CSVCombineParams{
		InputDir:     input,
		Files:        files,
		OutputFile:   output,
		SourceColumn: c.String("source-column"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Combined %d file(s), %d row(s) into %s\n", len(res.Files), res.Rows, res.OutputFile)
	for _, s := range res.Skipped {
		fmt.Printf("Skipped malformed file: %s\n", s)
	}
	return nil
}

func runBatch(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: dun batch <commands-file> <output-dir>")
	}
	fe, _, err := newExecutor()
	if err != nil {
		return err
	}

	statuses, err := fe.Batch(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	failed := 0
	for i, s := range statuses {
		mark := "OK"
		if !s.OK {
			mark = "FAILED"
			failed++
		}
		fmt.Printf("[%d/%d] %-6s %s -> %s\n", i+1, len(statuses), mark, s.Command, s.LogFile)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d commands failed", failed, len(statuses))
	}
	return nil
}

func analyzeText(c *cli.Context) error {
	var (
		data []byte
		err  error
	)
	if c.NArg() > 0 {
		data, err = os.ReadFile(c.Args().First())
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("nothing to analyze")
	}

	params := map[string]string{"text": string(data)}
	if instruction := c.String("instruction"); instruction != "" {
		params["instruction"] = instruction
	}
	env := &plugin.Env{Logger: logger, Analyzer: newLLMClient()}
	out, err := plugins.NewRegistry().ExecutePlugin(c.Context, env, "text_analyze", params)
	if err != nil {
		return err
	}
	fmt.Println(out["analysis"])
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func listHandlers(c *cli.Context) error {
	fe, _, err := newExecutor()
	if err != nil {
		return err
	}
	for _, info := range fe.PluginRegistry.Infos() {
		input, output, err := fe.PluginRegistry.GetPluginSchema(info.Name)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n    %s\n", info.Name, info.Description)
		for _, p := range input {
			req := ""
			if p.Required {
				req = ", required"
			}
			fmt.Printf("    in:  %s (%s%s)\n", p.Name, p.Type, req)
		}
		for _, p := range output {
			fmt.Printf("    out: %s (%s)\n", p.Name, p.Type)
		}
	}
	return nil
}
