package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tluyben/dun/index"
	"github.com/tluyben/dun/plugin"
)

func indexFiles(c *cli.Context) error {
	idx, err := index.Open(cfg.Paths.IndexPath, logger)
	if err != nil {
		return err
	}
	defer idx.Close()

	n, err := idx.Reindex(".")
	if err != nil {
		return err
	}
	fmt.Printf("Indexing completed. %d files indexed.\n", n)
	return nil
}

func searchFiles(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a search query is required")
	}
	idx, err := index.Open(cfg.Paths.IndexPath, logger)
	if err != nil {
		return err
	}
	defer idx.Close()

	hits, err := idx.Search(query, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%.3f  %s\n", h.Score, h.Path)
		if h.Snippet != "" {
			fmt.Printf("       %s\n", h.Snippet)
		}
	}
	return nil
}

// doctor reports on everything dun talks to and fails if any check did.
func doctor(c *cli.Context) error {
	failed := 0
	check := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Printf("FAIL  %-12s %v\n", name, err)
			return
		}
		fmt.Printf("ok    %s\n", name)
	}

	ctx, cancel := context.WithTimeout(c.Context, 5*time.Second)
	defer cancel()
	check("llm", newLLMClient().Ping(ctx))

	_, err := exec.LookPath(cfg.Vault.Binary)
	check("bw", err)

	_, err = os.Stat(cfg.Paths.InputDir)
	check("input dir", err)

	dir, err := plugin.ResolveOutputDir(cfg.Paths.OutputDir, logger)
	if err == nil && dir != cfg.Paths.OutputDir {
		_ = os.Remove(dir)
		err = fmt.Errorf("%s is not writable, handlers will write to %s", cfg.Paths.OutputDir, dir)
	}
	check("output dir", err)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
