package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tluyben/dun/config"
	"github.com/tluyben/dun/deps"
	"github.com/tluyben/dun/flow"
	"github.com/tluyben/dun/llm"
	"github.com/tluyben/dun/logging"
	"github.com/tluyben/dun/mail"
	"github.com/tluyben/dun/plugins"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dun",
		Usage: "Natural-language task dispatcher, CSV combiner and vault bootstrap",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "TOML configuration file",
				Value: "dun.toml",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log at debug level",
			},
			&cli.StringFlag{
				Name:  "input-dir",
				Usage: "Directory the CSV combiner and file handlers read from",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory handlers write results to",
			},
		},
		Before: setup,
		After: func(c *cli.Context) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand(),
			handlersCommand(),
			combineCommand(),
			batchCommand(),
			analyzeCommand(),
			{
				Name:   "index",
				Usage:  "Index or reindex all text files in the current directory and subdirectories",
				Action: indexFiles,
			},
			{
				Name:      "search",
				Usage:     "Search the file index",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 10, Usage: "Maximum number of hits"},
				},
				Action: searchFiles,
			},
			{
				Name:   "doctor",
				Usage:  "Check that the LLM endpoint and the bw binary are reachable",
				Action: doctor,
			},
			vaultCommand(),
			devCommand(),
		},
	}
}

func setup(c *cli.Context) error {
	var err error
	cfg, err = config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.Bool("debug") {
		cfg.Logging.Debug = true
	}
	if dir := c.String("input-dir"); dir != "" {
		cfg.Paths.InputDir = dir
	}
	if dir := c.String("output-dir"); dir != "" {
		cfg.Paths.OutputDir = dir
	}

	logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Debug)
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded",
		zap.String("llm", cfg.LLM.BaseURL),
		zap.String("model", cfg.LLM.Model),
		zap.String("input_dir", cfg.Paths.InputDir),
		zap.String("output_dir", cfg.Paths.OutputDir))
	return nil
}

func newLLMClient() *llm.Client {
	return llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.Timeout(), logger)
}

// newExecutor wires the dispatcher from the loaded configuration.
func newExecutor() (*flow.FlowExecutor, *llm.Client, error) {
	registry := plugins.NewRegistry()
	if cfg.Paths.PluginsManifest != "" {
		if err := registry.LoadManifest(cfg.Paths.PluginsManifest); err != nil {
			return nil, nil, err
		}
	}

	client := newLLMClient()
	resolver := deps.NewResolver(cfg.Deps.Installer, cfg.Deps.Installers, deps.WithLogger(logger))

	fe := flow.NewFlowExecutor(registry, llm.NewAnalyzer(client, logger), resolver, logger)
	fe.Fallback = cfg.LLM.Fallback
	fe.InputDir = cfg.Paths.InputDir
	fe.OutputDir = cfg.Paths.OutputDir
	fe.IndexPath = cfg.Paths.IndexPath
	fe.Analyzer = client
	fe.MailFolder = cfg.IMAP.Folder
	if cfg.IMAP.Server != "" {
		mc := mail.Config{
			Server:   cfg.IMAP.Server,
			Port:     cfg.IMAP.Port,
			Email:    cfg.IMAP.Email,
			Password: cfg.IMAP.Password,
		}
		fe.OpenMailbox = func(ctx context.Context) (mail.Mailbox, error) {
			mb, err := mail.Dial(mc, logger)
			if err != nil {
				return nil, err
			}
			return mb, nil
		}
	}
	return fe, client, nil
}
