package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/config"
	"github.com/Daniel-Humberto/Micron-Linealytics/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("planner failed")
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "planner",
		Usage: "Multi-period production planning with feasibility recovery",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (console or json)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Optional rotating log file",
				EnvVars: []string{"LOG_FILE"},
			},
		},
		Before: initLogger,
		Commands: []*cli.Command{
			solveCommand(),
			batchCommand(),
			showCommand(),
			migrateCommand(),
			cacheCommand(),
		},
	}
}

func initLogger(c *cli.Context) error {
	cfg := config.Load()
	logCfg := logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}
	if c.IsSet("log-level") {
		logCfg.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		logCfg.Format = c.String("log-format")
	}
	if c.IsSet("log-file") {
		logCfg.File = c.String("log-file")
	}
	logger.Init(logCfg)
	return nil
}
