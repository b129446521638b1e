package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/config"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/report"
)

func plannerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:    "yield",
			Usage:   "Yield factor in (0,1]",
			EnvVars: []string{"PLANNER_YIELD_FACTOR"},
		},
		&cli.Float64Flag{
			Name:    "density",
			Usage:   "Density factor in (0,1]",
			EnvVars: []string{"PLANNER_DENSITY_FACTOR"},
		},
		&cli.Float64Flag{
			Name:    "max-production",
			Usage:   "Per-period production cap",
			EnvVars: []string{"PLANNER_MAX_PRODUCTION"},
		},
		&cli.StringFlag{
			Name:    "objective",
			Usage:   "Objective sense (min or max)",
			EnvVars: []string{"PLANNER_OBJECTIVE"},
		},
		&cli.StringFlag{
			Name:    "terminal",
			Usage:   "Terminal stock policy (auto, exact_zero, floor_only)",
			EnvVars: []string{"PLANNER_TERMINAL_POLICY"},
		},
		&cli.IntFlag{
			Name:    "max-attempts",
			Usage:   "Maximum recovery attempts",
			EnvVars: []string{"PLANNER_MAX_ATTEMPTS"},
		},
		&cli.IntFlag{
			Name:    "horizon",
			Usage:   "Maximum number of planned periods",
			EnvVars: []string{"PLANNER_HORIZON"},
		},
	}
}

func formatFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Report format (text, json, yaml, csv)",
		Value:   string(report.FormatText),
	}
}

// loadConfig returns the shared configuration with command-line overrides
// applied.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := *config.Load()
	params := &cfg.Planner.Params

	if c.IsSet("yield") {
		params.YieldFactor = c.Float64("yield")
	}
	if c.IsSet("density") {
		params.DensityFactor = c.Float64("density")
	}
	if c.IsSet("max-production") {
		params.MaxProduction = c.Float64("max-production")
	}
	if c.IsSet("objective") {
		objective, ok := domain.ParseObjective(c.String("objective"))
		if !ok {
			return nil, fmt.Errorf("unknown objective %q", c.String("objective"))
		}
		params.Objective = objective
	}
	if c.IsSet("terminal") {
		terminal, ok := domain.ParseTerminalPolicy(c.String("terminal"))
		if !ok {
			return nil, fmt.Errorf("unknown terminal policy %q", c.String("terminal"))
		}
		params.Terminal = terminal
	}
	if c.IsSet("max-attempts") {
		cfg.Planner.MaxAttempts = c.Int("max-attempts")
	}
	if c.IsSet("horizon") {
		cfg.Planner.Horizon = c.Int("horizon")
	}
	return &cfg, nil
}
