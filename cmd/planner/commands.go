package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/bootstrap"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/pipeline"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/report"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/repository/sqlstore"
	"github.com/Daniel-Humberto/Micron-Linealytics/pkg/logger"
)

// exitNotOptimal is returned when the final plan has no usable schedule.
const exitNotOptimal = 2

func solveCommand() *cli.Command {
	return &cli.Command{
		Name:  "solve",
		Usage: "Plan production for one CSV file",
		Flags: append(plannerFlags(),
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "CSV file with Periodo, Demanda, Stock_Seguridad and Stock_Final columns",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report here instead of stdout",
			},
			formatFlag(),
		),
		Action: runSolve,
	}
}

func runSolve(c *cli.Context) error {
	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	app, err := bootstrap.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	run, err := app.Planning.PlanFile(c.Context, c.String("input"))
	if err != nil {
		return err
	}

	if err := writeReport(c.String("output"), func(w io.Writer) error {
		return app.Planning.WriteRun(w, run, format)
	}); err != nil {
		return err
	}

	if run.Result.Status != domain.StatusOptimal {
		return cli.Exit(fmt.Sprintf("no feasible plan: %s", run.Result.Status), exitNotOptimal)
	}
	return nil
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Plan every CSV file in a directory or under an object storage prefix",
		Flags: append(plannerFlags(),
			&cli.StringFlag{
				Name:  "input-dir",
				Usage: "Local directory containing input CSV files",
			},
			&cli.StringFlag{
				Name:  "bucket-prefix",
				Usage: "Object storage prefix containing input CSV files",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Usage:   "Directory for per-file reports",
				Value:   pipeline.DefaultBatchConfig().OutputDir,
				EnvVars: []string{"APP_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:  "download-dir",
				Usage: "Staging directory for downloaded inputs",
				Value: pipeline.DefaultBatchConfig().DownloadDir,
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of files planned concurrently",
				EnvVars: []string{"APP_WORKERS"},
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format written per file (text, json, yaml, csv)",
				Value: string(report.FormatCSV),
			},
		),
		Action: runBatch,
	}
}

func runBatch(c *cli.Context) error {
	inputDir, prefix := c.String("input-dir"), c.String("bucket-prefix")
	if (inputDir == "") == (prefix == "") {
		return cli.Exit("exactly one of --input-dir or --bucket-prefix is required", 1)
	}

	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	app, err := bootstrap.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	batchCfg := pipeline.BatchConfig{
		WorkerCount: cfg.App.Workers,
		OutputDir:   c.String("output-dir"),
		Format:      format,
		DownloadDir: c.String("download-dir"),
	}
	if c.IsSet("workers") {
		batchCfg.WorkerCount = c.Int("workers")
	}

	worker := pipeline.NewWorker(app.Planning, batchCfg, app.Metrics)
	orchestrator := pipeline.NewOrchestrator(worker, app.Store, batchCfg)

	var run *pipeline.BatchRun
	if inputDir != "" {
		run, err = orchestrator.RunDir(c.Context, inputDir)
	} else {
		run, err = orchestrator.RunPrefix(c.Context, prefix)
	}
	if run != nil {
		printBatch(c.App.Writer, run)
	}
	if err != nil {
		return err
	}
	if run.FailedFiles > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", run.FailedFiles, run.TotalFiles), 1)
	}
	return nil
}

func printBatch(w io.Writer, run *pipeline.BatchRun) {
	for _, job := range run.Jobs {
		switch job.Status {
		case pipeline.FileStatusCompleted:
			fmt.Fprintf(w, "%-40s %-10s attempt=%d valid=%t synthetic=%t %s\n",
				job.Source, job.PlanStatus, job.Attempt, job.Valid, job.Synthetic, job.OutputPath)
		default:
			fmt.Fprintf(w, "%-40s %-10s %s\n", job.Source, job.Status, job.ErrorMessage)
		}
	}
	fmt.Fprintf(w, "%s: %d planned, %d failed, %d invalid of %d files\n",
		run.Status, run.ProcessedFiles, run.FailedFiles, run.InvalidPlans, run.TotalFiles)
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print a stored plan run",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "Plan run id",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report here instead of stdout",
			},
			formatFlag(),
		},
		Action: func(c *cli.Context) error {
			format, err := report.ParseFormat(c.String("format"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			app, err := bootstrap.New(c.Context, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			run, err := app.Planning.GetRun(c.Context, c.String("id"))
			if err != nil {
				return err
			}
			return writeReport(c.String("output"), func(w io.Writer) error {
				return app.Planning.WriteRun(w, run, format)
			})
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if cfg.Database.Driver == "" || cfg.Database.Driver == "none" {
				return cli.Exit("DB_DRIVER is not configured", 1)
			}

			db, err := sqlstore.NewDB(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := db.Migrate(c.Context)
			if err != nil {
				return err
			}
			version, err := db.CurrentVersion(c.Context)
			if err != nil {
				return err
			}

			logger.Log.Info().Int("applied", applied).Int("version", version).Str("driver", db.Driver()).Msg("migrations complete")
			fmt.Fprintf(c.App.Writer, "schema version %d (%d applied)\n", version, applied)
			return nil
		},
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the plan run cache",
		Subcommands: []*cli.Command{
			{
				Name:  "flush",
				Usage: "Drop every cached plan run, e.g. after changing relaxation settings",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					if !cfg.Cache.Enabled {
						fmt.Fprintln(c.App.Writer, "plan cache is disabled, nothing to flush")
						return nil
					}

					app, err := bootstrap.New(c.Context, cfg)
					if err != nil {
						return err
					}
					defer app.Close()

					removed, err := app.Planning.FlushCache(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "removed %d cached plan runs\n", removed)
					return nil
				},
			},
		},
	}
}

func writeReport(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
