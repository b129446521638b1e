package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/metrics"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/report"
	"github.com/Daniel-Humberto/Micron-Linealytics/pkg/logger"
)

// Worker plans independent files concurrently
type Worker struct {
	planner Planner
	config  BatchConfig
	metrics *metrics.Recorder
	mu      sync.Mutex
}

// NewWorker creates a new batch worker
func NewWorker(planner Planner, config BatchConfig, rec *metrics.Recorder) *Worker {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.Format == "" {
		config.Format = report.FormatCSV
	}
	return &Worker{
		planner: planner,
		config:  config,
		metrics: rec,
	}
}

// ProcessBatch plans every input. A failing file is recorded on its job and
// does not stop the others; only cancellation aborts the batch.
func (w *Worker) ProcessBatch(ctx context.Context, inputs []Input) (*BatchRun, error) {
	run := &BatchRun{
		Status:     StatusPending,
		TotalFiles: len(inputs),
		StartedAt:  time.Now(),
		Jobs:       make([]*FileJob, len(inputs)),
	}
	used := make(map[string]int, len(inputs))
	for i, in := range inputs {
		job := &FileJob{
			Source:   in.Source,
			FilePath: in.Path,
			Status:   FileStatusQueued,
		}
		if w.config.OutputDir != "" {
			name := reportName(in.Source, w.config.Format)
			used[name]++
			if n := used[name]; n > 1 {
				ext := filepath.Ext(name)
				name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
			}
			job.OutputPath = filepath.Join(w.config.OutputDir, name)
		}
		run.Jobs[i] = job
	}

	logger.Log.Info().Int("files", len(inputs)).Int("workers", w.config.WorkerCount).Msg("starting batch planning")

	if w.config.OutputDir != "" {
		if err := os.MkdirAll(w.config.OutputDir, 0o755); err != nil {
			return w.finish(run, fmt.Errorf("failed to create output dir: %w", err))
		}
	}

	run.Status = StatusProcessing

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.WorkerCount)
	for _, job := range run.Jobs {
		job := job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w.processFile(gctx, run, job)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return w.finish(run, err)
	}
	if err := ctx.Err(); err != nil {
		return w.finish(run, err)
	}
	return w.finish(run, nil)
}

func (w *Worker) processFile(ctx context.Context, run *BatchRun, job *FileJob) {
	startTime := time.Now()
	job.Status = FileStatusProcessing

	plan, err := w.planner.PlanFile(ctx, job.FilePath)
	if err != nil {
		w.markJobFailed(run, job, fmt.Errorf("planning failed: %w", err))
		return
	}

	job.RunID = plan.ID
	job.PlanStatus = plan.Result.Status
	job.Attempt = plan.Attempt
	job.Valid = plan.Valid
	job.Synthetic = plan.Synthetic()

	if job.OutputPath != "" {
		dir, name := filepath.Split(job.OutputPath)
		job.OutputPath = filepath.Join(dir, report.MarkSynthetic(plan, name))
		if err := w.writeReport(job.OutputPath, plan); err != nil {
			w.markJobFailed(run, job, fmt.Errorf("report failed: %w", err))
			return
		}
	}

	now := time.Now()
	job.Status = FileStatusCompleted
	job.ProcessedAt = &now

	w.mu.Lock()
	run.ProcessedFiles++
	if !plan.Valid {
		run.InvalidPlans++
	}
	w.mu.Unlock()
	w.metrics.BatchFile("planned")

	logger.Log.Info().
		Str("source", job.Source).
		Str("run_id", plan.ID).
		Str("status", plan.Result.Status.String()).
		Dur("duration", time.Since(startTime)).
		Msg("batch file planned")
}

func (w *Worker) writeReport(path string, plan *domain.PlanRun) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := w.planner.WriteRun(f, plan, w.config.Format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// markJobFailed records the failure on the job and the run
func (w *Worker) markJobFailed(run *BatchRun, job *FileJob, err error) {
	job.Status = FileStatusFailed
	job.ErrorMessage = err.Error()
	now := time.Now()
	job.ProcessedAt = &now

	w.mu.Lock()
	run.FailedFiles++
	w.mu.Unlock()
	w.metrics.BatchFile("failed")

	logger.Log.Error().Err(err).Str("source", job.Source).Msg("batch file failed")
}

func (w *Worker) finish(run *BatchRun, err error) (*BatchRun, error) {
	now := time.Now()
	run.CompletedAt = &now

	switch {
	case err != nil:
		run.Status = StatusFailed
		run.ErrorMessage = err.Error()
	case run.FailedFiles > 0:
		run.Status = StatusPartial
	default:
		run.Status = StatusCompleted
	}

	logger.Log.Info().
		Str("status", string(run.Status)).
		Int("planned", run.ProcessedFiles).
		Int("failed", run.FailedFiles).
		Int("invalid", run.InvalidPlans).
		Dur("duration", now.Sub(run.StartedAt)).
		Msg("batch planning finished")

	return run, err
}

// reportName maps an input source to its report file name.
func reportName(source string, format report.Format) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	ext := string(format)
	if format == report.FormatText {
		ext = "txt"
	}
	return fmt.Sprintf("%s_plan.%s", base, ext)
}
