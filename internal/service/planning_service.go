package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/cache"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/config"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/metrics"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/normalize"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/planner"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/report"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/repository"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/storage"
	"github.com/Daniel-Humberto/Micron-Linealytics/pkg/logger"
)

// ErrNoRepository is returned by lookups when no plan store is configured.
var ErrNoRepository = errors.New("plan repository not configured")

// SeriesRequest is an in-memory planning request. Nil Params keeps the
// configured parameters.
type SeriesRequest struct {
	Periods      []string           `json:"periods"`
	Demand       []float64          `json:"demand" binding:"required"`
	SafetyStock  []float64          `json:"safety_stock"`
	InitialStock float64            `json:"initial_stock"`
	Params       *domain.Parameters `json:"parameters,omitempty"`
}

// PlanningService runs normalization, solve with recovery and validation,
// then hands the finished run to persistence, cache and export.
type PlanningService struct {
	cfg          config.PlannerConfig
	normalizer   *normalize.Normalizer
	recoverer    *planner.Recoverer
	writer       *report.Writer
	repo         repository.PlanRepository
	cache        cache.PlanCache
	store        storage.ObjectStorage
	exportPrefix string
	metrics      *metrics.Recorder
	now          func() time.Time
}

// Option configures a PlanningService.
type Option func(*PlanningService)

// WithRepository persists every run. Save failures fail the request.
func WithRepository(repo repository.PlanRepository) Option {
	return func(s *PlanningService) {
		s.repo = repo
	}
}

func WithCache(c cache.PlanCache) Option {
	return func(s *PlanningService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithStorage uploads a CSV export of every run below prefix.
func WithStorage(store storage.ObjectStorage, prefix string) Option {
	return func(s *PlanningService) {
		s.store = store
		s.exportPrefix = prefix
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *PlanningService) {
		s.metrics = m
	}
}

// WithBackend swaps the LP backend.
func WithBackend(b planner.Backend) Option {
	return func(s *PlanningService) {
		s.recoverer = newRecoverer(s.cfg, b)
	}
}

func withClock(now func() time.Time) Option {
	return func(s *PlanningService) {
		s.now = now
	}
}

// NewPlanningService wires the core from the planner configuration.
func NewPlanningService(cfg config.PlannerConfig, opts ...Option) *PlanningService {
	normOpts := normalize.DefaultOptions(cfg.Params)
	normOpts.Horizon = cfg.Horizon

	s := &PlanningService{
		cfg:        cfg,
		normalizer: normalize.New(normOpts),
		recoverer:  newRecoverer(cfg, planner.NewSimplexBackend(cfg.Tolerance)),
		writer:     report.NewWriter(cfg.Precision),
		cache:      cache.NewNoopPlanCache(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newRecoverer(cfg config.PlannerConfig, backend planner.Backend) *planner.Recoverer {
	optimizer := planner.NewOptimizer(
		planner.WithBackend(backend),
		planner.WithTimeout(cfg.SolveTimeout),
	)
	return planner.NewRecoverer(optimizer, planner.Relaxations(cfg.Relaxation), cfg.MaxAttempts)
}

// PlanFile plans a CSV file. Unreadable files are planned on synthetic data
// and the run is flagged accordingly.
func (s *PlanningService) PlanFile(ctx context.Context, filePath string) (*domain.PlanRun, error) {
	return s.Plan(ctx, filePath, s.normalizer.NormalizeFile(filePath))
}

// PlanReader plans an already opened CSV source, e.g. an HTTP upload.
func (s *PlanningService) PlanReader(ctx context.Context, name string, r io.Reader) (*domain.PlanRun, error) {
	return s.Plan(ctx, name, s.normalizer.NormalizeReader(name, r))
}

// PlanSeries plans in-memory series. Mismatched lengths are configuration
// errors.
func (s *PlanningService) PlanSeries(ctx context.Context, req SeriesRequest) (*domain.PlanRun, error) {
	norm, err := s.normalizer.NormalizeSeries(req.Periods, req.Demand, req.SafetyStock, req.InitialStock)
	if err != nil {
		return nil, err
	}
	if req.Params != nil {
		norm = norm.WithParams(s.withDefaults(*req.Params))
	}
	return s.Plan(ctx, "inline", norm)
}

// withDefaults fills the enum fields a request left out from the configured
// parameters.
func (s *PlanningService) withDefaults(p domain.Parameters) domain.Parameters {
	if p.Objective == "" {
		p.Objective = s.cfg.Params.Objective
	}
	if p.Terminal == "" {
		p.Terminal = s.cfg.Params.Terminal
	}
	return p
}

// Plan solves a normalized input, recovering from infeasibility, and
// validates the accepted result against the input that produced it.
func (s *PlanningService) Plan(ctx context.Context, source string, norm domain.NormalizedInput) (*domain.PlanRun, error) {
	start := s.now()
	in, provenance := norm.Input()

	fingerprint := cache.Fingerprint(source, norm, s.recoverer.MaxAttempts(), s.cfg.Relaxation)
	cached, ok, err := s.cache.GetRun(ctx, fingerprint)
	if err != nil {
		logger.Log.Warn().Err(err).Str("source", source).Msg("plan cache lookup failed")
	} else if ok {
		s.metrics.CacheHit()
		logger.Log.Debug().Str("run_id", cached.ID).Str("source", source).Msg("plan served from cache")
		return cached, nil
	}

	rec, err := s.recoverer.Recover(ctx, in)
	if err != nil {
		return nil, err
	}

	valid, message := planner.Validate(rec.Result, rec.Input)
	run := &domain.PlanRun{
		ID:                uuid.NewString(),
		CreatedAt:         start.UTC(),
		Source:            source,
		Provenance:        provenance,
		SyntheticReason:   norm.Reason(),
		Corrections:       norm.Corrections,
		MissingColumns:    norm.MissingColumns,
		Input:             in,
		Effective:         rec.Input,
		Result:            rec.Result,
		Attempt:           rec.Attempt,
		Relaxation:        rec.Relaxation,
		Trail:             rec.Trail,
		Valid:             valid,
		ValidationMessage: message,
	}
	if len(rec.Trail) > 0 && rec.Trail[0].Status != domain.StatusOptimal {
		diagnostic := planner.Diagnose(in)
		run.Diagnostic = &diagnostic
	}

	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to save plan run: %w", err)
		}
	}

	if err := s.cache.SetRun(ctx, fingerprint, run); err != nil {
		logger.Log.Warn().Err(err).Str("run_id", run.ID).Msg("plan cache store failed")
	}

	if s.store != nil {
		if err := s.export(ctx, run); err != nil {
			logger.Log.Warn().Err(err).Str("run_id", run.ID).Msg("plan export upload failed")
		}
	}

	s.metrics.ObserveRun(run, s.now().Sub(start))

	event := logger.Log.Info()
	if run.Synthetic() {
		event = logger.Log.Warn().Str("synthetic_reason", run.SyntheticReason)
	}
	event.
		Str("run_id", run.ID).
		Str("source", source).
		Str("status", run.Result.Status.String()).
		Int("attempt", run.Attempt).
		Int("corrections", len(run.Corrections)).
		Bool("valid", run.Valid).
		Float64("objective", run.Result.ObjectiveValue).
		Msg("plan run finished")

	return run, nil
}

// GetRun loads a stored run.
func (s *PlanningService) GetRun(ctx context.Context, id string) (*domain.PlanRun, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	return s.repo.GetRun(ctx, id)
}

// ListRuns returns the most recent stored runs.
func (s *PlanningService) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	return s.repo.ListRuns(ctx, limit)
}

// WriteRun renders a run in the requested format.
func (s *PlanningService) WriteRun(w io.Writer, run *domain.PlanRun, format report.Format) error {
	return s.writer.Write(w, run, format)
}

// ExportKey is the object key a run's CSV export is uploaded to. Runs planned
// on synthetic data go below a separate synthetic/ prefix.
func (s *PlanningService) ExportKey(run *domain.PlanRun) string {
	if run.Synthetic() {
		return path.Join(s.exportPrefix, "exports", report.SyntheticTag, run.ID+".csv")
	}
	return path.Join(s.exportPrefix, "exports", run.ID+".csv")
}

// FlushCache drops every cached run and reports how many entries were removed.
func (s *PlanningService) FlushCache(ctx context.Context) (int, error) {
	n, err := s.cache.InvalidateAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to flush plan cache: %w", err)
	}
	logger.Log.Info().Int("entries", n).Msg("plan cache flushed")
	return n, nil
}

func (s *PlanningService) export(ctx context.Context, run *domain.PlanRun) error {
	var buf bytes.Buffer
	if err := s.writer.Write(&buf, run, report.FormatCSV); err != nil {
		return err
	}
	return s.store.UploadObject(ctx, s.ExportKey(run), buf.Bytes())
}
