package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
)

const namespace = "planner"

// Recorder collects planning metrics. The zero value is unusable; build one
// with New.
type Recorder struct {
	runsTotal        *prometheus.CounterVec
	attemptsTotal    *prometheus.CounterVec
	correctionsTotal *prometheus.CounterVec
	solveDuration    prometheus.Histogram
	cacheHits        prometheus.Counter
	batchFiles       *prometheus.CounterVec
}

// New registers the planner collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Plan runs by final status and provenance.",
		}, []string{"status", "provenance"}),
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_attempts_total",
			Help:      "Accepted plans by recovery relaxation.",
		}, []string{"relaxation"}),
		correctionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_corrections_total",
			Help:      "Input values repaired by the normalizer.",
		}, []string{"kind"}),
		solveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "Wall time of one planning request including recovery.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Plan requests answered from the cache.",
		}),
		batchFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_files_total",
			Help:      "Batch input files by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(run *domain.PlanRun, elapsed time.Duration) {
	if r == nil || run == nil {
		return
	}
	r.runsTotal.WithLabelValues(run.Result.Status.String(), string(run.Provenance)).Inc()
	relaxation := run.Relaxation
	if relaxation == "" {
		relaxation = "none"
	}
	r.attemptsTotal.WithLabelValues(relaxation).Inc()
	for _, c := range run.Corrections {
		r.correctionsTotal.WithLabelValues(string(c.Kind)).Inc()
	}
	r.solveDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

// BatchFile records one batch file outcome ("planned", "failed", "skipped").
func (r *Recorder) BatchFile(outcome string) {
	if r == nil {
		return
	}
	r.batchFiles.WithLabelValues(outcome).Inc()
}
