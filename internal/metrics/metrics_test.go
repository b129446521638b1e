package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
)

func TestRecorder_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := New(reg)

	rec.ObserveRun(&domain.PlanRun{
		Provenance: domain.ProvenanceAuthoritative,
		Result:     domain.PlanningResult{Status: domain.StatusOptimal},
		Corrections: []domain.Correction{
			{Kind: domain.CorrectionImputed},
			{Kind: domain.CorrectionImputed},
			{Kind: domain.CorrectionClampedExtreme},
		},
	}, 20*time.Millisecond)
	rec.ObserveRun(&domain.PlanRun{
		Provenance: domain.ProvenanceSynthetic,
		Result:     domain.PlanningResult{Status: domain.StatusOptimal},
		Attempt:    4,
		Relaxation: "initial_stock",
	}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.runsTotal.WithLabelValues("Optimal", "authoritative")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.runsTotal.WithLabelValues("Optimal", "synthetic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.attemptsTotal.WithLabelValues("none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.attemptsTotal.WithLabelValues("initial_stock")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.correctionsTotal.WithLabelValues("imputed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.correctionsTotal.WithLabelValues("clamped_extreme")))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.solveDuration))
}

func TestRecorder_Counters(t *testing.T) {
	rec := New(prometheus.NewRegistry())
	rec.CacheHit()
	rec.CacheHit()
	rec.BatchFile("planned")
	rec.BatchFile("failed")
	rec.BatchFile("planned")

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.batchFiles.WithLabelValues("planned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.batchFiles.WithLabelValues("failed")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		rec.ObserveRun(&domain.PlanRun{}, time.Second)
		rec.CacheHit()
		rec.BatchFile("planned")
	})
}
