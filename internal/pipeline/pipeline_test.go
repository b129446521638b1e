package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/metrics"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/report"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/storage"
)

type fakePlanner struct {
	mu       sync.Mutex
	planned  []string
	inFlight int32
	peak     int32
	fail     map[string]bool
}

func (p *fakePlanner) PlanFile(ctx context.Context, path string) (*domain.PlanRun, error) {
	n := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&p.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&p.peak, peak, n) {
			break
		}
	}

	if p.fail[filepath.Base(path)] {
		return nil, domain.NewConfigurationError("demand", "bad file %s", path)
	}

	p.mu.Lock()
	p.planned = append(p.planned, path)
	p.mu.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	provenance := domain.ProvenanceAuthoritative
	if strings.Contains(string(raw), "synthetic") {
		provenance = domain.ProvenanceSynthetic
	}
	return &domain.PlanRun{
		ID:         "run-" + filepath.Base(path),
		Source:     path,
		Provenance: provenance,
		Result:     domain.PlanningResult{Status: domain.StatusOptimal},
		Valid:      !strings.Contains(string(raw), "invalid"),
	}, nil
}

func (p *fakePlanner) WriteRun(w io.Writer, run *domain.PlanRun, format report.Format) error {
	_, err := fmt.Fprintf(w, "%s %s\n", format, run.ID)
	return err
}

func writeInputs(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestWorker_ProcessBatch(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "reports")
	writeInputs(t, in, map[string]string{
		"a.csv": "ok",
		"b.csv": "invalid",
		"c.csv": "ok",
	})

	planner := &fakePlanner{fail: map[string]bool{"c.csv": true}}
	worker := NewWorker(planner, BatchConfig{WorkerCount: 2, OutputDir: out, Format: report.FormatJSON}, metrics.New(prometheus.NewRegistry()))

	run, err := worker.ProcessBatch(context.Background(), []Input{
		{Source: "a.csv", Path: filepath.Join(in, "a.csv")},
		{Source: "b.csv", Path: filepath.Join(in, "b.csv")},
		{Source: "c.csv", Path: filepath.Join(in, "c.csv")},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, run.Status)
	assert.Equal(t, 3, run.TotalFiles)
	assert.Equal(t, 2, run.ProcessedFiles)
	assert.Equal(t, 1, run.FailedFiles)
	assert.Equal(t, 1, run.InvalidPlans)
	assert.NotNil(t, run.CompletedAt)

	assert.Equal(t, FileStatusCompleted, run.Jobs[0].Status)
	assert.Equal(t, "run-a.csv", run.Jobs[0].RunID)
	assert.Equal(t, FileStatusFailed, run.Jobs[2].Status)
	assert.Contains(t, run.Jobs[2].ErrorMessage, "bad file")

	raw, err := os.ReadFile(filepath.Join(out, "a_plan.json"))
	require.NoError(t, err)
	assert.Equal(t, "json run-a.csv\n", string(raw))
	_, err = os.Stat(filepath.Join(out, "c_plan.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestWorker_SyntheticReportsAreTagged(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "reports")
	writeInputs(t, in, map[string]string{
		"real.csv":   "ok",
		"broken.csv": "synthetic",
	})

	worker := NewWorker(&fakePlanner{}, BatchConfig{WorkerCount: 2, OutputDir: out, Format: report.FormatCSV}, nil)
	run, err := worker.ProcessBatch(context.Background(), []Input{
		{Source: "real.csv", Path: filepath.Join(in, "real.csv")},
		{Source: "broken.csv", Path: filepath.Join(in, "broken.csv")},
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, run.Status)

	assert.Equal(t, filepath.Join(out, "real_plan.csv"), run.Jobs[0].OutputPath)
	assert.False(t, run.Jobs[0].Synthetic)

	assert.True(t, run.Jobs[1].Synthetic)
	assert.Equal(t, filepath.Join(out, "broken_plan.synthetic.csv"), run.Jobs[1].OutputPath)
	_, err = os.Stat(filepath.Join(out, "broken_plan.synthetic.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "broken_plan.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestWorker_RespectsWorkerLimit(t *testing.T) {
	in := t.TempDir()
	var inputs []Input
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("f%02d.csv", i)
		writeInputs(t, in, map[string]string{name: "ok"})
		inputs = append(inputs, Input{Source: name, Path: filepath.Join(in, name)})
	}

	planner := &fakePlanner{}
	run, err := NewWorker(planner, BatchConfig{WorkerCount: 3}, nil).ProcessBatch(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 12, run.ProcessedFiles)
	assert.LessOrEqual(t, atomic.LoadInt32(&planner.peak), int32(3))
	assert.Empty(t, run.Jobs[0].OutputPath)
}

func TestWorker_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := NewWorker(&fakePlanner{}, BatchConfig{WorkerCount: 1}, nil).
		ProcessBatch(ctx, []Input{{Source: "x.csv", Path: "x.csv"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, run.Status)
}

func TestWorker_DuplicateReportNames(t *testing.T) {
	in := t.TempDir()
	sub := filepath.Join(in, "east")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeInputs(t, in, map[string]string{"plan.csv": "ok"})
	writeInputs(t, sub, map[string]string{"plan.csv": "ok"})

	out := t.TempDir()
	run, err := NewWorker(&fakePlanner{}, BatchConfig{WorkerCount: 1, OutputDir: out, Format: report.FormatText}, nil).
		ProcessBatch(context.Background(), []Input{
			{Source: "plan.csv", Path: filepath.Join(in, "plan.csv")},
			{Source: "east/plan.csv", Path: filepath.Join(sub, "plan.csv")},
		})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "plan_plan.txt"), run.Jobs[0].OutputPath)
	assert.Equal(t, filepath.Join(out, "plan_plan-2.txt"), run.Jobs[1].OutputPath)
}

func TestOrchestrator_RunDir(t *testing.T) {
	in := t.TempDir()
	writeInputs(t, in, map[string]string{
		"b.csv":     "ok",
		"a.CSV":     "ok",
		"notes.txt": "ignored",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(in, "nested.csv"), 0o755))

	planner := &fakePlanner{}
	orch := NewOrchestrator(NewWorker(planner, BatchConfig{WorkerCount: 1}, nil), nil, BatchConfig{})

	run, err := orch.RunDir(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, run.Jobs, 2)
	assert.Equal(t, filepath.Join(in, "a.CSV"), run.Jobs[0].Source)
	assert.Equal(t, filepath.Join(in, "b.csv"), run.Jobs[1].Source)

	_, err = orch.RunDir(context.Background(), filepath.Join(in, "missing"))
	assert.Error(t, err)
}

func TestOrchestrator_RunPrefix(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.UploadObject(ctx, "inbox/w1.csv", []byte("ok")))
	require.NoError(t, store.UploadObject(ctx, "inbox/w2.csv", []byte("ok")))
	require.NoError(t, store.UploadObject(ctx, "inbox/readme.md", []byte("skip")))

	staging := t.TempDir()
	cfg := BatchConfig{WorkerCount: 2, DownloadDir: staging}
	planner := &fakePlanner{}
	orch := NewOrchestrator(NewWorker(planner, cfg, nil), store, cfg)

	run, err := orch.RunPrefix(ctx, "inbox")
	require.NoError(t, err)
	require.Len(t, run.Jobs, 2)
	assert.Equal(t, "inbox/w1.csv", run.Jobs[0].Source)
	assert.Equal(t, filepath.Join(staging, "inbox", "w1.csv"), run.Jobs[0].FilePath)
	assert.Equal(t, StatusCompleted, run.Status)

	_, err = NewOrchestrator(NewWorker(planner, cfg, nil), nil, cfg).RunPrefix(ctx, "inbox")
	assert.Error(t, err)
}

func TestOrchestrator_RunPrefixSkipsFailedDownloads(t *testing.T) {
	store := &brokenStore{keys: []string{"in/a.csv"}}
	cfg := BatchConfig{WorkerCount: 1, DownloadDir: t.TempDir()}
	orch := NewOrchestrator(NewWorker(&fakePlanner{}, cfg, nil), store, cfg)

	run, err := orch.RunPrefix(context.Background(), "in")
	require.NoError(t, err)
	assert.Empty(t, run.Jobs)
	assert.Equal(t, StatusCompleted, run.Status)
}

type brokenStore struct {
	keys []string
}

func (s *brokenStore) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	out := make([]storage.ObjectInfo, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, storage.ObjectInfo{Key: k})
	}
	return out, nil
}

func (s *brokenStore) DownloadObject(ctx context.Context, key, destPath string) error {
	return errors.New("connection reset")
}

func (s *brokenStore) UploadObject(ctx context.Context, key string, data []byte) error {
	return nil
}

func TestReportName(t *testing.T) {
	assert.Equal(t, "week_plan.csv", reportName("inbox/week.csv", report.FormatCSV))
	assert.Equal(t, "week_plan.txt", reportName("week.csv", report.FormatText))
	assert.Equal(t, "week_plan.yaml", reportName("/tmp/week.CSV", report.FormatYAML))
}
