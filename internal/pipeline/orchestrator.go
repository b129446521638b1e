package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/storage"
	"github.com/Daniel-Humberto/Micron-Linealytics/pkg/logger"
)

// Orchestrator collects batch inputs from a local directory or from object
// storage and hands them to a Worker.
type Orchestrator struct {
	worker *Worker
	store  storage.ObjectStorage
	cfg    BatchConfig
}

// NewOrchestrator creates a new Orchestrator. store may be nil when only local
// directories are planned.
func NewOrchestrator(worker *Worker, store storage.ObjectStorage, cfg BatchConfig) *Orchestrator {
	return &Orchestrator{
		worker: worker,
		store:  store,
		cfg:    cfg,
	}
}

// RunDir plans every CSV file directly inside dir, in name order.
func (o *Orchestrator) RunDir(ctx context.Context, dir string) (*BatchRun, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input dir %s: %w", dir, err)
	}

	var inputs []Input
	for _, entry := range entries {
		if entry.IsDir() || !isCSV(entry.Name()) {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		inputs = append(inputs, Input{Source: p, Path: p})
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Path < inputs[j].Path })

	if len(inputs) == 0 {
		logger.Log.Warn().Str("dir", dir).Msg("no csv inputs found")
	}
	return o.worker.ProcessBatch(ctx, inputs)
}

// RunPrefix downloads every CSV object below prefix into the staging
// directory and plans them. Objects that fail to download are skipped.
func (o *Orchestrator) RunPrefix(ctx context.Context, prefix string) (*BatchRun, error) {
	if o.store == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}

	objects, err := o.store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list inputs under %q: %w", prefix, err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	staging := o.cfg.DownloadDir
	if staging == "" {
		staging = DefaultBatchConfig().DownloadDir
	}

	var inputs []Input
	for _, object := range objects {
		if !isCSV(object.Key) {
			continue
		}
		dest := filepath.Join(staging, filepath.FromSlash(path.Clean("/"+object.Key)))
		if err := o.store.DownloadObject(ctx, object.Key, dest); err != nil {
			logger.Log.Error().Err(err).Str("key", object.Key).Msg("skipping batch input")
			o.worker.metrics.BatchFile("skipped")
			continue
		}
		inputs = append(inputs, Input{Source: object.Key, Path: dest})
	}

	return o.worker.ProcessBatch(ctx, inputs)
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}
