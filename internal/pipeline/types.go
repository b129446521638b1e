package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/report"
)

// Planner plans one input file and renders the finished run.
type Planner interface {
	PlanFile(ctx context.Context, path string) (*domain.PlanRun, error)
	WriteRun(w io.Writer, run *domain.PlanRun, format report.Format) error
}

// BatchConfig holds configuration for a batch run
type BatchConfig struct {
	WorkerCount int           // Number of files planned concurrently
	OutputDir   string        // Directory for per-file reports, empty to skip
	Format      report.Format // Report format written to OutputDir
	DownloadDir string        // Local staging directory for remote inputs
}

// DefaultBatchConfig returns sensible defaults
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		WorkerCount: 4,
		OutputDir:   "data/output",
		Format:      report.FormatCSV,
		DownloadDir: "data/inbox",
	}
}

// BatchStatus represents the current state of a batch run
type BatchStatus string

const (
	StatusPending    BatchStatus = "pending"
	StatusProcessing BatchStatus = "processing"
	StatusCompleted  BatchStatus = "completed"
	// StatusPartial means at least one file failed.
	StatusPartial BatchStatus = "partial"
	StatusFailed  BatchStatus = "failed"
)

// FileJobStatus represents the state of a single file planning job
type FileJobStatus string

const (
	FileStatusQueued     FileJobStatus = "queued"
	FileStatusProcessing FileJobStatus = "processing"
	FileStatusCompleted  FileJobStatus = "completed"
	FileStatusFailed     FileJobStatus = "failed"
)

// Input is one file to plan. Source is what the file is called in reports
// (an object key for remote inputs), Path is where it lives locally.
type Input struct {
	Source string
	Path   string
}

// FileJob tracks the planning of a single file
type FileJob struct {
	Source       string
	FilePath     string
	Status       FileJobStatus
	RunID        string
	PlanStatus   domain.Status
	Attempt      int
	Valid        bool
	Synthetic    bool
	OutputPath   string
	ErrorMessage string
	ProcessedAt  *time.Time
}

// BatchRun tracks a single execution over a set of files
type BatchRun struct {
	Status         BatchStatus
	TotalFiles     int
	ProcessedFiles int
	FailedFiles    int
	InvalidPlans   int
	StartedAt      time.Time
	CompletedAt    *time.Time
	ErrorMessage   string
	Jobs           []*FileJob
}
