package repository

import (
	"context"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
)

// PlanRepository persists finished plan runs.
type PlanRepository interface {
	SaveRun(ctx context.Context, run *domain.PlanRun) error
	// GetRun returns domain.ErrRunNotFound when the id is unknown.
	GetRun(ctx context.Context, id string) (*domain.PlanRun, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
}
