package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/report"
)

// timeLayout sorts lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const defaultListLimit = 50

type planRunRepository struct {
	db *DB
}

func NewPlanRunRepository(db *DB) *planRunRepository {
	return &planRunRepository{db: db}
}

type summaryRow struct {
	ID             string  `db:"id"`
	CreatedAt      string  `db:"created_at"`
	Source         string  `db:"source"`
	Provenance     string  `db:"provenance"`
	Status         string  `db:"status"`
	Attempt        int     `db:"attempt"`
	Periods        int     `db:"periods"`
	ObjectiveValue float64 `db:"objective_value"`
	Valid          bool    `db:"valid"`
}

func (r *planRunRepository) SaveRun(ctx context.Context, run *domain.PlanRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode plan run: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO plan_runs (
				id, created_at, source, provenance, synthetic_reason, status,
				attempt, relaxation, periods, objective_value, valid,
				validation_message, payload
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		_, err := tx.ExecContext(ctx, query,
			run.ID,
			run.CreatedAt.UTC().Format(timeLayout),
			run.Source,
			string(run.Provenance),
			run.SyntheticReason,
			run.Result.Status.String(),
			run.Attempt,
			run.Relaxation,
			run.Effective.N(),
			run.Result.ObjectiveValue,
			run.Valid,
			run.ValidationMessage,
			string(payload),
		)
		if err != nil {
			return fmt.Errorf("failed to insert plan run: %w", err)
		}

		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO plan_periods (
				run_id, idx, period, production, ending_stock, demand, safety_stock
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, row := range report.RunRows(run) {
			var production, stock sql.NullFloat64
			if row.Solved {
				production = sql.NullFloat64{Float64: row.Production, Valid: true}
				stock = sql.NullFloat64{Float64: row.EndingStock, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, run.ID, i, row.Period, production, stock, row.Demand, row.SafetyStock); err != nil {
				return fmt.Errorf("failed to insert plan period %s: %w", row.Period, err)
			}
		}

		return nil
	})
}

func (r *planRunRepository) GetRun(ctx context.Context, id string) (*domain.PlanRun, error) {
	var payload string
	err := r.db.GetContext(ctx, &payload, r.db.Rebind(`SELECT payload FROM plan_runs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan run %s: %w", id, err)
	}

	var run domain.PlanRun
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, fmt.Errorf("failed to decode plan run %s: %w", id, err)
	}
	return &run, nil
}

func (r *planRunRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rows []summaryRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, created_at, source, provenance, status, attempt, periods, objective_value, valid
		FROM plan_runs
		ORDER BY created_at DESC, id
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan runs: %w", err)
	}

	out := make([]domain.RunSummary, 0, len(rows))
	for _, row := range rows {
		created, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q for run %s: %w", row.CreatedAt, row.ID, err)
		}
		status, _ := domain.ParseStatus(row.Status)
		out = append(out, domain.RunSummary{
			ID:             row.ID,
			CreatedAt:      created,
			Source:         row.Source,
			Provenance:     domain.Provenance(row.Provenance),
			Status:         status,
			Attempt:        row.Attempt,
			Periods:        row.Periods,
			ObjectiveValue: row.ObjectiveValue,
			Valid:          row.Valid,
		})
	}
	return out, nil
}

// PeriodRow is one stored period of a run.
type PeriodRow struct {
	Index       int             `db:"idx"`
	Period      string          `db:"period"`
	Production  sql.NullFloat64 `db:"production"`
	EndingStock sql.NullFloat64 `db:"ending_stock"`
	Demand      float64         `db:"demand"`
	SafetyStock float64         `db:"safety_stock"`
}

// ListPeriods returns the per-period rows of a run in chronological order.
func (r *planRunRepository) ListPeriods(ctx context.Context, id string) ([]PeriodRow, error) {
	var rows []PeriodRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT idx, period, production, ending_stock, demand, safety_stock
		FROM plan_periods
		WHERE run_id = ?
		ORDER BY idx
	`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods of run %s: %w", id, err)
	}
	return rows, nil
}
