package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/cxd309/trip-engine/internal/engine"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// MaxPageSize caps the page size of ListRuns.
const MaxPageSize = 100

// RunSummary describes one simulation request without its trajectory.
type RunSummary struct {
	ID         string                 `json:"id"`
	Status     string                 `json:"status"`
	Input      engine.SimulationInput `json:"params"`
	Error      string                 `json:"error,omitempty"`
	Points     int                    `json:"points"`
	DurationMS int64                  `json:"duration_ms"`
	CreatedAt  string                 `json:"created_at"`
}

// Run is a stored simulation request with its result, if it produced one.
type Run struct {
	RunSummary
	Result *engine.SimulationResult `json:"results,omitempty"`
}

// RunPage is one page of the run history.
type RunPage struct {
	Data       []RunSummary `json:"data"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalPages int          `json:"total_pages"`
}

// SaveRun records a simulation request. A nil result with a non-nil runErr records a
// failed run.
func (s *Store) SaveRun(ctx context.Context, input engine.SimulationInput, result *engine.SimulationResult, runErr error, elapsed time.Duration) (RunSummary, error) {
	in, err := json.Marshal(input)
	if err != nil {
		return RunSummary{}, fmt.Errorf("marshal run input: %w", err)
	}

	summary := RunSummary{
		ID:         uuid.NewString(),
		Status:     lo.Ternary(runErr == nil && result != nil, StatusCompleted, StatusFailed),
		Input:      input,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  formatTime(s.now()),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	var out sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return RunSummary{}, fmt.Errorf("marshal run result: %w", err)
		}
		out = sql.NullString{String: string(data), Valid: true}
		summary.Points = len(result.Time)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO simulation_runs (id, status, input, result, error, points, duration_ms, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			summary.ID, summary.Status, string(in), out, summary.Error, summary.Points, summary.DurationMS, summary.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
	if err != nil {
		return RunSummary{}, err
	}
	return summary, nil
}

// GetRun returns the run with id, including its result.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var (
		run    Run
		input  string
		result sql.NullString
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, status, input, result, error, points, duration_ms, created_at FROM simulation_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Status, &input, &result, &run.Error, &run.Points, &run.DurationMS, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}

	if err := json.Unmarshal([]byte(input), &run.Input); err != nil {
		return Run{}, fmt.Errorf("decode run input: %w", err)
	}
	if result.Valid {
		var res engine.SimulationResult
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			return Run{}, fmt.Errorf("decode run result: %w", err)
		}
		run.Result = &res
	}
	return run, nil
}

// ListRuns returns page (1-based) of the run history, newest first. Out-of-range
// page and limit values are clamped.
func (s *Store) ListRuns(ctx context.Context, page, limit int) (RunPage, error) {
	page = max(page, 1)
	limit = lo.Clamp(limit, 1, MaxPageSize)

	var total int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM simulation_runs`).Scan(&total); err != nil {
		return RunPage{}, fmt.Errorf("count runs: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, status, input, error, points, duration_ms, created_at FROM simulation_runs
		 ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, (page-1)*limit)
	if err != nil {
		return RunPage{}, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	data := []RunSummary{}
	for rows.Next() {
		var (
			r     RunSummary
			input string
		)
		if err := rows.Scan(&r.ID, &r.Status, &input, &r.Error, &r.Points, &r.DurationMS, &r.CreatedAt); err != nil {
			return RunPage{}, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(input), &r.Input); err != nil {
			return RunPage{}, fmt.Errorf("decode run input: %w", err)
		}
		data = append(data, r)
	}
	if err := rows.Err(); err != nil {
		return RunPage{}, fmt.Errorf("iterate runs: %w", err)
	}

	return RunPage{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}
