package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cxd309/trip-engine/internal/kinematics"
)

// Curve is a saved acceleration curve configuration.
type Curve struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Config    kinematics.CurveConfig `json:"config"`
	IsDefault bool                   `json:"is_default"`
	CreatedAt string                 `json:"created_at"`
}

const curveColumns = `id, name, linear_velocity_threshold, initial_acceleration, velocity_increment,
	loss_factor, max_velocity, is_default, created_at`

// CreateCurve saves a curve. Saving a default curve clears the previous default.
func (s *Store) CreateCurve(ctx context.Context, name string, cfg kinematics.CurveConfig, isDefault bool) (Curve, error) {
	if name == "" {
		return Curve{}, fmt.Errorf("curve name must not be empty")
	}
	if err := cfg.Validate(); err != nil {
		return Curve{}, err
	}

	c := Curve{
		ID:        uuid.NewString(),
		Name:      name,
		Config:    cfg,
		IsDefault: isDefault,
		CreatedAt: formatTime(s.now()),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if isDefault {
			if _, err := tx.ExecContext(ctx, `UPDATE acceleration_curves SET is_default = 0 WHERE is_default = 1`); err != nil {
				return fmt.Errorf("clear default curve: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO acceleration_curves (`+curveColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, cfg.LinearVelocityThreshold, cfg.InitialAcceleration, cfg.VelocityIncrement,
			cfg.LossFactor, cfg.MaxVelocity, c.IsDefault, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert curve: %w", err)
		}
		return nil
	})
	if err != nil {
		return Curve{}, err
	}

	s.logger.Debug().Str("id", c.ID).Str("name", c.Name).Bool("default", c.IsDefault).Msg("curve saved")
	return c, nil
}

// ListCurves returns every saved curve, default first, then newest first.
func (s *Store) ListCurves(ctx context.Context) ([]Curve, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+curveColumns+` FROM acceleration_curves ORDER BY is_default DESC, created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query curves: %w", err)
	}
	defer rows.Close()

	curves := []Curve{}
	for rows.Next() {
		c, err := scanCurve(rows)
		if err != nil {
			return nil, err
		}
		curves = append(curves, c)
	}
	return curves, rows.Err()
}

// GetCurve returns the curve with id.
func (s *Store) GetCurve(ctx context.Context, id string) (Curve, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+curveColumns+` FROM acceleration_curves WHERE id = ?`, id)
	return scanCurve(row)
}

// DefaultCurve returns the curve flagged as default.
func (s *Store) DefaultCurve(ctx context.Context) (Curve, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+curveColumns+` FROM acceleration_curves WHERE is_default = 1 LIMIT 1`)
	return scanCurve(row)
}

// DeleteCurve removes the curve with id.
func (s *Store) DeleteCurve(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM acceleration_curves WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete curve: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete curve: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("curve %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCurve(row scanner) (Curve, error) {
	var c Curve
	err := row.Scan(&c.ID, &c.Name,
		&c.Config.LinearVelocityThreshold, &c.Config.InitialAcceleration, &c.Config.VelocityIncrement,
		&c.Config.LossFactor, &c.Config.MaxVelocity, &c.IsDefault, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Curve{}, fmt.Errorf("curve: %w", ErrNotFound)
	}
	if err != nil {
		return Curve{}, fmt.Errorf("scan curve: %w", err)
	}
	return c, nil
}
