package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabado/kuryentrol-scheduler/internal/db"
)

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const scheduleColumns = `id, client_id, schedule_type, start_time, end_time, duration_seconds, days_of_week, enabled, created_at`

func scanSchedule(row pgx.Row) (*db.Schedule, error) {
	var s db.Schedule
	err := row.Scan(
		&s.ID,
		&s.ClientID,
		&s.Type,
		&s.StartTime,
		&s.EndTime,
		&s.DurationSeconds,
		&s.DaysOfWeek,
		&s.Enabled,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSchedules returns all schedules, optionally restricted to enabled ones
func (r *Repository) ListSchedules(ctx context.Context, onlyEnabled bool) ([]db.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	if onlyEnabled {
		query += ` WHERE enabled`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []db.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return schedules, nil
}

// GetSchedule returns a single schedule by id, or nil if it does not exist
func (r *Repository) GetSchedule(ctx context.Context, id uuid.UUID) (*db.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	s, err := scanSchedule(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	return s, nil
}

// InsertSchedule inserts a new schedule and fills in its generated id
func (r *Repository) InsertSchedule(ctx context.Context, s *db.Schedule) error {
	query := `
		INSERT INTO schedules (client_id, schedule_type, start_time, end_time, duration_seconds, days_of_week, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		s.ClientID,
		s.Type,
		s.StartTime,
		s.EndTime,
		s.DurationSeconds,
		s.DaysOfWeek,
		s.Enabled,
	).Scan(&s.ID, &s.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}

	return nil
}

// DeleteSchedule removes a schedule row
func (r *Repository) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

// ListThresholds returns all thresholds, optionally restricted to enabled ones
func (r *Repository) ListThresholds(ctx context.Context, onlyEnabled bool) ([]db.Threshold, error) {
	query := `SELECT id, client_id, limit_kwh, reset_period, enabled, last_reset, created_at FROM thresholds`
	if onlyEnabled {
		query += ` WHERE enabled`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()

	var thresholds []db.Threshold
	for rows.Next() {
		var t db.Threshold
		err := rows.Scan(&t.ID, &t.ClientID, &t.LimitKWh, &t.ResetPeriod, &t.Enabled, &t.LastReset, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		thresholds = append(thresholds, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return thresholds, nil
}

// UpsertThreshold creates or replaces the threshold for a device. A replaced
// threshold is re-enabled.
func (r *Repository) UpsertThreshold(ctx context.Context, clientID string, limitKWh float64, resetPeriod string) error {
	query := `
		INSERT INTO thresholds (client_id, limit_kwh, reset_period, enabled)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (client_id) DO UPDATE SET
			limit_kwh = EXCLUDED.limit_kwh,
			reset_period = EXCLUDED.reset_period,
			enabled = TRUE
	`

	if _, err := r.pool.Exec(ctx, query, clientID, limitKWh, resetPeriod); err != nil {
		return fmt.Errorf("failed to upsert threshold: %w", err)
	}
	return nil
}

// DisableThreshold disables a threshold after it has fired
func (r *Repository) DisableThreshold(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `UPDATE thresholds SET enabled = FALSE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to disable threshold: %w", err)
	}
	return nil
}

// EnableThreshold re-enables a fired threshold and restarts its budget window.
// Thresholds are never re-enabled automatically; this is an operator action.
func (r *Repository) EnableThreshold(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `UPDATE thresholds SET enabled = TRUE, last_reset = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to enable threshold: %w", err)
	}
	return nil
}

// InsertReading stores an energy counter sample
func (r *Repository) InsertReading(ctx context.Context, clientID string, energyKWh float64) error {
	query := `INSERT INTO energy_readings (client_id, energy_kwh) VALUES ($1, $2)`

	if _, err := r.pool.Exec(ctx, query, clientID, energyKWh); err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// ReadingsSince returns a device's readings from the given timestamp onward,
// ordered by timestamp ascending
func (r *Repository) ReadingsSince(ctx context.Context, clientID string, since time.Time) ([]db.EnergyReading, error) {
	query := `
		SELECT id, client_id, energy_kwh, timestamp
		FROM energy_readings
		WHERE client_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC
	`

	rows, err := r.pool.Query(ctx, query, clientID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []db.EnergyReading
	for rows.Next() {
		var reading db.EnergyReading
		if err := rows.Scan(&reading.ID, &reading.ClientID, &reading.EnergyKWh, &reading.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}

// InsertExecution appends a schedule execution audit record
func (r *Repository) InsertExecution(ctx context.Context, scheduleID uuid.UUID, action string) error {
	query := `INSERT INTO schedule_log (schedule_id, action) VALUES ($1, $2)`

	if _, err := r.pool.Exec(ctx, query, scheduleID, action); err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}
	return nil
}
