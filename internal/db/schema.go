package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schedules (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		client_id TEXT NOT NULL,
		schedule_type TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		duration_seconds INTEGER,
		days_of_week TEXT,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS thresholds (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		client_id TEXT NOT NULL UNIQUE,
		limit_kwh DOUBLE PRECISION NOT NULL,
		reset_period TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		last_reset TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS energy_readings (
		id BIGSERIAL PRIMARY KEY,
		client_id TEXT NOT NULL,
		energy_kwh DOUBLE PRECISION NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_log (
		id BIGSERIAL PRIMARY KEY,
		schedule_id UUID NOT NULL,
		action TEXT NOT NULL,
		executed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_energy_client_time ON energy_readings (client_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_client ON schedules (client_id)`,
}

// InitSchema creates tables and indexes if they don't exist
func InitSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("[DATABASE] failed to initialize schema: %w", err)
		}
	}
	logger.Info("database schema initialized")
	return nil
}
