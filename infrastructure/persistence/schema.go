package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var integrationDDL = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS strava_tokens (
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT 'strava',
		access_token BYTEA NOT NULL,
		refresh_token BYTEA NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, platform)
	)`,
	`CREATE TABLE IF NOT EXISTS device_connections (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		provider_user_id TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, platform)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_device_connections_provider ON device_connections (platform, provider_user_id)`,
	`CREATE TABLE IF NOT EXISTS workout_metrics (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		source_platform TEXT NOT NULL,
		external_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		activity_type TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		distance_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
		calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		elevation_gain_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
		points INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (source_platform, external_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stage_results (
		id BIGSERIAL PRIMARY KEY,
		stage_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		strava_activity_id TEXT NOT NULL DEFAULT '',
		elapsed_time_seconds INTEGER NULL,
		mountain_points INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (stage_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS segment_results (
		id BIGSERIAL PRIMARY KEY,
		stage_id TEXT NOT NULL,
		segment_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		strava_effort_id TEXT NOT NULL DEFAULT '',
		elapsed_time_seconds INTEGER NOT NULL,
		position INTEGER NULL,
		points_earned INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (segment_id, user_id)
	)`,
}

// EnsureIntegrationSchema creates the integration tables and adds newer columns when missing.
// Safe to call at startup.
func EnsureIntegrationSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, ddl := range integrationDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure integration schema: %w", err)
		}
	}

	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"stage_results", "is_dnf", "ALTER TABLE stage_results ADD COLUMN is_dnf BOOLEAN NOT NULL DEFAULT FALSE"},
	}
	for _, c := range checks {
		exists, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
