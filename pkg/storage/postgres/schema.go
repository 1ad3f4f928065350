package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		provider TEXT,
		provider_customer_id TEXT,
		provider_subscription_id TEXT,
		billing_cycle_day INTEGER NOT NULL CHECK (billing_cycle_day BETWEEN 1 AND 31),
		plan_code TEXT NOT NULL DEFAULT 'starter',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_provider ON users(provider) WHERE provider IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS word_usage_events (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		words BIGINT NOT NULL CHECK (words >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_word_usage_events_user_created
		ON word_usage_events(user_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS subscription_anomalies (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		provider TEXT NOT NULL,
		provider_customer_id TEXT NOT NULL,
		active_count INTEGER NOT NULL,
		chosen_subscription_id TEXT NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_subscription_anomalies_open
		ON subscription_anomalies(user_id, provider) WHERE resolved_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS usage_rollups (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		period_start TIMESTAMPTZ NOT NULL,
		period_end TIMESTAMPTZ NOT NULL,
		words_used BIGINT NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, period_start)
	)`,
}

// InitSchema creates the tables and indexes if they do not exist. Reporting
// rollups live in usage_rollups; live quota checks never read them, usage is
// always aggregated from word_usage_events.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
