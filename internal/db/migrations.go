package db

import (
	"context"
	"fmt"
	"time"
)

type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{
		version:     1,
		description: "init core tables",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS providers (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				api_key_hash TEXT NOT NULL UNIQUE,
				api_key_prefix TEXT NOT NULL,
				display_name TEXT,
				base_url TEXT,
				is_active INTEGER DEFAULT 0,
				first_seen_at TEXT NOT NULL,
				last_seen_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS message_usage (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				provider_id INTEGER NOT NULL,
				session_id TEXT NOT NULL,
				message_id TEXT NOT NULL,
				model TEXT NOT NULL,
				input_tokens INTEGER DEFAULT 0,
				output_tokens INTEGER DEFAULT 0,
				cache_read_tokens INTEGER DEFAULT 0,
				cache_creation_tokens INTEGER DEFAULT 0,
				cost_usd REAL DEFAULT 0,
				created_at TEXT NOT NULL,
				FOREIGN KEY (provider_id) REFERENCES providers(id)
			)`,
			`CREATE TABLE IF NOT EXISTS daily_stats (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				provider_id INTEGER NOT NULL,
				date TEXT NOT NULL,
				total_input_tokens INTEGER DEFAULT 0,
				total_output_tokens INTEGER DEFAULT 0,
				total_cache_read_tokens INTEGER DEFAULT 0,
				total_cache_creation_tokens INTEGER DEFAULT 0,
				total_cost_usd REAL DEFAULT 0,
				session_count INTEGER DEFAULT 0,
				message_count INTEGER DEFAULT 0,
				UNIQUE(provider_id, date),
				FOREIGN KEY (provider_id) REFERENCES providers(id)
			)`,
			`CREATE TABLE IF NOT EXISTS provider_switch_logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				provider_id INTEGER NOT NULL,
				switched_at TEXT NOT NULL,
				FOREIGN KEY (provider_id) REFERENCES providers(id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_message_usage_provider ON message_usage(provider_id)`,
			`CREATE INDEX IF NOT EXISTS idx_message_usage_created ON message_usage(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_daily_stats_date ON daily_stats(date)`,
			`CREATE INDEX IF NOT EXISTS idx_daily_stats_provider ON daily_stats(provider_id)`,
		},
	},
}

// migrate applies every migration newer than the recorded schema version.
// Tables already created by the backend are left untouched.
func (db *DB) migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`)
	if err != nil {
		return err
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.version, m.description, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	return tx.Commit()
}
