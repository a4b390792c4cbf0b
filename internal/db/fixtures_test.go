package db

import (
	"context"
	"fmt"
	"time"

	"github.com/j-veylop/token-monitor-tui/internal/models"
)

// The helpers below write the usage collector's side of the schema so the
// read commands can be tested against realistic rows.

// UsageRecord is one priced message as written by the usage collector.
type UsageRecord struct {
	SessionID           string
	MessageID           string
	Model               string
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
	CostUSD             float64
	CreatedAt           time.Time
}

// ActivateProvider records key as the key currently in use: every other
// provider is deactivated and the switch is logged. An unknown key is
// registered first.
func (db *DB) ActivateProvider(ctx context.Context, apiKey string, baseURL *string) (*models.Provider, error) {
	if err := models.RequireText("apiKey", apiKey); err != nil {
		return nil, err
	}

	hash, prefix := models.HashAPIKey(apiKey)
	now := db.now().UTC().Format(time.RFC3339)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "UPDATE providers SET is_active = 0"); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO providers (api_key_hash, api_key_prefix, base_url, is_active, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(api_key_hash) DO UPDATE SET
			is_active = 1,
			last_seen_at = excluded.last_seen_at,
			base_url = COALESCE(excluded.base_url, providers.base_url)
	`, hash, prefix, nullString(baseURL), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert provider: %w", err)
	}

	p, err := scanProvider(tx.QueryRowContext(ctx,
		"SELECT "+providerColumns+" FROM providers p WHERE p.api_key_hash = ?", hash))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO provider_switch_logs (provider_id, switched_at) VALUES (?, ?)", p.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordUsage stores one message and folds it into the provider's daily
// totals for the local calendar day it was created on.
func (db *DB) RecordUsage(ctx context.Context, providerID int64, rec UsageRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = db.now()
	}
	local := createdAt.In(db.now().Location())
	date := local.Format(models.DateLayout)
	y, m, d := local.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, local.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// A session counts once per provider and day.
	var seen int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM message_usage
		WHERE provider_id = ? AND session_id = ? AND created_at >= ? AND created_at < ?
	`, providerID, rec.SessionID,
		dayStart.UTC().Format(time.RFC3339), dayEnd.UTC().Format(time.RFC3339)).Scan(&seen)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	sessionIncrement := 0
	if seen == 0 {
		sessionIncrement = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO message_usage (provider_id, session_id, message_id, model, input_tokens, output_tokens,
			cache_read_tokens, cache_creation_tokens, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, providerID, rec.SessionID, rec.MessageID, rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.CacheReadTokens, rec.CacheCreationTokens, rec.CostUSD, createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert message usage: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_stats (provider_id, date, total_input_tokens, total_output_tokens,
			total_cache_read_tokens, total_cache_creation_tokens, total_cost_usd, session_count, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(provider_id, date) DO UPDATE SET
			total_input_tokens = total_input_tokens + excluded.total_input_tokens,
			total_output_tokens = total_output_tokens + excluded.total_output_tokens,
			total_cache_read_tokens = total_cache_read_tokens + excluded.total_cache_read_tokens,
			total_cache_creation_tokens = total_cache_creation_tokens + excluded.total_cache_creation_tokens,
			total_cost_usd = total_cost_usd + excluded.total_cost_usd,
			session_count = session_count + excluded.session_count,
			message_count = message_count + excluded.message_count
	`, providerID, date, rec.InputTokens, rec.OutputTokens, rec.CacheReadTokens,
		rec.CacheCreationTokens, rec.CostUSD, sessionIncrement)
	if err != nil {
		return fmt.Errorf("failed to update daily stats: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE providers SET last_seen_at = ? WHERE id = ?", db.now().UTC().Format(time.RFC3339), providerID); err != nil {
		return fmt.Errorf("failed to touch provider: %w", err)
	}

	return tx.Commit()
}
