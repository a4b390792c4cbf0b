package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/j-veylop/token-monitor-tui/internal/aggregate"
	"github.com/j-veylop/token-monitor-tui/internal/backend"
	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/models"
)

var _ backend.Backend = (*DB)(nil)

const providerColumns = `p.id, p.api_key_hash, p.api_key_prefix, p.display_name, p.base_url,
	p.is_active, p.first_seen_at, p.last_seen_at`

// commandError reports a failed command the way a remote backend would, so
// its text reaches the view verbatim.
func commandError(command string, err error) error {
	if err == nil {
		return nil
	}
	return &backend.CommandError{Command: command, Message: err.Error(), Err: err}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner, extra ...any) (models.Provider, error) {
	var p models.Provider
	var displayName, baseURL sql.NullString
	var active int64

	dest := append([]any{
		&p.ID, &p.APIKeyHash, &p.APIKeyPrefix, &displayName, &baseURL,
		&active, &p.FirstSeenAt, &p.LastSeenAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return p, err
	}

	p.DisplayName = stringPtr(displayName)
	p.BaseURL = stringPtr(baseURL)
	p.IsActive = active == 1
	return p, nil
}

// GetCurrentStats aggregates all recorded messages.
func (db *DB) GetCurrentStats(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{UpdatedAt: db.now().UTC()}

	err := db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cache_read_tokens), 0),
			COALESCE(SUM(cache_creation_tokens), 0),
			COALESCE(SUM(cost_usd), 0),
			COUNT(DISTINCT session_id),
			COUNT(*)
		FROM message_usage
	`).Scan(
		&snap.TotalInputTokens,
		&snap.TotalOutputTokens,
		&snap.TotalCacheReadTokens,
		&snap.TotalCacheCreationTokens,
		&snap.TotalCostUSD,
		&snap.TotalSessions,
		&snap.TotalMessages,
	)
	if err != nil {
		return nil, commandError(backend.CmdGetCurrentStats, err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT model, SUM(input_tokens), SUM(output_tokens), SUM(cache_read_tokens),
			SUM(cache_creation_tokens), SUM(cost_usd), COUNT(*)
		FROM message_usage
		GROUP BY model
		ORDER BY SUM(cost_usd) DESC, model ASC
	`)
	if err != nil {
		return nil, commandError(backend.CmdGetCurrentStats, err)
	}
	defer func() { _ = rows.Close() }()

	snap.Models = make([]models.ModelUsage, 0)
	for rows.Next() {
		var m models.ModelUsage
		if err := rows.Scan(&m.Model, &m.InputTokens, &m.OutputTokens, &m.CacheReadTokens,
			&m.CacheCreationTokens, &m.CostUSD, &m.MessageCount); err != nil {
			return nil, commandError(backend.CmdGetCurrentStats, err)
		}
		snap.Models = append(snap.Models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, commandError(backend.CmdGetCurrentStats, err)
	}

	snap.CacheHitRate = aggregate.CacheHitRate(snap.TotalCacheReadTokens, snap.TotalInputTokens)
	return snap, nil
}

// GetTodayProviderStats returns every provider with its usage for the local
// calendar day, most recently seen first.
func (db *DB) GetTodayProviderStats(ctx context.Context) ([]models.ProviderStats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+providerColumns+`,
			COALESCE(d.total_input_tokens, 0),
			COALESCE(d.total_output_tokens, 0),
			COALESCE(d.total_cache_read_tokens, 0),
			COALESCE(d.total_cost_usd, 0)
		FROM providers p
		LEFT JOIN daily_stats d ON p.id = d.provider_id AND d.date = ?
		ORDER BY p.last_seen_at DESC, p.id ASC
	`, db.today())
	if err != nil {
		return nil, commandError(backend.CmdGetTodayProviderStats, err)
	}
	defer func() { _ = rows.Close() }()

	stats := make([]models.ProviderStats, 0)
	for rows.Next() {
		var ps models.ProviderStats
		ps.Provider, err = scanProvider(rows,
			&ps.TodayInputTokens, &ps.TodayOutputTokens, &ps.TodayCacheReadTokens, &ps.TodayCostUSD)
		if err != nil {
			return nil, commandError(backend.CmdGetTodayProviderStats, err)
		}
		ps.CacheHitRate = aggregate.CacheHitRate(ps.TodayCacheReadTokens, ps.TodayInputTokens)
		stats = append(stats, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, commandError(backend.CmdGetTodayProviderStats, err)
	}
	return stats, nil
}

// GetTodayStats sums today's usage across providers.
func (db *DB) GetTodayStats(ctx context.Context) (*models.TodayStats, error) {
	stats, err := db.GetTodayProviderStats(ctx)
	if err != nil {
		return nil, err
	}
	today := aggregate.Today(stats)
	return &today, nil
}

// GetDailyActivities returns per-day totals for the closed range, oldest
// first. Days without usage are absent.
func (db *DB) GetDailyActivities(ctx context.Context, startDate, endDate string) ([]models.DailyActivity, error) {
	if err := models.ValidateDateRange(startDate, endDate); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT
			date,
			COALESCE(SUM(total_input_tokens), 0),
			COALESCE(SUM(total_output_tokens), 0),
			COALESCE(SUM(total_cost_usd), 0),
			COALESCE(SUM(session_count), 0),
			COALESCE(SUM(message_count), 0)
		FROM daily_stats
		WHERE date BETWEEN ? AND ?
		GROUP BY date
		ORDER BY date ASC
	`, startDate, endDate)
	if err != nil {
		return nil, commandError(backend.CmdGetDailyActivities, err)
	}
	defer func() { _ = rows.Close() }()

	days := make([]models.DailyActivity, 0)
	for rows.Next() {
		var d models.DailyActivity
		if err := rows.Scan(&d.Date, &d.InputTokens, &d.OutputTokens, &d.CostUSD,
			&d.SessionCount, &d.MessageCount); err != nil {
			return nil, commandError(backend.CmdGetDailyActivities, err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, commandError(backend.CmdGetDailyActivities, err)
	}
	return days, nil
}

// GetProviders lists providers, most recently seen first.
func (db *DB) GetProviders(ctx context.Context, activeOnly bool) ([]models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers p`
	if activeOnly {
		query += ` WHERE p.is_active = 1`
	}
	query += ` ORDER BY p.last_seen_at DESC, p.id ASC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, commandError(backend.CmdGetProviders, err)
	}
	defer func() { _ = rows.Close() }()

	providers := make([]models.Provider, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, commandError(backend.CmdGetProviders, err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, commandError(backend.CmdGetProviders, err)
	}
	return providers, nil
}

// AddProvider registers a key without activating it. Only the hash and the
// display prefix of the key are stored.
func (db *DB) AddProvider(ctx context.Context, apiKey string, displayName *string) (*models.Provider, error) {
	if err := models.RequireText("apiKey", apiKey); err != nil {
		return nil, err
	}

	hash, prefix := models.HashAPIKey(apiKey)
	now := db.now().UTC().Format(time.RFC3339)

	result, err := db.ExecContext(ctx, `
		INSERT INTO providers (api_key_hash, api_key_prefix, display_name, is_active, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, hash, prefix, nullString(displayName), now, now)
	if err != nil {
		return nil, commandError(backend.CmdAddProvider, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, commandError(backend.CmdAddProvider, err)
	}

	return &models.Provider{
		ID:           id,
		APIKeyHash:   hash,
		APIKeyPrefix: prefix,
		DisplayName:  displayName,
		FirstSeenAt:  now,
		LastSeenAt:   now,
	}, nil
}

// DeleteProvider removes a provider together with its usage rows.
func (db *DB) DeleteProvider(ctx context.Context, providerID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return commandError(backend.CmdDeleteProvider, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"message_usage", "daily_stats", "provider_switch_logs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE provider_id = ?", providerID); err != nil {
			return commandError(backend.CmdDeleteProvider, err)
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM providers WHERE id = ?", providerID)
	if err != nil {
		return commandError(backend.CmdDeleteProvider, err)
	}
	if err := requireRow(result, providerID); err != nil {
		return commandError(backend.CmdDeleteProvider, err)
	}

	if err := tx.Commit(); err != nil {
		return commandError(backend.CmdDeleteProvider, err)
	}
	logger.Debug("provider deleted", "id", providerID)
	return nil
}

// UpdateProviderName sets a provider's display name.
func (db *DB) UpdateProviderName(ctx context.Context, providerID int64, displayName string) error {
	if err := models.RequireText("displayName", displayName); err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, "UPDATE providers SET display_name = ? WHERE id = ?", displayName, providerID)
	if err != nil {
		return commandError(backend.CmdUpdateProviderName, err)
	}
	return commandError(backend.CmdUpdateProviderName, requireRow(result, providerID))
}

func requireRow(result sql.Result, providerID int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("provider %d not found", providerID)
	}
	return nil
}

func (db *DB) today() string {
	return db.now().Format(models.DateLayout)
}
