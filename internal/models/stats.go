// Package models defines data structures and domain types.
package models

import "time"

// ModelUsage holds cumulative usage for a single model name.
type ModelUsage struct {
	Model               string  `json:"model"`
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens"`
	CacheCreationTokens int64   `json:"cache_creation_tokens"`
	CostUSD             float64 `json:"cost_usd"`
	MessageCount        int64   `json:"message_count"`
}

// ContextTokens returns the tokens fed to the model as context.
func (m ModelUsage) ContextTokens() int64 {
	return m.InputTokens + m.CacheReadTokens + m.CacheCreationTokens
}

// Snapshot is a point-in-time aggregate of token and cost totals.
// A Snapshot is replaced as a whole and never mutated after construction.
type Snapshot struct {
	TotalInputTokens         int64        `json:"total_input_tokens"`
	TotalOutputTokens        int64        `json:"total_output_tokens"`
	TotalCacheReadTokens     int64        `json:"total_cache_read_tokens"`
	TotalCacheCreationTokens int64        `json:"total_cache_creation_tokens"`
	TotalCostUSD             float64      `json:"total_cost_usd"`
	TotalSessions            int64        `json:"total_sessions"`
	TotalMessages            int64        `json:"total_messages"`
	CacheHitRate             float64      `json:"cache_hit_rate"`
	Models                   []ModelUsage `json:"models"`
	UpdatedAt                time.Time    `json:"updated_at"`
}

// TotalTokens returns input plus output tokens.
func (s Snapshot) TotalTokens() int64 {
	return s.TotalInputTokens + s.TotalOutputTokens
}

// TodayStats is the cross-provider rollup for the current day.
type TodayStats struct {
	InputTokens     int64   `json:"input_tokens"`
	OutputTokens    int64   `json:"output_tokens"`
	CacheReadTokens int64   `json:"cache_read_tokens"`
	CostUSD         float64 `json:"cost_usd"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
}

// DailyActivity is the usage for one calendar day.
type DailyActivity struct {
	Date         string  `json:"date"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	SessionCount int64   `json:"session_count"`
	MessageCount int64   `json:"message_count"`
}

// LogEntry is a locally observed usage event.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	Context   int64     `json:"context"`
	Cost      float64   `json:"cost"`
}
