package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// APIKeyPrefixLen is the number of leading key characters kept for display.
const APIKeyPrefixLen = 8

// Provider is an upstream API credential being monitored.
type Provider struct {
	ID           int64   `json:"id"`
	APIKeyHash   string  `json:"api_key_hash"`
	APIKeyPrefix string  `json:"api_key_prefix"`
	DisplayName  *string `json:"display_name,omitempty"`
	BaseURL      *string `json:"base_url,omitempty"`
	IsActive     bool    `json:"is_active"`
	FirstSeenAt  string  `json:"first_seen_at"`
	LastSeenAt   string  `json:"last_seen_at"`
}

// Label returns the display name, falling back to the key prefix.
func (p Provider) Label() string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return p.APIKeyPrefix + "..."
}

// ProviderStats is today's usage for one provider.
type ProviderStats struct {
	Provider             Provider `json:"provider"`
	TodayInputTokens     int64    `json:"today_input_tokens"`
	TodayOutputTokens    int64    `json:"today_output_tokens"`
	TodayCacheReadTokens int64    `json:"today_cache_read_tokens"`
	TodayCostUSD         float64  `json:"today_cost_usd"`
	CacheHitRate         float64  `json:"cache_hit_rate"`
}

// HashAPIKey returns the hex SHA-256 of key and its display prefix.
func HashAPIKey(key string) (hash, prefix string) {
	sum := sha256.Sum256([]byte(key))
	runes := []rune(key)
	if len(runes) > APIKeyPrefixLen {
		runes = runes[:APIKeyPrefixLen]
	}
	return hex.EncodeToString(sum[:]), string(runes)
}
