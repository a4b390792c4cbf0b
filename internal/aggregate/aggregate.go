// Package aggregate derives rollups and ratios from per-provider records.
// Every function here is pure: the same input always yields the same output.
package aggregate

import (
	"time"

	"github.com/j-veylop/token-monitor-tui/internal/models"
)

// CacheHitRate returns read / (read + input), or 0 when the denominator
// is not positive.
func CacheHitRate(cacheRead, input int64) float64 {
	total := cacheRead + input
	if total <= 0 {
		return 0
	}
	rate := float64(cacheRead) / float64(total)
	// Negative counters from a misbehaving backend must not escape [0,1].
	switch {
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	}
	return rate
}

// Today sums today's usage across all providers.
func Today(stats []models.ProviderStats) models.TodayStats {
	var t models.TodayStats
	for _, s := range stats {
		t.InputTokens += s.TodayInputTokens
		t.OutputTokens += s.TodayOutputTokens
		t.CacheReadTokens += s.TodayCacheReadTokens
		t.CostUSD += s.TodayCostUSD
	}
	t.CacheHitRate = CacheHitRate(t.CacheReadTokens, t.InputTokens)
	return t
}

// ActiveProviderID returns the id of the single active provider. Zero or
// several active providers yield nil.
func ActiveProviderID(stats []models.ProviderStats) *int64 {
	var found *int64
	for i := range stats {
		if !stats[i].Provider.IsActive {
			continue
		}
		if found != nil {
			return nil
		}
		id := stats[i].Provider.ID
		found = &id
	}
	return found
}

// Providers extracts the provider records in the order given.
func Providers(stats []models.ProviderStats) []models.Provider {
	out := make([]models.Provider, len(stats))
	for i, s := range stats {
		out[i] = s.Provider
	}
	return out
}

// NormalizeSnapshot returns a copy of s with the cache hit rate derived from
// its totals.
func NormalizeSnapshot(s models.Snapshot) models.Snapshot {
	s.CacheHitRate = CacheHitRate(s.TotalCacheReadTokens, s.TotalInputTokens)
	if s.Models != nil {
		s.Models = append([]models.ModelUsage(nil), s.Models...)
	}
	return s
}

// ModelDelta is the growth of one model's usage between two snapshots.
type ModelDelta struct {
	Model   string
	Context int64
	Cost    float64
}

// ModelDeltas lists the models whose usage grew from prev to next, in the
// order they appear in next. A nil prev yields no deltas.
func ModelDeltas(prev, next *models.Snapshot) []ModelDelta {
	if prev == nil || next == nil {
		return nil
	}

	before := make(map[string]models.ModelUsage, len(prev.Models))
	for _, m := range prev.Models {
		before[m.Model] = m
	}

	var deltas []ModelDelta
	for _, m := range next.Models {
		old := before[m.Model]
		if m.MessageCount <= old.MessageCount && m.CostUSD <= old.CostUSD {
			continue
		}
		ctx := m.ContextTokens() - old.ContextTokens()
		cost := m.CostUSD - old.CostUSD
		if ctx < 0 {
			ctx = 0
		}
		if cost < 0 {
			cost = 0
		}
		deltas = append(deltas, ModelDelta{Model: m.Model, Context: ctx, Cost: cost})
	}
	return deltas
}

// Window returns the closed range of the trailing days calendar days ending
// on now's local date, formatted as YYYY-MM-DD.
func Window(now time.Time, days int) (start, end string) {
	if days < 1 {
		days = 1
	}
	y, m, d := now.Date()
	last := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	first := last.AddDate(0, 0, -(days - 1))
	return first.Format(models.DateLayout), last.Format(models.DateLayout)
}
