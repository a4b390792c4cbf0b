// Package backend defines the command surface of the usage backend and a
// client that invokes it over a Transport.
package backend

import (
	"context"

	"github.com/j-veylop/token-monitor-tui/internal/models"
)

// Command names understood by the backend.
const (
	CmdGetCurrentStats       = "get_current_stats"
	CmdGetTodayProviderStats = "get_today_provider_stats"
	CmdGetTodayStats         = "get_today_stats"
	CmdGetDailyActivities    = "get_daily_activities"
	CmdGetProviders          = "get_providers"
	CmdAddProvider           = "add_provider"
	CmdDeleteProvider        = "delete_provider"
	CmdUpdateProviderName    = "update_provider_name"
)

// Backend is the request/response surface consumed by the sync services.
type Backend interface {
	GetCurrentStats(ctx context.Context) (*models.Snapshot, error)
	GetTodayProviderStats(ctx context.Context) ([]models.ProviderStats, error)
	GetTodayStats(ctx context.Context) (*models.TodayStats, error)
	GetDailyActivities(ctx context.Context, startDate, endDate string) ([]models.DailyActivity, error)
	GetProviders(ctx context.Context, activeOnly bool) ([]models.Provider, error)
	AddProvider(ctx context.Context, apiKey string, displayName *string) (*models.Provider, error)
	DeleteProvider(ctx context.Context, providerID int64) error
	UpdateProviderName(ctx context.Context, providerID int64, displayName string) error
}

// Transport performs a single named command round trip. A nil out discards
// the result.
type Transport interface {
	Invoke(ctx context.Context, command string, args any, out any) error
}

// Client implements Backend on top of a Transport.
type Client struct {
	transport Transport
}

var _ Backend = (*Client)(nil)

// NewClient creates a client for the given transport.
func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

type dateRangeArgs struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type providersArgs struct {
	ActiveOnly bool `json:"activeOnly"`
}

type addProviderArgs struct {
	APIKey      string  `json:"apiKey"`
	DisplayName *string `json:"displayName,omitempty"`
}

type providerIDArgs struct {
	ProviderID int64 `json:"providerId"`
}

type renameArgs struct {
	ProviderID  int64  `json:"providerId"`
	DisplayName string `json:"displayName"`
}

// GetCurrentStats fetches the global snapshot.
func (c *Client) GetCurrentStats(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.transport.Invoke(ctx, CmdGetCurrentStats, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetTodayProviderStats fetches today's usage for every provider.
func (c *Client) GetTodayProviderStats(ctx context.Context) ([]models.ProviderStats, error) {
	var stats []models.ProviderStats
	if err := c.transport.Invoke(ctx, CmdGetTodayProviderStats, nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetTodayStats fetches the backend's own today rollup.
func (c *Client) GetTodayStats(ctx context.Context) (*models.TodayStats, error) {
	var today models.TodayStats
	if err := c.transport.Invoke(ctx, CmdGetTodayStats, nil, &today); err != nil {
		return nil, err
	}
	return &today, nil
}

// GetDailyActivities fetches per-day usage for the closed range. The range
// is validated before the transport is touched.
func (c *Client) GetDailyActivities(ctx context.Context, startDate, endDate string) ([]models.DailyActivity, error) {
	if err := models.ValidateDateRange(startDate, endDate); err != nil {
		return nil, err
	}
	var days []models.DailyActivity
	args := dateRangeArgs{StartDate: startDate, EndDate: endDate}
	if err := c.transport.Invoke(ctx, CmdGetDailyActivities, args, &days); err != nil {
		return nil, err
	}
	return days, nil
}

// GetProviders lists providers, optionally only the active ones.
func (c *Client) GetProviders(ctx context.Context, activeOnly bool) ([]models.Provider, error) {
	var providers []models.Provider
	if err := c.transport.Invoke(ctx, CmdGetProviders, providersArgs{ActiveOnly: activeOnly}, &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// AddProvider registers a new API key.
func (c *Client) AddProvider(ctx context.Context, apiKey string, displayName *string) (*models.Provider, error) {
	if err := models.RequireText("apiKey", apiKey); err != nil {
		return nil, err
	}
	var p models.Provider
	args := addProviderArgs{APIKey: apiKey, DisplayName: displayName}
	if err := c.transport.Invoke(ctx, CmdAddProvider, args, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProvider removes a provider.
func (c *Client) DeleteProvider(ctx context.Context, providerID int64) error {
	return c.transport.Invoke(ctx, CmdDeleteProvider, providerIDArgs{ProviderID: providerID}, nil)
}

// UpdateProviderName sets a provider's display name.
func (c *Client) UpdateProviderName(ctx context.Context, providerID int64, displayName string) error {
	if err := models.RequireText("displayName", displayName); err != nil {
		return err
	}
	args := renameArgs{ProviderID: providerID, DisplayName: displayName}
	return c.transport.Invoke(ctx, CmdUpdateProviderName, args, nil)
}
