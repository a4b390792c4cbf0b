// Package providers issues provider-management commands with optimistic
// view updates.
package providers

import (
	"context"
	"strings"

	"github.com/j-veylop/token-monitor-tui/internal/backend"
	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/models"
	"github.com/j-veylop/token-monitor-tui/internal/store"
)

// Refresher reloads the view state from the backend. Refresh waits for the
// batch; Schedule queues one without waiting.
type Refresher interface {
	Refresh(ctx context.Context) error
	Schedule()
}

// Gateway applies provider changes locally, then sends them to the backend.
// A failed command leaves the local change in place and records the error;
// the next refresh reconciles the view with the backend.
type Gateway struct {
	backend   backend.Backend
	store     *store.Store
	refresher Refresher
}

// New creates a gateway.
func New(b backend.Backend, st *store.Store, r Refresher) *Gateway {
	return &Gateway{backend: b, store: st, refresher: r}
}

// AddProvider registers a key and refreshes the view on success. A blank
// name is sent as no name.
func (g *Gateway) AddProvider(ctx context.Context, apiKey string, displayName *string) (*models.Provider, error) {
	if err := models.RequireText("apiKey", apiKey); err != nil {
		return nil, err
	}
	if displayName != nil && strings.TrimSpace(*displayName) == "" {
		displayName = nil
	}

	p, err := g.backend.AddProvider(ctx, apiKey, displayName)
	if err != nil {
		g.fail("add provider", err)
		return nil, err
	}
	logger.Info("provider added", "id", p.ID, "prefix", p.APIKeyPrefix)

	if err := g.refresher.Refresh(ctx); err != nil {
		logger.Warn("refresh after add failed", "error", err)
	}
	return p, nil
}

// DeleteProvider removes the provider from the view, then from the backend.
func (g *Gateway) DeleteProvider(ctx context.Context, providerID int64) error {
	if err := g.store.RemoveProvider(providerID); err != nil {
		return err
	}

	if err := g.backend.DeleteProvider(ctx, providerID); err != nil {
		g.fail("delete provider", err)
		return err
	}
	logger.Info("provider deleted", "id", providerID)
	g.refresher.Schedule()
	return nil
}

// UpdateProviderName renames the provider in the view, then in the backend.
func (g *Gateway) UpdateProviderName(ctx context.Context, providerID int64, displayName string) error {
	if err := models.RequireText("displayName", displayName); err != nil {
		return err
	}
	if err := g.store.RenameProvider(providerID, displayName); err != nil {
		return err
	}

	if err := g.backend.UpdateProviderName(ctx, providerID, displayName); err != nil {
		g.fail("rename provider", err)
		return err
	}
	g.refresher.Schedule()
	return nil
}

// ListProviders reads providers straight from the backend.
func (g *Gateway) ListProviders(ctx context.Context, activeOnly bool) ([]models.Provider, error) {
	return g.backend.GetProviders(ctx, activeOnly)
}

func (g *Gateway) fail(op string, err error) {
	logger.Warn(op+" failed", "error", err)
	_ = g.store.SetError(backend.Message(err))
}
