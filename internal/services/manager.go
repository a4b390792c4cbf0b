// Package services provides service orchestration for the TUI.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/token-monitor-tui/internal/backend"
	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/models"
	"github.com/j-veylop/token-monitor-tui/internal/services/providers"
	"github.com/j-veylop/token-monitor-tui/internal/services/snapshot"
	"github.com/j-veylop/token-monitor-tui/internal/services/stream"
	"github.com/j-veylop/token-monitor-tui/internal/store"
)

type (
	// StateChangedEvent carries a committed view state.
	StateChangedEvent struct {
		State store.State
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (StateChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()        {}

// Options configures a Manager.
type Options struct {
	Backend backend.Backend
	// Source delivers push events. Nil disables push updates.
	Source stream.Source
	// Reconnector restarts the push channel after it gave up. A manual
	// refresh uses it when the stream is disconnected.
	Reconnector Reconnector

	// CostAlertUSD triggers a desktop notification when today's cost
	// crosses it. Zero disables the alert.
	CostAlertUSD float64

	// Notify replaces the desktop notifier.
	Notify func(title, body string) error

	FetcherOptions []snapshot.Option
}

// Reconnector is implemented by push sources that can start a new
// connection cycle.
type Reconnector interface {
	Reconnect()
}

// Manager wires the fetcher, the push source and the mutation gateway to one
// store for the lifetime of a mounted view.
type Manager struct {
	mu          sync.RWMutex
	store       *store.Store
	fetcher     *snapshot.Fetcher
	gateway     *providers.Gateway
	source      stream.Source
	reconnector Reconnector
	subscribers []chan<- ServiceEvent

	notify       func(title, body string) error
	costAlertUSD float64
	lastCost     float64

	unsubscribeSource func()
	unsubscribeStore  func()
	mounted           bool
	cleanedUp         bool
}

// NewManager creates a manager around st.
func NewManager(st *store.Store, opts Options) *Manager {
	m := &Manager{
		store:        st,
		source:       opts.Source,
		reconnector:  opts.Reconnector,
		notify:       opts.Notify,
		costAlertUSD: opts.CostAlertUSD,
	}
	if m.notify == nil {
		m.notify = func(title, body string) error {
			return beeep.Notify(title, body, "")
		}
	}

	m.fetcher = snapshot.New(opts.Backend, st, opts.FetcherOptions...)
	m.gateway = providers.New(opts.Backend, st, m.fetcher)
	return m
}

// BindStream points the client hooks of cfg at st.
func BindStream(cfg *stream.Config, st *store.Store) {
	cfg.OnStateChange = func(s stream.State) {
		_ = st.SetStreamState(string(s))
	}
	cfg.OnError = func(err error) {
		_ = st.SetError(err.Error())
	}
}

// Mount subscribes to push events and schedules the initial refresh.
func (m *Manager) Mount() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cleanedUp {
		return store.ErrClosed
	}
	if m.mounted {
		return nil
	}

	if m.source != nil {
		unsub, err := stream.SubscribeAll(m.source, stream.Handlers{
			StatsUpdated:     m.handleStatsUpdated,
			ProviderSwitched: m.handleProviderSwitched,
			FileChanged:      m.handleFileChanged,
		})
		if err != nil {
			return fmt.Errorf("subscribe to push events: %w", err)
		}
		m.unsubscribeSource = unsub
	}

	m.lastCost = m.store.State().TodayStats.CostUSD
	m.unsubscribeStore = m.store.Subscribe(m.handleState)
	m.mounted = true

	m.fetcher.Schedule()
	return nil
}

func (m *Manager) handleStatsUpdated(snap models.Snapshot) {
	if err := m.store.ApplySnapshot(snap); err != nil && !errors.Is(err, store.ErrClosed) {
		m.broadcast(ErrorEvent{Service: "stream", Error: err})
	}
}

func (m *Manager) handleProviderSwitched(p models.Provider) {
	if cur := m.store.State().ActiveProviderID; cur != nil && *cur == p.ID {
		return
	}
	if err := m.store.SetActiveProvider(p.ID); err != nil {
		return
	}
	logger.Info("active provider switched", "id", p.ID, "provider", p.Label())
	m.notifyAsync("Provider switched", fmt.Sprintf("Now tracking %s", p.Label()))

	// The flags on every provider change together; reload them.
	m.fetcher.Schedule()
}

func (m *Manager) handleFileChanged(paths []string) {
	logger.Debug("usage files changed", "count", len(paths))
	m.fetcher.Schedule()
}

// handleState runs on every commit. It must not write to the store.
func (m *Manager) handleState(s store.State) {
	m.checkCostAlert(s.TodayStats.CostUSD)
	m.broadcast(StateChangedEvent{State: s})
}

// checkCostAlert notifies when today's cost crosses the threshold upwards.
func (m *Manager) checkCostAlert(cost float64) {
	m.mu.Lock()
	prev := m.lastCost
	m.lastCost = cost
	threshold := m.costAlertUSD
	m.mu.Unlock()

	if threshold <= 0 || cost < threshold || prev >= threshold {
		return
	}
	title := "Daily cost alert"
	body := fmt.Sprintf("Today's cost reached $%.2f (limit $%.2f)", cost, threshold)
	m.notifyAsync(title, body)
}

func (m *Manager) notifyAsync(title, body string) {
	go func() {
		if err := m.notify(title, body); err != nil {
			logger.Debug("notification failed", "error", err)
		}
	}()
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return event
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// State returns the last committed view state.
func (m *Manager) State() store.State {
	return m.store.State()
}

// Store returns the view state store.
func (m *Manager) Store() *store.Store {
	return m.store
}

// Refresh runs a refresh batch and waits for it. A disconnected push
// channel is asked to reconnect first.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.reconnector != nil && m.store.State().StreamState == string(stream.StateDisconnected) {
		logger.Info("reconnecting event stream")
		m.reconnector.Reconnect()
	}
	return m.fetcher.Refresh(ctx)
}

// ScheduleRefresh requests a refresh without waiting.
func (m *Manager) ScheduleRefresh() {
	m.fetcher.Schedule()
}

// DailyActivities fetches an arbitrary history range.
func (m *Manager) DailyActivities(ctx context.Context, startDate, endDate string) ([]models.DailyActivity, error) {
	return m.fetcher.DailyActivities(ctx, startDate, endDate)
}

// AddProvider registers a new API key.
func (m *Manager) AddProvider(ctx context.Context, apiKey string, displayName *string) (*models.Provider, error) {
	return m.gateway.AddProvider(ctx, apiKey, displayName)
}

// DeleteProvider removes a provider.
func (m *Manager) DeleteProvider(ctx context.Context, providerID int64) error {
	return m.gateway.DeleteProvider(ctx, providerID)
}

// UpdateProviderName renames a provider.
func (m *Manager) UpdateProviderName(ctx context.Context, providerID int64, displayName string) error {
	return m.gateway.UpdateProviderName(ctx, providerID, displayName)
}

// ListProviders reads providers from the backend.
func (m *Manager) ListProviders(ctx context.Context, activeOnly bool) ([]models.Provider, error) {
	return m.gateway.ListProviders(ctx, activeOnly)
}

// Close unsubscribes from push events, discards any in-flight refresh and
// closes the store. The push source itself is owned by the caller.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.cleanedUp {
		m.mu.Unlock()
		return nil
	}
	m.cleanedUp = true
	unsubSource := m.unsubscribeSource
	unsubStore := m.unsubscribeStore
	m.mu.Unlock()

	if unsubSource != nil {
		unsubSource()
	}
	m.fetcher.Close()
	if unsubStore != nil {
		unsubStore()
	}
	m.store.Close()

	m.mu.Lock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	m.mu.Unlock()

	return nil
}
