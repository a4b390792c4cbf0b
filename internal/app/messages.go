package app

import (
	"time"

	"github.com/j-veylop/token-monitor-tui/internal/services"
	"github.com/j-veylop/token-monitor-tui/internal/store"
)

// TickMsg is sent periodically to expire notifications.
type TickMsg struct {
	Time time.Time
}

// SubscriptionEventMsg carries the channel returned by the manager.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// StateUpdatedMsg is sent to tabs after a newer view state was applied.
type StateUpdatedMsg struct {
	State store.State
}

// RefreshMsg requests a snapshot refresh.
type RefreshMsg struct{}

// RefreshResultMsg reports the end of a refresh.
type RefreshResultMsg struct {
	Err error
}

// AddProviderMsg requests registering a new API key.
type AddProviderMsg struct {
	APIKey      string
	DisplayName string
}

// RenameProviderMsg requests a new display name for a provider.
type RenameProviderMsg struct {
	ProviderID  int64
	DisplayName string
}

// DeleteProviderMsg requests removal of a provider.
type DeleteProviderMsg struct {
	ProviderID int64
	Label      string
}

// MutationResultMsg reports the outcome of a provider mutation.
type MutationResultMsg struct {
	Action string
	Label  string
	Err    error
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}
