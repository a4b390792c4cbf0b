// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/j-veylop/token-monitor-tui/internal/models"
	"github.com/j-veylop/token-monitor-tui/internal/store"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

// LoadingNotificationID is the fixed ID for loading notifications.
const LoadingNotificationID = "__loading__"

// maxNotifications is the number of notifications kept on screen.
const maxNotifications = 5

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// State is the presentation copy of the view state plus UI-only data such
// as the selected provider and on-screen notifications. The view part is
// only ever replaced by a newer committed store.State.
type State struct {
	mu sync.RWMutex

	view             store.State
	received         bool
	selectedProvider int

	notifications   []Notification
	notificationSeq int
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		notifications: make([]Notification, 0),
	}
}

// SetView stores v unless a newer version was already applied. It reports
// whether v was stored.
func (s *State) SetView(v store.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.received && v.Version < s.view.Version {
		return false
	}
	s.view = v
	s.received = true
	s.selectedProvider = clampIndex(s.selectedProvider, len(v.ProviderStats))
	return true
}

// View returns the last applied view state.
func (s *State) View() store.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// IsInitialLoading returns true until the first snapshot has arrived.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Stats == nil && (!s.received || s.view.IsLoading)
}

// ProviderCount returns the number of known providers.
func (s *State) ProviderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.view.ProviderStats)
}

// SelectedProviderIndex returns the currently selected provider row.
func (s *State) SelectedProviderIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedProvider
}

// SetSelectedProviderIndex moves the selection, clamped to the list.
func (s *State) SetSelectedProviderIndex(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedProvider = clampIndex(idx, len(s.view.ProviderStats))
}

// SelectedProvider returns the selected provider row.
func (s *State) SelectedProvider() (models.ProviderStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selectedProvider < 0 || s.selectedProvider >= len(s.view.ProviderStats) {
		return models.ProviderStats{}, false
	}
	return s.view.ProviderStats[s.selectedProvider], true
}

func clampIndex(idx, n int) int {
	if n == 0 || idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := fmt.Sprintf("n-%d", s.notificationSeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}
	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = s.activeNotifications()
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeNotifications()
}

func (s *State) activeNotifications() []Notification {
	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// SetLoadingNotification shows message with a spinner until cleared.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}
