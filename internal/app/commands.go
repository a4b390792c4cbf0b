package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/token-monitor-tui/internal/backend"
	"github.com/j-veylop/token-monitor-tui/internal/services"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second
)

// Mutation actions reported in MutationResultMsg.
const (
	ActionAdd    = "add"
	ActionRename = "rename"
	ActionDelete = "delete"
)

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// currentStateCmd delivers the state committed before the subscription
// existed.
func currentStateCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return ServiceEventMsg{Event: services.StateChangedEvent{State: mgr.State()}}
	}
}

func refreshCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return RefreshResultMsg{Err: mgr.Refresh(context.Background())}
	}
}

func addProviderCmd(mgr *services.Manager, msg AddProviderMsg) tea.Cmd {
	return func() tea.Msg {
		var name *string
		if msg.DisplayName != "" {
			name = &msg.DisplayName
		}
		p, err := mgr.AddProvider(context.Background(), msg.APIKey, name)
		label := msg.DisplayName
		if p != nil {
			label = p.Label()
		}
		return MutationResultMsg{Action: ActionAdd, Label: label, Err: err}
	}
}

func renameProviderCmd(mgr *services.Manager, msg RenameProviderMsg) tea.Cmd {
	return func() tea.Msg {
		err := mgr.UpdateProviderName(context.Background(), msg.ProviderID, msg.DisplayName)
		return MutationResultMsg{Action: ActionRename, Label: msg.DisplayName, Err: err}
	}
}

func deleteProviderCmd(mgr *services.Manager, msg DeleteProviderMsg) tea.Cmd {
	return func() tea.Msg {
		err := mgr.DeleteProvider(context.Background(), msg.ProviderID)
		return MutationResultMsg{Action: ActionDelete, Label: msg.Label, Err: err}
	}
}

func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// mutationNotice returns the toast for a finished mutation. Backend errors
// are shown verbatim.
func mutationNotice(msg MutationResultMsg) tea.Cmd {
	if msg.Err != nil {
		return notifyErrorCmd(backend.Message(msg.Err))
	}
	switch msg.Action {
	case ActionAdd:
		return notifySuccessCmd(fmt.Sprintf("Added provider %s", msg.Label))
	case ActionRename:
		return notifySuccessCmd(fmt.Sprintf("Renamed provider to %s", msg.Label))
	case ActionDelete:
		return notifySuccessCmd(fmt.Sprintf("Deleted provider %s", msg.Label))
	}
	return nil
}
