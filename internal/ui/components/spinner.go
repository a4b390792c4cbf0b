package components

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/token-monitor-tui/internal/services/stream"
	"github.com/j-veylop/token-monitor-tui/internal/store"
	"github.com/j-veylop/token-monitor-tui/internal/ui/styles"
)

// SyncSpinner animates while subject is being synced.
type SyncSpinner struct {
	spinner spinner.Model
	subject string
	style   lipgloss.Style
}

// NewSyncSpinner creates a sync spinner for subject, e.g. "usage".
func NewSyncSpinner(subject string) SyncSpinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return SyncSpinner{
		spinner: s,
		subject: subject,
		style:   lipgloss.NewStyle().Foreground(styles.TextSecondary),
	}
}

// ID returns the id carried by this spinner's tick messages.
func (s SyncSpinner) ID() int {
	return s.spinner.ID()
}

// Tick starts the animation.
func (s SyncSpinner) Tick() tea.Msg {
	return s.spinner.Tick()
}

// Update advances the animation on tick messages.
func (s SyncSpinner) Update(msg tea.Msg) (SyncSpinner, tea.Cmd) {
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// View renders the spinner frame only.
func (s SyncSpinner) View() string {
	return s.spinner.View()
}

// Status renders the spinner next to the sync phase of view.
func (s SyncSpinner) Status(view store.State) string {
	return s.spinner.View() + " " + s.style.Render(SyncLabel(view, s.subject))
}

// SyncLabel describes what the monitor is waiting for while syncing subject.
func SyncLabel(view store.State, subject string) string {
	switch {
	case view.StreamState == string(stream.StateConnecting):
		return "Connecting to usage stream..."
	case view.Stats == nil:
		return "Loading " + subject + "..."
	default:
		return "Refreshing " + subject + "..."
	}
}

// RenderSyncCentered renders the sync status centered in a given width and height.
func RenderSyncCentered(s SyncSpinner, view store.State, width, height int) string {
	return styles.CenterBoth(s.Status(view), width, height)
}
