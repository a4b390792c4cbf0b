// Package history provides the history tab for viewing daily usage.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/token-monitor-tui/internal/aggregate"
	"github.com/j-veylop/token-monitor-tui/internal/app"
	"github.com/j-veylop/token-monitor-tui/internal/backend"
	"github.com/j-veylop/token-monitor-tui/internal/export"
	"github.com/j-veylop/token-monitor-tui/internal/models"
	"github.com/j-veylop/token-monitor-tui/internal/services/snapshot"
)

const loadTimeout = 10 * time.Second

// ActivitySource loads daily activity for ranges outside the synced window.
type ActivitySource interface {
	DailyActivities(ctx context.Context, startDate, endDate string) ([]models.DailyActivity, error)
}

// Metric is the series plotted by the chart.
type Metric int

// Metrics.
const (
	MetricCost Metric = iota
	MetricTokens
)

// String returns the display name of the metric.
func (m Metric) String() string {
	if m == MetricTokens {
		return "Tokens"
	}
	return "Cost"
}

// ranges lists the selectable window lengths in days. The first one is
// kept current by the sync services.
var ranges = []int{snapshot.WindowDays, 30}

// keyMap defines the key bindings specific to the history tab.
type keyMap struct {
	ToggleRange  key.Binding
	ToggleMetric key.Binding
	Refresh      key.Binding
	ExportCSV    key.Binding
	ExportJSON   key.Binding
	Up           key.Binding
	Down         key.Binding
}

// defaultKeyMap returns the default key bindings for the history tab.
func defaultKeyMap() keyMap {
	return keyMap{
		ToggleRange: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle time range"),
		),
		ToggleMetric: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "cost/tokens"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		ExportCSV: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x/X", "export csv/json"),
		),
		ExportJSON: key.NewBinding(
			key.WithKeys("X"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// historyLoadedMsg is sent when a long range has been loaded.
type historyLoadedMsg struct {
	days       int
	activities []models.DailyActivity
}

// historyErrorMsg is sent when loading a long range failed.
type historyErrorMsg struct {
	days int
	err  error
}

// Model represents the history tab state.
type Model struct {
	state     *app.State
	source    ActivitySource
	exportDir string
	width     int
	height    int
	keys      keyMap
	viewport  viewport.Model
	now       func() time.Time

	rangeIdx int
	metric   Metric

	// Loaded data for ranges beyond the synced window.
	loaded   []models.DailyActivity
	loading  bool
	errorMsg string
}

// New creates a new history model. source may be nil, in which case only
// the synced window is available. Exports are written to exportDir; an
// empty exportDir disables them.
func New(state *app.State, source ActivitySource, exportDir string) *Model {
	return &Model{
		state:     state,
		source:    source,
		exportDir: exportDir,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
		now:       time.Now,
	}
}

// Init initializes the history tab.
func (m *Model) Init() tea.Cmd {
	return nil
}

// days returns the length of the selected range.
func (m *Model) days() int {
	return ranges[m.rangeIdx]
}

// synced reports whether the selected range is the one kept in the view state.
func (m *Model) synced() bool {
	return m.rangeIdx == 0
}

// loadHistoryCmd creates a command to load the selected long range.
func (m *Model) loadHistoryCmd() tea.Cmd {
	days := m.days()
	start, end := aggregate.Window(m.now(), days)
	src := m.source

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		acts, err := src.DailyActivities(ctx, start, end)
		if err != nil {
			return historyErrorMsg{days: days, err: err}
		}
		return historyLoadedMsg{days: days, activities: acts}
	}
}

// exportCmd writes the selected range to a file in the export directory.
func (m *Model) exportCmd(f export.Format) tea.Cmd {
	if m.exportDir == "" || m.loading || m.errorMsg != "" {
		return nil
	}
	if m.synced() && m.state.IsInitialLoading() {
		return nil
	}
	days := m.activities()
	dir := m.exportDir

	return func() tea.Msg {
		path, err := export.ToFile(dir, f, days)
		if err != nil {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  fmt.Sprintf("Export failed: %v", err),
				Duration: app.LongNotificationDuration,
			}
		}
		return app.AddNotificationMsg{
			Type:     app.NotificationSuccess,
			Message:  fmt.Sprintf("Exported %d days to %s", len(days), path),
			Duration: app.LongNotificationDuration,
		}
	}
}

// reload starts loading the selected range unless it is synced or a load is
// already running.
func (m *Model) reload() tea.Cmd {
	if m.synced() || m.source == nil || m.loading {
		return nil
	}
	m.loading = true
	return m.loadHistoryCmd()
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		m.loading = false
		if msg.days == m.days() {
			m.loaded = msg.activities
			m.errorMsg = ""
		}

	case historyErrorMsg:
		m.loading = false
		if msg.days != m.days() {
			return m, nil
		}
		m.errorMsg = backend.Message(msg.err)
		text := fmt.Sprintf("History error: %s", m.errorMsg)
		return m, func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  text,
				Duration: app.LongNotificationDuration,
			}
		}

	case app.RefreshResultMsg:
		return m, m.reload()

	case app.TabSwitchMsg:
		if msg.Tab == app.TabHistory {
			return m, m.reload()
		}

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (app.Tab, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleRange):
		if m.source == nil {
			return m, nil
		}
		m.rangeIdx = (m.rangeIdx + 1) % len(ranges)
		m.loaded = nil
		m.errorMsg = ""
		m.loading = false
		return m, m.reload()

	case key.Matches(msg, m.keys.ToggleMetric):
		if m.metric == MetricCost {
			m.metric = MetricTokens
		} else {
			m.metric = MetricCost
		}
		return m, nil

	case key.Matches(msg, m.keys.ExportCSV):
		return m, m.exportCmd(export.FormatCSV)

	case key.Matches(msg, m.keys.ExportJSON):
		return m, m.exportCmd(export.FormatJSON)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// activities returns one entry per day of the selected range, oldest
// first, with days without usage zero-filled.
func (m *Model) activities() []models.DailyActivity {
	src := m.loaded
	if m.synced() {
		src = m.state.View().DailyActivities
	}
	return fillDays(src, m.now(), m.days())
}

// fillDays spreads acts over the trailing days ending on now's date.
func fillDays(acts []models.DailyActivity, now time.Time, days int) []models.DailyActivity {
	byDate := make(map[string]models.DailyActivity, len(acts))
	for _, a := range acts {
		byDate[a.Date] = a
	}

	start, _ := aggregate.Window(now, days)
	first, err := time.ParseInLocation(models.DateLayout, start, now.Location())
	if err != nil {
		return nil
	}

	out := make([]models.DailyActivity, days)
	for i := range out {
		date := first.AddDate(0, 0, i).Format(models.DateLayout)
		a, ok := byDate[date]
		if !ok {
			a = models.DailyActivity{Date: date}
		}
		out[i] = a
	}
	return out
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ToggleRange,
		m.keys.ToggleMetric,
		m.keys.ExportCSV,
		m.keys.Refresh,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleRange, m.keys.ToggleMetric, m.keys.ExportCSV, m.keys.Refresh},
		{m.keys.Up, m.keys.Down},
	}
}
