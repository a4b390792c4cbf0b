// Package dashboard provides the overview tab of the token monitor.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/token-monitor-tui/internal/app"
	"github.com/j-veylop/token-monitor-tui/internal/ui/components"
)

const (
	animationFrame    = 40 * time.Millisecond
	animationDuration = 1500 * time.Millisecond
)

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(animationFrame, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// keyMap defines the key bindings specific to the dashboard tab.
type keyMap struct {
	ScrollDown key.Binding
	ScrollUp   key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Refresh    key.Binding
}

// defaultKeyMap returns the default key bindings for the dashboard tab.
func defaultKeyMap() keyMap {
	return keyMap{
		ScrollDown: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j", "scroll down"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k", "scroll up"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

// rateAnimation eases the cache hit bar between values.
type rateAnimation struct {
	start   time.Time
	from    float64
	current float64
	target  float64
}

// retarget starts a new transition toward target and reports whether the
// bar has to move.
func (a *rateAnimation) retarget(target float64, now time.Time) bool {
	if target != a.target {
		a.from = a.current
		a.target = target
		a.start = now
	}
	return a.current != a.target
}

// step advances the transition with an ease-out curve.
func (a *rateAnimation) step(now time.Time) {
	if a.current == a.target {
		return
	}
	elapsed := now.Sub(a.start)
	if elapsed >= animationDuration {
		a.current = a.target
		return
	}
	p := elapsed.Seconds() / animationDuration.Seconds()
	ease := 1.0 - (1.0-p)*(1.0-p)
	a.current = a.from + (a.target-a.from)*ease
}

// Model represents the dashboard tab state.
type Model struct {
	state     *app.State
	spinner   components.SyncSpinner
	keys      keyMap
	viewport  viewport.Model
	cacheBar  components.RatioBar
	cacheRate rateAnimation
	width     int
	height    int
}

// New creates a new dashboard model.
func New(state *app.State) *Model {
	return &Model{
		state:    state,
		spinner:  components.NewSyncSpinner("usage"),
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
		cacheBar: components.NewRatioBar(30),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case app.StateUpdatedMsg:
		if m.cacheRate.retarget(msg.State.TodayStats.CacheHitRate, time.Now()) {
			cmds = append(cmds, animationTickCmd())
		}

	case animationTickMsg:
		m.cacheRate.step(time.Time(msg))
		if m.cacheRate.current != m.cacheRate.target {
			cmds = append(cmds, animationTickCmd())
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		if m.state.IsInitialLoading() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.SetYOffset(m.viewport.YOffset + 1)
	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.SetYOffset(m.viewport.YOffset - 1)
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ScrollDown,
		m.keys.ScrollUp,
		m.keys.Refresh,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ScrollDown, m.keys.ScrollUp},
		{m.keys.Top, m.keys.Bottom},
		{m.keys.Refresh},
	}
}
