// Package providers provides the provider management tab of the token monitor.
package providers

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/token-monitor-tui/internal/app"
	"github.com/j-veylop/token-monitor-tui/internal/ui/components"
	"github.com/j-veylop/token-monitor-tui/internal/ui/styles"
)

// mode is what the tab is currently showing.
type mode int

const (
	modeList mode = iota
	modeAdd
	modeRename
	modeConfirmDelete
)

// formField represents which field is currently focused in a form.
type formField int

const (
	fieldKey formField = iota
	fieldName
	fieldSubmit
	fieldCancel
	fieldCount
)

// keyMap defines the key bindings specific to the providers tab.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Add     key.Binding
	Rename  key.Binding
	Delete  key.Binding
	Refresh key.Binding
	Next    key.Binding
	Submit  key.Binding
	Escape  key.Binding
}

// defaultKeyMap returns the default key bindings for the providers tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j", "down"),
		),
		Add: key.NewBinding(
			key.WithKeys("a", "n"),
			key.WithHelp("a", "add provider"),
		),
		Rename: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "rename"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// Model represents the providers tab state.
type Model struct {
	state     *app.State
	table     table.Model
	width     int
	height    int
	mode      mode
	focused   formField
	keyInput  textinput.Model
	nameInput textinput.Model
	formError string
	spinner   components.SyncSpinner
	keys      keyMap

	targetID    int64
	targetLabel string
}

// New creates a new providers model.
func New(state *app.State) *Model {
	keyInput := textinput.New()
	keyInput.Placeholder = "sk-ant-..."
	keyInput.CharLimit = 256
	keyInput.Width = 40
	keyInput.EchoMode = textinput.EchoPassword

	nameInput := textinput.New()
	nameInput.Placeholder = "Optional display name"
	nameInput.CharLimit = 64
	nameInput.Width = 40

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Subtle).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Primary)
	s.Selected = s.Selected.
		Foreground(styles.TextPrimary).
		Background(styles.BgAccent).
		Bold(true)
	t.SetStyles(s)

	return &Model{
		state:     state,
		table:     t,
		keyInput:  keyInput,
		nameInput: nameInput,
		spinner:   components.NewSyncSpinner("providers"),
		keys:      defaultKeyMap(),
	}
}

// columns sizes the table for the available width.
func columns(width int) []table.Column {
	nameWidth := min(max(width-62, 16), 32)
	return []table.Column{
		{Title: "Provider", Width: nameWidth},
		{Title: "Key", Width: 12},
		{Title: "Active", Width: 6},
		{Title: "Today", Width: 10},
		{Title: "Tokens", Width: 10},
		{Title: "Cache hit", Width: 10},
	}
}

// Init initializes the providers tab.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// CapturingInput reports whether a form or dialog owns the keyboard.
func (m *Model) CapturingInput() bool {
	return m.mode != modeList
}

// Update handles messages for the providers tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	if _, ok := msg.(app.StateUpdatedMsg); ok {
		m.updateTableData()
	}

	switch m.mode {
	case modeAdd, modeRename:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateDeleteConfirm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Add):
		m.openForm(modeAdd, "")
		return m, textinput.Blink

	case key.Matches(keyMsg, m.keys.Rename):
		if sel, ok := m.state.SelectedProvider(); ok {
			m.targetID = sel.Provider.ID
			m.targetLabel = sel.Provider.Label()
			current := ""
			if sel.Provider.DisplayName != nil {
				current = *sel.Provider.DisplayName
			}
			m.openForm(modeRename, current)
			return m, textinput.Blink
		}

	case key.Matches(keyMsg, m.keys.Delete):
		if sel, ok := m.state.SelectedProvider(); ok {
			m.targetID = sel.Provider.ID
			m.targetLabel = sel.Provider.Label()
			m.mode = modeConfirmDelete
		}

	case key.Matches(keyMsg, m.keys.Up), key.Matches(keyMsg, m.keys.Down):
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		m.state.SetSelectedProviderIndex(m.table.Cursor())
		return m, cmd
	}

	return m, nil
}

// openForm switches to a form with the name input prefilled.
func (m *Model) openForm(md mode, name string) {
	m.mode = md
	m.formError = ""
	m.keyInput.SetValue("")
	m.nameInput.SetValue(name)
	m.nameInput.CursorEnd()
	m.focused = fieldKey
	if md == modeRename {
		m.focused = fieldName
	}
	m.updateFormFocus()
}

func (m *Model) closeForm() {
	m.mode = modeList
	m.formError = ""
	m.keyInput.Blur()
	m.nameInput.Blur()
	m.keyInput.SetValue("")
}

// updateForm handles the add and rename forms.
func (m *Model) updateForm(msg tea.Msg) (app.Tab, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, m.updateFocusedInput(msg)
	}

	switch keyMsg.String() {
	case "esc":
		m.closeForm()
		return m, nil

	case "tab", "down":
		m.moveFocus(1)
		return m, textinput.Blink

	case "shift+tab", "up":
		m.moveFocus(-1)
		return m, textinput.Blink

	case "enter":
		switch m.focused {
		case fieldCancel:
			m.closeForm()
			return m, nil
		case fieldSubmit:
			return m, m.submit()
		default:
			m.moveFocus(1)
			return m, textinput.Blink
		}
	}

	return m, m.updateFocusedInput(msg)
}

func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focused {
	case fieldKey:
		m.keyInput, cmd = m.keyInput.Update(msg)
	case fieldName:
		m.nameInput, cmd = m.nameInput.Update(msg)
	}
	return cmd
}

// submit validates the open form and emits the matching mutation request.
func (m *Model) submit() tea.Cmd {
	name := strings.TrimSpace(m.nameInput.Value())

	if m.mode == modeRename {
		if name == "" {
			m.formError = "Display name is required"
			return nil
		}
		req := app.RenameProviderMsg{ProviderID: m.targetID, DisplayName: name}
		m.closeForm()
		return func() tea.Msg { return req }
	}

	apiKey := strings.TrimSpace(m.keyInput.Value())
	if apiKey == "" {
		m.formError = "API key is required"
		return nil
	}
	req := app.AddProviderMsg{APIKey: apiKey, DisplayName: name}
	m.closeForm()
	return func() tea.Msg { return req }
}

// moveFocus cycles through the fields of the open form. The rename form
// has no key field.
func (m *Model) moveFocus(delta int) {
	for {
		m.focused = (m.focused + formField(delta) + fieldCount) % fieldCount
		if m.mode != modeRename || m.focused != fieldKey {
			break
		}
	}
	m.updateFormFocus()
}

// updateFormFocus updates which form field is focused.
func (m *Model) updateFormFocus() {
	m.keyInput.Blur()
	m.nameInput.Blur()

	switch m.focused {
	case fieldKey:
		m.keyInput.Focus()
	case fieldName:
		m.nameInput.Focus()
	}
}

// updateDeleteConfirm handles the delete confirmation.
func (m *Model) updateDeleteConfirm(msg tea.Msg) (app.Tab, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "y", "Y":
		req := app.DeleteProviderMsg{ProviderID: m.targetID, Label: m.targetLabel}
		m.mode = modeList
		return m, func() tea.Msg { return req }
	case "n", "N", "esc":
		m.mode = modeList
	}
	return m, nil
}

// updateTableData rebuilds the rows from the current view state.
func (m *Model) updateTableData() {
	v := m.state.View()
	rows := make([]table.Row, 0, len(v.ProviderStats))

	for _, ps := range v.ProviderStats {
		active := ""
		if v.ActiveProviderID != nil && *v.ActiveProviderID == ps.Provider.ID {
			active = "●"
		}
		rows = append(rows, table.Row{
			ps.Provider.Label(),
			ps.Provider.APIKeyPrefix + "…",
			active,
			components.FormatCost(ps.TodayCostUSD),
			components.FormatTokens(ps.TodayInputTokens + ps.TodayOutputTokens),
			components.FormatPercent(ps.CacheHitRate),
		})
	}

	m.table.SetRows(rows)
	if len(rows) > 0 {
		m.table.SetCursor(m.state.SelectedProviderIndex())
	}
}

// SetSize sets the available size for the providers tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetHeight(max(height-10, 3))
	m.table.SetColumns(columns(width))
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	if m.mode == modeAdd || m.mode == modeRename {
		return []key.Binding{m.keys.Next, m.keys.Submit, m.keys.Escape}
	}
	return []key.Binding{m.keys.Add, m.keys.Rename, m.keys.Delete}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Up, m.keys.Down},
		{m.keys.Add, m.keys.Rename, m.keys.Delete},
		{m.keys.Refresh},
	}
}
