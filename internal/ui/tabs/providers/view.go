package providers

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/token-monitor-tui/internal/ui/components"
	"github.com/j-veylop/token-monitor-tui/internal/ui/styles"
)

// View renders the providers tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return m.renderLoading()
	}

	sections := []string{m.renderTitle()}

	switch m.mode {
	case modeAdd, modeRename:
		sections = append(sections, m.renderForm())
	case modeConfirmDelete:
		sections = append(sections, m.renderDeleteConfirm(), m.renderTable())
	default:
		sections = append(sections, m.renderTable())
	}

	sections = append(sections, m.renderFooter())

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// renderLoading renders the loading state.
func (m *Model) renderLoading() string {
	return components.RenderSyncCentered(m.spinner, m.state.View(), m.width, m.height)
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Providers")

	count := m.state.ProviderCount()
	noun := "providers"
	if count == 1 {
		noun = "provider"
	}
	subtitle := styles.HelpStyle.Render(fmt.Sprintf("%d %s monitored", count, noun))

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) renderTable() string {
	if m.state.ProviderCount() == 0 {
		return m.renderEmptyState()
	}

	m.updateTableData()

	cardWidth := styles.CardWidth(m.width, 60, 0)
	return styles.CardStyle.Width(cardWidth).Render(m.table.View())
}

func (m *Model) renderEmptyState() string {
	cardWidth := styles.CardWidth(m.width, 40, 0)

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		styles.SubTitleStyle.Render("No Providers"),
		"",
		styles.HelpStyle.Render("Providers appear once usage is recorded for an API key."),
		"",
		styles.InfoTextStyle.Render("Press 'a' to add one now"),
		"",
	)

	return styles.CardStyle.Width(cardWidth).Render(content)
}

func (m *Model) renderForm() string {
	cardWidth := min(max(m.width-10, 50), 80)
	inputWidth := cardWidth - 10

	title := "Add Provider"
	submit := " Add "
	if m.mode == modeRename {
		title = "Rename " + m.targetLabel
		submit = " Save "
	}

	rows := []string{styles.CardTitleStyle.Render(title), ""}

	if m.mode == modeAdd {
		rows = append(rows, m.renderField("API key:", fieldKey, m.keyInput.View(), inputWidth)...)
	}
	rows = append(rows, m.renderField("Display name:", fieldName, m.nameInput.View(), inputWidth)...)

	if m.formError != "" {
		rows = append(rows, styles.ErrorTextStyle.Render(m.formError), "")
	}

	submitStyle := styles.ButtonInactiveStyle
	cancelStyle := styles.ButtonInactiveStyle
	if m.focused == fieldSubmit {
		submitStyle = styles.ButtonActiveStyle
	}
	if m.focused == fieldCancel {
		cancelStyle = styles.ButtonActiveStyle
	}

	rows = append(rows,
		lipgloss.JoinHorizontal(lipgloss.Center,
			submitStyle.Render(submit),
			"  ",
			cancelStyle.Render(" Cancel "),
		),
		"",
		styles.HelpStyle.Render("Tab: next field | Enter: submit | Esc: cancel"),
	)

	return styles.ModalContentStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderField(label string, field formField, input string, width int) []string {
	labelStyle := styles.BlurredStyle
	frame := styles.BlurredBorderStyle
	prefix := "  "
	if m.focused == field {
		labelStyle = styles.FocusedStyle
		frame = styles.FocusedBorderStyle
		prefix = "> "
	}
	return []string{
		labelStyle.Render(prefix + label),
		frame.Width(width).Render(input),
		"",
	}
}

func (m *Model) renderDeleteConfirm() string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		styles.WarningTextStyle.Bold(true).Render("Delete Provider?"),
		"",
		"Usage history recorded for this key is removed too:",
		styles.ErrorTextStyle.Render(m.targetLabel),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			styles.ButtonActiveStyle.Render(" (Y)es "),
			"  ",
			styles.ButtonInactiveStyle.Render(" (N)o "),
		),
		"",
	)

	return styles.CenterHorizontal(
		styles.ModalContentStyle.Width(56).Render(content),
		m.width,
	)
}

func (m *Model) renderFooter() string {
	var shortcuts []string

	switch m.mode {
	case modeAdd, modeRename:
		shortcuts = []string{
			styles.HelpKeyStyle.Render("Tab") + " next",
			styles.HelpKeyStyle.Render("Enter") + " submit",
			styles.HelpKeyStyle.Render("Esc") + " cancel",
		}
	case modeConfirmDelete:
		shortcuts = []string{
			styles.HelpKeyStyle.Render("Y") + " confirm",
			styles.HelpKeyStyle.Render("N") + " cancel",
		}
	default:
		shortcuts = []string{
			styles.HelpKeyStyle.Render("a") + " add",
			styles.HelpKeyStyle.Render("e") + " rename",
			styles.HelpKeyStyle.Render("d") + " delete",
			styles.HelpKeyStyle.Render("r") + " refresh",
		}
	}

	return lipgloss.NewStyle().
		MarginTop(1).
		Foreground(styles.TextMuted).
		Render(strings.Join(shortcuts, styles.HelpSeparatorStyle.Render(" | ")))
}
