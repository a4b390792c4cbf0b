package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/token-monitor-tui/internal/models"
	"github.com/j-veylop/token-monitor-tui/internal/store"
	"github.com/j-veylop/token-monitor-tui/internal/ui/components"
	"github.com/j-veylop/token-monitor-tui/internal/ui/styles"
)

const (
	maxModelRows = 6
	maxLogRows   = 10
	sideBySide   = 100
)

// View renders the dashboard component.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return m.renderLoading()
	}

	v := m.state.View()

	sections := []string{m.renderTitle(v)}
	if v.Error != "" {
		sections = append(sections, m.renderError(v.Error))
	}
	sections = append(sections,
		m.renderSummary(v),
		m.renderModels(v.Stats),
		m.renderRecent(v.Logs),
	)

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderLoading renders the loading state.
func (m *Model) renderLoading() string {
	return components.RenderSyncCentered(m.spinner, m.state.View(), m.width, m.height)
}

func (m *Model) renderTitle(v store.State) string {
	title := styles.TitleStyle.Render("Token Monitor")

	subtitle := styles.HelpStyle.Render("No active provider")
	if p, ok := v.ActiveProvider(); ok {
		subtitle = lipgloss.JoinHorizontal(lipgloss.Left,
			styles.HelpStyle.Render("Active provider "),
			styles.ActiveBadgeStyle.Render(p.Label()),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) renderError(msg string) string {
	width := max(m.width-6, 20)
	line := styles.ErrorTextStyle.Render("✗ " + msg)
	return lipgloss.JoinVertical(lipgloss.Left, ansi.Truncate(line, width, "…"), "")
}

// renderSummary lays out the today and all-time cards, side by side when
// the terminal is wide enough.
func (m *Model) renderSummary(v store.State) string {
	if m.width >= sideBySide {
		cardWidth := (m.width - 10) / 2
		return lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderTodayCard(v, cardWidth),
			"  ",
			m.renderTotalsCard(v.Stats, cardWidth),
		)
	}

	cardWidth := styles.CardWidth(m.width, 40, 0)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTodayCard(v, cardWidth),
		m.renderTotalsCard(v.Stats, cardWidth),
	)
}

func (m *Model) renderTodayCard(v store.State, width int) string {
	t := v.TodayStats
	m.cacheBar.SetWidth(max(width-22, 10))

	rows := []string{
		cardTitle("◈", "Today"),
		"",
		kv("Cost", components.FormatCost(t.CostUSD)),
		kv("Input", components.FormatTokens(t.InputTokens)),
		kv("Output", components.FormatTokens(t.OutputTokens)),
		kv("Cache read", components.FormatTokens(t.CacheReadTokens)),
		"",
		m.cacheBar.ViewWithLabel("Cache hit ", m.displayRate(t.CacheHitRate)),
	}

	if len(v.DailyActivities) > 1 {
		costs := make([]float64, len(v.DailyActivities))
		for i, d := range v.DailyActivities {
			costs[i] = d.CostUSD
		}
		trend := lipgloss.NewStyle().Foreground(styles.Primary).Render(components.RenderSparkline(costs, len(costs)))
		rows = append(rows, kv(fmt.Sprintf("%d day trend", len(costs)), trend))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderTotalsCard(s *models.Snapshot, width int) string {
	rows := []string{cardTitle("◆", "All time"), ""}

	if s == nil {
		rows = append(rows, styles.HelpStyle.Render("  No usage recorded yet"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	rows = append(rows,
		kv("Cost", components.FormatCost(s.TotalCostUSD)),
		kv("Tokens", components.FormatTokens(s.TotalTokens())),
		kv("Sessions", components.FormatCount(s.TotalSessions)),
		kv("Messages", components.FormatCount(s.TotalMessages)),
		"",
		kv("Cache hit", styles.CacheRateStyle(s.CacheHitRate).Render(components.FormatPercent(s.CacheHitRate))),
	)

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderModels charts the most expensive models. Snapshot models are
// already ordered by cost.
func (m *Model) renderModels(s *models.Snapshot) string {
	cardWidth := styles.CardWidth(m.width, 40, 0)
	rows := []string{cardTitle("▤", "Cost by model"), ""}

	if s == nil || len(s.Models) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No models used yet"))
		return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	usage := s.Models[:min(len(s.Models), maxModelRows)]
	values := make([]float64, len(usage))
	labels := make([]string, len(usage))
	for i, u := range usage {
		values[i] = u.CostUSD
		labels[i] = u.Model
	}

	rows = append(rows, components.RenderBarChart(values, labels, cardWidth-4, components.FormatCost))
	if extra := len(s.Models) - len(usage); extra > 0 {
		rows = append(rows, styles.HelpStyle.Render(fmt.Sprintf("  +%d more", extra)))
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderRecent(logs []models.LogEntry) string {
	cardWidth := styles.CardWidth(m.width, 40, 0)
	rows := []string{cardTitle("↻", "Recent activity"), ""}

	if len(logs) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  Waiting for usage events"))
		return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	modelWidth := max(cardWidth-40, 12)
	for _, e := range logs[:min(len(logs), maxLogRows)] {
		model := ansi.Truncate(e.Model, modelWidth, "…")
		rows = append(rows, fmt.Sprintf("  %s  %s %s %s",
			styles.HelpStyle.Render(e.Timestamp.Local().Format("15:04:05")),
			styles.ValueStyle.Render(model+strings.Repeat(" ", max(modelWidth-ansi.StringWidth(model), 0))),
			styles.LabelStyle.Width(10).Align(lipgloss.Right).Render(components.FormatTokens(e.Context)),
			styles.SuccessTextStyle.Width(9).Align(lipgloss.Right).Render(components.FormatCost(e.Cost)),
		))
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// displayRate returns the animated cache rate, or target itself when the
// update arrived while another tab was active.
func (m *Model) displayRate(target float64) float64 {
	if m.cacheRate.target != target {
		m.cacheRate = rateAnimation{current: target, target: target}
	}
	return m.cacheRate.current
}

func cardTitle(icon, title string) string {
	return fmt.Sprintf("%s %s",
		lipgloss.NewStyle().Foreground(styles.Primary).Render(icon),
		styles.CardTitleStyle.Render(title),
	)
}

func kv(label, value string) string {
	return "  " + styles.LabelStyle.Render(label) + styles.ValueStyle.Render(value)
}
