package history

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/token-monitor-tui/internal/models"
	"github.com/j-veylop/token-monitor-tui/internal/ui/components"
	"github.com/j-veylop/token-monitor-tui/internal/ui/styles"
)

// View renders the history tab.
func (m *Model) View() string {
	if m.loading {
		return m.renderLoading()
	}
	if m.errorMsg != "" {
		return m.renderError()
	}

	if m.synced() && m.state.IsInitialLoading() {
		return m.renderLoading()
	}
	days := m.activities()

	sections := []string{
		m.renderHeader(days),
		m.renderChart(days),
		m.renderTable(days),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderLoading() string {
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(styles.HelpStyle.Render("Loading history data..."))
}

func (m *Model) renderError() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		fmt.Sprintf("%s %s", styles.ErrorTextStyle.Render("Error:"), m.errorMsg),
		"",
		styles.HelpStyle.Render("Press t to switch range or r to retry"),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderHeader(days []models.DailyActivity) string {
	title := styles.TitleStyle.Render("History")

	badge := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		title, "  ",
		badge.Render(fmt.Sprintf("[t] %d days", m.days())), " ",
		badge.Render("[m] "+m.metric.String()),
	)

	var totalCost float64
	var totalTokens int64
	for _, d := range days {
		totalCost += d.CostUSD
		totalTokens += d.InputTokens + d.OutputTokens
	}

	subtitle := ""
	if len(days) > 0 {
		subtitle = styles.HelpStyle.Render(fmt.Sprintf("%s → %s   total %s, %s tokens, avg %s/day",
			displayDate(days[0].Date),
			displayDate(days[len(days)-1].Date),
			components.FormatCost(totalCost),
			components.FormatTokens(totalTokens),
			components.FormatCost(totalCost/float64(len(days))),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

// series extracts the plotted metric.
func (m *Model) series(days []models.DailyActivity) []float64 {
	out := make([]float64, len(days))
	for i, d := range days {
		if m.metric == MetricTokens {
			out[i] = float64(d.InputTokens + d.OutputTokens)
		} else {
			out[i] = d.CostUSD
		}
	}
	return out
}

func (m *Model) renderChart(days []models.DailyActivity) string {
	cardWidth := styles.CardWidth(m.width, 40, 0)

	rows := []string{
		fmt.Sprintf("%s %s",
			lipgloss.NewStyle().Foreground(styles.Primary).Render("◆"),
			styles.CardTitleStyle.Render("Daily "+m.metric.String())),
		"",
	}

	values := m.series(days)
	if !slices.ContainsFunc(values, func(v float64) bool { return v > 0 }) {
		rows = append(rows, styles.HelpStyle.Render("  No usage in this range"))
	} else {
		caption := fmt.Sprintf("%s per day, last %d days", m.metric.String(), len(days))
		chart := components.RenderLineChart(values, max(cardWidth-14, 30), 8, caption)
		for line := range strings.SplitSeq(chart, "\n") {
			rows = append(rows, "  "+line)
		}
		if peak := peakDay(days, values); peak != "" {
			rows = append(rows, "", fmt.Sprintf("  Peak: %s",
				lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).Render(peak)))
		}
	}

	rows = append(rows, "")

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderTable lists the days newest first.
func (m *Model) renderTable(days []models.DailyActivity) string {
	cardWidth := styles.CardWidth(m.width, 40, 0)

	header := styles.SubTitleStyle.Render(fmt.Sprintf("  %-12s %10s %10s %10s %9s %9s",
		"Date", "Cost", "Input", "Output", "Sessions", "Messages"))
	rows := []string{header}

	values := m.series(days)
	peak := slices.Max(append([]float64{0}, values...))

	for i := len(days) - 1; i >= 0; i-- {
		d := days[i]
		line := fmt.Sprintf("  %-12s %10s %10s %10s %9s %9s",
			displayDate(d.Date),
			components.FormatCost(d.CostUSD),
			components.FormatTokens(d.InputTokens),
			components.FormatTokens(d.OutputTokens),
			components.FormatCount(d.SessionCount),
			components.FormatCount(d.MessageCount),
		)
		if d.CostUSD == 0 && d.InputTokens == 0 && d.OutputTokens == 0 {
			line = styles.HelpStyle.Render(line)
		} else {
			line = styles.ValueStyle.Render(line)
		}
		if peak > 0 {
			line += "  " + components.RenderGradientBar(values[i]/peak, 10)
		}
		rows = append(rows, line)
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// peakDay names the day with the largest value.
func peakDay(days []models.DailyActivity, values []float64) string {
	if len(values) == 0 {
		return ""
	}
	idx := 0
	for i, v := range values {
		if v > values[idx] {
			idx = i
		}
	}
	return displayDate(days[idx].Date)
}

func displayDate(date string) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Mon Jan 2")
}
