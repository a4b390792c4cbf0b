package info

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/token-monitor-tui/internal/config"
	"github.com/j-veylop/token-monitor-tui/internal/ui/components"
	"github.com/j-veylop/token-monitor-tui/internal/ui/styles"
	"github.com/j-veylop/token-monitor-tui/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderSyncCard(),
		m.renderAboutCard(),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderTitle renders the info tab title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration and application information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 80)
}

// renderConfigCard renders the configuration card.
func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration"), ""}

	cfg := m.config
	if cfg == nil {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	rows = append(rows, renderRow("Mode", cfg.Mode().String()))
	if cfg.Mode() == config.ModeRemote {
		rows = append(rows,
			renderRow("Backend", cfg.BackendURL),
			renderRow("Stream", cfg.StreamURL),
			renderRow("Reconnect", fmt.Sprintf("%s → %s, %d retries",
				cfg.StreamReconnectDelay, cfg.StreamMaxReconnectDelay, cfg.StreamMaxReconnects)),
			renderRow("HTTP timeout", orNone(cfg.HTTPTimeout.String(), cfg.HTTPTimeout == 0)),
		)
	} else {
		rows = append(rows,
			renderRow("Database", cfg.DatabasePath),
			renderRow("Watching", strings.Join(cfg.WatchPaths, ", ")),
		)
	}

	alert := "off"
	if cfg.CostAlertUSD > 0 {
		alert = components.FormatCost(cfg.CostAlertUSD) + " per day"
	}
	rows = append(rows,
		renderRow("Cost alert", alert),
		renderRow("Exports", orNone(cfg.ExportDir, cfg.ExportDir == "")),
		renderRow("Log", fmt.Sprintf("%s (%s)", orNone(cfg.LogFile, cfg.LogFile == ""), cfg.LogLevel)),
		"",
		styles.HelpStyle.Render("Press 'c' to copy the data source"),
	)

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderSyncCard shows the state of the sync services.
func (m *Model) renderSyncCard() string {
	v := m.state.View()
	rows := []string{styles.CardTitleStyle.Render("Sync"), ""}

	stream := v.StreamState
	if stream == "" {
		stream = "not used"
	}
	updated := "never"
	if !v.LastUpdated.IsZero() {
		updated = v.LastUpdated.Local().Format("2006-01-02 15:04:05")
	}

	rows = append(rows,
		renderRow("Stream", styles.StreamStateStyle(v.StreamState).Render(stream)),
		renderRow("Last update", updated),
		renderRow("Providers", fmt.Sprintf("%d", len(v.ProviderStats))),
		renderRow("State version", fmt.Sprintf("%d", v.Version)),
	)

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderAboutCard renders the about/version information card.
func (m *Model) renderAboutCard() string {
	rows := []string{
		styles.CardTitleStyle.Render("About Token Monitor"),
		"",
		renderRow("Version", version.GetVersion()),
		renderRow("Build Date", version.GetDate()),
		renderRow("Git Commit", version.GetCommit()),
		renderRow("Go Version", runtime.Version()),
		renderRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderRow renders a configuration key-value row.
func renderRow(label, value string) string {
	return styles.LabelStyle.Render(label+":") + " " + styles.ValueStyle.Render(value)
}

func orNone(s string, none bool) string {
	if none {
		return "none"
	}
	return s
}
