package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/ui/styles"
)

const (
	lowColor  = "#ff6b6b"
	highColor = "#51cf66"
)

// RatioBar renders a value in [0,1], such as a cache hit rate, as a
// gradient progress bar.
type RatioBar struct {
	progress progress.Model
}

// NewRatioBar creates a bar of the given width.
func NewRatioBar(width int) RatioBar {
	return RatioBar{
		progress: progress.New(
			progress.WithScaledGradient(lowColor, highColor),
			progress.WithWidth(width),
			progress.WithoutPercentage(),
		),
	}
}

// SetWidth resizes the bar.
func (r *RatioBar) SetWidth(width int) {
	r.progress.Width = width
}

// View renders ratio, clamped to [0,1].
func (r RatioBar) View(ratio float64) string {
	return r.progress.ViewAs(clampRatio(ratio))
}

// ViewWithLabel renders the bar between a label and the percentage.
func (r RatioBar) ViewWithLabel(label string, ratio float64) string {
	ratio = clampRatio(ratio)
	labelStr := lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(label)
	percentStr := styles.CacheRateStyle(ratio).
		Width(6).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", ratio*100))
	return fmt.Sprintf("%s %s %s", labelStr, r.View(ratio), percentStr)
}

// RenderGradientBar renders a bar without the progress model, for places
// that do not own a RatioBar.
func RenderGradientBar(ratio float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := int(float64(width) * clampRatio(ratio))

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(interpolateColor(lowColor, highColor, t)))
			b.WriteString(style.Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

func clampRatio(r float64) float64 {
	return min(max(r, 0), 1)
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
