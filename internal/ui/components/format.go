package components

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatTokens renders a token count compactly, e.g. 12.3k or 4.5M.
func FormatTokens(n int64) string {
	if n < 1000 && n > -1000 {
		return fmt.Sprintf("%d", n)
	}
	return strings.ReplaceAll(humanize.SIWithDigits(float64(n), 1, ""), " ", "")
}

// FormatCount renders an exact count with thousands separators.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatCost renders a USD amount.
func FormatCost(usd float64) string {
	if usd > 0 && usd < 0.01 {
		return "<$0.01"
	}
	return fmt.Sprintf("$%.2f", usd)
}

// FormatPercent renders a [0,1] ratio as a percentage.
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}
