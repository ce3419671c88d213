package cmd

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// formatMoney renders an exact amount in the currency's display format. An
// unknown or empty currency code falls back to two decimals.
func formatMoney(amount decimal.Decimal, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	cur := money.GetCurrency(code)
	if code == "" || cur == nil {
		return amount.StringFixed(2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

const (
	colorGreen  lipgloss.Color = "#a6e3a1"
	colorRed    lipgloss.Color = "#f38ba8"
	colorYellow lipgloss.Color = "#f9e2af"
	colorMuted  lipgloss.Color = "#7f849c"
)

var (
	okMark   = lipgloss.NewStyle().Foreground(colorGreen).Render("✓")
	failMark = lipgloss.NewStyle().Foreground(colorRed).Render("✗")
	warnText = lipgloss.NewStyle().Foreground(colorYellow)
	muted    = lipgloss.NewStyle().Foreground(colorMuted)
	heading  = lipgloss.NewStyle().Bold(true)
)
