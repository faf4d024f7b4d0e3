package http

import (
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stationdesk/internal/core"
)

// formatMoney formats a float amount for display, e.g. "$1,234.50".
func formatMoney(x float64) string {
	return core.FormatMoney(x)
}

func formatDecimal(d decimal.Decimal) string {
	return core.FormatMoney(d.InexactFloat64())
}

// formatVolume prints a fuel volume with two decimals and no currency.
func formatVolume(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// formatSignedVolume prefixes positive deltas with "+".
func formatSignedVolume(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

// amountInput renders a row amount for an <input type="number">; zero is blank.
func amountInput(x float64) string {
	if x == 0 {
		return ""
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("Jan 2, 2006")
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":       formatMoney,
		"dec":         formatDecimal,
		"volume":      formatVolume,
		"signed":      formatSignedVolume,
		"amountInput": amountInput,
		"date":        formatDate,
		"timestamp":   formatTimestamp,
		"isNeg":       func(d decimal.Decimal) bool { return d.IsNegative() },
		"sideCtx":     newSideCell,
	}
}
