// Package utils provides shared formatting and retry helpers.
package utils

import (
	"fmt"
	"strings"
)

// NotComputable is shown for statistics that could not be derived.
const NotComputable = "n/a"

// FormatCurrency formats an amount with a currency prefix, e.g. "C$1,234.50".
func FormatCurrency(amount float64, currency string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	result := currencySymbol(currency) + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

func currencySymbol(currency string) string {
	switch strings.ToUpper(currency) {
	case "CAD":
		return "C$"
	case "USD", "":
		return "$"
	default:
		return strings.ToUpper(currency) + " "
	}
}

// groupThousands inserts commas into a string of digits.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPercentPtr formats an optional percentage; nil means not computable.
func FormatPercentPtr(value *float64) string {
	if value == nil {
		return NotComputable
	}
	return FormatPercent(*value)
}

// FormatVolume formats a share count with commas.
func FormatVolume(qty int64) string {
	if qty < 0 {
		return "-" + groupThousands(fmt.Sprintf("%d", -qty))
	}
	return groupThousands(fmt.Sprintf("%d", qty))
}

// FormatCompact formats a number in compact form (K/M/B).
func FormatCompact(amount float64) string {
	abs := amount
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", amount/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fK", amount/1e3)
	}
	return fmt.Sprintf("%.0f", amount)
}
