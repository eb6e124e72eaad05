// Package utils provides common utility functions for edgarwatch.
package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatUSDCompact formats a dollar amount in abbreviated notation.
// e.g., 2_500_000_000 → "$2.5B", 1_250_000 → "$1.2M", 950 → "$950".
// The sign is kept after the currency symbol: -3e9 → "$-3.0B".
func FormatUSDCompact(amount float64) string {
	switch {
	case math.Abs(amount) >= 1e9:
		return fmt.Sprintf("$%.1fB", amount/1e9)
	case math.Abs(amount) >= 1e6:
		return fmt.Sprintf("$%.1fM", amount/1e6)
	default:
		return "$" + FormatThousands(amount)
	}
}

// FormatThousands formats a number rounded to an integer with comma
// thousands separators: 1234567.8 → "1,234,568".
func FormatThousands(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', 0, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
