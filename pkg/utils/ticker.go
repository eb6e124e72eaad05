package utils

import "strings"

// NormalizeTicker normalizes a user-input ticker to the form used by the
// EDGAR ticker directory: trimmed, uppercased, "." replaced with "-".
// "brk.b" → "BRK-B". No other spelling is rewritten; lookups are exact.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	return strings.ReplaceAll(ticker, ".", "-")
}

// IsCIK reports whether s looks like a numeric filer identifier rather than
// a ticker symbol.
func IsCIK(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 10 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
