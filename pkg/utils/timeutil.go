package utils

import (
	"time"
)

// ET is the US Eastern time zone EDGAR timestamps are reported in.
var ET *time.Location

func init() {
	var err error
	ET, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback: fixed EST offset if tz database is not available
		ET = time.FixedZone("EST", -5*60*60)
	}
}

// ParseSECDate parses the date layouts found across EDGAR sources (filing
// indexes, feeds, submissions). Returns the zero time if none match.
func ParseSECDate(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"01/02/2006",
	} {
		if t, err := time.ParseInLocation(layout, s, ET); err == nil {
			return t
		}
	}
	return time.Time{}
}
