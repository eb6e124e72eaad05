package utils

import (
	"testing"
	"time"
)

func TestParseSECDate(t *testing.T) {
	tests := []struct {
		input string
		year  int
		month time.Month
		day   int
	}{
		{"2024-11-01", 2024, time.November, 1},
		{"2024-08-02T16:30:12-04:00", 2024, time.August, 2},
		{"2023-02-03T00:00:00.000Z", 2023, time.February, 3},
		{"05/06/2022", 2022, time.May, 6},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseSECDate(tt.input)
			if got.IsZero() {
				t.Fatalf("ParseSECDate(%q) returned zero time", tt.input)
			}
			if got.Year() != tt.year || got.Month() != tt.month || got.Day() != tt.day {
				t.Errorf("ParseSECDate(%q) = %v", tt.input, got)
			}
		})
	}
}

func TestParseSECDateInvalid(t *testing.T) {
	for _, s := range []string{"", "Unknown", "yesterday"} {
		if got := ParseSECDate(s); !got.IsZero() {
			t.Errorf("ParseSECDate(%q) = %v, want zero", s, got)
		}
	}
}
