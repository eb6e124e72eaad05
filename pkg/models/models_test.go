package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// ── Filing Tests ──

func TestNewFilingDescriptor(t *testing.T) {
	f := NewFilingDescriptor("0000320193", "10-K", "0000320193-24-000123", "aapl-20240928.htm", "2024-11-01")

	if f.AccessionClean != "000032019324000123" {
		t.Errorf("AccessionClean: got %q", f.AccessionClean)
	}
	wantFolder := "https://www.sec.gov/Archives/edgar/data/320193/000032019324000123/"
	if f.FolderURL != wantFolder {
		t.Errorf("FolderURL: got %q, want %q", f.FolderURL, wantFolder)
	}
	if f.URL != wantFolder+"aapl-20240928.htm" {
		t.Errorf("URL: got %q", f.URL)
	}
	if f.IsPlaceholder() {
		t.Error("real filing reported as placeholder")
	}
}

func TestIsPlaceholder(t *testing.T) {
	if !(FilingDescriptor{URL: PlaceholderURL}).IsPlaceholder() {
		t.Error("sentinel URL not detected")
	}
	if !(FilingDescriptor{Placeholder: true, URL: "x"}).IsPlaceholder() {
		t.Error("Placeholder flag not detected")
	}
}

func TestAccessionHelpers(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"0000320193-24-000123", true},
		{"000032019324000123", false},
		{"0000320193-24-00012", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidAccession(tt.in); got != tt.valid {
			t.Errorf("ValidAccession(%q) = %v, want %v", tt.in, got, tt.valid)
		}
	}

	if got := DashAccession("000032019324000123"); got != "0000320193-24-000123" {
		t.Errorf("DashAccession: got %q", got)
	}
	if got := DashAccession("123"); got != "123" {
		t.Errorf("DashAccession(short): got %q", got)
	}
}

func TestCIKPadding(t *testing.T) {
	if got := PadCIK("320193"); got != "0000320193" {
		t.Errorf("PadCIK: got %q", got)
	}
	if got := TrimCIK("0000320193"); got != "320193" {
		t.Errorf("TrimCIK: got %q", got)
	}
	if got := TrimCIK("0000"); got != "0" {
		t.Errorf("TrimCIK(all zero): got %q", got)
	}
}

func TestLowConfidence(t *testing.T) {
	if (ExtractedSection{Confidence: ConfidencePatternMatch}).LowConfidence() {
		t.Error("pattern_match should not be low confidence")
	}
	for _, c := range []Confidence{ConfidenceGenericFallback, ConfidenceWholeDocument} {
		if !(ExtractedSection{Confidence: c}).LowConfidence() {
			t.Errorf("%s should be low confidence", c)
		}
	}
}

// ── Forensics Tests ──

func TestFilingDescriptorSnapshotKeys(t *testing.T) {
	data, err := json.Marshal(NewFilingDescriptor("1", "10-Q", "0000000001-24-000001", "a.htm", "2024-01-01"))
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}
	s := string(data)
	for _, key := range []string{`"form"`, `"accession"`, `"accession_clean"`, `"primary_doc"`, `"date"`, `"url"`, `"folder_url"`} {
		if !strings.Contains(s, key) {
			t.Errorf("missing key %s in %s", key, s)
		}
	}
	if strings.Contains(s, `"placeholder"`) {
		t.Errorf("placeholder key should be omitted for real filings: %s", s)
	}
}

func TestIntelligenceGeneratedTime(t *testing.T) {
	i := Intelligence{GeneratedAt: 1700000000.5}
	got := i.GeneratedTime()
	if got.Unix() != 1700000000 {
		t.Errorf("Unix: got %d", got.Unix())
	}
	if d := time.Duration(got.Nanosecond()); d < 499*time.Millisecond || d > 501*time.Millisecond {
		t.Errorf("fractional part: got %v", d)
	}
}
