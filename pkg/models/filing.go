package models

import (
	"fmt"
	"regexp"
	"strings"
)

// PlaceholderURL is the sentinel URL carried by synthesized placeholder filings.
// It never resolves to a real document.
const PlaceholderURL = "DEMO"

// ArchivesBaseURL is the EDGAR archive root used to build document and folder URLs.
const ArchivesBaseURL = "https://www.sec.gov/Archives/edgar/data"

var accessionPattern = regexp.MustCompile(`^\d{10}-\d{2}-\d{6}$`)

// FilingDescriptor identifies one filing submission and the location of its
// primary document. It is produced by the filing locator and never mutated.
type FilingDescriptor struct {
	Form           string `json:"form"`            // "10-K", "10-Q", "10-K/A", "13F-HR", ...
	Accession      string `json:"accession"`       // dashed form, e.g. "0000320193-24-000123"
	AccessionClean string `json:"accession_clean"` // dashes removed
	PrimaryDoc     string `json:"primary_doc"`
	Date           string `json:"date"` // filing date as reported by the source, usually YYYY-MM-DD
	URL            string `json:"url"`
	FolderURL      string `json:"folder_url"`
	Placeholder    bool   `json:"placeholder,omitempty"`
}

// NewFilingDescriptor builds a descriptor for a filing in the EDGAR archive.
// The CIK may be zero-padded; leading zeros are dropped from the archive path.
func NewFilingDescriptor(cik, form, accession, primaryDoc, date string) FilingDescriptor {
	clean := CleanAccession(accession)
	folder := FolderURL(cik, clean)
	return FilingDescriptor{
		Form:           form,
		Accession:      accession,
		AccessionClean: clean,
		PrimaryDoc:     primaryDoc,
		Date:           date,
		URL:            folder + primaryDoc,
		FolderURL:      folder,
	}
}

// IsPlaceholder reports whether the descriptor is synthetic and has no
// resolvable document behind it.
func (f FilingDescriptor) IsPlaceholder() bool {
	return f.Placeholder || f.URL == PlaceholderURL
}

// ValidAccession reports whether s matches the NNNNNNNNNN-NN-NNNNNN format.
func ValidAccession(s string) bool {
	return accessionPattern.MatchString(s)
}

// CleanAccession returns the accession number with dashes removed.
func CleanAccession(accession string) string {
	return strings.ReplaceAll(accession, "-", "")
}

// DashAccession restores the dashed form of an 18-digit undashed accession.
// Returns the input unchanged if it is not 18 characters long.
func DashAccession(clean string) string {
	if len(clean) != 18 {
		return clean
	}
	return clean[:10] + "-" + clean[10:12] + "-" + clean[12:]
}

// FolderURL returns the archive folder URL (with trailing slash) for a filing.
func FolderURL(cik, accessionClean string) string {
	return fmt.Sprintf("%s/%s/%s/", ArchivesBaseURL, TrimCIK(cik), accessionClean)
}

// TrimCIK strips leading zeros from a CIK. An all-zero CIK becomes "0".
func TrimCIK(cik string) string {
	t := strings.TrimLeft(cik, "0")
	if t == "" && cik != "" {
		return "0"
	}
	return t
}

// PadCIK pads a CIK to 10 digits with leading zeros.
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

// Confidence describes how an extracted section was located.
type Confidence string

const (
	// ConfidencePatternMatch means the section markers were found and bounded.
	ConfidencePatternMatch Confidence = "pattern_match"
	// ConfidenceGenericFallback means only the generic section title was found.
	ConfidenceGenericFallback Confidence = "generic_fallback"
	// ConfidenceWholeDocument means no marker was found; text is the document head.
	ConfidenceWholeDocument Confidence = "whole_document"
)

// ExtractedSection is the narrative risk section of one filing.
type ExtractedSection struct {
	Accession  string     `json:"accession,omitempty"`
	Text       string     `json:"text"`
	Confidence Confidence `json:"confidence"`
}

// LowConfidence reports whether the text came from a fallback rather than
// bounded section markers.
func (s ExtractedSection) LowConfidence() bool {
	return s.Confidence != ConfidencePatternMatch
}
