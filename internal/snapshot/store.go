// Package snapshot persists per-ticker analysis results as JSON files so
// that readers can serve them without reaching EDGAR.
//
// Layout under the root directory:
//
//	<TICKER>/filings.json       []FilingDescriptor
//	<TICKER>/risks.json         accession -> extracted section text
//	<TICKER>/financials.json    FinancialAudit
//	<TICKER>/intelligence.json  Intelligence
//	<TICKER>/holdings.json      HoldingsDelta
//	<TICKER>/report.json        TickerReport of the last batch run
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seenimoa/edgarwatch/pkg/models"
	"github.com/seenimoa/edgarwatch/pkg/utils"
)

// File names within a ticker directory.
const (
	FilingsFile      = "filings.json"
	RisksFile        = "risks.json"
	FinancialsFile   = "financials.json"
	IntelligenceFile = "intelligence.json"
	HoldingsFile     = "holdings.json"
	ReportFile       = "report.json"
)

var (
	// ErrNotFound is returned when a snapshot file does not exist.
	ErrNotFound = errors.New("snapshot: not found")
	// ErrInvalidTicker is returned for tickers that cannot name a directory.
	ErrInvalidTicker = errors.New("snapshot: invalid ticker")
)

// Store reads and writes snapshot files under a root directory.
type Store struct {
	root string
}

// New creates a store rooted at dir. The directory need not exist yet.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Dir returns the directory holding a ticker's files.
func (s *Store) Dir(ticker string) (string, error) {
	t := utils.NormalizeTicker(ticker)
	if t == "" || t == "." || t == ".." || strings.ContainsAny(t, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	return filepath.Join(s.root, t), nil
}

// Tickers lists the tickers that have a snapshot directory, sorted.
func (s *Store) Tickers() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: list %s: %w", s.root, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- Readers ---

// Filings returns the stored filing descriptors for ticker.
func (s *Store) Filings(ticker string) ([]models.FilingDescriptor, error) {
	var out []models.FilingDescriptor
	if err := s.read(ticker, FilingsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Risks returns the stored accession -> section text map for ticker.
func (s *Store) Risks(ticker string) (map[string]string, error) {
	out := map[string]string{}
	if err := s.read(ticker, RisksFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Financials returns the stored quantitative audit for ticker.
func (s *Store) Financials(ticker string) (*models.FinancialAudit, error) {
	var out models.FinancialAudit
	if err := s.read(ticker, FinancialsFile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Intelligence returns the stored narrative for ticker.
func (s *Store) Intelligence(ticker string) (*models.Intelligence, error) {
	var out models.Intelligence
	if err := s.read(ticker, IntelligenceFile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Holdings returns the stored holdings delta for ticker.
func (s *Store) Holdings(ticker string) (*models.HoldingsDelta, error) {
	var out models.HoldingsDelta
	if err := s.read(ticker, HoldingsFile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report returns the last stored batch report for ticker.
func (s *Store) Report(ticker string) (*models.TickerReport, error) {
	var out models.TickerReport
	if err := s.read(ticker, ReportFile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Writers ---

// SaveFilings writes filings.json for ticker.
func (s *Store) SaveFilings(ticker string, filings []models.FilingDescriptor) error {
	if filings == nil {
		filings = []models.FilingDescriptor{}
	}
	return s.write(ticker, FilingsFile, filings)
}

// SaveRisks writes risks.json for ticker.
func (s *Store) SaveRisks(ticker string, risks map[string]string) error {
	if risks == nil {
		risks = map[string]string{}
	}
	return s.write(ticker, RisksFile, risks)
}

// SaveFinancials writes financials.json for ticker.
func (s *Store) SaveFinancials(ticker string, audit *models.FinancialAudit) error {
	return s.write(ticker, FinancialsFile, audit)
}

// SaveIntelligence writes intelligence.json for ticker.
func (s *Store) SaveIntelligence(ticker string, intel *models.Intelligence) error {
	return s.write(ticker, IntelligenceFile, intel)
}

// SaveHoldings writes holdings.json for ticker.
func (s *Store) SaveHoldings(ticker string, delta *models.HoldingsDelta) error {
	return s.write(ticker, HoldingsFile, delta)
}

// SaveReport writes every file the report has data for, then report.json.
// Sections the run did not produce are left untouched on disk.
func (s *Store) SaveReport(r *models.TickerReport) error {
	if err := s.SaveFilings(r.Ticker, r.Filings); err != nil {
		return err
	}
	if err := s.SaveRisks(r.Ticker, r.Risks); err != nil {
		return err
	}
	if r.Financials != nil {
		if err := s.SaveFinancials(r.Ticker, r.Financials); err != nil {
			return err
		}
	}
	if r.Holdings != nil {
		if err := s.SaveHoldings(r.Ticker, r.Holdings); err != nil {
			return err
		}
	}
	if r.Intelligence != nil {
		if err := s.SaveIntelligence(r.Ticker, r.Intelligence); err != nil {
			return err
		}
	}
	return s.write(r.Ticker, ReportFile, r)
}

// --- helpers ---

func (s *Store) read(ticker, name string, dest any) error {
	dir, err := s.Dir(ticker)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("snapshot: parse %s: %w", path, err)
	}
	return nil
}

// write marshals v with indentation and replaces the target file atomically
// via a temp file in the same directory.
func (s *Store) write(ticker, name string, v any) error {
	dir, err := s.Dir(ticker)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("snapshot: rename %s: %w", name, err)
	}
	return nil
}
