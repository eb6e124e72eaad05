// Package pipeline runs the per-ticker forensic workflow: resolve the filer,
// locate recent periodic reports, extract and redline their risk sections,
// audit structured financials, diff 13F holdings and synthesize a narrative.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/edgarwatch/internal/analysis/audit"
	"github.com/seenimoa/edgarwatch/internal/analysis/holdings"
	"github.com/seenimoa/edgarwatch/internal/analysis/redline"
	"github.com/seenimoa/edgarwatch/internal/edgar"
	"github.com/seenimoa/edgarwatch/internal/extract"
	"github.com/seenimoa/edgarwatch/internal/infra"
	"github.com/seenimoa/edgarwatch/internal/narrative"
	"github.com/seenimoa/edgarwatch/internal/snapshot"
	"github.com/seenimoa/edgarwatch/pkg/models"
	"github.com/seenimoa/edgarwatch/pkg/utils"
)

// HoldingsForm is the institutional holdings report form type.
const HoldingsForm = "13F-HR"

// DefaultForms are the periodic report forms tried in order.
var DefaultForms = []string{"10-Q", "10-K"}

// Resolver maps a ticker to a 10-digit CIK.
type Resolver interface {
	Resolve(ctx context.Context, ticker string) (string, error)
}

// Locator finds recent filings of a company.
type Locator interface {
	Locate(ctx context.Context, cik, form string, count int, ticker string) (edgar.Located, error)
	LocateAny(ctx context.Context, cik string, forms []string, count int, ticker string) (edgar.Located, error)
}

// Pipeline wires the engines together for one ticker at a time. It is safe
// for concurrent use.
type Pipeline struct {
	resolver Resolver
	locator  Locator
	fetcher  edgar.Fetcher
	store    *snapshot.Store
	editor   *narrative.Editor
	forms    []string
	count    int
	holdings bool
	logger   *infra.Logger
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithForms sets the forms to locate, in preference order. Including
// "13F-HR" enables the holdings step instead of locating it as a report.
func WithForms(forms ...string) Option {
	return func(p *Pipeline) {
		p.forms = nil
		p.holdings = false
		for _, f := range forms {
			f = strings.ToUpper(strings.TrimSpace(f))
			switch {
			case f == "":
			case f == HoldingsForm || f == "13F" || f == "13-F":
				p.holdings = true
			default:
				p.forms = append(p.forms, f)
			}
		}
		if len(p.forms) == 0 {
			p.forms = DefaultForms
		}
	}
}

// WithCount sets how many filings are located per form.
func WithCount(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.count = n
		}
	}
}

// WithHoldings toggles the 13F holdings step.
func WithHoldings(on bool) Option {
	return func(p *Pipeline) { p.holdings = on }
}

// WithSnapshot lets the interactive operations read stored risks and
// financials before going to the network.
func WithSnapshot(s *snapshot.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithEditor enables narrative synthesis.
func WithEditor(e *narrative.Editor) Option {
	return func(p *Pipeline) { p.editor = e }
}

// WithLogger sets the logger.
func WithLogger(l *infra.Logger) Option {
	return func(p *Pipeline) { p.logger = l.Component("pipeline") }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(resolver Resolver, locator Locator, fetcher edgar.Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver: resolver,
		locator:  locator,
		fetcher:  fetcher,
		forms:    DefaultForms,
		count:    2,
		logger:   infra.NewSilentLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Forms returns the periodic report forms the pipeline locates.
func (p *Pipeline) Forms() []string { return p.forms }

// Run produces a full report for ticker. Resolution and filing discovery
// failures are fatal; every later step degrades to a warning on the report.
func (p *Pipeline) Run(ctx context.Context, ticker string) (*models.TickerReport, error) {
	ticker = utils.NormalizeTicker(ticker)
	log := p.logger.With().Str("ticker", ticker).Logger()

	cik, err := p.resolver.Resolve(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ticker, err)
	}
	located, err := p.locator.LocateAny(ctx, cik, p.forms, p.count, ticker)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", ticker, err)
	}

	report := &models.TickerReport{
		Ticker:    ticker,
		CIK:       cik,
		Strategy:  located.Strategy,
		Filings:   located.Filings,
		Risks:     map[string]string{},
		FetchedAt: p.now().UTC(),
	}
	if located.Placeholder() {
		report.Warnings = append(report.Warnings, "filings are placeholders; live EDGAR sources were unavailable")
	}

	var (
		mu   sync.Mutex
		warn = func(format string, args ...any) {
			msg := fmt.Sprintf(format, args...)
			log.Warn().Msg(msg)
			mu.Lock()
			report.Warnings = append(report.Warnings, msg)
			mu.Unlock()
		}
	)

	g, gctx := errgroup.WithContext(ctx)

	// 1. Risk sections and redline.
	g.Go(func() error {
		sections, warnings := p.sections(gctx, located.Filings, nil)
		for _, w := range warnings {
			warn("%s", w)
		}
		mu.Lock()
		defer mu.Unlock()
		report.Sections = sections
		for _, s := range sections {
			report.Risks[s.Accession] = s.Text
		}
		if len(sections) >= 2 {
			r := redline.Compare(sections[0].Text, sections[1].Text)
			report.Redline = &r
		}
		return nil
	})

	// 2. Structured financials.
	g.Go(func() error {
		a, err := p.auditCIK(gctx, cik)
		if err != nil {
			warn("financials: %v", err)
			return nil
		}
		mu.Lock()
		report.Financials = a
		mu.Unlock()
		return nil
	})

	// 3. 13F holdings.
	if p.holdings {
		g.Go(func() error {
			d, err := p.holdingsCIK(gctx, cik, ticker)
			if err != nil {
				warn("holdings: %v", err)
				return nil
			}
			mu.Lock()
			report.Holdings = d
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.editor != nil {
		intel := p.editor.ScoopLeads(ctx, narrative.Findings{
			Redline:    report.Redline,
			Financials: report.Financials,
			Holdings:   report.Holdings,
		})
		report.Intelligence = &intel
	}

	log.Info().
		Str("cik", cik).
		Str("strategy", report.Strategy).
		Int("filings", len(report.Filings)).
		Int("sections", len(report.Sections)).
		Int("warnings", len(report.Warnings)).
		Msg("ticker processed")
	return report, nil
}

// sections downloads and extracts the risk section of the two most recent
// filings. Stored texts keyed by accession are used without downloading.
func (p *Pipeline) sections(ctx context.Context, filings []models.FilingDescriptor, stored map[string]string) ([]models.ExtractedSection, []string) {
	if len(filings) > 2 {
		filings = filings[:2]
	}
	var (
		out      []models.ExtractedSection
		warnings []string
	)
	for _, f := range filings {
		if text := stored[f.Accession]; text != "" {
			out = append(out, models.ExtractedSection{Accession: f.Accession, Text: text, Confidence: models.ConfidencePatternMatch})
			continue
		}
		if f.IsPlaceholder() {
			warnings = append(warnings, fmt.Sprintf("skipped placeholder filing %s", f.Accession))
			continue
		}
		body, err := p.fetcher.Fetch(ctx, f.URL)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("download %s: %v", f.Accession, err))
			continue
		}
		s := extract.ExtractSection(string(body))
		s.Accession = f.Accession
		if s.LowConfidence() {
			p.logger.Debug().Str("accession", f.Accession).Str("confidence", string(s.Confidence)).Msg("risk section not bounded")
		}
		out = append(out, s)
	}
	return out, warnings
}

func (p *Pipeline) auditCIK(ctx context.Context, cik string) (*models.FinancialAudit, error) {
	facts, err := edgar.CompanyFacts(ctx, p.fetcher, cik)
	if err != nil {
		return nil, err
	}
	return audit.Audit(facts)
}

// --- Interactive operations ---

// RedlineReport is the outcome of comparing the two most recent filings of
// one form.
type RedlineReport struct {
	Ticker   string                    `json:"ticker"`
	CIK      string                    `json:"cik"`
	Located  edgar.Located             `json:"located"`
	Sections []models.ExtractedSection `json:"sections"`
	Result   *models.RedlineResult     `json:"result,omitempty"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// Redline compares the risk sections of the two most recent filings of
// form. Result is nil when fewer than two sections could be extracted.
func (p *Pipeline) Redline(ctx context.Context, ticker, form string) (*RedlineReport, error) {
	ticker = utils.NormalizeTicker(ticker)
	form = strings.ToUpper(strings.TrimSpace(form))
	cik, err := p.resolver.Resolve(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ticker, err)
	}
	located, err := p.locator.Locate(ctx, cik, form, 2, ticker)
	if err != nil {
		return nil, fmt.Errorf("locate %s %s: %w", ticker, form, err)
	}

	var stored map[string]string
	if p.store != nil {
		if risks, err := p.store.Risks(ticker); err == nil {
			stored = risks
		}
	}

	sections, warnings := p.sections(ctx, located.Filings, stored)
	out := &RedlineReport{Ticker: ticker, CIK: cik, Located: located, Sections: sections, Warnings: warnings}
	if len(sections) >= 2 {
		r := redline.Compare(sections[0].Text, sections[1].Text)
		out.Result = &r
	}
	return out, nil
}

// Audit returns the quantitative audit for ticker, preferring a stored one.
func (p *Pipeline) Audit(ctx context.Context, ticker string) (*models.FinancialAudit, error) {
	ticker = utils.NormalizeTicker(ticker)
	if p.store != nil {
		if a, err := p.store.Financials(ticker); err == nil {
			p.logger.Debug().Str("ticker", ticker).Msg("financials served from snapshot")
			return a, nil
		}
	}
	cik, err := p.resolver.Resolve(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ticker, err)
	}
	return p.auditCIK(ctx, cik)
}

// RunHoldings diffs the two most recent 13F-HR information tables of a
// manager given by ticker or CIK.
func (p *Pipeline) RunHoldings(ctx context.Context, tickerOrCIK string) (*models.HoldingsDelta, error) {
	id := utils.NormalizeTicker(tickerOrCIK)
	cik, err := p.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}
	hint := id
	if utils.IsCIK(id) {
		hint = ""
	}
	return p.holdingsCIK(ctx, cik, hint)
}

func (p *Pipeline) holdingsCIK(ctx context.Context, cik, ticker string) (*models.HoldingsDelta, error) {
	located, err := p.locator.Locate(ctx, cik, HoldingsForm, 2, ticker)
	if err != nil {
		return nil, err
	}

	tables := make([][]models.Holding, 0, 2)
	for _, f := range located.Filings {
		if len(tables) == 2 {
			break
		}
		doc, err := edgar.HoldingsDocument(ctx, p.fetcher, f.FolderURL)
		if err != nil {
			return nil, err
		}
		res := holdings.Parse(doc)
		if res.Err != nil {
			p.logger.Warn().Err(res.Err).Str("accession", f.Accession).Msg("information table unreadable")
		}
		tables = append(tables, res.Holdings)
	}

	var current, previous []models.Holding
	if len(tables) > 0 {
		current = tables[0]
	}
	if len(tables) > 1 {
		previous = tables[1]
	}
	d, err := holdings.Diff(current, previous)
	if err != nil {
		return nil, fmt.Errorf("cik %s: %w", cik, err)
	}
	return &d, nil
}
