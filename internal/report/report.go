package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/seenimoa/edgarwatch/internal/analysis/audit"
	"github.com/seenimoa/edgarwatch/pkg/models"
)

// ErrNoReport is returned when there is nothing to render.
var ErrNoReport = errors.New("report: nil ticker report")

// Format specifies the output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return FormatHTML, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("report: unknown format %q", s)
	}
}

// Section identifies a part of the dossier that can be toggled.
type Section string

const (
	SectionFilings      Section = "filings"
	SectionRedline      Section = "redline"
	SectionFinancials   Section = "financials"
	SectionHoldings     Section = "holdings"
	SectionIntelligence Section = "intelligence"
	SectionWarnings     Section = "warnings"
)

// AllSections returns all sections in display order.
func AllSections() []Section {
	return []Section{
		SectionFilings,
		SectionRedline,
		SectionFinancials,
		SectionHoldings,
		SectionIntelligence,
		SectionWarnings,
	}
}

// Config controls report generation.
type Config struct {
	Format   Format
	Sections []Section // default: all
	Title    string    // default: "<TICKER> Forensic Dossier"
	Author   string
	Chart    ChartConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Format:   FormatHTML,
		Sections: AllSections(),
		Author:   "edgarwatch",
		Chart:    DefaultChartConfig(),
	}
}

func (c Config) has(s Section) bool {
	if len(c.Sections) == 0 {
		return true
	}
	for _, sec := range c.Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// ════════════════════════════════════════════════════════════════════
// Template model
// ════════════════════════════════════════════════════════════════════

// Data is the flattened view passed to the templates.
type Data struct {
	Title       string
	Ticker      string
	CIK         string
	Author      string
	RunID       string
	Strategy    string
	FetchedAt   string
	GeneratedAt string
	Placeholder bool

	ShowFilings      bool
	ShowRedline      bool
	ShowFinancials   bool
	ShowHoldings     bool
	ShowIntelligence bool
	ShowWarnings     bool

	Filings []FilingRow

	Redline        *models.RedlineResult
	LowConfidence  []string // accessions whose section came from a fallback
	Financials     *models.FinancialAudit
	LiquidityRatio string
	CashChange     string
	HealthChart    template.HTML

	Holdings      *models.HoldingsDelta
	NetConviction string
	HoldingsChart template.HTML

	Intelligence *models.Intelligence
	LeadsAt      string

	Warnings []string
}

// FilingRow is one filing line in the dossier.
type FilingRow struct {
	Form      string
	Date      string
	Accession string
	URL       string
	Synthetic bool
}

// ════════════════════════════════════════════════════════════════════
// Generate
// ════════════════════════════════════════════════════════════════════

// Render dispatches on cfg.Format.
func Render(r *models.TickerReport, cfg Config) (string, error) {
	if cfg.Format == FormatText {
		return GenerateText(r, cfg)
	}
	return GenerateHTML(r, cfg)
}

// GenerateHTML renders a self-contained HTML dossier.
func GenerateHTML(r *models.TickerReport, cfg Config) (string, error) {
	if r == nil {
		return "", ErrNoReport
	}
	tmpl, err := template.New("dossier").Parse(DossierTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, BuildData(r, cfg, time.Now())); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// GenerateText renders a plain-text summary (terminal friendly).
func GenerateText(r *models.TickerReport, cfg Config) (string, error) {
	if r == nil {
		return "", ErrNoReport
	}
	return renderText(BuildData(r, cfg, time.Now())), nil
}

// BuildData flattens a ticker report for rendering.
func BuildData(r *models.TickerReport, cfg Config, now time.Time) Data {
	if cfg.Chart.Width == 0 {
		cfg.Chart = DefaultChartConfig()
	}
	d := Data{
		Title:       cfg.Title,
		Ticker:      r.Ticker,
		CIK:         r.CIK,
		Author:      cfg.Author,
		RunID:       r.RunID,
		Strategy:    r.Strategy,
		GeneratedAt: now.UTC().Format("2006-01-02 15:04 MST"),
		Warnings:    r.Warnings,
	}
	if d.Title == "" {
		d.Title = r.Ticker + " Forensic Dossier"
	}
	if !r.FetchedAt.IsZero() {
		d.FetchedAt = r.FetchedAt.UTC().Format("2006-01-02 15:04 MST")
	}

	if cfg.has(SectionFilings) && len(r.Filings) > 0 {
		d.ShowFilings = true
		for _, f := range r.Filings {
			row := FilingRow{Form: f.Form, Date: f.Date, Accession: f.Accession, URL: f.URL, Synthetic: f.IsPlaceholder()}
			if row.Synthetic {
				d.Placeholder = true
				row.URL = ""
			}
			d.Filings = append(d.Filings, row)
		}
	}

	if cfg.has(SectionRedline) && r.Redline != nil {
		d.ShowRedline = true
		d.Redline = r.Redline
		for _, s := range r.Sections {
			if s.LowConfidence() {
				d.LowConfidence = append(d.LowConfidence, s.Accession)
			}
		}
	}

	if cfg.has(SectionFinancials) && r.Financials != nil {
		d.ShowFinancials = true
		d.Financials = r.Financials
		d.LiquidityRatio = "N/A"
		if r.Financials.LiquidityRatio != nil {
			d.LiquidityRatio = fmt.Sprintf("%.2f", *r.Financials.LiquidityRatio)
		}
		d.CashChange = "N/A"
		if r.Financials.CashChangePct != nil {
			d.CashChange = fmt.Sprintf("%+.1f%%", *r.Financials.CashChangePct)
		}
		d.HealthChart = template.HTML(HealthGauge(r.Financials.HealthScore, audit.BaseHealthScore, 200))
	}

	if cfg.has(SectionHoldings) && r.Holdings != nil {
		d.ShowHoldings = true
		d.Holdings = r.Holdings
		d.NetConviction = fmt.Sprintf("%+d", r.Holdings.NetConviction)
		bars := append(append([]models.HoldingChange{}, r.Holdings.TopBuys...), r.Holdings.TopSells...)
		d.HoldingsChart = template.HTML(ChangeBarChart(bars, cfg.Chart))
	}

	if cfg.has(SectionIntelligence) && r.Intelligence != nil && r.Intelligence.ScoopLeads != "" {
		d.ShowIntelligence = true
		d.Intelligence = r.Intelligence
		if r.Intelligence.GeneratedAt > 0 {
			d.LeadsAt = r.Intelligence.GeneratedTime().UTC().Format("2006-01-02 15:04 MST")
		}
	}

	d.ShowWarnings = cfg.has(SectionWarnings) && len(r.Warnings) > 0
	return d
}

// ════════════════════════════════════════════════════════════════════
// Plain text
// ════════════════════════════════════════════════════════════════════

func renderText(d Data) string {
	var sb strings.Builder
	line := strings.Repeat("═", 60)

	sb.WriteString(line + "\n")
	fmt.Fprintf(&sb, "  %s\n", d.Title)
	fmt.Fprintf(&sb, "  %s  CIK %s", d.Ticker, d.CIK)
	if d.Strategy != "" {
		fmt.Fprintf(&sb, "  via %s", d.Strategy)
	}
	sb.WriteString("\n")
	if d.FetchedAt != "" {
		fmt.Fprintf(&sb, "  Fetched %s", d.FetchedAt)
		if d.RunID != "" {
			fmt.Fprintf(&sb, " (run %s)", d.RunID)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(line + "\n")

	if d.ShowFilings {
		sb.WriteString("\n📄 FILINGS\n")
		for _, f := range d.Filings {
			mark := ""
			if f.Synthetic {
				mark = "  [placeholder]"
			}
			fmt.Fprintf(&sb, "  %-8s %-12s %s%s\n", f.Form, f.Date, f.Accession, mark)
		}
	}

	if d.ShowRedline {
		r := d.Redline
		sb.WriteString("\n🔍 RISK REDLINE\n")
		fmt.Fprintf(&sb, "  Added %d, removed %d, risk score %d\n", r.AddedCount, r.RemovedCount, r.RiskScore)
		for _, h := range r.Escalations {
			fmt.Fprintf(&sb, "  🚨 [%s] %s\n", strings.ToUpper(h.Keyword), h.Text)
		}
		for _, h := range r.SilentDeletions {
			fmt.Fprintf(&sb, "  🕳  [%s] %s\n", strings.ToUpper(h.Keyword), h.Text)
		}
		if len(d.LowConfidence) > 0 {
			fmt.Fprintf(&sb, "  Low-confidence extraction: %s\n", strings.Join(d.LowConfidence, ", "))
		}
	}

	if d.ShowFinancials {
		f := d.Financials
		sb.WriteString("\n💰 FINANCIAL AUDIT\n")
		fmt.Fprintf(&sb, "  Current assets %s, current liabilities %s\n", f.CurrentAssets, f.CurrentLiabilities)
		fmt.Fprintf(&sb, "  Cash %s, total debt %s, total assets %s\n", f.Cash, f.TotalDebt, f.TotalAssets)
		fmt.Fprintf(&sb, "  Liquidity ratio %s, cash change %s, health %d/%d\n",
			d.LiquidityRatio, d.CashChange, f.HealthScore, audit.BaseHealthScore)
		for _, a := range f.Alerts {
			fmt.Fprintf(&sb, "  🚨 %s: %s\n", a.Type, a.Message)
		}
	}

	if d.ShowHoldings {
		h := d.Holdings
		sb.WriteString("\n🐋 13F ACTIVITY\n")
		fmt.Fprintf(&sb, "  %d positions, %d changes, net %s shares (%s)\n",
			h.TotalPositions, h.ChangesCount, d.NetConviction, h.ConvictionSignal)
		for _, c := range h.TopBuys {
			fmt.Fprintf(&sb, "  + %-30s %+d\n", c.Issuer, c.Delta)
		}
		for _, c := range h.TopSells {
			fmt.Fprintf(&sb, "  - %-30s %+d\n", c.Issuer, c.Delta)
		}
	}

	if d.ShowIntelligence {
		sb.WriteString("\n📰 SCOOP LEADS\n")
		sb.WriteString(d.Intelligence.ScoopLeads)
		sb.WriteString("\n")
	}

	if d.ShowWarnings {
		sb.WriteString("\n⚠️  WARNINGS\n")
		for _, w := range d.Warnings {
			fmt.Fprintf(&sb, "  - %s\n", w)
		}
	}

	sb.WriteString("\n" + line + "\n")
	fmt.Fprintf(&sb, "  Generated %s by %s\n", d.GeneratedAt, d.Author)
	return sb.String()
}
