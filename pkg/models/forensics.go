package models

import "time"

// --- Textual redline ---

// KeywordHit is a sentence that matched the risk vocabulary.
type KeywordHit struct {
	Keyword string `json:"keyword"`
	Text    string `json:"text"`
}

// RedlineResult summarizes how a narrative section changed between two periods.
type RedlineResult struct {
	AddedCount      int          `json:"added_count"`
	RemovedCount    int          `json:"removed_count"`
	Escalations     []KeywordHit `json:"escalations"`
	SilentDeletions []KeywordHit `json:"silent_deletions"`
	DiffPreview     string       `json:"diff_preview"`
	RiskScore       int          `json:"risk_score"` // 2*len(Escalations) + len(SilentDeletions)
}

// --- Quantitative audit ---

// FactValue is one reported value of an accounting concept.
type FactValue struct {
	End  string  `json:"end"`
	Val  float64 `json:"val"`
	Unit string  `json:"unit"` // "USD", "shares", "pure"
}

// FinancialFactSet maps a standardized concept name (e.g. "AssetsCurrent")
// to its reported values across periods and units.
type FinancialFactSet map[string][]FactValue

// Alert severities and types raised by the quantitative audit.
const (
	SeverityHigh = "HIGH"

	AlertLiquidity = "LIQUIDITY_ALERT"
	AlertCashBurn  = "CASH_BURN_ALERT"
)

// Alert is a threshold breach found by the audit.
type Alert struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// FinancialAudit is the liquidity and cash-trend summary of one filer.
type FinancialAudit struct {
	CurrentAssets      string   `json:"current_assets"`
	CurrentLiabilities string   `json:"current_liabilities"`
	Cash               string   `json:"cash"`
	TotalDebt          string   `json:"total_debt"`
	TotalAssets        string   `json:"total_assets"`
	LiquidityRatio     *float64 `json:"liquidity_ratio"`
	CashChangePct      *float64 `json:"cash_change_pct"`
	Alerts             []Alert  `json:"alerts"`
	HealthScore        int      `json:"health_score"` // 10 - 3*len(Alerts), not clamped
}

// --- 13F holdings ---

// Holding is one position from a 13F information table.
type Holding struct {
	Issuer string `json:"issuer"`
	Class  string `json:"class,omitempty"`
	CUSIP  string `json:"cusip,omitempty"`
	Value  int64  `json:"value"` // whole dollars (reported in thousands, scaled x1000)
	Shares int64  `json:"shares"`
}

// Holding change actions.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Conviction signals.
const (
	SignalBullish = "BULLISH"
	SignalBearish = "BEARISH"
	SignalNeutral = "NEUTRAL"
)

// HoldingChange is the period-over-period change of one CUSIP.
type HoldingChange struct {
	Issuer         string  `json:"issuer"`
	CUSIP          string  `json:"cusip"`
	CurrentShares  int64   `json:"current_shares"`
	PreviousShares int64   `json:"previous_shares"`
	Delta          int64   `json:"delta"`
	DeltaPct       float64 `json:"delta_pct"`
	CurrentValue   int64   `json:"current_value"`
	Action         string  `json:"action"`
}

// HoldingsDelta aggregates position changes between two 13F snapshots.
type HoldingsDelta struct {
	TotalPositions   int             `json:"total_positions"`
	ChangesCount     int             `json:"changes_count"`
	TopBuys          []HoldingChange `json:"top_buys"`
	TopSells         []HoldingChange `json:"top_sells"`
	NewPositions     []HoldingChange `json:"new_positions"`
	Exits            []HoldingChange `json:"exits"`
	NetConviction    int64           `json:"net_conviction"`
	ConvictionSignal string          `json:"conviction_signal"`
}

// --- Narrative ---

// Intelligence is the synthesized commentary for one ticker.
type Intelligence struct {
	GeneratedAt float64 `json:"generated_at"` // unix seconds
	ScoopLeads  string  `json:"scoop_leads"`
	Model       string  `json:"model"`
}

// GeneratedTime returns GeneratedAt as a time.Time.
func (i Intelligence) GeneratedTime() time.Time {
	sec := int64(i.GeneratedAt)
	nsec := int64((i.GeneratedAt - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// TickerReport bundles everything the pipeline produced for one ticker.
type TickerReport struct {
	RunID        string              `json:"run_id"`
	Ticker       string              `json:"ticker"`
	CIK          string              `json:"cik"`
	Strategy     string              `json:"strategy"` // locator strategy that produced Filings
	Filings      []FilingDescriptor  `json:"filings"`
	Risks        map[string]string   `json:"risks"` // accession -> extracted text
	Sections     []ExtractedSection  `json:"sections,omitempty"`
	Redline      *RedlineResult      `json:"redline,omitempty"`
	Financials   *FinancialAudit     `json:"financials,omitempty"`
	Holdings     *HoldingsDelta      `json:"holdings,omitempty"`
	Intelligence *Intelligence       `json:"intelligence,omitempty"`
	Warnings     []string            `json:"warnings,omitempty"`
	FetchedAt    time.Time           `json:"fetched_at"`
}
