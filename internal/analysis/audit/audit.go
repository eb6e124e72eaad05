// Package audit runs the quantitative checks on a filer's structured
// accounting facts: current liquidity and the period-over-period cash trend.
package audit

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/seenimoa/edgarwatch/pkg/models"
	"github.com/seenimoa/edgarwatch/pkg/utils"
)

// ErrNoFacts is returned when the fact set is empty.
var ErrNoFacts = errors.New("audit: no XBRL data available")

// Accounting concepts read by the audit.
const (
	ConceptCurrentAssets      = "AssetsCurrent"
	ConceptCurrentLiabilities = "LiabilitiesCurrent"
	ConceptCash               = "CashAndCashEquivalentsAtCarryingValue"
	ConceptLongTermDebt       = "LongTermDebt"
	ConceptTotalAssets        = "Assets"
)

// Thresholds.
const (
	MinCurrentRatio    = 1.0
	MaxCashDropPct     = -30.0
	BaseHealthScore    = 10
	HealthPenaltyAlert = 3

	historyDepth = 2
)

// UnitPriority is the order in which a concept's units are consulted.
var UnitPriority = []string{"USD", "shares", "pure"}

// Audit computes liquidity and cash-trend metrics from facts. The health
// score drops by 3 per alert and is not clamped.
func Audit(facts models.FinancialFactSet) (*models.FinancialAudit, error) {
	if len(facts) == 0 {
		return nil, ErrNoFacts
	}

	assets, hasAssets := Latest(facts, ConceptCurrentAssets)
	liabilities, hasLiabilities := Latest(facts, ConceptCurrentLiabilities)
	cash, hasCash := Latest(facts, ConceptCash)
	debt, hasDebt := Latest(facts, ConceptLongTermDebt)
	total, hasTotal := Latest(facts, ConceptTotalAssets)

	a := &models.FinancialAudit{
		CurrentAssets:      FormatMoney(ptr(assets, hasAssets)),
		CurrentLiabilities: FormatMoney(ptr(liabilities, hasLiabilities)),
		Cash:               FormatMoney(ptr(cash, hasCash)),
		TotalDebt:          FormatMoney(ptr(debt, hasDebt)),
		TotalAssets:        FormatMoney(ptr(total, hasTotal)),
		Alerts:             []models.Alert{},
	}

	// --- Liquidity ---
	if hasAssets && assets != 0 && hasLiabilities && liabilities > 0 {
		ratio := utils.Round(assets/liabilities, 2)
		a.LiquidityRatio = &ratio
		if ratio < MinCurrentRatio {
			a.Alerts = append(a.Alerts, models.Alert{
				Type:     models.AlertLiquidity,
				Severity: models.SeverityHigh,
				Message: fmt.Sprintf("Current Ratio %s < 1.0 - May struggle to meet short-term obligations",
					strconv.FormatFloat(ratio, 'f', -1, 64)),
			})
		}
	}

	// --- Cash trend ---
	if hist := History(facts, ConceptCash, historyDepth); len(hist) >= 2 && hist[1] > 0 {
		change := utils.Round((hist[0]-hist[1])/hist[1]*100, 1)
		a.CashChangePct = &change
		if change < MaxCashDropPct {
			a.Alerts = append(a.Alerts, models.Alert{
				Type:     models.AlertCashBurn,
				Severity: models.SeverityHigh,
				Message:  fmt.Sprintf("Cash dropped %.1f%% QoQ - Significant cash burn", math.Abs(change)),
			})
		}
	}

	a.HealthScore = BaseHealthScore - HealthPenaltyAlert*len(a.Alerts)
	return a, nil
}

// Latest returns the most recent value of concept in the first unit of
// UnitPriority that has any values. Ties on the period end keep the earlier
// reported value.
func Latest(facts models.FinancialFactSet, concept string) (float64, bool) {
	vals := newestFirst(facts[concept])
	if len(vals) == 0 {
		return 0, false
	}
	return vals[0].Val, true
}

// History returns up to n newest values of concept, newest first, with zero
// values dropped from that window.
func History(facts models.FinancialFactSet, concept string, n int) []float64 {
	vals := newestFirst(facts[concept])
	if len(vals) > n {
		vals = vals[:n]
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v.Val != 0 {
			out = append(out, v.Val)
		}
	}
	return out
}

// newestFirst picks the preferred unit and orders its values by period end,
// most recent first.
func newestFirst(values []models.FactValue) []models.FactValue {
	for _, unit := range UnitPriority {
		var picked []models.FactValue
		for _, v := range values {
			if v.Unit == unit {
				picked = append(picked, v)
			}
		}
		if len(picked) == 0 {
			continue
		}
		sort.SliceStable(picked, func(i, j int) bool { return picked[i].End > picked[j].End })
		return picked
	}
	return nil
}

// FormatMoney renders an amount compactly; nil renders as "N/A".
func FormatMoney(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return utils.FormatUSDCompact(*v)
}

func ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
