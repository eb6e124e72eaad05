// Package narrative turns the forensic findings for one ticker into
// editorial "scoop leads" through a hosted language model.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/edgarwatch/internal/infra"
	"github.com/seenimoa/edgarwatch/internal/llm"
	"github.com/seenimoa/edgarwatch/pkg/models"
)

// SystemPrompt instructs the model to act as an investigative editor.
const SystemPrompt = `You are an Investigative Editor at a financial news desk. Find newsworthy stories from SEC filings.
Be specific and highlight red flags.

Review the data below. Flag if whales are selling while management adds "Going Concern" risk language.

Provide exactly 3 'Scoop Leads' with:
1. A catchy headline
2. 2-3 sentence explanation
3. Significance for investors`

// NoFindings is the context sent when there is nothing to report.
const NoFindings = "No significant findings."

const (
	contextHits     = 5
	contextHitChars = 150
)

// Findings are the engine outputs the editor writes about. Nil fields are
// left out of the context.
type Findings struct {
	Redline    *models.RedlineResult
	Financials *models.FinancialAudit
	Holdings   *models.HoldingsDelta
}

// Editor produces scoop leads from findings.
type Editor struct {
	gen         llm.Generator
	model       string
	temperature float64
	maxTokens   int
	logger      *infra.Logger
	now         func() time.Time
}

// Option configures an Editor.
type Option func(*Editor)

// WithModel overrides the generator's default model.
func WithModel(model string) Option {
	return func(e *Editor) { e.model = model }
}

// WithSampling sets temperature and the output token cap.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(e *Editor) {
		e.temperature = temperature
		e.maxTokens = maxTokens
	}
}

// WithLogger sets the logger.
func WithLogger(l *infra.Logger) Option {
	return func(e *Editor) { e.logger = l.Component("narrative") }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// NewEditor creates an Editor. gen may be nil, in which case every call
// returns an explanatory message instead of leads.
func NewEditor(gen llm.Generator, opts ...Option) *Editor {
	e := &Editor{
		gen:         gen,
		temperature: 0.3,
		maxTokens:   1000,
		logger:      infra.NewSilentLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScoopLeads asks the model for three story leads. It never fails: any
// error is reported as the text of the returned Intelligence.
func (e *Editor) ScoopLeads(ctx context.Context, f Findings) models.Intelligence {
	out := models.Intelligence{
		GeneratedAt: float64(e.now().UnixNano()) / 1e9,
		Model:       e.model,
	}
	if e.gen == nil {
		out.ScoopLeads = "Narrative synthesis unavailable: no LLM API key configured."
		return out
	}

	resp, err := e.gen.Generate(ctx, llm.Request{
		System:      SystemPrompt,
		User:        "DATA:\n" + BuildContext(f),
		Model:       e.model,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("scoop lead generation failed")
		out.ScoopLeads = errorMessage(err)
		return out
	}

	e.logger.Debug().Str("response", resp.String()).Msg("scoop leads generated")
	out.ScoopLeads = resp.Content
	if resp.Model != "" {
		out.Model = resp.Model
	}
	return out
}

// BuildContext renders findings as the plain-text briefing sent to the model.
func BuildContext(f Findings) string {
	var parts []string

	if r := f.Redline; r != nil {
		parts = append(parts, "## RISK FACTOR CHANGES")
		if len(r.Escalations) > 0 {
			parts = append(parts, "NEW RISK ESCALATIONS:")
			parts = append(parts, hitLines(r.Escalations)...)
		}
		if len(r.SilentDeletions) > 0 {
			parts = append(parts, "\nSILENT DELETIONS:")
			parts = append(parts, hitLines(r.SilentDeletions)...)
		}
	}

	if a := f.Financials; a != nil && len(a.Alerts) > 0 {
		parts = append(parts, "\n## FINANCIAL ALERTS")
		for _, alert := range a.Alerts {
			parts = append(parts, fmt.Sprintf("🚨 %s: %s", alert.Type, alert.Message))
		}
	}

	if h := f.Holdings; h != nil {
		signal := h.ConvictionSignal
		if signal == "" {
			signal = "N/A"
		}
		parts = append(parts, "\n## 13-F WHALE ACTIVITY", "Net Conviction: "+signal)
	}

	if len(parts) == 0 {
		return NoFindings
	}
	return strings.Join(parts, "\n")
}

func hitLines(hits []models.KeywordHit) []string {
	if len(hits) > contextHits {
		hits = hits[:contextHits]
	}
	lines := make([]string, len(hits))
	for i, h := range hits {
		text := h.Text
		if len(text) > contextHitChars {
			text = text[:contextHitChars]
		}
		lines[i] = fmt.Sprintf("- %s: %s...", strings.ToUpper(h.Keyword), text)
	}
	return lines
}

func errorMessage(err error) string {
	return fmt.Sprintf(`⚠️ **LLM Error**

%v

**Troubleshooting:**
1. Check your OpenRouter or Gemini API key
2. Ensure you have credits (if not using a free model)`, err)
}
