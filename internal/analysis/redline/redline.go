// Package redline compares the narrative risk sections of two consecutive
// filings and flags risk language that appeared or quietly disappeared.
package redline

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/seenimoa/edgarwatch/internal/extract"
	"github.com/seenimoa/edgarwatch/pkg/models"
)

const (
	// MaxHits caps escalations and silent deletions independently.
	MaxHits = 10
	// HitTextChars is the longest sentence excerpt kept per hit.
	HitTextChars = 200

	diffLines      = 100
	diffContext    = 1
	diffPreviewMax = 3000
	diffFromFile   = "Previous Period"
	diffToFile     = "Current Period"
)

// DefaultVocabulary is the escalation vocabulary in match priority order.
var DefaultVocabulary = []string{
	"going concern",
	"substantial doubt",
	"material weakness",
	"liquidity risk",
	"default",
	"bankruptcy",
	"impairment",
	"restructuring",
	"layoffs",
	"workforce reduction",
}

// Compare diffs current against previous using DefaultVocabulary.
func Compare(current, previous string) models.RedlineResult {
	return CompareWith(DefaultVocabulary, current, previous)
}

// CompareWith diffs current against previous. Both texts are normalized and
// split into sentence sets; sentences only in current are additions, those
// only in previous are removals. Each added or removed sentence is reported
// at most once, under the first vocabulary term it contains.
func CompareWith(vocabulary []string, current, previous string) models.RedlineResult {
	curr := extract.Normalize(current)
	prev := extract.Normalize(previous)

	currSet := sentenceSet(curr)
	prevSet := sentenceSet(prev)
	added := difference(currSet, prevSet)
	removed := difference(prevSet, currSet)

	escalations := scan(added, vocabulary)
	deletions := scan(removed, vocabulary)

	return models.RedlineResult{
		AddedCount:      len(added),
		RemovedCount:    len(removed),
		Escalations:     escalations,
		SilentDeletions: deletions,
		DiffPreview:     preview(prev, curr),
		RiskScore:       2*len(escalations) + len(deletions),
	}
}

func sentenceSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range extract.SplitSentences(text) {
		set[s] = struct{}{}
	}
	return set
}

// difference returns a - b in lexicographic order.
func difference(a, b map[string]struct{}) []string {
	var out []string
	for s := range a {
		if _, ok := b[s]; !ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func scan(sentences, vocabulary []string) []models.KeywordHit {
	hits := []models.KeywordHit{}
	for _, s := range sentences {
		if len(hits) >= MaxHits {
			break
		}
		lower := strings.ToLower(s)
		for _, kw := range vocabulary {
			if strings.Contains(lower, kw) {
				hits = append(hits, models.KeywordHit{Keyword: kw, Text: clip(s, HitTextChars)})
				break
			}
		}
	}
	return hits
}

// preview renders a unified diff over the first lines of each text.
func preview(prev, curr string) string {
	ud := difflib.UnifiedDiff{
		A:        lines(prev),
		B:        lines(curr),
		FromFile: diffFromFile,
		ToFile:   diffToFile,
		Context:  diffContext,
	}
	out, err := difflib.GetUnifiedDiffString(ud)
	if err != nil || out == "" {
		return ""
	}

	rows := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(rows) > diffLines {
		rows = rows[:diffLines]
	}
	return clip(strings.Join(rows, "\n"), diffPreviewMax)
}

func lines(text string) []string {
	parts := strings.Split(text, "\n")
	if len(parts) > diffLines {
		parts = parts[:diffLines]
	}
	for i := range parts {
		parts[i] += "\n"
	}
	return parts
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
