// Package extract turns filing markup into comparable plain text: it isolates
// the risk-factor section of a periodic report, normalizes text and splits it
// into sentences for the redline engine.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/seenimoa/edgarwatch/pkg/models"
)

const (
	// MaxSectionChars caps the length of any extracted section.
	MaxSectionChars = 25000
	// WholeDocumentChars is how much of the document head is kept when no
	// section marker is found.
	WholeDocumentChars = 15000
	// minSectionChars is the shortest capture accepted as a real section;
	// shorter matches are usually table-of-contents entries.
	minSectionChars = 500
	// minSentenceChars drops fragments such as headings and list markers.
	minSentenceChars = 20
)

var (
	// \s is ASCII-only in RE2; \p{Z} adds the no-break and other Unicode
	// spaces that filing markup is full of.
	whitespaceRun = regexp.MustCompile(`[\s\p{Z}]+`)
	disallowed    = regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:'"-]`)
	sentenceBreak = regexp.MustCompile(`[.!?]+`)
	riskFactors   = regexp.MustCompile(`(?i)risk factors`)

	sectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Item[\s\p{Z}]+1A[.\s\p{Z}]+Risk[\s\p{Z}]+Factors(.*?)(?:Item[\s\p{Z}]+1B|Item[\s\p{Z}]+2[.\s\p{Z}])`),
		regexp.MustCompile(`(?is)ITEM[\s\p{Z}]+1A(.*?)(?:ITEM[\s\p{Z}]+1B|ITEM[\s\p{Z}]+2)`),
	}
)

// Normalize collapses whitespace runs (Unicode spaces included) to a single
// space, lowercases, strips characters other than letters, digits, '_',
// whitespace and . , ; : ' " -, and trims.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	// Lowercase first: a few capitals lower to a letter plus a combining
	// mark, which the strip below must see.
	text = strings.ToLower(text)
	text = disallowed.ReplaceAllString(text, "")
	// Stripping can leave adjacent spaces behind.
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SplitSentences splits text on runs of terminal punctuation and keeps the
// trimmed fragments longer than 20 characters, in order.
func SplitSentences(text string) []string {
	parts := sentenceBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) > minSentenceChars {
			out = append(out, p)
		}
	}
	return out
}

// Text returns the visible text of an HTML document with text nodes joined
// by single spaces and whitespace collapsed. Input that does not parse as
// markup is returned with whitespace collapsed.
func Text(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return collapse(markup)
	}
	doc.Find("script, style").Remove()

	var b strings.Builder
	doc.Contents().Each(func(_ int, s *goquery.Selection) {
		appendText(&b, s)
	})
	return collapse(b.String())
}

func appendText(b *strings.Builder, s *goquery.Selection) {
	for _, n := range s.Nodes {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
	}
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		appendText(b, c)
	})
}

// ExtractSection isolates the risk-factor section of a filing. It never
// fails: for non-empty input it returns non-empty text of at most
// MaxSectionChars characters, with Confidence recording which rule applied.
func ExtractSection(markup string) models.ExtractedSection {
	text := Text(markup)
	if text == "" {
		// Markup with no text nodes still yields something to compare.
		// Whitespace-only input is kept as is.
		head := strings.TrimSpace(markup)
		if head == "" {
			head = markup
		}
		return models.ExtractedSection{
			Text:       truncate(head, WholeDocumentChars),
			Confidence: models.ConfidenceWholeDocument,
		}
	}

	for _, re := range sectionPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil || len(m[1]) <= minSectionChars {
			continue
		}
		if section := strings.TrimSpace(m[1]); section != "" {
			return models.ExtractedSection{
				Text:       truncate(section, MaxSectionChars),
				Confidence: models.ConfidencePatternMatch,
			}
		}
	}

	if loc := riskFactors.FindStringIndex(text); loc != nil && loc[0] > 0 {
		return models.ExtractedSection{
			Text:       truncate(text[loc[0]:], MaxSectionChars),
			Confidence: models.ConfidenceGenericFallback,
		}
	}

	return models.ExtractedSection{
		Text:       truncate(text, WholeDocumentChars),
		Confidence: models.ConfidenceWholeDocument,
	}
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
