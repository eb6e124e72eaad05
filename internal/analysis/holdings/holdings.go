// Package holdings parses 13F information tables and computes the
// period-over-period position changes of an institutional manager.
package holdings

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/seenimoa/edgarwatch/pkg/models"
	"github.com/seenimoa/edgarwatch/pkg/utils"
)

var (
	// ErrMalformed is reported when an information table cannot be parsed.
	ErrMalformed = errors.New("holdings: malformed information table")
	// ErrNoCurrent is returned by Diff when the current period has no rows.
	ErrNoCurrent = errors.New("holdings: no current holdings data")
)

// TopN caps every ranked list of a HoldingsDelta.
const TopN = 5

// ValueScale converts reported values (thousands of dollars) to dollars.
const ValueScale = 1000

var namespaceDecl = regexp.MustCompile(`\sxmlns(:\w+)?="[^"]*"`)

// ParseResult carries the rows read from an information table. Err is set
// when the document was malformed, in which case Holdings is empty.
type ParseResult struct {
	Holdings []models.Holding
	Err      error
}

// Parse reads every infoTable element of a 13F information table. Tag
// matching ignores case and namespace prefixes; field elements may be nested
// anywhere inside the row (share counts sit under shrsOrPrnAmt). Rows without
// an issuer are skipped.
func Parse(doc string) ParseResult {
	res := ParseResult{Holdings: []models.Holding{}}
	if strings.TrimSpace(doc) == "" {
		return res
	}

	dec := xml.NewDecoder(strings.NewReader(namespaceDecl.ReplaceAllString(doc, "")))
	// Older filers declare US-ASCII or ISO-8859-1.
	dec.CharsetReader = charset.NewReaderLabel

	var (
		row   *rawRow
		depth int // depth of the open infoTable element
		level int
		field string
		text  strings.Builder
		rows  []rawRow
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ParseResult{Holdings: []models.Holding{}, Err: fmt.Errorf("%w: %w", ErrMalformed, err)}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			level++
			name := strings.ToLower(t.Name.Local)
			switch {
			case row == nil && strings.Contains(name, "infotable"):
				row, depth = &rawRow{}, level
			case row != nil && field == "" && isField(name):
				field = name
				text.Reset()
			}
		case xml.CharData:
			if field != "" {
				text.Write(t)
			}
		case xml.EndElement:
			name := strings.ToLower(t.Name.Local)
			if row != nil && field == name {
				row.set(field, strings.TrimSpace(text.String()))
				field = ""
			}
			if row != nil && level == depth {
				rows = append(rows, *row)
				row = nil
			}
			level--
		}
	}

	out := make([]models.Holding, 0, len(rows))
	for _, r := range rows {
		h, ok, err := r.holding()
		if err != nil {
			return ParseResult{Holdings: []models.Holding{}, Err: fmt.Errorf("%w: %w", ErrMalformed, err)}
		}
		if ok {
			out = append(out, h)
		}
	}
	res.Holdings = out
	return res
}

// --- Raw rows ---

const (
	fieldIssuer = "nameofissuer"
	fieldClass  = "titleofclass"
	fieldCUSIP  = "cusip"
	fieldValue  = "value"
	fieldShares = "sshprnamt"
)

func isField(name string) bool {
	switch name {
	case fieldIssuer, fieldClass, fieldCUSIP, fieldValue, fieldShares:
		return true
	}
	return false
}

type rawRow struct {
	issuer, class, cusip, value, shares string
}

// set keeps the first occurrence of each field.
func (r *rawRow) set(field, v string) {
	var dst *string
	switch field {
	case fieldIssuer:
		dst = &r.issuer
	case fieldClass:
		dst = &r.class
	case fieldCUSIP:
		dst = &r.cusip
	case fieldValue:
		dst = &r.value
	case fieldShares:
		dst = &r.shares
	}
	if dst != nil && *dst == "" {
		*dst = v
	}
}

func (r rawRow) holding() (models.Holding, bool, error) {
	if r.issuer == "" {
		return models.Holding{}, false, nil
	}
	value, err := parseInt(r.value)
	if err != nil {
		return models.Holding{}, false, fmt.Errorf("value of %s: %w", r.issuer, err)
	}
	shares, err := parseInt(r.shares)
	if err != nil {
		return models.Holding{}, false, fmt.Errorf("shares of %s: %w", r.issuer, err)
	}
	return models.Holding{
		Issuer: r.issuer,
		Class:  r.class,
		CUSIP:  r.cusip,
		Value:  value * ValueScale,
		Shares: shares,
	}, true, nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// --- Diff ---

type position struct {
	issuer string
	shares int64
	value  int64
}

// index groups holdings by CUSIP; rows without one are ignored. Rows sharing
// a CUSIP are summed, not last-row-wins: filings with other included
// managers split one position over several rows.
func index(hs []models.Holding) map[string]position {
	m := make(map[string]position, len(hs))
	for _, h := range hs {
		if h.CUSIP == "" {
			continue
		}
		p := m[h.CUSIP]
		if p.issuer == "" {
			p.issuer = h.Issuer
		}
		p.shares += h.Shares
		p.value += h.Value
		m[h.CUSIP] = p
	}
	return m
}

// Diff compares two holdings snapshots. Positions with no share change are
// omitted. Changes are ranked by absolute share delta, ties by CUSIP.
func Diff(current, previous []models.Holding) (models.HoldingsDelta, error) {
	if len(current) == 0 {
		return models.HoldingsDelta{}, ErrNoCurrent
	}

	curr, prev := index(current), index(previous)
	cusips := make([]string, 0, len(curr)+len(prev))
	for c := range curr {
		cusips = append(cusips, c)
	}
	for c := range prev {
		if _, ok := curr[c]; !ok {
			cusips = append(cusips, c)
		}
	}
	sort.Strings(cusips)

	var (
		changes      []models.HoldingChange
		bought, sold int64
	)
	for _, c := range cusips {
		cp, pp := curr[c], prev[c]
		delta := cp.shares - pp.shares
		if delta == 0 {
			continue
		}

		pct := 100.0
		if pp.shares > 0 {
			pct = utils.Round(float64(delta)/float64(pp.shares)*100, 1)
		}
		action := models.ActionSell
		if delta > 0 {
			action = models.ActionBuy
			bought += delta
		} else {
			sold -= delta
		}

		issuer := cp.issuer
		if issuer == "" {
			issuer = pp.issuer
		}
		if issuer == "" {
			issuer = "Unknown"
		}

		changes = append(changes, models.HoldingChange{
			Issuer:         issuer,
			CUSIP:          c,
			CurrentShares:  cp.shares,
			PreviousShares: pp.shares,
			Delta:          delta,
			DeltaPct:       pct,
			CurrentValue:   cp.value,
			Action:         action,
		})
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return abs(changes[i].Delta) > abs(changes[j].Delta)
	})

	net := bought - sold
	return models.HoldingsDelta{
		TotalPositions:   len(current),
		ChangesCount:     len(changes),
		TopBuys:          top(changes, func(c models.HoldingChange) bool { return c.Action == models.ActionBuy }),
		TopSells:         top(changes, func(c models.HoldingChange) bool { return c.Action == models.ActionSell }),
		NewPositions:     top(changes, func(c models.HoldingChange) bool { return c.PreviousShares == 0 }),
		Exits:            top(changes, func(c models.HoldingChange) bool { return c.CurrentShares == 0 }),
		NetConviction:    net,
		ConvictionSignal: Signal(net),
	}, nil
}

// Signal maps net share conviction to a directional label.
func Signal(net int64) string {
	switch {
	case net > 0:
		return models.SignalBullish
	case net < 0:
		return models.SignalBearish
	default:
		return models.SignalNeutral
	}
}

func top(changes []models.HoldingChange, keep func(models.HoldingChange) bool) []models.HoldingChange {
	out := []models.HoldingChange{}
	for _, c := range changes {
		if len(out) == TopN {
			break
		}
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
