package config

import (
	"sort"
	"strings"
)

// TickerTable is an immutable ticker -> CIK mapping consulted before any
// network lookup. Keys are upper-case; values are unpadded CIKs.
type TickerTable struct {
	entries map[string]string
}

// NewTickerTable builds a table from a copy of m. Tickers are upper-cased.
func NewTickerTable(m map[string]string) TickerTable {
	entries := make(map[string]string, len(m))
	for k, v := range m {
		entries[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return TickerTable{entries: entries}
}

// Lookup returns the CIK for a normalized ticker.
func (t TickerTable) Lookup(ticker string) (string, bool) {
	cik, ok := t.entries[ticker]
	return cik, ok
}

// Len returns the number of entries.
func (t TickerTable) Len() int { return len(t.entries) }

// Tickers returns the table's tickers in sorted order.
func (t TickerTable) Tickers() []string {
	out := make([]string, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// With returns a new table with extra entries layered on top. The receiver is
// left unchanged.
func (t TickerTable) With(extra map[string]string) TickerTable {
	merged := make(map[string]string, len(t.entries)+len(extra))
	for k, v := range t.entries {
		merged[k] = v
	}
	for k, v := range extra {
		merged[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return TickerTable{entries: merged}
}

// DefaultTickerTable returns the curated table of large US filers.
func DefaultTickerTable() TickerTable {
	return NewTickerTable(map[string]string{
		"AAPL": "320193", "MSFT": "789019", "GOOGL": "1652044", "AMZN": "1018724",
		"META": "1326801", "TSLA": "1318605", "NVDA": "1045810", "JPM": "19617",
		"V": "1403161", "JNJ": "200406", "WMT": "104169", "PG": "80424",
		"MA": "1141391", "UNH": "731766", "HD": "354950", "BAC": "70858",
		"XOM": "34088", "PFE": "78003", "ABBV": "1551152", "CVX": "93410",
		"KO": "21344", "PEP": "77476", "COST": "909832", "MRK": "310158",
		"AVGO": "1441634", "TMO": "97745", "CSCO": "858877", "MCD": "63908",
		"ABT": "1800", "DHR": "313616", "ACN": "1467373", "NKE": "320187",
		"LLY": "59478", "TXN": "97476", "ORCL": "1341439", "PM": "1413329",
		"NEE": "753308", "IBM": "51143", "QCOM": "804328", "HON": "773840",
		"INTC": "50863", "AMD": "2488", "CRM": "1108524", "NFLX": "1065280",
		"GM": "1467858", "F": "37996", "GS": "886982", "MS": "895421",
		"BRK-A": "1067983", "BRK-B": "1067983", "BRKB": "1067983",
	})
}
