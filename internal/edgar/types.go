package edgar

import "encoding/json"

// --- CIK / Ticker Mapping ---

// tickerEntry is a row of company_tickers.json, which is an object keyed by
// row number: {"0": {"cik_str": 320193, "ticker": "AAPL", ...}, ...}.
type tickerEntry struct {
	CIK    json.Number `json:"cik_str"` // a number in practice, occasionally quoted
	Ticker string      `json:"ticker"`
	Title  string      `json:"title"`
}

// --- EDGAR Submissions (data.sec.gov/submissions) ---

// submissionsResponse is the response from the company submissions endpoint.
type submissionsResponse struct {
	CIK     string   `json:"cik"`
	Name    string   `json:"name"`
	Tickers []string `json:"tickers"`
	Filings filings  `json:"filings"`
}

type filings struct {
	Recent filingSet `json:"recent"`
}

// filingSet holds the recent filings as parallel arrays, newest first.
type filingSet struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// --- EDGAR Company Facts (XBRL) ---

// companyFactsResponse is the response from the company facts endpoint.
type companyFactsResponse struct {
	CIK        int                        `json:"cik"`
	EntityName string                     `json:"entityName"`
	Facts      map[string]map[string]fact `json:"facts"` // taxonomy -> concept -> fact
}

type fact struct {
	Label string                `json:"label"`
	Units map[string][]factUnit `json:"units"` // unit type ("USD", "shares") -> values
}

type factUnit struct {
	Start string   `json:"start,omitempty"`
	End   string   `json:"end"`
	Val   *float64 `json:"val"`
	Accn  string   `json:"accn"`
	FY    int      `json:"fy"`
	FP    string   `json:"fp"` // "Q1", "Q2", "Q3", "FY"
	Form  string   `json:"form"`
	Filed string   `json:"filed"`
}

// --- Archive folder listing ---

// folderIndex is the index.json served for every archive folder.
type folderIndex struct {
	Directory struct {
		Name string `json:"name"`
		Item []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"item"`
	} `json:"directory"`
}
