// Package edgar discovers filings in SEC EDGAR: it resolves tickers to CIKs,
// locates recent filings of a form through a cascade of strategies and
// retrieves structured XBRL facts and 13F information tables.
//
// SEC requires a User-Agent naming a contact on every request and limits
// clients to 10 requests per second; both are enforced by the fetcher.
package edgar

import (
	"context"
	"errors"
)

// EDGAR endpoints.
const (
	wwwBaseURL        = "https://www.sec.gov"
	dataBaseURL       = "https://data.sec.gov"
	companyTickersURL = wwwBaseURL + "/files/company_tickers.json"
	browseURL         = wwwBaseURL + "/cgi-bin/browse-edgar"
	submissionsURL    = dataBaseURL + "/submissions"
	companyFactsURL   = dataBaseURL + "/api/xbrl/companyfacts"
)

var (
	// ErrNotFound is returned when a ticker cannot be mapped to a CIK.
	ErrNotFound = errors.New("edgar: identifier not found")
	// ErrNoFilings is returned when every locator strategy came back empty.
	ErrNoFilings = errors.New("edgar: no filings found")
)

// Fetcher retrieves raw documents. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	FetchJSON(ctx context.Context, url string, dest any) error
}
