package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/seenimoa/edgarwatch/pkg/models"
)

// FactsTaxonomy is the XBRL taxonomy read from company facts.
const FactsTaxonomy = "us-gaap"

// CompanyFactsURL returns the XBRL company facts URL for cik.
func CompanyFactsURL(cik string) string {
	return fmt.Sprintf("%s/CIK%s.json", companyFactsURL, models.PadCIK(cik))
}

// CompanyFacts fetches the filer's XBRL facts and flattens the us-gaap
// taxonomy into a fact set. An unavailable record is returned as an error
// wrapping fetch.ErrUnavailable.
func CompanyFacts(ctx context.Context, f Fetcher, cik string) (models.FinancialFactSet, error) {
	var resp companyFactsResponse
	if err := f.FetchJSON(ctx, CompanyFactsURL(cik), &resp); err != nil {
		return nil, fmt.Errorf("edgar: company facts for %s: %w", cik, err)
	}
	return factSet(resp), nil
}

// ParseCompanyFacts decodes a company facts document into a fact set.
func ParseCompanyFacts(data []byte) (models.FinancialFactSet, error) {
	var resp companyFactsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("edgar: parse company facts: %w", err)
	}
	return factSet(resp), nil
}

// factSet flattens concept -> unit -> values into concept -> values. Units
// are visited in sorted order and values without a number are dropped.
func factSet(resp companyFactsResponse) models.FinancialFactSet {
	out := models.FinancialFactSet{}
	for concept, f := range resp.Facts[FactsTaxonomy] {
		units := make([]string, 0, len(f.Units))
		for u := range f.Units {
			units = append(units, u)
		}
		sort.Strings(units)

		var values []models.FactValue
		for _, u := range units {
			for _, v := range f.Units[u] {
				if v.Val == nil {
					continue
				}
				values = append(values, models.FactValue{End: v.End, Val: *v.Val, Unit: u})
			}
		}
		if len(values) > 0 {
			out[concept] = values
		}
	}
	return out
}

// HoldingsDocument returns the 13F information table of the filing in
// folderURL. It lists the folder through index.json and fetches the first
// file whose name contains "infotable" and ends in ".xml". It returns "" and
// a nil error when the folder has no such file or is a placeholder.
func HoldingsDocument(ctx context.Context, f Fetcher, folderURL string) (string, error) {
	if folderURL == "" || folderURL == models.PlaceholderURL {
		return "", nil
	}
	if !strings.HasSuffix(folderURL, "/") {
		folderURL += "/"
	}

	var idx folderIndex
	if err := f.FetchJSON(ctx, folderURL+"index.json", &idx); err != nil {
		return "", fmt.Errorf("edgar: list %s: %w", folderURL, err)
	}
	for _, item := range idx.Directory.Item {
		name := strings.ToLower(item.Name)
		if !strings.Contains(name, "infotable") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		body, err := f.Fetch(ctx, folderURL+item.Name)
		if err != nil {
			return "", fmt.Errorf("edgar: fetch %s: %w", item.Name, err)
		}
		return string(body), nil
	}
	return "", nil
}
