package edgar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/edgarwatch/internal/infra"
	"github.com/seenimoa/edgarwatch/pkg/models"
)

// SubmissionsStrategyName identifies the submissions API strategy.
const SubmissionsStrategyName = "submissions"

// SubmissionsStrategy walks the recent filings arrays of the submissions API.
// It is the only strategy that knows the true primary document name without
// a second request. Records are memoized per CIK so that several form types
// for the same filer cost one request.
type SubmissionsStrategy struct {
	fetcher Fetcher
	cache   *infra.Cache
}

// NewSubmissionsStrategy creates the submissions strategy.
func NewSubmissionsStrategy(f Fetcher) *SubmissionsStrategy {
	return &SubmissionsStrategy{fetcher: f, cache: infra.NewCache(10 * time.Minute)}
}

func (s *SubmissionsStrategy) Name() string { return SubmissionsStrategyName }

// SubmissionsURL returns the submissions record URL for cik.
func SubmissionsURL(cik string) string {
	return fmt.Sprintf("%s/CIK%s.json", submissionsURL, models.PadCIK(cik))
}

// Locate returns recent filings whose form starts with form.
func (s *SubmissionsStrategy) Locate(ctx context.Context, cik, form string, count int) ([]models.FilingDescriptor, error) {
	resp, err := s.record(ctx, cik)
	if err != nil {
		return nil, err
	}

	recent := resp.Filings.Recent
	cikClean := models.TrimCIK(cik)
	var out []models.FilingDescriptor
	for i, f := range recent.Form {
		if !strings.HasPrefix(f, form) {
			continue
		}
		// The arrays are index-aligned in practice; skip rows that are not.
		if i >= len(recent.AccessionNumber) || i >= len(recent.PrimaryDocument) {
			continue
		}
		date := ""
		if i < len(recent.FilingDate) {
			date = recent.FilingDate[i]
		}
		out = append(out, models.NewFilingDescriptor(cikClean, f, recent.AccessionNumber[i], recent.PrimaryDocument[i], date))
		if len(out) >= count {
			break
		}
	}
	return out, nil
}

func (s *SubmissionsStrategy) record(ctx context.Context, cik string) (*submissionsResponse, error) {
	key := models.PadCIK(cik)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*submissionsResponse), nil
	}
	var resp submissionsResponse
	if err := s.fetcher.FetchJSON(ctx, SubmissionsURL(cik), &resp); err != nil {
		return nil, err
	}
	s.cache.Set(key, &resp)
	return &resp, nil
}
