package edgar

import (
	"context"
	"fmt"
	"regexp"

	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/edgarwatch/internal/infra"
	"github.com/seenimoa/edgarwatch/pkg/models"
)

const (
	// FeedStrategyName identifies the Atom feed strategy.
	FeedStrategyName = "feed"

	unknownFilingDate = "Unknown"
)

var (
	xmlnsDecl       = regexp.MustCompile(`\sxmlns[^"]*"[^"]*"`)
	accessionInFeed = regexp.MustCompile(`/(\d{10}-\d{2}-\d{6})`)
)

// FeedStrategy reads the Atom rendering of the company filings page. The feed
// does not name the primary document, so "{accClean}.htm" is assumed.
type FeedStrategy struct {
	fetcher Fetcher
	parser  *gofeed.Parser
	logger  *infra.Logger
}

// NewFeedStrategy creates the feed strategy.
func NewFeedStrategy(f Fetcher, logger *infra.Logger) *FeedStrategy {
	return &FeedStrategy{
		fetcher: f,
		parser:  gofeed.NewParser(),
		logger:  logger.Component("feed"),
	}
}

func (s *FeedStrategy) Name() string { return FeedStrategyName }

// FeedURL returns the Atom listing URL for cik and form.
func FeedURL(cik, form string, count int) string {
	return fmt.Sprintf("%s?action=getcompany&CIK=%s&type=%s&count=%d&output=atom",
		browseURL, models.TrimCIK(cik), form, count)
}

// Locate parses feed entries into descriptors labelled with the requested form.
func (s *FeedStrategy) Locate(ctx context.Context, cik, form string, count int) ([]models.FilingDescriptor, error) {
	body, err := s.fetcher.Fetch(ctx, FeedURL(cik, form, count))
	if err != nil {
		return nil, err
	}

	feed, err := s.parser.ParseString(StripNamespaces(string(body)))
	if err != nil {
		s.logger.Debug().Err(err).Str("cik", cik).Msg("malformed feed")
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	cikClean := models.TrimCIK(cik)
	var out []models.FilingDescriptor
	for _, item := range feed.Items {
		acc := feedAccession(item)
		if acc == "" {
			continue
		}
		accClean := models.CleanAccession(acc)

		date := unknownFilingDate
		if len(item.Updated) >= 10 {
			date = item.Updated[:10]
		} else if item.Updated != "" {
			date = item.Updated
		}

		out = append(out, models.NewFilingDescriptor(cikClean, form, acc, accClean+".htm", date))
		if len(out) >= count {
			break
		}
	}
	return out, nil
}

// feedAccession extracts the accession number from an entry's links.
func feedAccession(item *gofeed.Item) string {
	links := append([]string{item.Link}, item.Links...)
	for _, l := range links {
		if m := accessionInFeed.FindStringSubmatch(l); m != nil {
			return m[1]
		}
	}
	return ""
}

// StripNamespaces removes xmlns declarations so documents can be walked by
// local element names.
func StripNamespaces(doc string) string {
	return xmlnsDecl.ReplaceAllString(doc, "")
}
