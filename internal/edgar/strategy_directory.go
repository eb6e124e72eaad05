package edgar

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/edgarwatch/internal/infra"
	"github.com/seenimoa/edgarwatch/pkg/models"
)

// DirectoryStrategyName identifies the filings directory page strategy.
const DirectoryStrategyName = "directory"

// directoryExtraRows over-fetches so that amendments and other forms sharing
// the page do not starve the requested count.
const directoryExtraRows = 5

var accessionInHref = regexp.MustCompile(`(\d{10}-\d{2}-\d{6})`)

// primaryDocTypes are the document type markers that identify the main
// document on a filing index page.
var primaryDocTypes = []string{"10-k", "10-q", "8-k", "13-f"}

// DirectoryStrategy scrapes the HTML company filings page
// (browse-edgar?action=getcompany) and resolves each filing's primary
// document from its index page.
type DirectoryStrategy struct {
	fetcher Fetcher
	logger  *infra.Logger
}

// NewDirectoryStrategy creates the directory page strategy.
func NewDirectoryStrategy(f Fetcher, logger *infra.Logger) *DirectoryStrategy {
	return &DirectoryStrategy{fetcher: f, logger: logger.Component("directory")}
}

func (s *DirectoryStrategy) Name() string { return DirectoryStrategyName }

// DirectoryURL returns the filings page URL for cik and form.
func DirectoryURL(cik, form string, count int) string {
	return fmt.Sprintf("%s?action=getcompany&CIK=%s&type=%s&dateb=&owner=include&count=%d",
		browseURL, models.TrimCIK(cik), form, count+directoryExtraRows)
}

// Locate lists filings whose form code starts with form, so "10-K" also
// matches "10-K/A".
func (s *DirectoryStrategy) Locate(ctx context.Context, cik, form string, count int) ([]models.FilingDescriptor, error) {
	body, err := s.fetcher.Fetch(ctx, DirectoryURL(cik, form, count))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse filings page: %w", err)
	}
	table := doc.Find("table.tableFile2").First()
	if table.Length() == 0 {
		s.logger.Debug().Str("cik", cik).Msg("filings table not found")
		return nil, nil
	}

	cikClean := models.TrimCIK(cik)
	var out []models.FilingDescriptor

	table.Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 { // header
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		cells := row.Find("td")
		if cells.Length() < 4 {
			return true
		}
		rowForm := strings.TrimSpace(cells.Eq(0).Text())
		if !strings.HasPrefix(rowForm, form) {
			return true
		}
		link := cells.Eq(1).Find("a").First()
		if link.Length() == 0 {
			return true
		}
		href, _ := link.Attr("href")
		m := accessionInHref.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		acc := m[1]
		accClean := models.CleanAccession(acc)

		primary := PrimaryDocument(ctx, s.fetcher, indexURL(href, cikClean, acc), accClean)
		date := strings.TrimSpace(cells.Eq(3).Text())
		out = append(out, models.NewFilingDescriptor(cikClean, rowForm, acc, primary, date))
		return len(out) < count
	})

	return out, ctx.Err()
}

// indexURL returns the filing index page for a directory row link. Links that
// already point at an index page are used as-is; anything else is replaced
// with the canonical archive location.
func indexURL(href, cikClean, acc string) string {
	if strings.Contains(href, "-index.htm") {
		if strings.HasPrefix(href, "/") {
			return wwwBaseURL + href
		}
		return href
	}
	return fmt.Sprintf("%s/%s-index.htm", strings.TrimSuffix(models.FolderURL(cikClean, models.CleanAccession(acc)), "/"), acc)
}

// PrimaryDocument returns the file name of a filing's main document from its
// index page. In order of preference: the first table.tableFile row whose
// type names a periodic or current report, the first linked .htm file that
// is not an index, and finally "{accClean}.htm". It never fails.
func PrimaryDocument(ctx context.Context, f Fetcher, indexURL, accClean string) string {
	fallback := accClean + ".htm"

	body, err := f.Fetch(ctx, indexURL)
	if err != nil {
		return fallback
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fallback
	}

	var name string
	doc.Find("table.tableFile").First().Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			return true
		}
		cells := row.Find("td")
		if cells.Length() < 4 {
			return true
		}
		docType := strings.ToLower(strings.TrimSpace(cells.Eq(3).Text()))
		if !containsAny(docType, primaryDocTypes) {
			return true
		}
		link := cells.Eq(2).Find("a").First()
		if link.Length() == 0 {
			return true
		}
		href, _ := link.Attr("href")
		name = path.Base(href)
		return false
	})
	if name != "" && name != "." && name != "/" {
		return name
	}

	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.HasSuffix(href, ".htm") && !strings.Contains(strings.ToLower(href), "index") {
			name = path.Base(href)
			return false
		}
		return true
	})
	if name != "" {
		return name
	}
	return fallback
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
