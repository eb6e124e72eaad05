package edgar

import (
	"context"
	"strings"

	"github.com/seenimoa/edgarwatch/pkg/models"
)

// PlaceholderStrategyName identifies synthesized placeholder output.
const PlaceholderStrategyName = "placeholder"

// PlaceholderStrategy synthesizes two demo descriptors for periodic reports
// so that a dashboard has something to render when EDGAR is unreachable.
// The descriptors carry the sentinel URL and Placeholder=true; nothing behind
// them can be downloaded. Other form types get nothing.
type PlaceholderStrategy struct{}

func (PlaceholderStrategy) Name() string { return PlaceholderStrategyName }

func (PlaceholderStrategy) Locate(_ context.Context, _ string, form string, count int) ([]models.FilingDescriptor, error) {
	if form != "10-K" && form != "10-Q" {
		return nil, nil
	}
	lower := strings.ToLower(form)
	out := []models.FilingDescriptor{
		placeholder(form, "0000320193-24-000123", "demo-"+lower+".htm", "2024-11-01"),
		placeholder(form, "0000320193-24-000100", "demo-"+lower+"-prev.htm", "2024-08-01"),
	}
	if count < len(out) {
		out = out[:count]
	}
	return out, nil
}

func placeholder(form, acc, doc, date string) models.FilingDescriptor {
	return models.FilingDescriptor{
		Form:           form,
		Accession:      acc,
		AccessionClean: models.CleanAccession(acc),
		PrimaryDoc:     doc,
		Date:           date,
		URL:            models.PlaceholderURL,
		FolderURL:      models.PlaceholderURL,
		Placeholder:    true,
	}
}
