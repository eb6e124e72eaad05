package edgar

import (
	"github.com/seenimoa/edgarwatch/pkg/models"
	"github.com/seenimoa/edgarwatch/pkg/utils"
)

// SnapshotStrategyName identifies filings served from a stored snapshot.
const SnapshotStrategyName = "snapshot"

// SnapshotSource reads previously stored filing lists. *snapshot.Store
// satisfies it.
type SnapshotSource interface {
	Filings(ticker string) ([]models.FilingDescriptor, error)
}

// SnapshotStrategy serves filings from a snapshot written by the batch job.
// It is keyed by ticker rather than CIK, so it runs ahead of the cascade
// instead of inside it.
type SnapshotStrategy struct {
	src SnapshotSource
}

// NewSnapshotStrategy creates a snapshot strategy over src.
func NewSnapshotStrategy(src SnapshotSource) *SnapshotStrategy {
	return &SnapshotStrategy{src: src}
}

func (s *SnapshotStrategy) Name() string { return SnapshotStrategyName }

// ForTicker returns up to count stored filings whose form equals form exactly.
func (s *SnapshotStrategy) ForTicker(ticker, form string, count int) ([]models.FilingDescriptor, error) {
	all, err := s.src.Filings(utils.NormalizeTicker(ticker))
	if err != nil {
		return nil, err
	}
	var out []models.FilingDescriptor
	for _, f := range all {
		if f.Form != form {
			continue
		}
		out = append(out, f)
		if len(out) >= count {
			break
		}
	}
	return out, nil
}
