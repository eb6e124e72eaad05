package edgar

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenimoa/edgarwatch/internal/infra"
	"github.com/seenimoa/edgarwatch/pkg/models"
)

// Strategy is one way of listing a filer's recent filings of a form type.
// Implementations return at most count descriptors, most recent first. An
// empty result with a nil error means "nothing here, try the next one".
type Strategy interface {
	Name() string
	Locate(ctx context.Context, cik, form string, count int) ([]models.FilingDescriptor, error)
}

// Located is the outcome of a cascade: the filings and the strategy that
// produced them.
type Located struct {
	Filings  []models.FilingDescriptor `json:"filings"`
	Strategy string                    `json:"strategy"`
}

// Placeholder reports whether the filings are synthetic.
func (l Located) Placeholder() bool {
	for _, f := range l.Filings {
		if f.IsPlaceholder() {
			return true
		}
	}
	return false
}

// Locator runs strategies in order and stops at the first non-empty result.
type Locator struct {
	snapshot   *SnapshotStrategy
	strategies []Strategy
	logger     *infra.Logger
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithSnapshot enables the snapshot lookup that runs ahead of the cascade
// whenever a ticker hint is supplied.
func WithSnapshot(src SnapshotSource) LocatorOption {
	return func(l *Locator) {
		if src != nil {
			l.snapshot = NewSnapshotStrategy(src)
		}
	}
}

// WithLocatorLogger sets the logger.
func WithLocatorLogger(lg *infra.Logger) LocatorOption {
	return func(l *Locator) { l.logger = lg.Component("locator") }
}

// NewLocator creates a locator over an ordered list of strategies.
func NewLocator(strategies []Strategy, opts ...LocatorOption) *Locator {
	l := &Locator{
		strategies: strategies,
		logger:     infra.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Strategies returns the cascade order by name, snapshot first if enabled.
func (l *Locator) Strategies() []string {
	var names []string
	if l.snapshot != nil {
		names = append(names, l.snapshot.Name())
	}
	for _, s := range l.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Locate returns up to count filings of form for cik. When ticker is non-empty
// the snapshot is consulted first. Strategy errors are logged and the next
// strategy is tried; ErrNoFilings is returned only when all of them come back
// empty. A cancelled context stops the cascade.
func (l *Locator) Locate(ctx context.Context, cik, form string, count int, ticker string) (Located, error) {
	if count < 1 {
		count = 1
	}

	if ticker != "" && l.snapshot != nil {
		found, err := l.snapshot.ForTicker(ticker, form, count)
		if err != nil {
			l.logger.Debug().Err(err).Str("ticker", ticker).Msg("no usable snapshot")
		} else if len(found) > 0 {
			return Located{Filings: found, Strategy: l.snapshot.Name()}, nil
		}
	}

	for _, s := range l.strategies {
		if err := ctx.Err(); err != nil {
			return Located{}, err
		}

		found, err := s.Locate(ctx, cik, form, count)
		if err != nil {
			l.logger.Debug().Err(err).Str("strategy", s.Name()).Str("cik", cik).Str("form", form).Msg("strategy failed")
			continue
		}
		if len(found) == 0 {
			l.logger.Debug().Str("strategy", s.Name()).Str("cik", cik).Str("form", form).Msg("strategy found nothing")
			continue
		}
		if len(found) > count {
			found = found[:count]
		}

		ev := l.logger.Info()
		if s.Name() == PlaceholderStrategyName {
			ev = l.logger.Warn()
		}
		ev.Str("strategy", s.Name()).Str("cik", cik).Str("form", form).Int("filings", len(found)).Msg("filings located")
		return Located{Filings: found, Strategy: s.Name()}, nil
	}

	return Located{}, fmt.Errorf("%w: cik %s form %s", ErrNoFilings, cik, form)
}

// LocateAny tries each form in order and returns the first that yields
// filings. Only ErrNoFilings moves on to the next form.
func (l *Locator) LocateAny(ctx context.Context, cik string, forms []string, count int, ticker string) (Located, error) {
	err := fmt.Errorf("%w: no forms requested", ErrNoFilings)
	for _, form := range forms {
		var located Located
		located, err = l.Locate(ctx, cik, form, count, ticker)
		if err == nil {
			return located, nil
		}
		if !errors.Is(err, ErrNoFilings) {
			return Located{}, err
		}
	}
	return Located{}, err
}

// StrategyOptions configures DefaultStrategies.
type StrategyOptions struct {
	// Placeholders appends the placeholder strategy as the last resort.
	Placeholders bool
	Logger       *infra.Logger
}

// DefaultStrategies returns the standard cascade after the snapshot lookup:
// directory page, feed, submissions API, then placeholders if enabled.
func DefaultStrategies(f Fetcher, opts StrategyOptions) []Strategy {
	strategies := []Strategy{
		NewDirectoryStrategy(f, opts.Logger),
		NewFeedStrategy(f, opts.Logger),
		NewSubmissionsStrategy(f),
	}
	if opts.Placeholders {
		strategies = append(strategies, PlaceholderStrategy{})
	}
	return strategies
}
