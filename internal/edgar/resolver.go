package edgar

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/seenimoa/edgarwatch/internal/infra"
	"github.com/seenimoa/edgarwatch/pkg/models"
	"github.com/seenimoa/edgarwatch/pkg/utils"
)

const directoryCacheKey = "company_tickers"

// TickerLookup is a static ticker -> CIK table. config.TickerTable satisfies it.
type TickerLookup interface {
	Lookup(ticker string) (string, bool)
}

// Resolver maps ticker symbols to zero-padded 10-digit CIKs. The curated
// table is consulted first and never touches the network; the remote ticker
// directory is fetched only on a table miss and memoized.
type Resolver struct {
	table        TickerLookup
	fetcher      Fetcher
	directoryURL string
	cache        *infra.Cache
	logger       *infra.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDirectoryURL overrides the company_tickers.json location.
func WithDirectoryURL(u string) ResolverOption {
	return func(r *Resolver) { r.directoryURL = u }
}

// WithDirectoryTTL sets how long a fetched directory is reused.
func WithDirectoryTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.cache = infra.NewCache(ttl)
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *infra.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l.Component("resolver") }
}

// NewResolver creates a resolver over a curated table and a fetcher for the
// remote directory. fetcher may be nil, in which case only the table is used.
func NewResolver(table TickerLookup, fetcher Fetcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		table:        table,
		fetcher:      fetcher,
		directoryURL: companyTickersURL,
		cache:        infra.NewCache(24 * time.Hour),
		logger:       infra.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the 10-digit CIK for ticker. Lookup is case-insensitive and
// treats "." as "-" ("brk.b" is "BRK-B"). A purely numeric input is taken to
// be a CIK already. Matching is exact; there is no fuzzy fallback.
func (r *Resolver) Resolve(ctx context.Context, ticker string) (string, error) {
	t := utils.NormalizeTicker(ticker)
	if t == "" {
		return "", fmt.Errorf("%w: empty ticker", ErrNotFound)
	}

	if r.table != nil {
		if cik, ok := r.table.Lookup(t); ok {
			return models.PadCIK(cik), nil
		}
	}
	if utils.IsCIK(t) {
		return models.PadCIK(t), nil
	}
	if r.fetcher == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, t)
	}

	entries, err := r.directory(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Str("ticker", t).Msg("ticker directory unavailable")
		return "", fmt.Errorf("%w: %s (directory unavailable: %v)", ErrNotFound, t, err)
	}
	for _, e := range entries {
		if e.Ticker == t {
			return models.PadCIK(e.CIK.String()), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, t)
}

// directory returns the remote ticker directory with entries in ascending
// numeric key order, so "first match" is stable across runs.
func (r *Resolver) directory(ctx context.Context) ([]tickerEntry, error) {
	if cached, ok := r.cache.Get(directoryCacheKey); ok {
		return cached.([]tickerEntry), nil
	}

	var raw map[string]tickerEntry
	if err := r.fetcher.FetchJSON(ctx, r.directoryURL, &raw); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, erri := strconv.Atoi(keys[i])
		nj, errj := strconv.Atoi(keys[j])
		switch {
		case erri == nil && errj == nil:
			return ni < nj
		case erri == nil:
			return true
		case errj == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})

	entries := make([]tickerEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, raw[k])
	}
	r.cache.Set(directoryCacheKey, entries)
	r.logger.Debug().Int("entries", len(entries)).Msg("ticker directory loaded")
	return entries, nil
}
