// Package fetch retrieves raw documents from the EDGAR archive and its JSON
// APIs. Two transports are available: Direct talks to sec.gov itself, Relay
// forwards each request through an ordered list of relay endpoints for
// environments where cross-origin access to sec.gov is blocked.
//
// Every failure is reported as ErrUnavailable. Callers treat it as a normal,
// non-fatal outcome and move on to their next fallback.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/edgarwatch/internal/infra"
)

// ErrUnavailable is returned when a document cannot be retrieved by any route.
var ErrUnavailable = errors.New("fetch: document unavailable")

// DefaultUserAgent identifies the client to SEC, which requires a contact in the User-Agent.
const DefaultUserAgent = "edgarwatch/1.0 (press@example.com)"

// Transport retrieves the raw body of a URL.
type Transport interface {
	// Name returns the transport identifier ("direct", "relay").
	Name() string

	// Get returns the response body, or an error wrapping ErrUnavailable.
	Get(ctx context.Context, url string) ([]byte, error)
}

// Mode selects the transport at construction time.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeRelay  Mode = "relay"
)

// Options configures a Fetcher.
type Options struct {
	Mode         Mode
	UserAgent    string
	Relays       []RelayEndpoint
	Timeout      time.Duration
	MinBodyBytes int
	Limiter      *infra.RateLimiter
	Logger       *infra.Logger
}

// Fetcher is the document fetcher used by the resolver, the locator and the
// pipeline. It delegates to the transport chosen at construction.
type Fetcher struct {
	transport Transport
	limiter   *infra.RateLimiter
	logger    *infra.Logger
}

// New creates a Fetcher whose transport is selected by opts.Mode.
func New(opts Options) *Fetcher {
	logger := opts.Logger
	if logger == nil {
		logger = infra.NewSilentLogger()
	}
	logger = logger.Component("fetch")

	var t Transport
	switch opts.Mode {
	case ModeRelay:
		relays := opts.Relays
		if len(relays) == 0 {
			relays = DefaultRelays
		}
		t = NewRelay(relays,
			WithRelayUserAgent(opts.UserAgent),
			WithRelayTimeout(opts.Timeout),
			WithMinBody(opts.MinBodyBytes),
			WithRelayLogger(logger))
	default:
		t = NewDirect(
			WithUserAgent(opts.UserAgent),
			WithTimeout(opts.Timeout))
	}
	return NewWithTransport(t, opts.Limiter, logger)
}

// NewWithTransport creates a Fetcher around an explicit transport.
func NewWithTransport(t Transport, limiter *infra.RateLimiter, logger *infra.Logger) *Fetcher {
	if logger == nil {
		logger = infra.NewSilentLogger()
	}
	return &Fetcher{transport: t, limiter: limiter, logger: logger}
}

// Transport returns the underlying transport.
func (f *Fetcher) Transport() Transport { return f.transport }

// Fetch returns the raw content at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	f.logger.Debug().Str("transport", f.transport.Name()).Str("url", shorten(url)).Msg("fetching")
	body, err := f.transport.Get(ctx, url)
	if err != nil {
		f.logger.Debug().Err(err).Str("url", shorten(url)).Msg("fetch failed")
		return nil, err
	}
	return body, nil
}

// FetchJSON fetches url and decodes the JSON body into dest. A body that is
// not valid JSON is reported as unavailable.
func (f *Fetcher) FetchJSON(ctx context.Context, url string, dest any) error {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: parse JSON from %s: %v", ErrUnavailable, shorten(url), err)
	}
	return nil
}

func shorten(url string) string {
	if len(url) > 80 {
		return url[:80] + "..."
	}
	return url
}

// hostFor returns the Host header for an EDGAR URL.
func hostFor(url string) string {
	if strings.Contains(url, "data.sec.gov") {
		return "data.sec.gov"
	}
	return "www.sec.gov"
}
