package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/seenimoa/edgarwatch/internal/infra"
)

// RelayEndpoint is one forwarding service. The target URL is appended to
// Prefix, percent-encoded first when Encode is set.
type RelayEndpoint struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	Encode bool   `mapstructure:"encode" yaml:"encode"`
}

// URLFor returns the relay URL for target.
func (e RelayEndpoint) URLFor(target string) string {
	if e.Encode {
		return e.Prefix + url.QueryEscape(target)
	}
	return e.Prefix + target
}

// DefaultRelays is the built-in relay order.
var DefaultRelays = []RelayEndpoint{
	{Name: "allorigins", Prefix: "https://api.allorigins.win/raw?url=", Encode: true},
	{Name: "corsproxy", Prefix: "https://corsproxy.io/?"},
	{Name: "thingproxy", Prefix: "https://thingproxy.freeboard.io/fetch/"},
}

// DefaultMinBody is the smallest body a relay response must exceed to count
// as a success. Relays answer 200 with tiny error pages.
const DefaultMinBody = 100

// Relay tries each endpoint in order and returns the first acceptable body.
type Relay struct {
	endpoints []RelayEndpoint
	userAgent string
	minBody   int
	client    *http.Client
	logger    *infra.Logger
}

// RelayOption configures the relay transport.
type RelayOption func(*Relay)

// WithRelayUserAgent sets the User-Agent forwarded to the relay.
func WithRelayUserAgent(ua string) RelayOption {
	return func(r *Relay) {
		if ua != "" {
			r.userAgent = ua
		}
	}
}

// WithRelayTimeout sets the per-endpoint deadline.
func WithRelayTimeout(timeout time.Duration) RelayOption {
	return func(r *Relay) {
		if timeout > 0 {
			r.client.Timeout = timeout
		}
	}
}

// WithMinBody sets the minimum accepted body length.
func WithMinBody(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.minBody = n
		}
	}
}

// WithRelayHTTPClient sets a custom HTTP client.
func WithRelayHTTPClient(client *http.Client) RelayOption {
	return func(r *Relay) { r.client = client }
}

// WithRelayLogger sets the logger used for per-endpoint failures.
func WithRelayLogger(l *infra.Logger) RelayOption {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRelay creates a relay transport over endpoints, tried in the given order.
func NewRelay(endpoints []RelayEndpoint, opts ...RelayOption) *Relay {
	r := &Relay{
		endpoints: append([]RelayEndpoint(nil), endpoints...),
		userAgent: DefaultUserAgent,
		minBody:   DefaultMinBody,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    infra.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Name() string { return string(ModeRelay) }

// Endpoints returns the configured endpoints in try order.
func (r *Relay) Endpoints() []RelayEndpoint {
	return append([]RelayEndpoint(nil), r.endpoints...)
}

// Get tries every endpoint until one returns 200 with a body longer than the
// minimum. The Host header is never set; it must match the relay, not sec.gov.
func (r *Relay) Get(ctx context.Context, target string) ([]byte, error) {
	headers := map[string]string{
		"User-Agent":      r.userAgent,
		"Accept-Encoding": "gzip",
	}

	var lastErr error
	for _, ep := range r.endpoints {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: relay: %v", ErrUnavailable, err)
		}

		data, err := r.try(ctx, ep.URLFor(target), headers)
		if err == nil {
			return data, nil
		}
		lastErr = err
		r.logger.Debug().Str("relay", ep.Name).Err(err).Msg("relay attempt failed")
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: relay: no endpoints configured", ErrUnavailable)
	}
	return nil, fmt.Errorf("%w: relay: all endpoints failed, last: %v", ErrUnavailable, lastErr)
}

func (r *Relay) try(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	body, status, err := infra.DoGet(ctx, r.client, u, headers)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if status != http.StatusOK {
		return nil, fmt.Errorf("status %d", status)
	}
	data, err := readBody(body)
	if err != nil {
		return nil, err
	}
	if len(data) <= r.minBody {
		return nil, fmt.Errorf("body too short (%d bytes)", len(data))
	}
	return data, nil
}
