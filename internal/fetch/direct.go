package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seenimoa/edgarwatch/internal/infra"
)

// Direct fetches from sec.gov without an intermediary: one attempt per URL,
// Host header set for the target domain.
type Direct struct {
	userAgent string
	client    *http.Client
	setHost   bool
}

// DirectOption configures the direct transport.
type DirectOption func(*Direct)

// WithUserAgent sets the User-Agent sent to SEC.
func WithUserAgent(ua string) DirectOption {
	return func(d *Direct) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(timeout time.Duration) DirectOption {
	return func(d *Direct) {
		if timeout > 0 {
			d.client.Timeout = timeout
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) DirectOption {
	return func(d *Direct) { d.client = client }
}

// WithoutHostOverride leaves the Host header to match the request URL.
// Used when pointing the transport at a local mirror.
func WithoutHostOverride() DirectOption {
	return func(d *Direct) { d.setHost = false }
}

// NewDirect creates a direct transport.
func NewDirect(opts ...DirectOption) *Direct {
	d := &Direct{
		userAgent: DefaultUserAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
		setHost:   true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Direct) Name() string { return string(ModeDirect) }

// Get performs a single GET. Any status other than 200 is unavailable.
func (d *Direct) Get(ctx context.Context, url string) ([]byte, error) {
	headers := map[string]string{
		"User-Agent":      d.userAgent,
		"Accept-Encoding": "gzip",
	}
	if d.setHost && strings.Contains(url, "sec.gov") {
		headers["Host"] = hostFor(url)
	}

	body, status, err := infra.DoGet(ctx, d.client, url, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: direct: %w", ErrUnavailable, err)
	}
	defer body.Close()

	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: direct: status %d", ErrUnavailable, status)
	}
	data, err := readBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: direct: read body: %v", ErrUnavailable, err)
	}
	return data, nil
}

// readBody reads a response body. Go's transport only decompresses gzip
// transparently when it set Accept-Encoding itself, so an explicit header
// means the body may arrive compressed.
func readBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(newDecodingReader(r))
}
