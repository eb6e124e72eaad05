package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/edgarwatch/internal/infra"
)

var longBody = strings.Repeat("x", 150)

func TestDirect_Success(t *testing.T) {
	var gotUA, gotEnc string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotEnc = r.Header.Get("Accept-Encoding")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	d := NewDirect(WithUserAgent("test-agent/1.0 (t@example.com)"))
	body, err := d.Get(context.Background(), srv.URL+"/doc.htm")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "test-agent/1.0 (t@example.com)", gotUA)
	assert.Equal(t, "gzip", gotEnc)
}

func TestDirect_NonOKIsUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusNoContent} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := NewDirect().Get(context.Background(), srv.URL)
		srv.Close()
		assert.ErrorIs(t, err, ErrUnavailable, "status %d", status)
	}
}

func TestDirect_HTTPErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewDirect().Get(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrUnavailable)
	var httpErr *infra.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
}

func TestDirect_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewDirect(WithTimeout(20 * time.Millisecond)).Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDirect_GzipBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(`{"ok":true}`))
	zw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	body, err := NewDirect().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
}

func TestHostFor(t *testing.T) {
	assert.Equal(t, "data.sec.gov", hostFor("https://data.sec.gov/submissions/CIK0000320193.json"))
	assert.Equal(t, "www.sec.gov", hostFor("https://www.sec.gov/cgi-bin/browse-edgar"))
}

func TestRelayEndpoint_URLFor(t *testing.T) {
	target := "https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=320193"

	enc := RelayEndpoint{Prefix: "https://relay.example/raw?url=", Encode: true}
	assert.Equal(t,
		"https://relay.example/raw?url=https%3A%2F%2Fwww.sec.gov%2Fcgi-bin%2Fbrowse-edgar%3Faction%3Dgetcompany%26CIK%3D320193",
		enc.URLFor(target))

	raw := RelayEndpoint{Prefix: "https://relay.example/fetch/"}
	assert.Equal(t, "https://relay.example/fetch/"+target, raw.URLFor(target))
}

func TestRelay_FallsThroughEndpoints(t *testing.T) {
	var hits [3]int32
	var gotTarget, gotHost string

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits[0], 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits[1], 1)
		w.Write([]byte("too small"))
	}))
	defer short.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits[2], 1)
		gotTarget = r.URL.Query().Get("url")
		gotHost = r.Host
		w.Write([]byte(longBody))
	}))
	defer good.Close()

	r := NewRelay([]RelayEndpoint{
		{Name: "a", Prefix: failing.URL + "/?"},
		{Name: "b", Prefix: short.URL + "/?"},
		{Name: "c", Prefix: good.URL + "/raw?url=", Encode: true},
	})

	target := "https://data.sec.gov/submissions/CIK0000320193.json"
	body, err := r.Get(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, longBody, string(body))
	assert.Equal(t, [3]int32{1, 1, 1}, hits)
	assert.Equal(t, target, gotTarget)
	assert.NotEqual(t, "data.sec.gov", gotHost)
}

func TestRelay_StopsAtFirstSuccess(t *testing.T) {
	var second int32
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(longBody))
	}))
	defer first.Close()
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&second, 1)
	}))
	defer other.Close()

	r := NewRelay([]RelayEndpoint{{Prefix: first.URL + "/?"}, {Prefix: other.URL + "/?"}})
	_, err := r.Get(context.Background(), "https://www.sec.gov/x")
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&second))
}

func TestRelay_AllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer srv.Close()

	r := NewRelay([]RelayEndpoint{{Prefix: srv.URL + "/?"}, {Prefix: srv.URL + "/?"}})
	_, err := r.Get(context.Background(), "https://www.sec.gov/x")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewRelay(nil).Get(context.Background(), "https://www.sec.gov/x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRelay_MinBodyBoundary(t *testing.T) {
	body := strings.Repeat("y", DefaultMinBody)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	r := NewRelay([]RelayEndpoint{{Prefix: srv.URL + "/?"}})
	_, err := r.Get(context.Background(), "https://www.sec.gov/x")
	assert.ErrorIs(t, err, ErrUnavailable, "body of exactly the minimum is rejected")

	r = NewRelay([]RelayEndpoint{{Prefix: srv.URL + "/?"}}, WithMinBody(50))
	_, err = r.Get(context.Background(), "https://www.sec.gov/x")
	assert.NoError(t, err)
}

func TestNew_SelectsTransport(t *testing.T) {
	assert.Equal(t, "direct", New(Options{}).Transport().Name())
	assert.Equal(t, "direct", New(Options{Mode: ModeDirect}).Transport().Name())

	f := New(Options{Mode: ModeRelay})
	require.Equal(t, "relay", f.Transport().Name())
	assert.Equal(t, DefaultRelays, f.Transport().(*Relay).Endpoints())
}

type stubTransport struct {
	body  []byte
	err   error
	calls int
}

func (s *stubTransport) Name() string { return "stub" }

func (s *stubTransport) Get(ctx context.Context, url string) ([]byte, error) {
	s.calls++
	return s.body, s.err
}

func TestFetcher_FetchJSON(t *testing.T) {
	f := NewWithTransport(&stubTransport{body: []byte(`{"name":"Apple Inc."}`)}, nil, nil)
	var got struct {
		Name string `json:"name"`
	}
	require.NoError(t, f.FetchJSON(context.Background(), "u", &got))
	assert.Equal(t, "Apple Inc.", got.Name)

	bad := NewWithTransport(&stubTransport{body: []byte(`<html>blocked</html>`)}, nil, nil)
	assert.ErrorIs(t, bad.FetchJSON(context.Background(), "u", &got), ErrUnavailable)
}

func TestFetcher_WaitsOnLimiter(t *testing.T) {
	stub := &stubTransport{body: []byte("ok")}
	f := NewWithTransport(stub, infra.NewRateLimiter(1, time.Hour), nil)

	_, err := f.Fetch(context.Background(), "u")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, "u")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, stub.calls)
}
