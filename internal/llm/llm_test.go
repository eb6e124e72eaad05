package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seenimoa/edgarwatch/internal/config"
)

// ════════════════════════════════════════════════════════════════════
// openrouter.go
// ════════════════════════════════════════════════════════════════════

func TestOpenRouterGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if h := r.Header.Get("Authorization"); h != "Bearer sk-test" {
			t.Errorf("Authorization = %q", h)
		}
		if h := r.Header.Get("X-Title"); h != "Forensic Newsroom Auditor" {
			t.Errorf("X-Title = %q", h)
		}
		if r.Header.Get("HTTP-Referer") == "" {
			t.Error("missing HTTP-Referer")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"gen-1","model":"google/gemini-2.0-flash-exp:free",
			"choices":[{"message":{"role":"assistant","content":"Lead 1: ..."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42}}`)
	}))
	defer srv.Close()

	p, err := NewOpenRouterProvider("sk-test", WithOpenRouterBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Generate(context.Background(), Request{System: "be an editor", User: "DATA:\nnothing"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "Lead 1: ..." || resp.Provider != ProviderOpenRouter || resp.Usage.TotalTokens != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if got.Model != DefaultOpenRouterModel {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != RoleSystem || got.Messages[1].Content != "DATA:\nnothing" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.Temperature == nil || *got.Temperature != 0.3 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 1000 {
		t.Errorf("max_tokens = %v", got.MaxTokens)
	}
}

func TestOpenRouterRequestOverrides(t *testing.T) {
	p, _ := NewOpenRouterProvider("k", WithOpenRouterModel("m1"))
	r := p.buildRequest(Request{User: "u", Model: "m2", Temperature: 0.7, MaxTokens: 50})
	if r.Model != "m2" || *r.Temperature != 0.7 || *r.MaxTokens != 50 {
		t.Fatalf("overrides not applied: %+v", r)
	}
	if len(r.Messages) != 1 {
		t.Fatalf("system message should be omitted when empty: %+v", r.Messages)
	}
}

func TestOpenRouterErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnauthorized, `{"error":{"message":"No auth credentials found","code":401}}`, ErrNoAPIKey},
		{http.StatusTooManyRequests, `{"error":{"message":"Rate limit exceeded","code":429}}`, ErrRateLimit},
		{http.StatusNotFound, `{"error":{"message":"model not found"}}`, ErrInvalidModel},
		{http.StatusBadRequest, `{"error":{"message":"maximum context length is 8192 tokens"}}`, ErrContextLength},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			io.WriteString(w, tc.body)
		}))
		p, _ := NewOpenRouterProvider("k", WithOpenRouterBaseURL(srv.URL))
		_, err := p.Generate(context.Background(), Request{User: "x"})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestOpenRouterEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	p, _ := NewOpenRouterProvider("k", WithOpenRouterBaseURL(srv.URL))
	if _, err := p.Generate(context.Background(), Request{User: "x"}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("got %v, want ErrEmptyResponse", err)
	}
}

func TestNewProvidersRequireKey(t *testing.T) {
	if _, err := NewOpenRouterProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("openrouter: got %v", err)
	}
	if _, err := NewGeminiProvider(context.Background(), ""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("gemini: got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// gemini.go
// ════════════════════════════════════════════════════════════════════

func TestGeminiGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"  Three leads  "}]}}],
			"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":7,"totalTokenCount":12}}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), "g-key", WithGeminiBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Generate(context.Background(), Request{System: "sys", User: "DATA"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "Three leads" || resp.Provider != ProviderGemini || resp.Usage.TotalTokens != 12 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Errorf("system instruction not sent: %v", body)
	}
}

func TestGeminiRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), "g-key", WithGeminiBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Generate(context.Background(), Request{User: "x"}); !errors.Is(err, ErrRateLimit) {
		t.Fatalf("got %v, want ErrRateLimit", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// router.go
// ════════════════════════════════════════════════════════════════════

type mockGenerator struct {
	name  string
	mu    sync.Mutex
	calls []Request
	errs  []error // consumed per call; nil entries succeed
}

func (m *mockGenerator) Name() string { return m.name }

func (m *mockGenerator) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &Response{Content: "from " + m.name, Provider: m.name}, nil
}

func TestRouterPrimarySucceeds(t *testing.T) {
	primary := &mockGenerator{name: "a"}
	fallback := &mockGenerator{name: "b"}
	r := NewRouter("a", WithFallbacks("b"), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)
	r.RegisterProvider(fallback)

	resp, err := r.Generate(context.Background(), Request{User: "x", Model: "m"})
	if err != nil || resp.Content != "from a" {
		t.Fatalf("got %v, %v", resp, err)
	}
	if len(fallback.calls) != 0 {
		t.Fatalf("fallback should not be called")
	}
}

func TestRouterFallsBack(t *testing.T) {
	primary := &mockGenerator{name: "a", errs: []error{ErrProviderDown, ErrProviderDown}}
	fallback := &mockGenerator{name: "b"}
	r := NewRouter("a", WithFallbacks("b"), WithMaxRetries(1), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)
	r.RegisterProvider(fallback)

	resp, err := r.Generate(context.Background(), Request{User: "x", Model: "primary-only"})
	if err != nil || resp.Content != "from b" {
		t.Fatalf("got %v, %v", resp, err)
	}
	if len(primary.calls) != 2 {
		t.Errorf("primary calls = %d, want 2 (one retry)", len(primary.calls))
	}
	if fallback.calls[0].Model != "" {
		t.Errorf("fallback should use its own model, got %q", fallback.calls[0].Model)
	}
}

func TestRouterNonRetryableSkipsRetry(t *testing.T) {
	primary := &mockGenerator{name: "a", errs: []error{ErrNoAPIKey}}
	fallback := &mockGenerator{name: "b"}
	r := NewRouter("a", WithFallbacks("b"), WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)
	r.RegisterProvider(fallback)

	if _, err := r.Generate(context.Background(), Request{User: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(primary.calls) != 1 {
		t.Errorf("primary calls = %d, want 1", len(primary.calls))
	}
}

func TestRouterAllFail(t *testing.T) {
	a := &mockGenerator{name: "a", errs: []error{ErrRateLimit}}
	r := NewRouter("a", WithMaxRetries(0))
	r.RegisterProvider(a)

	_, err := r.Generate(context.Background(), Request{User: "x"})
	if !errors.Is(err, ErrRateLimit) {
		t.Fatalf("got %v, want wrapped ErrRateLimit", err)
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter("a")
	if _, err := r.Generate(context.Background(), Request{}); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("got %v", err)
	}
}

func TestRouterCancelledContext(t *testing.T) {
	a := &mockGenerator{name: "a", errs: []error{ErrProviderDown}}
	b := &mockGenerator{name: "b"}
	r := NewRouter("a", WithFallbacks("b"), WithMaxRetries(0))
	r.RegisterProvider(a)
	r.RegisterProvider(b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if len(b.calls) != 0 {
		t.Fatal("fallback must not run after cancellation")
	}
}

func TestNewRouterFromConfig(t *testing.T) {
	cfg := config.LLMConfig{Primary: ProviderOpenRouter, Model: "x/y", FallbackModel: "gemini-2.0-flash", Temperature: 0.3, MaxTokens: 1000}

	if _, err := NewRouterFromConfig(context.Background(), cfg, nil); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("no keys: got %v", err)
	}

	cfg.OpenRouterKey = "sk"
	cfg.GeminiKey = "gk"
	r, err := NewRouterFromConfig(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	names := r.ProviderNames()
	if len(names) != 2 || names[0] != ProviderOpenRouter || names[1] != ProviderGemini {
		t.Fatalf("chain = %v", names)
	}

	// Primary without a key: the remaining provider still serves.
	cfg.OpenRouterKey = ""
	r, err = NewRouterFromConfig(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if names := r.ProviderNames(); len(names) != 1 || names[0] != ProviderGemini {
		t.Fatalf("chain = %v", names)
	}
}
