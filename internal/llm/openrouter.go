package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Defaults for the OpenRouter chat-completions backend.
const (
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel = "google/gemini-2.0-flash-exp:free"

	openRouterReferer = "https://github.com/seenimoa/edgarwatch"
	openRouterTitle   = "Forensic Newsroom Auditor"
)

// OpenRouterProvider implements Generator for OpenRouter's OpenAI-compatible
// Chat Completions API.
type OpenRouterProvider struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// OpenRouterOption configures the OpenRouter provider.
type OpenRouterOption func(*OpenRouterProvider)

// WithOpenRouterBaseURL sets a custom base URL.
func WithOpenRouterBaseURL(url string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithOpenRouterModel sets the default model.
func WithOpenRouterModel(model string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOpenRouterSampling sets the default temperature and token cap.
func WithOpenRouterSampling(temperature float64, maxTokens int) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.temperature = temperature
		p.maxTokens = maxTokens
	}
}

// WithOpenRouterTimeout sets the HTTP client timeout.
func WithOpenRouterTimeout(d time.Duration) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		if d > 0 {
			p.client = &http.Client{Timeout: d}
		}
	}
}

// WithOpenRouterHTTPClient sets a custom HTTP client.
func WithOpenRouterHTTPClient(client *http.Client) OpenRouterOption {
	return func(p *OpenRouterProvider) { p.client = client }
}

// NewOpenRouterProvider creates an OpenRouter provider.
func NewOpenRouterProvider(apiKey string, opts ...OpenRouterOption) (*OpenRouterProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &OpenRouterProvider{
		apiKey:      apiKey,
		baseURL:     DefaultOpenRouterURL,
		model:       DefaultOpenRouterModel,
		temperature: 0.3,
		maxTokens:   1000,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *OpenRouterProvider) Name() string { return ProviderOpenRouter }

// Generate sends a chat completion request.
func (p *OpenRouterProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	body := p.buildRequest(req)
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openrouter: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()

	if err := p.checkError(resp); err != nil {
		return nil, err
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("openrouter: %w", ErrEmptyResponse)
	}

	model := result.Model
	if model == "" {
		model = body.Model
	}
	return &Response{
		Content:  result.Choices[0].Message.Content,
		Model:    model,
		Provider: ProviderOpenRouter,
		Latency:  time.Since(start),
		Usage: Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	}, nil
}

// ── Internal Types ──

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"` // OpenRouter sends numbers, OpenAI sends strings
	} `json:"error"`
}

// ── Helpers ──

func (p *OpenRouterProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("HTTP-Referer", openRouterReferer)
	req.Header.Set("X-Title", openRouterTitle)
}

func (p *OpenRouterProvider) buildRequest(req Request) chatRequest {
	r := chatRequest{Model: p.model}
	if req.Model != "" {
		r.Model = req.Model
	}
	if req.System != "" {
		r.Messages = append(r.Messages, chatMessage{Role: RoleSystem, Content: req.System})
	}
	r.Messages = append(r.Messages, chatMessage{Role: RoleUser, Content: req.User})

	temp, maxTokens := p.temperature, p.maxTokens
	if req.Temperature > 0 {
		temp = req.Temperature
	}
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if temp > 0 {
		r.Temperature = &temp
	}
	if maxTokens > 0 {
		r.MaxTokens = &maxTokens
	}
	return r
}

func (p *OpenRouterProvider) checkError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	if len(msg) > 300 {
		msg = msg[:300]
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrNoAPIKey, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimit, msg)
	case http.StatusBadRequest:
		if strings.Contains(msg, "context length") || strings.Contains(msg, "context_length") {
			return fmt.Errorf("%w: %s", ErrContextLength, msg)
		}
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrInvalidModel, msg)
	}
	return fmt.Errorf("openrouter: HTTP %d: %s", resp.StatusCode, msg)
}
