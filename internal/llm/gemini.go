package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no Gemini model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider implements Generator on the Google GenAI SDK.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
}

type geminiSettings struct {
	model       string
	baseURL     string
	httpClient  *http.Client
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*geminiSettings)

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(s *geminiSettings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithGeminiBaseURL points the SDK at a different API endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(s *geminiSettings) { s.baseURL = url }
}

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(s *geminiSettings) { s.httpClient = client }
}

// WithGeminiSampling sets the default temperature and token cap.
func WithGeminiSampling(temperature float64, maxTokens int) GeminiOption {
	return func(s *geminiSettings) {
		s.temperature = temperature
		s.maxTokens = maxTokens
	}
}

// WithGeminiTimeout bounds each request.
func WithGeminiTimeout(d time.Duration) GeminiOption {
	return func(s *geminiSettings) { s.timeout = d }
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	s := geminiSettings{
		model:       DefaultGeminiModel,
		temperature: 0.3,
		maxTokens:   1000,
		timeout:     60 * time.Second,
	}
	for _, opt := range opts {
		opt(&s)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient,
	}
	if s.baseURL != "" {
		cc.HTTPOptions.BaseURL = s.baseURL
	}
	if s.timeout > 0 {
		cc.HTTPOptions.Timeout = &s.timeout
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       s.model,
		temperature: s.temperature,
		maxTokens:   s.maxTokens,
	}, nil
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

// Generate sends a generateContent request.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	temp, maxTokens := p.temperature, p.maxTokens
	if req.Temperature > 0 {
		temp = req.Temperature
	}
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temp)),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	result, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.User), cfg)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	resp := &Response{
		Content:  text,
		Model:    model,
		Provider: ProviderGemini,
		Latency:  time.Since(start),
	}
	if result.ModelVersion != "" {
		resp.Model = result.ModelVersion
	}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return resp, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: gemini: %v", ErrProviderDown, err)
	}
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: gemini: %s", ErrNoAPIKey, apiErr.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: gemini: %s", ErrRateLimit, apiErr.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: gemini: %s", ErrInvalidModel, apiErr.Message)
	}
	return fmt.Errorf("gemini: API error (%d): %s", apiErr.Code, apiErr.Message)
}
