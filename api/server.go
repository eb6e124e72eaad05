// Package api provides the read-only HTTP API over stored snapshots.
//
// It serves per-ticker reports and their parts as JSON, renders dossiers,
// optionally runs the snapshot batch on demand or on a schedule, and streams
// batch progress over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/edgarwatch/internal/config"
	"github.com/seenimoa/edgarwatch/internal/infra"
	"github.com/seenimoa/edgarwatch/internal/pipeline"
	"github.com/seenimoa/edgarwatch/internal/report"
	"github.com/seenimoa/edgarwatch/internal/snapshot"
	"github.com/seenimoa/edgarwatch/pkg/models"
	"github.com/seenimoa/edgarwatch/pkg/utils"
)

// ErrRefreshRunning is returned when a batch refresh is already in progress.
var ErrRefreshRunning = errors.New("api: refresh already running")

// ErrNoRefresher is returned when refresh was never enabled.
var ErrNoRefresher = errors.New("api: refresh not enabled")

// Refresher runs the snapshot batch. *pipeline.Batch satisfies it.
type Refresher interface {
	Run(ctx context.Context, tickers []string) (*pipeline.BatchResult, error)
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	store   *snapshot.Store
	cfg     *config.Config
	hub     *Hub
	logger  *infra.Logger
	origins []string
	version string
	now     func() time.Time

	refresher Refresher
	tickers   []string

	mu      sync.Mutex
	running bool
	lastRun *pipeline.BatchResult
	lastErr string
}

// Option configures a Server.
type Option func(*Server)

// WithConfig exposes a redacted view of cfg at /api/v1/config.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *infra.Logger) Option {
	return func(s *Server) { s.logger = l.Component("api") }
}

// WithCORSOrigins restricts allowed origins. Empty means any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a configured API server over store.
func NewServer(store *snapshot.Store, opts ...Option) *Server {
	s := &Server{
		store:   store,
		hub:     NewHub(),
		logger:  infra.NewSilentLogger(),
		version: "dev",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// EnableRefresh lets the server run r over tickers, on POST /api/v1/refresh
// and from RunScheduler. Call before serving.
func (s *Server) EnableRefresh(r Refresher, tickers []string) {
	s.refresher = r
	s.tickers = tickers
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.origins) > 0 {
		origins = s.origins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleGetConfig)

		r.Get("/tickers", s.handleTickers)
		r.Route("/tickers/{ticker}", func(r chi.Router) {
			r.Get("/", s.handleReport)
			r.Get("/filings", s.handleFilings)
			r.Get("/risks", s.handleRisks)
			r.Get("/financials", s.handleFinancials)
			r.Get("/holdings", s.handleHoldings)
			r.Get("/intelligence", s.handleIntelligence)
			r.Get("/dossier", s.handleDossier)
		})

		r.Get("/refresh", s.handleRefreshStatus)
		r.Post("/refresh", s.handleRefresh)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// requestLogger logs each request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// ============================================================
// Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TickerSummary is one row of GET /api/v1/tickers.
type TickerSummary struct {
	Ticker           string    `json:"ticker"`
	CIK              string    `json:"cik,omitempty"`
	FetchedAt        time.Time `json:"fetched_at,omitempty"`
	Strategy         string    `json:"strategy,omitempty"`
	Placeholder      bool      `json:"placeholder,omitempty"`
	LatestFiling     string    `json:"latest_filing,omitempty"`
	RiskScore        *int      `json:"risk_score,omitempty"`
	HealthScore      *int      `json:"health_score,omitempty"`
	ConvictionSignal string    `json:"conviction_signal,omitempty"`
	Warnings         int       `json:"warnings"`
}

// RefreshStatus is the body of GET /api/v1/refresh.
type RefreshStatus struct {
	Enabled bool                  `json:"enabled"`
	Running bool                  `json:"running"`
	Tickers []string              `json:"tickers,omitempty"`
	LastRun *pipeline.BatchResult `json:"last_run,omitempty"`
	LastErr string                `json:"last_error,omitempty"`
}

// ConfigView is the redacted configuration returned by GET /api/v1/config.
type ConfigView struct {
	Transport       string             `json:"transport"`
	RateLimit       int                `json:"rate_limit"`
	Placeholders    bool               `json:"placeholders"`
	Tickers         []string           `json:"tickers"`
	Forms           []string           `json:"forms"`
	DataDir         string             `json:"data_dir"`
	Narrative       bool               `json:"narrative"`
	LLMPrimary      string             `json:"llm_primary"`
	LLMModel        string             `json:"llm_model"`
	RefreshInterval string             `json:"refresh_interval"`
	Keys            []config.KeyStatus `json:"keys"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":     "ok",
			"version":    s.version,
			"time":       s.now().UTC().Format(time.RFC3339),
			"ws_clients": s.hub.ClientCount(),
		},
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusNotFound, "configuration not exposed")
		return
	}
	c := s.cfg
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: ConfigView{
		Transport:       c.SEC.Transport,
		RateLimit:       c.SEC.RateLimit,
		Placeholders:    c.SEC.Placeholders,
		Tickers:         c.Batch.Tickers,
		Forms:           c.Batch.Forms,
		DataDir:         c.Batch.DataDir,
		Narrative:       c.Batch.Narrative,
		LLMPrimary:      c.LLM.Primary,
		LLMModel:        c.LLM.Model,
		RefreshInterval: c.API.RefreshInterval.String(),
		Keys:            config.CheckAPIKeys(c),
	}})
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := s.store.Tickers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]TickerSummary, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, s.summary(t))
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

// latestFiling returns the date of the newest real filing as reported. Feed
// dates ("Unknown") and other unparseable values are skipped.
func latestFiling(filings []models.FilingDescriptor) string {
	var (
		latest string
		newest time.Time
	)
	for _, f := range filings {
		if f.IsPlaceholder() {
			continue
		}
		t := utils.ParseSECDate(f.Date)
		if t.IsZero() {
			continue
		}
		if t.After(newest) {
			newest, latest = t, f.Date
		}
	}
	return latest
}

// summary condenses a stored report. A ticker without a readable report
// still gets a row.
func (s *Server) summary(ticker string) TickerSummary {
	sum := TickerSummary{Ticker: ticker}
	rep, err := s.store.Report(ticker)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("unreadable report")
		}
		return sum
	}
	sum.CIK = rep.CIK
	sum.FetchedAt = rep.FetchedAt
	sum.Strategy = rep.Strategy
	sum.Warnings = len(rep.Warnings)
	for _, f := range rep.Filings {
		if f.IsPlaceholder() {
			sum.Placeholder = true
			break
		}
	}
	sum.LatestFiling = latestFiling(rep.Filings)
	if rep.Redline != nil {
		score := rep.Redline.RiskScore
		sum.RiskScore = &score
	}
	if rep.Financials != nil {
		score := rep.Financials.HealthScore
		sum.HealthScore = &score
	}
	if rep.Holdings != nil {
		sum.ConvictionSignal = rep.Holdings.ConvictionSignal
	}
	return sum
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	serveStored(w, r, s.store.Report)
}

func (s *Server) handleFilings(w http.ResponseWriter, r *http.Request) {
	serveStored(w, r, s.store.Filings)
}

func (s *Server) handleRisks(w http.ResponseWriter, r *http.Request) {
	serveStored(w, r, s.store.Risks)
}

func (s *Server) handleFinancials(w http.ResponseWriter, r *http.Request) {
	serveStored(w, r, s.store.Financials)
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	serveStored(w, r, s.store.Holdings)
}

func (s *Server) handleIntelligence(w http.ResponseWriter, r *http.Request) {
	serveStored(w, r, s.store.Intelligence)
}

// serveStored reads one snapshot file for the {ticker} URL parameter.
func serveStored[T any](w http.ResponseWriter, r *http.Request, read func(string) (T, error)) {
	v, err := read(tickerParam(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: v})
}

func (s *Server) handleDossier(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.store.Report(tickerParam(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	cfg := report.DefaultConfig()
	cfg.Format = format
	if secs := r.URL.Query().Get("sections"); secs != "" {
		cfg.Sections = nil
		for _, sec := range strings.Split(secs, ",") {
			cfg.Sections = append(cfg.Sections, report.Section(strings.TrimSpace(strings.ToLower(sec))))
		}
	}

	out, err := report.Render(rep, cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if format == report.FormatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.RefreshStatus()})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusNotImplemented, ErrNoRefresher.Error())
		return
	}
	if !s.begin() {
		writeError(w, http.StatusConflict, ErrRefreshRunning.Error())
		return
	}
	// The batch outlives the request.
	go s.run(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, APIResponse{Success: true, Data: map[string]any{
		"status":  "started",
		"tickers": s.tickers,
	}})
}

// ============================================================
// Refresh
// ============================================================

// Refresh runs the batch synchronously.
func (s *Server) Refresh(ctx context.Context) (*pipeline.BatchResult, error) {
	if s.refresher == nil {
		return nil, ErrNoRefresher
	}
	if !s.begin() {
		return nil, ErrRefreshRunning
	}
	return s.run(ctx)
}

// RunScheduler calls Refresh every interval until ctx is cancelled.
func (s *Server) RunScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.refresher == nil {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshRunning) {
				s.logger.Error().Err(err).Msg("scheduled refresh failed")
			}
		}
	}
}

// RefreshStatus reports the refresh state.
func (s *Server) RefreshStatus() RefreshStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RefreshStatus{
		Enabled: s.refresher != nil,
		Running: s.running,
		Tickers: s.tickers,
		LastRun: s.lastRun,
		LastErr: s.lastErr,
	}
}

// TickerDone broadcasts one finished ticker. Pass it to pipeline.WithProgress.
func (s *Server) TickerDone(res pipeline.TickerResult) {
	ev := TickerEvent{Ticker: res.Ticker, OK: res.Err == nil, Error: res.Error}
	if rep := res.Report; rep != nil {
		ev.RunID = rep.RunID
		if rep.Redline != nil {
			score := rep.Redline.RiskScore
			ev.RiskScore = &score
		}
		if rep.Financials != nil {
			score := rep.Financials.HealthScore
			ev.HealthScore = &score
		}
	}
	s.hub.Broadcast(WSMessage{Type: EventTickerDone, Data: ev})
}

func (s *Server) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Server) run(ctx context.Context) (*pipeline.BatchResult, error) {
	s.hub.Broadcast(WSMessage{Type: EventBatchStarted, Data: map[string]any{"tickers": s.tickers}})

	res, err := s.refresher.Run(ctx, s.tickers)

	s.mu.Lock()
	s.running = false
	if res != nil {
		s.lastRun = res
	}
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	done := BatchEvent{Error: s.lastErr}
	if res != nil {
		done.RunID = res.RunID
		done.Succeeded = res.Succeeded()
		done.Failed = len(res.Failed())
	}
	s.hub.Broadcast(WSMessage{Type: EventBatchFinished, Data: done})
	return res, err
}

// ============================================================
// Helpers
// ============================================================

func tickerParam(r *http.Request) string {
	return utils.NormalizeTicker(chi.URLParam(r, "ticker"))
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		writeError(w, http.StatusNotFound, "no snapshot")
	case errors.Is(err, snapshot.ErrInvalidTicker):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// compile-time check
var _ Refresher = (*pipeline.Batch)(nil)
