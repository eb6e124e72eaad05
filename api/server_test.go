package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seenimoa/edgarwatch/internal/config"
	"github.com/seenimoa/edgarwatch/internal/pipeline"
	"github.com/seenimoa/edgarwatch/internal/snapshot"
	"github.com/seenimoa/edgarwatch/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func testServer(t *testing.T, opts ...Option) (*Server, *snapshot.Store) {
	t.Helper()
	store := snapshot.New(t.TempDir())
	srv := NewServer(store, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)
	return srv, store
}

func storedReport(t *testing.T, store *snapshot.Store, ticker string) *models.TickerReport {
	t.Helper()
	r := &models.TickerReport{
		RunID:    "run-7",
		Ticker:   ticker,
		CIK:      "0000320193",
		Strategy: "submissions",
		Filings: []models.FilingDescriptor{
			models.NewFilingDescriptor("0000320193", "10-Q", "0000320193-24-000081", "a.htm", "2024-08-02"),
		},
		Risks:      map[string]string{"0000320193-24-000081": "risk text"},
		Redline:    &models.RedlineResult{RiskScore: 4, Escalations: []models.KeywordHit{}, SilentDeletions: []models.KeywordHit{}},
		Financials: &models.FinancialAudit{Cash: "$1.0B", Alerts: []models.Alert{}, HealthScore: 7},
		Holdings:   &models.HoldingsDelta{ConvictionSignal: models.SignalBearish},
		Warnings:   []string{"one"},
		FetchedAt:  time.Date(2024, 8, 3, 0, 0, 0, 0, time.UTC),
	}
	if err := store.SaveReport(r); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	return r
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

type fakeRefresher struct {
	calls   int32
	release chan struct{}
	result  *pipeline.BatchResult
	err     error
}

func (f *fakeRefresher) Run(ctx context.Context, tickers []string) (*pipeline.BatchResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ════════════════════════════════════════════════════════════════════
// Read endpoints
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, WithVersion("1.2.3"))
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := do(t, srv, http.MethodGet, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		var data map[string]any
		resp := decodeResponse(t, rec, &data)
		if !resp.Success || data["status"] != "ok" || data["version"] != "1.2.3" {
			t.Errorf("%s: unexpected body %+v %+v", path, resp, data)
		}
	}
}

func TestTickersEmpty(t *testing.T) {
	srv, _ := testServer(t)
	rec := do(t, srv, http.MethodGet, "/api/v1/tickers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var rows []TickerSummary
	decodeResponse(t, rec, &rows)
	if len(rows) != 0 {
		t.Errorf("expected no tickers, got %v", rows)
	}
}

func TestTickersSummaries(t *testing.T) {
	srv, store := testServer(t)
	storedReport(t, store, "AAPL")
	// A directory with only filings still lists.
	if err := store.SaveFilings("MSFT", []models.FilingDescriptor{}); err != nil {
		t.Fatal(err)
	}

	rec := do(t, srv, http.MethodGet, "/api/v1/tickers")
	var rows []TickerSummary
	decodeResponse(t, rec, &rows)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	aapl, msft := rows[0], rows[1]
	if aapl.Ticker != "AAPL" || aapl.CIK != "0000320193" || aapl.Strategy != "submissions" {
		t.Errorf("AAPL row = %+v", aapl)
	}
	if aapl.RiskScore == nil || *aapl.RiskScore != 4 {
		t.Errorf("AAPL risk score = %v", aapl.RiskScore)
	}
	if aapl.HealthScore == nil || *aapl.HealthScore != 7 {
		t.Errorf("AAPL health score = %v", aapl.HealthScore)
	}
	if aapl.ConvictionSignal != models.SignalBearish || aapl.Warnings != 1 || aapl.Placeholder {
		t.Errorf("AAPL row = %+v", aapl)
	}
	if aapl.LatestFiling != "2024-08-02" {
		t.Errorf("AAPL latest filing = %q", aapl.LatestFiling)
	}
	if msft.Ticker != "MSFT" || msft.CIK != "" || msft.RiskScore != nil {
		t.Errorf("MSFT row = %+v", msft)
	}
}

func TestLatestFiling(t *testing.T) {
	filings := []models.FilingDescriptor{
		{Date: "2024-05-03"},
		{Date: "Unknown"},
		{Date: "2024-08-02T16:30:12-04:00"},
		{Date: "2025-01-01", URL: models.PlaceholderURL, Placeholder: true},
		{Date: "02/01/2024"},
	}
	if got := latestFiling(filings); got != "2024-08-02T16:30:12-04:00" {
		t.Errorf("latestFiling = %q", got)
	}
	if got := latestFiling([]models.FilingDescriptor{{Date: "Unknown"}}); got != "" {
		t.Errorf("latestFiling(unparseable) = %q, want empty", got)
	}
}

func TestReportAndParts(t *testing.T) {
	srv, store := testServer(t)
	storedReport(t, store, "AAPL")

	rec := do(t, srv, http.MethodGet, "/api/v1/tickers/aapl")
	if rec.Code != http.StatusOK {
		t.Fatalf("report status %d", rec.Code)
	}
	var rep models.TickerReport
	decodeResponse(t, rec, &rep)
	if rep.RunID != "run-7" || rep.Ticker != "AAPL" {
		t.Errorf("report = %+v", rep)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/tickers/AAPL/filings")
	var filings []models.FilingDescriptor
	decodeResponse(t, rec, &filings)
	if len(filings) != 1 || filings[0].Accession != "0000320193-24-000081" {
		t.Errorf("filings = %+v", filings)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/tickers/AAPL/risks")
	var risks map[string]string
	decodeResponse(t, rec, &risks)
	if risks["0000320193-24-000081"] != "risk text" {
		t.Errorf("risks = %v", risks)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/tickers/AAPL/financials")
	var fin models.FinancialAudit
	decodeResponse(t, rec, &fin)
	if fin.HealthScore != 7 || fin.Cash != "$1.0B" {
		t.Errorf("financials = %+v", fin)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/tickers/AAPL/holdings")
	if rec.Code != http.StatusOK {
		t.Errorf("holdings status %d", rec.Code)
	}

	// No intelligence was stored.
	rec = do(t, srv, http.MethodGet, "/api/v1/tickers/AAPL/intelligence")
	if rec.Code != http.StatusNotFound {
		t.Errorf("intelligence status %d, want 404", rec.Code)
	}
}

func TestReportNotFound(t *testing.T) {
	srv, _ := testServer(t)
	rec := do(t, srv, http.MethodGet, "/api/v1/tickers/ZZZZ")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
	resp := decodeResponse(t, rec, nil)
	if resp.Success || resp.Error != "no snapshot" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestWriteStoreError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{snapshot.ErrNotFound, http.StatusNotFound},
		{snapshot.ErrInvalidTicker, http.StatusBadRequest},
		{errors.New("disk"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeStoreError(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v: status %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestDossier(t *testing.T) {
	srv, store := testServer(t)
	storedReport(t, store, "AAPL")

	rec := do(t, srv, http.MethodGet, "/api/v1/tickers/AAPL/dossier")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "AAPL Forensic Dossier") {
		t.Error("expected dossier title")
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/tickers/AAPL/dossier?format=text&sections=financials")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "FINANCIAL AUDIT") || strings.Contains(body, "RISK REDLINE") {
		t.Errorf("unexpected text dossier:\n%s", body)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/tickers/AAPL/dossier?format=pdf")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("pdf status %d, want 400", rec.Code)
	}
}

func TestConfigRedacted(t *testing.T) {
	srv, _ := testServer(t)
	if rec := do(t, srv, http.MethodGet, "/api/v1/config"); rec.Code != http.StatusNotFound {
		t.Errorf("no config: status %d, want 404", rec.Code)
	}

	cfg := &config.Config{}
	cfg.SEC.Transport = "relay"
	cfg.Batch.Tickers = []string{"AAPL"}
	cfg.LLM.OpenRouterKey = "sk-or-secret-value-123"
	srv, _ = testServer(t, WithConfig(cfg))

	rec := do(t, srv, http.MethodGet, "/api/v1/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "sk-or-secret-value-123") {
		t.Fatal("raw API key leaked")
	}
	var view ConfigView
	decodeResponse(t, rec, &view)
	if view.Transport != "relay" || len(view.Keys) != 2 || !view.Keys[0].IsSet {
		t.Errorf("view = %+v", view)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := testServer(t, WithCORSOrigins([]string{"http://desk.test"}))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tickers", nil)
	req.Header.Set("Origin", "http://desk.test")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://desk.test" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Refresh
// ════════════════════════════════════════════════════════════════════

func TestRefreshDisabled(t *testing.T) {
	srv, _ := testServer(t)
	if rec := do(t, srv, http.MethodPost, "/api/v1/refresh"); rec.Code != http.StatusNotImplemented {
		t.Errorf("status %d, want 501", rec.Code)
	}
	if _, err := srv.Refresh(context.Background()); !errors.Is(err, ErrNoRefresher) {
		t.Errorf("Refresh err = %v", err)
	}
}

func TestRefreshAsync(t *testing.T) {
	srv, _ := testServer(t)
	fr := &fakeRefresher{
		release: make(chan struct{}),
		result:  &pipeline.BatchResult{RunID: "run-9", Results: []pipeline.TickerResult{{Ticker: "AAPL"}}},
	}
	srv.EnableRefresh(fr, []string{"AAPL"})

	rec := do(t, srv, http.MethodPost, "/api/v1/refresh")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d, want 202", rec.Code)
	}
	waitFor(t, "refresh to start", func() bool { return atomic.LoadInt32(&fr.calls) == 1 })

	// A second request while running is rejected.
	if rec := do(t, srv, http.MethodPost, "/api/v1/refresh"); rec.Code != http.StatusConflict {
		t.Errorf("concurrent refresh status %d, want 409", rec.Code)
	}
	if !srv.RefreshStatus().Running {
		t.Error("expected running status")
	}

	close(fr.release)
	waitFor(t, "refresh to finish", func() bool { return !srv.RefreshStatus().Running })

	rec = do(t, srv, http.MethodGet, "/api/v1/refresh")
	var st RefreshStatus
	decodeResponse(t, rec, &st)
	if !st.Enabled || st.Running || st.LastRun == nil || st.LastRun.RunID != "run-9" || st.LastErr != "" {
		t.Errorf("status = %+v", st)
	}
}

func TestRefreshBroadcastsEvents(t *testing.T) {
	srv, _ := testServer(t)
	client := srv.hub.Register()

	fr := &fakeRefresher{err: errors.New("partial"), result: &pipeline.BatchResult{
		RunID:   "run-3",
		Results: []pipeline.TickerResult{{Ticker: "A"}, {Ticker: "B", Err: errors.New("x"), Error: "x"}},
	}}
	srv.EnableRefresh(fr, []string{"A", "B"})

	res, err := srv.Refresh(context.Background())
	if err == nil || err.Error() != "partial" || res.RunID != "run-3" {
		t.Fatalf("Refresh = %v, %v", res, err)
	}
	if srv.RefreshStatus().LastErr != "partial" {
		t.Errorf("LastErr = %q", srv.RefreshStatus().LastErr)
	}

	var types []string
	var finished BatchEvent
	for len(types) < 2 {
		select {
		case msg := <-client.send:
			types = append(types, msg.Type)
			if ev, ok := msg.Data.(BatchEvent); ok {
				finished = ev
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out; got %v", types)
		}
	}
	if types[0] != EventBatchStarted || types[1] != EventBatchFinished {
		t.Errorf("event types = %v", types)
	}
	if finished.RunID != "run-3" || finished.Succeeded != 1 || finished.Failed != 1 || finished.Error != "partial" {
		t.Errorf("finished = %+v", finished)
	}
}

func TestRunSchedulerStopsOnCancel(t *testing.T) {
	srv, _ := testServer(t)
	fr := &fakeRefresher{result: &pipeline.BatchResult{}}
	srv.EnableRefresh(fr, []string{"A"})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.RunScheduler(ctx, 10*time.Millisecond)
	}()
	waitFor(t, "two scheduled runs", func() bool { return atomic.LoadInt32(&fr.calls) >= 2 })
	cancel()
	wg.Wait()
}

// ════════════════════════════════════════════════════════════════════
// Hub / WebSocket
// ════════════════════════════════════════════════════════════════════

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub()
	c := h.Register()
	for i := 0; i < cap(c.send)+1; i++ {
		h.deliver(WSMessage{Type: "x"})
	}
	if h.ClientCount() != 0 {
		t.Errorf("slow client should be dropped, count = %d", h.ClientCount())
	}
	h.Unregister(c) // second close must not panic
}

func TestWebSocketStream(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, "client registration", func() bool { return srv.hub.ClientCount() == 1 })

	score := 3
	srv.TickerDone(pipeline.TickerResult{
		Ticker: "AAPL",
		Report: &models.TickerReport{RunID: "run-1", Redline: &models.RedlineResult{RiskScore: score}},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string      `json:"type"`
		Data TickerEvent `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != EventTickerDone || msg.Data.Ticker != "AAPL" || !msg.Data.OK || msg.Data.RunID != "run-1" {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Data.RiskScore == nil || *msg.Data.RiskScore != 3 || msg.Data.HealthScore != nil {
		t.Errorf("scores = %v %v", msg.Data.RiskScore, msg.Data.HealthScore)
	}

	if err := conn.WriteJSON(WSMessage{Type: "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var pong WSMessage
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != EventPong {
		t.Errorf("pong type = %q", pong.Type)
	}
}
