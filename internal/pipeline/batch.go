package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/edgarwatch/internal/infra"
	"github.com/seenimoa/edgarwatch/internal/snapshot"
	"github.com/seenimoa/edgarwatch/pkg/models"
	"github.com/seenimoa/edgarwatch/pkg/utils"
)

// Runner produces a report for one ticker. *Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, ticker string) (*models.TickerReport, error)
}

// TickerResult is the outcome for one ticker of a batch.
type TickerResult struct {
	Ticker string               `json:"ticker"`
	Report *models.TickerReport `json:"-"`
	Err    error                `json:"-"`
	Error  string               `json:"error,omitempty"`
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	RunID    string         `json:"run_id"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Results  []TickerResult `json:"results"`
}

// Succeeded returns the number of tickers whose report was written.
func (r *BatchResult) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (r *BatchResult) Failed() []TickerResult {
	var out []TickerResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Batch runs the pipeline over a ticker list and persists each report.
type Batch struct {
	runner      Runner
	store       *snapshot.Store
	delay       time.Duration
	concurrency int
	logger      *infra.Logger
	newID       func() string
	now         func() time.Time
	progress    func(TickerResult)
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithDelay sets the pause between starting consecutive tickers.
func WithDelay(d time.Duration) BatchOption {
	return func(b *Batch) { b.delay = d }
}

// WithConcurrency caps how many tickers run at once.
func WithConcurrency(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithBatchLogger sets the logger.
func WithBatchLogger(l *infra.Logger) BatchOption {
	return func(b *Batch) { b.logger = l.Component("batch") }
}

// WithRunID replaces the run identifier generator.
func WithRunID(gen func() string) BatchOption {
	return func(b *Batch) { b.newID = gen }
}

// WithProgress registers fn to be called as each ticker finishes. fn may be
// called from several goroutines at once.
func WithProgress(fn func(TickerResult)) BatchOption {
	return func(b *Batch) { b.progress = fn }
}

// NewBatch creates a Batch writing to store. A nil store skips persistence.
func NewBatch(runner Runner, store *snapshot.Store, opts ...BatchOption) *Batch {
	b := &Batch{
		runner:      runner,
		store:       store,
		delay:       200 * time.Millisecond,
		concurrency: 1,
		logger:      infra.NewSilentLogger(),
		newID:       uuid.NewString,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run processes every ticker. A failing ticker is recorded in the result
// and never stops the others; only cancellation of ctx ends the batch early.
// Results keep the order of tickers.
func (b *Batch) Run(ctx context.Context, tickers []string) (*BatchResult, error) {
	res := &BatchResult{
		RunID:   b.newID(),
		Started: b.now().UTC(),
		Results: make([]TickerResult, len(tickers)),
	}
	log := b.logger.With().Str("run_id", res.RunID).Logger()
	log.Info().Int("tickers", len(tickers)).Int("concurrency", b.concurrency).Msg("batch started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, t := range tickers {
		ticker := utils.NormalizeTicker(t)
		res.Results[i].Ticker = ticker

		if i > 0 && b.delay > 0 {
			select {
			case <-gctx.Done():
			case <-time.After(b.delay):
			}
		}
		if gctx.Err() != nil {
			res.Results[i].Err = gctx.Err()
			res.Results[i].Error = gctx.Err().Error()
			continue
		}

		g.Go(func() error {
			report, err := b.one(gctx, res.RunID, ticker)
			res.Results[i].Report = report
			res.Results[i].Err = err
			if err != nil {
				res.Results[i].Error = err.Error()
				log.Error().Err(err).Str("ticker", ticker).Msg("ticker failed")
			}
			if b.progress != nil {
				b.progress(res.Results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Finished = b.now().UTC()
	log.Info().
		Int("succeeded", res.Succeeded()).
		Int("failed", len(res.Failed())).
		Dur("elapsed", res.Finished.Sub(res.Started)).
		Msg("batch finished")

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (b *Batch) one(ctx context.Context, runID, ticker string) (*models.TickerReport, error) {
	report, err := b.runner.Run(ctx, ticker)
	if err != nil {
		return nil, err
	}
	report.RunID = runID
	if b.store != nil {
		if err := b.store.SaveReport(report); err != nil {
			return report, fmt.Errorf("save %s: %w", ticker, err)
		}
	}
	return report, nil
}
