package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/edgarwatch/internal/snapshot"
	"github.com/seenimoa/edgarwatch/pkg/models"
)

type runnerFunc func(ctx context.Context, ticker string) (*models.TickerReport, error)

func (f runnerFunc) Run(ctx context.Context, ticker string) (*models.TickerReport, error) {
	return f(ctx, ticker)
}

func okReport(ticker string) *models.TickerReport {
	return &models.TickerReport{
		Ticker:  ticker,
		CIK:     "0000000001",
		Filings: []models.FilingDescriptor{},
		Risks:   map[string]string{},
	}
}

func TestBatchIsolatesFailures(t *testing.T) {
	store := snapshot.New(t.TempDir())
	runner := runnerFunc(func(_ context.Context, ticker string) (*models.TickerReport, error) {
		if ticker == "BAD" {
			return nil, errors.New("boom")
		}
		return okReport(ticker), nil
	})
	b := NewBatch(runner, store, WithDelay(0), WithRunID(func() string { return "run-1" }))

	res, err := b.Run(context.Background(), []string{"aapl", "BAD", "brk.b"})
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	require.Len(t, res.Results, 3)
	assert.Equal(t, []string{"AAPL", "BAD", "BRK-B"}, []string{res.Results[0].Ticker, res.Results[1].Ticker, res.Results[2].Ticker})
	assert.Equal(t, 2, res.Succeeded())
	require.Len(t, res.Failed(), 1)
	assert.Equal(t, "boom", res.Failed()[0].Error)

	stored, err := store.Report("BRK-B")
	require.NoError(t, err)
	assert.Equal(t, "run-1", stored.RunID)

	_, err = store.Report("BAD")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestBatchDelayBetweenTickers(t *testing.T) {
	var calls int32
	runner := runnerFunc(func(_ context.Context, ticker string) (*models.TickerReport, error) {
		atomic.AddInt32(&calls, 1)
		return okReport(ticker), nil
	})
	b := NewBatch(runner, nil, WithDelay(20*time.Millisecond))

	start := time.Now()
	res, err := b.Run(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 3, res.Succeeded())
	assert.NotEmpty(t, res.RunID, "uuid run id by default")
}

func TestBatchConcurrency(t *testing.T) {
	var inFlight, peak int32
	runner := runnerFunc(func(_ context.Context, ticker string) (*models.TickerReport, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return okReport(ticker), nil
	})
	b := NewBatch(runner, nil, WithDelay(0), WithConcurrency(2))

	_, err := b.Run(context.Background(), []string{"A", "B", "C", "D", "E"})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := runnerFunc(func(_ context.Context, ticker string) (*models.TickerReport, error) {
		cancel()
		return okReport(ticker), nil
	})
	b := NewBatch(runner, nil, WithDelay(time.Hour))

	res, err := b.Run(ctx, []string{"A", "B"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Succeeded())
	assert.ErrorIs(t, res.Results[1].Err, context.Canceled)
}

func TestBatchReportsProgress(t *testing.T) {
	runner := runnerFunc(func(_ context.Context, ticker string) (*models.TickerReport, error) {
		if ticker == "BAD" {
			return nil, errors.New("boom")
		}
		return okReport(ticker), nil
	})

	var mu sync.Mutex
	var seen []string
	b := NewBatch(runner, nil, WithDelay(0), WithConcurrency(2), WithProgress(func(r TickerResult) {
		mu.Lock()
		defer mu.Unlock()
		if r.Err != nil {
			seen = append(seen, r.Ticker+":"+r.Error)
			return
		}
		seen = append(seen, r.Ticker)
	}))

	_, err := b.Run(context.Background(), []string{"A", "BAD", "C"})
	require.NoError(t, err)

	sort.Strings(seen)
	assert.Equal(t, []string{"A", "BAD:boom", "C"}, seen)
}
