package main

import (
	"context"
	"time"

	"github.com/seenimoa/edgarwatch/internal/config"
	"github.com/seenimoa/edgarwatch/internal/edgar"
	"github.com/seenimoa/edgarwatch/internal/fetch"
	"github.com/seenimoa/edgarwatch/internal/infra"
	"github.com/seenimoa/edgarwatch/internal/llm"
	"github.com/seenimoa/edgarwatch/internal/narrative"
	"github.com/seenimoa/edgarwatch/internal/pipeline"
	"github.com/seenimoa/edgarwatch/internal/snapshot"
)

// app holds the wired components shared by the subcommands.
type app struct {
	fetcher  *fetch.Fetcher
	resolver *edgar.Resolver
	locator  *edgar.Locator
	store    *snapshot.Store
	pipeline *pipeline.Pipeline
}

// appOptions selects the optional parts of the wiring.
type appOptions struct {
	// snapshotReads lets interactive commands serve stored data first.
	snapshotReads bool
	narrative     bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *infra.Logger, opts appOptions) *app {
	f := fetch.New(fetchOptions(cfg, logger))

	resolver := edgar.NewResolver(cfg.TickerTable(), f,
		edgar.WithDirectoryTTL(cfg.SEC.DirectoryTTL),
		edgar.WithResolverLogger(logger),
	)

	store := snapshot.New(cfg.Batch.DataDir)
	locOpts := []edgar.LocatorOption{edgar.WithLocatorLogger(logger)}
	if opts.snapshotReads {
		locOpts = append(locOpts, edgar.WithSnapshot(store))
	}
	locator := edgar.NewLocator(edgar.DefaultStrategies(f, edgar.StrategyOptions{
		Placeholders: cfg.SEC.Placeholders,
		Logger:       logger,
	}), locOpts...)

	pOpts := []pipeline.Option{
		pipeline.WithForms(cfg.Batch.Forms...),
		pipeline.WithCount(cfg.Batch.Count),
		pipeline.WithLogger(logger),
	}
	if opts.snapshotReads {
		pOpts = append(pOpts, pipeline.WithSnapshot(store))
	}
	if opts.narrative {
		pOpts = append(pOpts, pipeline.WithEditor(newEditor(ctx, cfg, logger)))
	}

	return &app{
		fetcher:  f,
		resolver: resolver,
		locator:  locator,
		store:    store,
		pipeline: pipeline.New(resolver, locator, f, pOpts...),
	}
}

func fetchOptions(cfg *config.Config, logger *infra.Logger) fetch.Options {
	opts := fetch.Options{
		Mode:         fetch.Mode(cfg.SEC.Transport),
		UserAgent:    cfg.SEC.UserAgent,
		Timeout:      cfg.SEC.DirectTimeout,
		MinBodyBytes: cfg.SEC.MinBodyBytes,
		Limiter:      infra.NewRateLimiter(cfg.SEC.RateLimit, time.Second),
		Logger:       logger,
	}
	if opts.Mode == fetch.ModeRelay {
		opts.Timeout = cfg.SEC.RelayTimeout
	}
	for _, r := range cfg.SEC.Relays {
		opts.Relays = append(opts.Relays, fetch.RelayEndpoint{Name: r.Name, Prefix: r.Prefix, Encode: r.Encode})
	}
	return opts
}

// newEditor returns an editor backed by every configured provider, or an
// editor that explains the missing key when none is configured.
func newEditor(ctx context.Context, cfg *config.Config, logger *infra.Logger) *narrative.Editor {
	editorOpts := []narrative.Option{
		narrative.WithSampling(cfg.LLM.Temperature, cfg.LLM.MaxTokens),
		narrative.WithLogger(logger),
	}
	router, err := llm.NewRouterFromConfig(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("narrative synthesis disabled")
		return narrative.NewEditor(nil, editorOpts...)
	}
	return narrative.NewEditor(router, editorOpts...)
}
