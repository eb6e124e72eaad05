package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seenimoa/edgarwatch/api"
	"github.com/seenimoa/edgarwatch/internal/pipeline"
)

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: api.addr)")
	serveCmd.Flags().Bool("refresh", false, "allow POST /api/v1/refresh to run the snapshot job")
	serveCmd.Flags().Duration("interval", 0, "run the snapshot job on this interval (default: api.refresh_interval)")
	rootCmd.AddCommand(serveCmd)
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored snapshots over HTTP",
	Long: `serve exposes the snapshot directory as a read-only JSON API with
rendered dossiers. With --refresh or a refresh interval it also runs the
snapshot job and streams per-ticker progress on /api/v1/ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := cfg.API.Addr
		if a, _ := cmd.Flags().GetString("addr"); a != "" {
			addr = a
		}
		interval := cfg.API.RefreshInterval
		if cmd.Flags().Changed("interval") {
			interval, _ = cmd.Flags().GetDuration("interval")
		}
		refresh, _ := cmd.Flags().GetBool("refresh")

		a := newApp(ctx, cfg, logger, appOptions{narrative: cfg.Batch.Narrative && (refresh || interval > 0)})
		srv := api.NewServer(a.store,
			api.WithConfig(cfg),
			api.WithLogger(logger),
			api.WithCORSOrigins(cfg.API.CORSOrigins),
			api.WithVersion(version),
		)

		if refresh || interval > 0 {
			batch := pipeline.NewBatch(a.pipeline, a.store,
				pipeline.WithConcurrency(cfg.Batch.Concurrency),
				pipeline.WithDelay(cfg.Batch.Delay),
				pipeline.WithBatchLogger(logger),
				pipeline.WithProgress(srv.TickerDone),
			)
			srv.EnableRefresh(batch, cfg.Batch.Tickers)
			go srv.RunScheduler(ctx, interval)
		}

		return srv.ListenAndServe(ctx, addr)
	},
}

