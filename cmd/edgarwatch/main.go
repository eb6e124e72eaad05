// Command edgarwatch is a forensic auditor for SEC EDGAR filings.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/seenimoa/edgarwatch/internal/config"
	"github.com/seenimoa/edgarwatch/internal/infra"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root command's pre-run.
var (
	cfg    *config.Config
	logger *infra.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "edgarwatch",
	Short: "edgarwatch — forensic auditor for SEC EDGAR filings",
	Long: `edgarwatch locates recent 10-K, 10-Q and 13F-HR filings on SEC EDGAR,
redlines risk-factor language between periods, audits liquidity and cash
trends from XBRL facts, diffs institutional holdings and drafts story leads.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Secrets may live in a local .env file; a missing file is fine.
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
		}

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger = infra.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(filingsCmd)
	rootCmd.AddCommand(redlineCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(holdingsCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("edgarwatch %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and API key status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  edgarwatch — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Transport:     %s (rate limit %d/s)\n", cfg.SEC.Transport, cfg.SEC.RateLimit)
		fmt.Printf("    User-Agent:    %s\n", cfg.SEC.UserAgent)
		fmt.Printf("    Placeholders:  %t\n", cfg.SEC.Placeholders)
		fmt.Printf("    Ticker table:  %d entries\n", cfg.TickerTable().Len())
		fmt.Printf("    Batch:         %v forms %v (data dir %s)\n", cfg.Batch.Tickers, cfg.Batch.Forms, cfg.Batch.DataDir)
		fmt.Printf("    LLM Provider:  %s (model: %s, fallback: %s)\n", cfg.LLM.Primary, cfg.LLM.Model, cfg.LLM.FallbackModel)
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
