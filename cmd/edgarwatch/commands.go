package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/edgarwatch/internal/analysis/audit"
	"github.com/seenimoa/edgarwatch/internal/edgar"
	"github.com/seenimoa/edgarwatch/internal/pipeline"
	"github.com/seenimoa/edgarwatch/internal/report"
	"github.com/seenimoa/edgarwatch/internal/snapshot"
	"github.com/seenimoa/edgarwatch/pkg/models"
	"github.com/seenimoa/edgarwatch/pkg/utils"
)

func init() {
	filingsCmd.Flags().String("form", "10-K", "filing form type (10-K, 10-Q, 13F-HR)")
	filingsCmd.Flags().Int("count", 2, "number of filings to list")

	redlineCmd.Flags().String("form", "10-K", "form whose risk sections are compared")

	auditCmd.Flags().Bool("live", false, "skip stored snapshots and query EDGAR")
	auditCmd.Flags().String("file", "", "audit a saved companyfacts JSON document instead of querying EDGAR")

	fetchCmd.Flags().StringSlice("tickers", nil, "tickers to process (default: batch.tickers from config)")
	fetchCmd.Flags().Int("concurrency", 0, "tickers processed in parallel (default: batch.concurrency)")
	fetchCmd.Flags().Duration("delay", 0, "pause between tickers (default: batch.delay)")
	fetchCmd.Flags().Bool("narrative", false, "draft story leads for every ticker")

	reportCmd.Flags().String("format", "html", "dossier format (html, text)")
	reportCmd.Flags().StringP("output", "o", "", "write the dossier to a file instead of stdout")
	reportCmd.Flags().Bool("live", false, "run the pipeline instead of reading the stored snapshot")
	reportCmd.Flags().StringSlice("sections", nil, "sections to include (filings, redline, financials, holdings, intelligence, warnings)")
}

// --- Resolve Command ---

var resolveCmd = &cobra.Command{
	Use:   "resolve <ticker>",
	Short: "Resolve a ticker to its 10-digit SEC CIK",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := newApp(ctx, cfg, logger, appOptions{})
		ticker := utils.NormalizeTicker(args[0])
		cik, err := a.resolver.Resolve(ctx, ticker)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", ticker, err)
		}
		return output(cmd, map[string]string{"ticker": ticker, "cik": cik}, func() {
			fmt.Printf("%s → CIK %s\n", ticker, cik)
		})
	},
}

// --- Filings Command ---

var filingsCmd = &cobra.Command{
	Use:   "filings <ticker>",
	Short: "List the most recent filings of a form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		form, _ := cmd.Flags().GetString("form")
		count, _ := cmd.Flags().GetInt("count")

		a := newApp(ctx, cfg, logger, appOptions{snapshotReads: true})
		ticker := utils.NormalizeTicker(args[0])
		cik, err := a.resolver.Resolve(ctx, ticker)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", ticker, err)
		}
		located, err := a.locator.Locate(ctx, cik, strings.ToUpper(form), count, ticker)
		if err != nil {
			return fmt.Errorf("locate %s %s: %w", ticker, form, err)
		}

		return output(cmd, located, func() {
			fmt.Printf("📄 %s %s filings (CIK %s, via %s)\n", ticker, strings.ToUpper(form), cik, located.Strategy)
			if located.Placeholder() {
				fmt.Println("   ⚠️  placeholder filings: no live source answered")
			}
			for _, f := range located.Filings {
				fmt.Printf("   %-8s %-12s %s\n", f.Form, f.Date, f.Accession)
				fmt.Printf("            %s\n", f.URL)
			}
		})
	},
}

// --- Redline Command ---

var redlineCmd = &cobra.Command{
	Use:   "redline <ticker>",
	Short: "Compare risk-factor language between the two latest filings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		form, _ := cmd.Flags().GetString("form")

		a := newApp(ctx, cfg, logger, appOptions{snapshotReads: true})
		rep, err := a.pipeline.Redline(ctx, args[0], form)
		if err != nil {
			return err
		}
		return output(cmd, rep, func() { printRedline(rep) })
	},
}

func printRedline(rep *pipeline.RedlineReport) {
	r := rep.Result
	fmt.Printf("🔍 Risk redline: %s (CIK %s)\n", rep.Ticker, rep.CIK)
	for _, f := range rep.Located.Filings {
		fmt.Printf("   %s %s %s\n", f.Form, f.Date, f.Accession)
	}
	fmt.Printf("   Sentences added: %d, removed: %d\n", r.AddedCount, r.RemovedCount)
	fmt.Printf("   Risk score: %d\n", r.RiskScore)
	printHits("🚨 Escalations", r.Escalations)
	printHits("🕳️  Silent deletions", r.SilentDeletions)
	for _, w := range rep.Warnings {
		fmt.Printf("   ⚠️  %s\n", w)
	}
	if r.DiffPreview != "" {
		fmt.Println()
		fmt.Println(r.DiffPreview)
	}
}

func printHits(title string, hits []models.KeywordHit) {
	if len(hits) == 0 {
		return
	}
	fmt.Printf("\n%s (%d)\n", title, len(hits))
	for _, h := range hits {
		fmt.Printf("   [%s] %s\n", strings.ToUpper(h.Keyword), h.Text)
	}
}

// --- Audit Command ---

var auditCmd = &cobra.Command{
	Use:   "audit <ticker>",
	Short: "Audit liquidity and cash trend from XBRL facts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		live, _ := cmd.Flags().GetBool("live")
		file, _ := cmd.Flags().GetString("file")

		var (
			res *models.FinancialAudit
			err error
		)
		if file != "" {
			res, err = auditFile(file)
		} else {
			a := newApp(ctx, cfg, logger, appOptions{snapshotReads: !live})
			res, err = a.pipeline.Audit(ctx, args[0])
		}
		if err != nil {
			return err
		}
		return output(cmd, res, func() { printAudit(utils.NormalizeTicker(args[0]), res) })
	},
}

// auditFile audits a companyfacts document saved from
// data.sec.gov/api/xbrl/companyfacts. No network access is made.
func auditFile(path string) (*models.FinancialAudit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read company facts: %w", err)
	}
	facts, err := edgar.ParseCompanyFacts(data)
	if err != nil {
		return nil, err
	}
	return audit.Audit(facts)
}

func printAudit(ticker string, res *models.FinancialAudit) {
	fmt.Printf("💰 Financial audit: %s\n", ticker)
	fmt.Printf("   Current assets:      %s\n", res.CurrentAssets)
	fmt.Printf("   Current liabilities: %s\n", res.CurrentLiabilities)
	fmt.Printf("   Cash:                %s\n", res.Cash)
	fmt.Printf("   Total debt:          %s\n", res.TotalDebt)
	fmt.Printf("   Total assets:        %s\n", res.TotalAssets)
	if res.LiquidityRatio != nil {
		fmt.Printf("   Liquidity ratio:     %.2f\n", *res.LiquidityRatio)
	}
	if res.CashChangePct != nil {
		fmt.Printf("   Cash change:         %+.1f%%\n", *res.CashChangePct)
	}
	fmt.Printf("   Health score:        %d/%d\n", res.HealthScore, audit.BaseHealthScore)
	for _, al := range res.Alerts {
		fmt.Printf("   🚨 %s [%s] %s\n", al.Type, al.Severity, al.Message)
	}
}

// --- Holdings Command ---

var holdingsCmd = &cobra.Command{
	Use:   "holdings <ticker|cik>",
	Short: "Diff the two latest 13F-HR information tables of a filer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := newApp(ctx, cfg, logger, appOptions{snapshotReads: true})
		delta, err := a.pipeline.RunHoldings(ctx, args[0])
		if err != nil {
			return err
		}
		return output(cmd, delta, func() { printHoldings(args[0], delta) })
	},
}

func printHoldings(filer string, d *models.HoldingsDelta) {
	fmt.Printf("🐋 13F activity: %s\n", strings.ToUpper(filer))
	fmt.Printf("   Positions: %d, changed: %d\n", d.TotalPositions, d.ChangesCount)
	fmt.Printf("   Net conviction: %s shares (%s)\n", utils.FormatThousands(float64(d.NetConviction)), d.ConvictionSignal)
	printChanges("Top buys", d.TopBuys)
	printChanges("Top sells", d.TopSells)
	printChanges("New positions", d.NewPositions)
	printChanges("Exits", d.Exits)
}

func printChanges(title string, changes []models.HoldingChange) {
	if len(changes) == 0 {
		return
	}
	fmt.Printf("\n   %s:\n", title)
	for _, c := range changes {
		fmt.Printf("     %-30s %-10s %14s shares (%+.1f%%)  %s\n",
			c.Issuer, c.CUSIP, utils.FormatThousands(float64(c.Delta)), c.DeltaPct,
			utils.FormatUSDCompact(float64(c.CurrentValue)))
	}
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run the snapshot job for the configured tickers",
	Long: `fetch runs the full pipeline for every ticker and writes per-ticker
snapshots under batch.data_dir. A failing ticker is reported and skipped;
the job continues with the rest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tickers, _ := cmd.Flags().GetStringSlice("tickers")
		if len(tickers) == 0 {
			tickers = cfg.Batch.Tickers
		}
		if len(tickers) == 0 {
			return fmt.Errorf("no tickers: pass --tickers or set batch.tickers")
		}
		concurrency := cfg.Batch.Concurrency
		if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
			concurrency = n
		}
		delay := cfg.Batch.Delay
		if cmd.Flags().Changed("delay") {
			delay, _ = cmd.Flags().GetDuration("delay")
		}
		withNarrative := cfg.Batch.Narrative
		if cmd.Flags().Changed("narrative") {
			withNarrative, _ = cmd.Flags().GetBool("narrative")
		}

		// The job produces snapshots, so it never reads them back.
		a := newApp(ctx, cfg, logger, appOptions{narrative: withNarrative})
		batch := pipeline.NewBatch(a.pipeline, a.store,
			pipeline.WithConcurrency(concurrency),
			pipeline.WithDelay(delay),
			pipeline.WithBatchLogger(logger),
		)

		start := time.Now()
		res, err := batch.Run(ctx, tickers)
		if res != nil {
			if werr := output(cmd, res, func() { printBatch(res, time.Since(start)) }); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
		if res.Succeeded() == 0 {
			return fmt.Errorf("all %d tickers failed", len(res.Results))
		}
		return nil
	},
}

func printBatch(res *pipeline.BatchResult, elapsed time.Duration) {
	fmt.Printf("📦 Snapshot run %s (%s)\n", res.RunID, elapsed.Round(time.Millisecond))
	for _, r := range res.Results {
		if r.Err != nil {
			fmt.Printf("   ❌ %-6s %s\n", r.Ticker, r.Error)
			continue
		}
		rep := r.Report
		line := fmt.Sprintf("   ✅ %-6s %d filings via %s", r.Ticker, len(rep.Filings), rep.Strategy)
		if rep.Redline != nil {
			line += fmt.Sprintf(", risk score %d", rep.Redline.RiskScore)
		}
		if rep.Financials != nil {
			line += fmt.Sprintf(", health %d", rep.Financials.HealthScore)
		}
		if len(rep.Warnings) > 0 {
			line += fmt.Sprintf(", %d warnings", len(rep.Warnings))
		}
		fmt.Println(line)
	}
	fmt.Printf("   %d/%d succeeded, snapshots in %s\n", res.Succeeded(), len(res.Results), cfg.Batch.DataDir)
}

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report <ticker>",
	Short: "Render a ticker's dossier from its snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		formatName, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("output")
		live, _ := cmd.Flags().GetBool("live")
		sections, _ := cmd.Flags().GetStringSlice("sections")

		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		rcfg := report.DefaultConfig()
		rcfg.Format = format
		if len(sections) > 0 {
			rcfg.Sections = nil
			for _, s := range sections {
				rcfg.Sections = append(rcfg.Sections, report.Section(strings.ToLower(s)))
			}
		}

		ticker := utils.NormalizeTicker(args[0])
		a := newApp(ctx, cfg, logger, appOptions{narrative: live && cfg.Batch.Narrative})

		var rep *models.TickerReport
		if !live {
			rep, err = a.store.Report(ticker)
			if errors.Is(err, snapshot.ErrNotFound) {
				return fmt.Errorf("no snapshot for %s: run `edgarwatch fetch --tickers %s` or pass --live", ticker, ticker)
			}
		} else {
			rep, err = a.pipeline.Run(ctx, ticker)
		}
		if err != nil {
			return err
		}

		out, err := report.Render(rep, rcfg)
		if err != nil {
			return err
		}
		if outPath == "" {
			fmt.Print(out)
			return nil
		}
		if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Printf("📝 Dossier for %s written to %s\n", ticker, outPath)
		return nil
	},
}

// --- Output ---

// output prints v as indented JSON when --json is set, otherwise calls text.
func output(cmd *cobra.Command, v any, text func()) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}
