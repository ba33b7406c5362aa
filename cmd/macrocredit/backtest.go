package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/macrocredit/internal/backtest"
	"github.com/newthinker/macrocredit/internal/config"
	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/pipeline"
)

var (
	btEntry      float64
	btExit       float64
	btSize       float64
	btCostBps    float64
	btMaxHold    int
	btDV01       float64
	btLookback   int
	btMinPeriods int
	btSource     string
	btSeed       uint64
	btPeriods    int
	btStart      string
	btPersist    bool
	btTrades     bool
	btMetrics    string
	btFrom       string
	btTo         string
	btRefresh    bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the signal pipeline and backtest the composite",
	Long: `Compute the registered signals, aggregate them into a composite score and
backtest the CDX overlay. Flags override the config file.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.Float64Var(&btEntry, "entry", 0, "entry threshold (|signal| above enters)")
	f.Float64Var(&btExit, "exit", 0, "exit threshold (|signal| below exits)")
	f.Float64Var(&btSize, "size", 0, "position size in $MM notional")
	f.Float64Var(&btCostBps, "cost-bps", 0, "transaction cost in bps per entry or exit")
	f.IntVar(&btMaxHold, "max-hold", 0, "maximum holding days, 0 for no limit")
	f.Float64Var(&btDV01, "dv01", 0, "dollar value per bp per $1MM notional")
	f.IntVar(&btLookback, "lookback", 0, "signal rolling window")
	f.IntVar(&btMinPeriods, "min-periods", 0, "observations required inside the window")
	f.StringVar(&btSource, "source", "", "market data source: sample or archive")
	f.Uint64Var(&btSeed, "seed", 0, "sample data seed")
	f.IntVar(&btPeriods, "periods", 0, "sample data length in days")
	f.StringVar(&btStart, "start", "", "sample start date YYYY-MM-DD")
	f.BoolVar(&btPersist, "persist", false, "save the run to storage and register it")
	f.BoolVar(&btTrades, "trades", false, "print the trade list")
	f.StringVar(&btMetrics, "metrics-file", "", "write prometheus metrics to this textfile")
	f.StringVar(&btFrom, "from", "", "first date to use, YYYY-MM-DD")
	f.StringVar(&btTo, "to", "", "last date to use, YYYY-MM-DD")
	f.BoolVar(&btRefresh, "refresh", false, "ignore cached market data and fetch again")

	rootCmd.AddCommand(backtestCmd)
}

// applyFlags copies explicitly set flags onto the config
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("entry", func() { cfg.Backtest.EntryThreshold = btEntry })
	set("exit", func() { cfg.Backtest.ExitThreshold = btExit })
	set("size", func() { cfg.Backtest.PositionSize = btSize })
	set("cost-bps", func() { cfg.Backtest.TransactionCostBps = btCostBps })
	set("max-hold", func() { cfg.Backtest.MaxHoldingDays = btMaxHold })
	set("dv01", func() { cfg.Backtest.DV01PerMillion = btDV01 })
	set("lookback", func() { cfg.Signals.Lookback = btLookback })
	set("min-periods", func() { cfg.Signals.MinPeriods = btMinPeriods })
	set("source", func() { cfg.Data.Source = btSource })
	set("seed", func() { cfg.Data.Seed = btSeed })
	set("periods", func() { cfg.Data.Periods = btPeriods })
	set("start", func() { cfg.Data.Start = btStart })
	set("persist", func() { cfg.Storage.PersistRuns = btPersist })
	set("from", func() { cfg.Data.From = btFrom })
	set("to", func() { cfg.Data.To = btTo })
	set("refresh", func() { cfg.Data.Cache.Refresh = btRefresh })
	set("metrics-file", func() {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Textfile = btMetrics
	})
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	e, err := setup(cfg)
	if err != nil {
		return err
	}
	defer e.log.Sync()
	defer e.flushMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := e.pipeline()
	if err != nil {
		return err
	}

	market, err := p.LoadMarket(ctx)
	if err != nil {
		return fmt.Errorf("loading market data: %w", err)
	}

	report, err := p.Run(ctx, market)
	if err != nil {
		e.log.Error("backtest failed", zap.Error(err))
		return err
	}

	out := cmd.OutOrStdout()
	printReport(out, report)
	if btTrades {
		fmt.Fprintln(out)
		printTrades(out, report.Trades)
	}
	return nil
}

func printReport(out io.Writer, r *pipeline.Report) {
	meta := r.Result.Metadata
	s := meta.Summary
	m := r.Metrics

	fmt.Fprintln(out, "=== macrocredit backtest ===")
	if r.RunID != "" {
		fmt.Fprintf(out, "Run:      %s\n", r.RunID)
	}
	fmt.Fprintf(out, "Period:   %s to %s (%d days)\n",
		s.StartDate.Format(core.DateLayout), s.EndDate.Format(core.DateLayout), s.TotalDays)
	fmt.Fprintf(out, "Config:   entry %.2f  exit %.2f  size $%.1fMM  cost %.2fbp  dv01 %.0f",
		meta.Config.EntryThreshold, meta.Config.ExitThreshold, meta.Config.PositionSize,
		meta.Config.TransactionCostBps, meta.Config.DV01PerMillion)
	if meta.Config.MaxHoldingDays != nil {
		fmt.Fprintf(out, "  max hold %dd", *meta.Config.MaxHoldingDays)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE\t")
	fmt.Fprintln(w, "------\t-----\t")
	fmt.Fprintf(w, "Total P&L\t$%.2f\t\n", m.TotalReturn)
	fmt.Fprintf(w, "Annualized return\t$%.2f\t\n", m.AnnualizedReturn)
	fmt.Fprintf(w, "Annualized volatility\t$%.2f\t\n", m.AnnualizedVolatility)
	fmt.Fprintf(w, "Sharpe\t%.3f\t\n", m.SharpeRatio)
	fmt.Fprintf(w, "Sortino\t%.3f\t\n", m.SortinoRatio)
	fmt.Fprintf(w, "Max drawdown\t$%.2f\t\n", m.MaxDrawdown)
	fmt.Fprintf(w, "Calmar\t%.3f\t\n", m.CalmarRatio)
	fmt.Fprintf(w, "Trades\t%d\t\n", m.NTrades)
	fmt.Fprintf(w, "Hit rate\t%.1f%%\t\n", m.HitRate*100)
	fmt.Fprintf(w, "Avg win\t$%.2f\t\n", m.AvgWin)
	fmt.Fprintf(w, "Avg loss\t$%.2f\t\n", m.AvgLoss)
	fmt.Fprintf(w, "Win/loss ratio\t%.3f\t\n", m.WinLossRatio)
	fmt.Fprintf(w, "Avg holding days\t%.2f\t\n", m.AvgHoldingDays)
	fmt.Fprintf(w, "Avg P&L per trade\t$%.2f\t\n", s.AvgPnLPerTrade)
	w.Flush()
}

func printTrades(out io.Writer, trades []backtest.Trade) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDIRECTION\tSTART\tEND\tDAYS\tP&L\t")
	fmt.Fprintln(w, "-\t---------\t-----\t---\t----\t---\t")
	for i, t := range trades {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.2f\t\n",
			i+1, t.Direction, t.StartDate.Format(core.DateLayout), t.EndDate.Format(core.DateLayout), t.Days, t.PnL)
	}
	w.Flush()
}
