package main

import (
	"context"
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/marketdata"
)

var (
	descSource  string
	descFrom    string
	descTo      string
	descRefresh bool
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Summarize the market data a backtest would read",
	Long: `Load market data from the configured source, validate it and print per
instrument row counts, date coverage, average daily change and annualized
volatility.`,
	Args: cobra.NoArgs,
	RunE: runDescribe,
}

func init() {
	f := describeCmd.Flags()
	f.StringVar(&descSource, "source", "", "market data source: sample or archive")
	f.StringVar(&descFrom, "from", "", "first date to use, YYYY-MM-DD")
	f.StringVar(&descTo, "to", "", "last date to use, YYYY-MM-DD")
	f.BoolVar(&descRefresh, "refresh", false, "ignore cached market data and fetch again")

	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("source") {
		cfg.Data.Source = descSource
	}
	if f.Changed("from") {
		cfg.Data.From = descFrom
	}
	if f.Changed("to") {
		cfg.Data.To = descTo
	}
	if f.Changed("refresh") {
		cfg.Data.Cache.Refresh = descRefresh
	}

	e, err := setup(cfg)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	p, err := e.pipeline()
	if err != nil {
		return err
	}
	market, err := p.LoadMarket(context.Background())
	if err != nil {
		return fmt.Errorf("loading market data: %w", err)
	}
	market, err = marketdata.Validate(market, e.log)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSTRUMENT\tROWS\tVALID\tFROM\tTO\tLAST\tAVG CHANGE\tANN VOL\t")
	fmt.Fprintln(w, "----------\t----\t-----\t----\t--\t----\t----------\t-------\t")
	for _, st := range marketdata.Describe(market) {
		change := fmt.Sprintf("%.2f%%", st.MeanChange*100)
		vol := fmt.Sprintf("%.1f%%", st.AnnualizedVol*100)
		if st.Instrument == core.InstrumentCDX {
			change = fmt.Sprintf("%.3fbp", st.MeanChange)
			vol = fmt.Sprintf("%.1fbp", st.AnnualizedVol)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			st.Instrument, st.Rows, st.Valid,
			st.Start.Format(core.DateLayout), st.End.Format(core.DateLayout),
			formatLevel(st.Last), change, vol)
	}
	return w.Flush()
}

func formatLevel(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
