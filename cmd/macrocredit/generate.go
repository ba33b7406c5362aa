package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/macrocredit/internal/core"
)

var (
	genSeed    uint64
	genPeriods int
	genStart   string
	genFormat  string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write synthetic market data to storage",
	Long: `Generate deterministic CDX, VIX and ETF sample series, store them as Parquet
or CSV under the data prefix and register them as datasets. Backtests read them back
with --source archive.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().Uint64Var(&genSeed, "seed", 0, "random seed")
	generateCmd.Flags().IntVar(&genPeriods, "periods", 0, "number of daily observations")
	generateCmd.Flags().StringVar(&genStart, "start", "", "start date YYYY-MM-DD")
	generateCmd.Flags().StringVar(&genFormat, "format", "", "file format: parquet or csv")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Data.Source = "sample"
	if cmd.Flags().Changed("seed") {
		cfg.Data.Seed = genSeed
	}
	if cmd.Flags().Changed("periods") {
		cfg.Data.Periods = genPeriods
	}
	if cmd.Flags().Changed("start") {
		cfg.Data.Start = genStart
	}
	if cmd.Flags().Changed("format") {
		cfg.Data.Format = genFormat
	}

	e, err := setup(cfg)
	if err != nil {
		return err
	}
	defer e.log.Sync()
	defer e.flushMetrics()

	p, err := e.pipeline()
	if err != nil {
		return err
	}

	ctx := context.Background()
	market, err := p.LoadMarket(ctx)
	if err != nil {
		return err
	}
	entries, err := p.SaveMarket(ctx, market)
	if err != nil {
		return fmt.Errorf("saving market data: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATASET\tPATH\tROWS\tFROM\tTO\t")
	fmt.Fprintln(w, "-------\t----\t----\t----\t--\t")
	for _, en := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t\n",
			en.ID, en.Path, en.Rows, en.StartDate.Format(core.DateLayout), en.EndDate.Format(core.DateLayout))
	}
	return w.Flush()
}
