package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/macrocredit/internal/core"
	"github.com/newthinker/macrocredit/internal/persistence"
	"github.com/newthinker/macrocredit/internal/pipeline"
)

var runsKind string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run and dataset registry",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered runs and datasets",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsRemoveCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Remove an entry from the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsRemove,
}

func init() {
	runsListCmd.Flags().StringVar(&runsKind, "kind", "", "filter by kind: run or dataset")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsRemoveCmd)
	rootCmd.AddCommand(runsCmd)
}

func openPipeline() (*env, *pipeline.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	e, err := setup(cfg)
	if err != nil {
		return nil, nil, err
	}
	p, err := e.pipeline()
	if err != nil {
		return nil, nil, err
	}
	return e, p, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	e, p, err := openPipeline()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	reg, err := p.Registry(context.Background())
	if err != nil {
		return err
	}
	entries := reg.List(persistence.Kind(runsKind))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tPATH\tROWS\tFROM\tTO\tREGISTERED\t")
	fmt.Fprintln(w, "--\t----\t----\t----\t----\t--\t----------\t")
	for _, en := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t\n",
			en.ID, en.Kind, en.Path, en.Rows,
			en.StartDate.Format(core.DateLayout), en.EndDate.Format(core.DateLayout),
			en.RegisteredAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	e, p, err := openPipeline()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	run, err := p.LoadRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	report := &pipeline.Report{
		RunID:   run.ID,
		Result:  run.Result,
		Metrics: run.Metrics,
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func runRunsRemove(cmd *cobra.Command, args []string) error {
	e, p, err := openPipeline()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	ctx := context.Background()
	reg, err := p.Registry(ctx)
	if err != nil {
		return err
	}
	entry, err := reg.Get(args[0])
	if err != nil {
		return err
	}
	if entry.Kind == persistence.KindRun {
		if err := persistence.NewRunStore(e.store, e.log).Delete(ctx, entry.ID); err != nil {
			return err
		}
	}
	if err := reg.Remove(ctx, entry.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s %s\n", entry.Kind, entry.ID)
	return nil
}
