package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/consolidator/config"
	"github.com/kilianp07/consolidator/core/planlog"
)

var historyOpts struct {
	easc  string
	since string
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the consolidation runs of the plan log",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyOpts.easc, "easc", "", "only runs holding a plan for this EASC")
	f.StringVar(&historyOpts.since, "since", "", "only runs after this RFC3339 time")
	f.IntVarP(&historyOpts.limit, "limit", "n", 20, "number of most recent runs")
	rootCmd.AddCommand(historyCmd)
}

func historyQuery() (planlog.Query, error) {
	q := planlog.Query{Easc: historyOpts.easc, Limit: historyOpts.limit}
	if historyOpts.since != "" {
		t, err := time.Parse(time.RFC3339, historyOpts.since)
		if err != nil {
			return q, fmt.Errorf("invalid --since: %w", err)
		}
		q.Start = t
	}
	return q, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	q, err := historyQuery()
	if err != nil {
		return err
	}
	store, err := planlog.Open(cfg.PlanLog.Module())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tRANGE\tSTATUS\tPLANS\tNOTE")
	for _, r := range recs {
		note := ""
		if r.Fallback {
			note = "fallback: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Timestamp.Format(time.RFC3339), r.RunID, r.Range, r.Status, len(r.Plans), note)
	}
	return tw.Flush()
}
