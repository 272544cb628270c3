package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/consolidator/config"
	sources "github.com/kilianp07/consolidator/connectors/factory"
	"github.com/kilianp07/consolidator/core/metrics/eco"
	"github.com/kilianp07/consolidator/core/planlog"
	"github.com/kilianp07/consolidator/infra/kpi"
	"github.com/kilianp07/consolidator/jobs/ecokpi"
)

var kpiSince string

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Eco KPI maintenance",
}

var kpiBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Recompute the eco KPIs of the logged runs into the sqlite KPI store",
	RunE:  runKPIBackfill,
}

func init() {
	kpiBackfillCmd.Flags().StringVar(&kpiSince, "since", "", "only runs after this RFC3339 time")
	kpiCmd.AddCommand(kpiBackfillCmd)
	rootCmd.AddCommand(kpiCmd)
}

func runKPIBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.KPI.Backend != "sqlite" {
		return fmt.Errorf("backfill needs the sqlite kpi backend, got %s", cfg.KPI.Backend)
	}
	var q planlog.Query
	if kpiSince != "" {
		if q.Start, err = time.Parse(time.RFC3339, kpiSince); err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
	}
	runs, err := planlog.Open(cfg.PlanLog.Module())
	if err != nil {
		return err
	}
	defer func() { _ = runs.Close() }()
	src, err := sources.NewSource(cfg.Loop.Input)
	if err != nil {
		return err
	}
	store, err := kpi.NewSQLiteStore(cfg.KPI.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := ecokpi.Backfill(context.Background(), runs, q, src, store)
	if err != nil {
		return err
	}
	dcs, err := store.DataCenters()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "processed %d runs\n", n)
	for _, dc := range dcs {
		recs, err := store.Query(dc, time.Time{}, time.Now())
		if err != nil {
			return err
		}
		var total eco.Record
		for _, r := range recs {
			total.RenewableWh += r.RenewableWh
			total.BrownWh += r.BrownWh
		}
		fmt.Fprintf(out, "%s: %.0f Wh, %.1f%% renewable, %.0f g CO2 avoided\n",
			dc, total.EnergyWh(), 100*total.RenewableShare(), total.CO2Avoided(cfg.Metrics.EmissionFactor))
	}
	return nil
}
