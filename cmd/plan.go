package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/consolidator/config"
	"github.com/kilianp07/consolidator/core/consolidator"
	"github.com/kilianp07/consolidator/core/scenario"
	"github.com/kilianp07/consolidator/infra/logger"
	"github.com/kilianp07/consolidator/pkg/export"
)

var planOpts struct {
	scenario   string
	format     string
	out        string
	timeout    float64
	noOptimize bool
	check      bool
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Consolidate a scenario file once and print the plans",
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVarP(&planOpts.scenario, "scenario", "s", "", "scenario file (yaml or json)")
	f.StringVarP(&planOpts.format, "format", "f", "json", "output format: json, csv or html")
	f.StringVarP(&planOpts.out, "out", "o", "", "output file, stdout when empty")
	f.Float64Var(&planOpts.timeout, "timeout", 0, "per-window timeout in seconds, overrides the configuration")
	f.BoolVar(&planOpts.noOptimize, "no-optimize", false, "stop every window at its first solution")
	f.BoolVar(&planOpts.check, "check", false, "fail when the scenario expectations are not met")
	_ = planCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(planCmd)
}

// consolidatorConfig reads the consolidator section of --config when the flag
// was given, the defaults otherwise.
func consolidatorConfig(cmd *cobra.Command) (consolidator.Config, error) {
	if !cmd.Flags().Changed("config") {
		return consolidator.DefaultConfig(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return consolidator.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg.Consolidator, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := scenario.Load(planOpts.scenario)
	if err != nil {
		return err
	}
	ccfg, err := consolidatorConfig(cmd)
	if err != nil {
		return err
	}
	cons, err := consolidator.New(ccfg, consolidator.WithLogger(logger.New("consolidator")))
	if err != nil {
		return err
	}
	var opts []consolidator.RunOption
	if cmd.Flags().Changed("timeout") {
		opts = append(opts, consolidator.WithTimeout(planOpts.timeout))
	}
	if planOpts.noOptimize {
		opts = append(opts, consolidator.WithOptimize(false))
	}
	res, err := cons.BuildPlans(ctx, sc.Problem(), opts...)
	if err != nil {
		return err
	}
	if planOpts.check {
		if err := sc.Expected.Check(res.Stats, len(res.Windows)); err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}

	var w io.Writer = cmd.OutOrStdout()
	if planOpts.out != "" {
		f, err := os.Create(planOpts.out)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	switch planOpts.format {
	case "json":
		return export.WriteJSON(w, res.Plans)
	case "csv":
		return export.WriteCSV(w, res.Plans)
	case "html":
		return export.WriteHTML(w, res.Stats, res.Plans)
	default:
		return fmt.Errorf("unknown format %s", planOpts.format)
	}
}
