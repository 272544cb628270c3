package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/consolidator/app"
	"github.com/kilianp07/consolidator/config"
	"github.com/kilianp07/consolidator/infra/logger"
)

var (
	cfgPath string
	runOnce bool
)

var rootCmd = &cobra.Command{
	Use:          "consolidator",
	Short:        "EASC option consolidation service",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.Flags().BoolVar(&runOnce, "once", false, "run a single iteration of the control loop and exit")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	if !runOnce {
		return svc.Run(ctx)
	}
	rec, err := svc.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s over %s: %s, %d plans\n", rec.RunID, rec.Range, rec.Status, len(rec.Plans))
	return nil
}
