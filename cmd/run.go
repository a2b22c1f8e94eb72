package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmmoran/swarmup/internal/apply"
	"github.com/cmmoran/swarmup/internal/config"
	"github.com/cmmoran/swarmup/internal/logging"
	"github.com/cmmoran/swarmup/internal/reconcile"
	"github.com/cmmoran/swarmup/internal/registry"
	"github.com/cmmoran/swarmup/internal/status"
	"github.com/cmmoran/swarmup/internal/swarm"
)

var (
	interval time.Duration
	workers  int
	runOnce  bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile tracked services until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)
			log.Info("swarmup starting", slog.Any("config", cfg.Redacted()))

			rec, closeFn, err := newReconciler(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			if runOnce {
				rep, err := rec.RunCycle(ctx)
				if rep != nil {
					status.PrintReport(cmd.OutOrStdout(), rep)
				}
				return err
			}
			return rec.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", config.DefaultInterval, "Pause between cycles (env SWARMUP_TIMEOUT, in seconds)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent service tasks per phase (env SWARMUP_WORKERS)")
	cmd.Flags().BoolVar(&runOnce, "once", false, "Run a single cycle and print its report")
	rootCmd.AddCommand(cmd)
}

// newReconciler wires the Docker client, registry auth and the applier for
// c.Driver. The returned func releases the client.
func newReconciler(c config.Config) (*reconcile.Reconciler, func(), error) {
	dc, err := swarm.NewDockerClient()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = dc.Close() }

	runner := apply.ExecRunner{}
	var loginer registry.Loginer = registry.EngineLogin{Client: dc}
	if c.Driver == config.DriverCLI {
		loginer = registry.CLILogin{Runner: runner}
	}
	auth := registry.New(c.Registry, loginer)

	applier, err := apply.New(c, dc, runner, auth)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	rec, err := reconcile.New(c, dc, auth, applier)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return rec, closeFn, nil
}

// withContextTimeout bounds ctx by d when d is positive.
func withContextTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
