package cmd

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmmoran/swarmup/internal/config"
	"github.com/cmmoran/swarmup/internal/status"
)

var (
	planJSON    bool
	planTimeout time.Duration
)

func init() {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Run one cycle against the live swarm without applying anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withContextTimeout(cmd.Context(), planTimeout)
			defer cancel()

			c := cfg
			c.Driver = config.DriverNoop
			rec, closeFn, err := newReconciler(c)
			if err != nil {
				return err
			}
			defer closeFn()

			rep, err := rec.RunCycle(ctx)
			if err != nil {
				return err
			}
			if planJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep.Sorted())
			}
			status.PrintReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&planJSON, "json", false, "Output report entries as JSON")
	cmd.Flags().DurationVar(&planTimeout, "timeout", 5*time.Minute, "Give up after this long (0 disables)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent service tasks per phase (env SWARMUP_WORKERS)")
	rootCmd.AddCommand(cmd)
}
