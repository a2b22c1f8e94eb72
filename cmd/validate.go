package cmd

import (
	"fmt"

	"github.com/dlclark/regexp2"
	"github.com/spf13/cobra"

	"github.com/cmmoran/swarmup/internal/render"
)

func init() {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := render.NewEngine(render.Options{ImageTemplate: cfg.Update.ImageTemplate}).Check(); err != nil {
				return fmt.Errorf("image template: %w", err)
			}
			if cfg.ServiceFilter != "" {
				if _, err := regexp2.Compile(cfg.ServiceFilter, regexp2.None); err != nil {
					return fmt.Errorf("service filter: %w", err)
				}
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return nil
		},
	}
	rootCmd.AddCommand(cmd)
}
