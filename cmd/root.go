package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmmoran/swarmup/internal/config"
	"github.com/cmmoran/swarmup/internal/logging"
)

var (
	configPath string
	driver     string
	logFormat  string
	debug      bool

	// cfg is resolved once in PersistentPreRunE: defaults, config file,
	// SWARMUP_* environment, then explicitly set flags.
	cfg config.Config

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:           "swarmup",
		Short:         "keep swarm services on their newest configs and images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := logging.New(cmd.ErrOrStderr(), c.LogFormat, logging.Level(c.Debug))
			if err != nil {
				return err
			}
			cfg = c
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))
			return nil
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "swarmup:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (env SWARMUP_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", config.DriverCLI, "Update driver: cli|api|noop")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text|json|human")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	c := config.Default()

	path := configPath
	if !cmd.Flags().Changed("config") {
		path = os.Getenv("SWARMUP_CONFIG_FILE")
	}
	if path != "" {
		var err error
		if c, err = c.LoadFile(path); err != nil {
			return c, err
		}
	}

	c, err := c.FromEnv(os.LookupEnv)
	if err != nil {
		return c, err
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		c.Driver = driver
	}
	if flags.Changed("log-format") {
		c.LogFormat = logFormat
	}
	if flags.Changed("debug") {
		c.Debug = debug
	}
	if flags.Changed("interval") {
		c.Interval = interval
	}
	if flags.Changed("workers") {
		c.Workers = workers
	}
	return c, c.Validate()
}
