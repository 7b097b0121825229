package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/99minutos/courier-tracking/internal/infrastructure/config"
	"github.com/99minutos/courier-tracking/pkg/logger"
)

var (
	version = "dev"

	cfg *config.Config
	log zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Courier position tracking and ETA pipeline",
	Long: `tracker acquires courier positions, filters and retains them, reports them to
the tracking backend and estimates the arrival time at the destination.

Configuration is read from the environment; TUNING_FILE may point to a YAML
file overriding the acquisition tiers and traffic bands.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}
		cfg = c
		logger.Init(cfg.LoggerOptions("tracker"))
		log = logger.Get()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
