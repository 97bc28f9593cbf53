// Package cmd defines the CLI commands for the harvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fincrawl/guba-harvester/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Stock forum feed harvester",
		Long: `harvester collects article listings from stock discussion feeds
through a scored proxy pool, validates each page against the site's
anti-bot decoys, and persists the results idempotently.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus HARVESTER_* env)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newPoolCmd())
	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
