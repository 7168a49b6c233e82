package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atmolab/atmocast/cmd/atmocast/commands"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atmocast",
		Short: "Atmospheric sensor aggregation and forecasting pipeline",
		Long: `A command-line interface for running the atmocast pipeline:
aggregating daily sensor partitions, training per-metric regression models,
deploying them behind inference endpoints and producing 7-day forecasts.`,
		Version: "0.1.0",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $ATMOCAST_* env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	opts := &commands.Options{CfgFile: &cfgFile, Verbose: &verbose}

	rootCmd.AddCommand(commands.NewAggregateCmd(opts))
	rootCmd.AddCommand(commands.NewTrainCmd(opts))
	rootCmd.AddCommand(commands.NewRunCmd(opts))
	rootCmd.AddCommand(commands.NewForecastCmd(opts))
	rootCmd.AddCommand(commands.NewCleanupCmd(opts))
	rootCmd.AddCommand(commands.NewIngestCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
