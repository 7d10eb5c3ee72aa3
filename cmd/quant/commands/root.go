package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "fin-trade-craft market data and signal pipeline",
	Long: `fin-trade-craft pipeline CLI

Incremental extraction of provider data into Postgres, technical features,
strategy signals, backtests, classifier scoring and order execution.
Every sweep is driven by per-entity watermarks and can be re-run safely.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant test-db --migrate
  go run ./cmd/quant registry sync
  go run ./cmd/quant extract --group all --init --limit 100
  go run ./cmd/quant features --mode incremental --workers 8
  go run ./cmd/quant signals --mode incremental
  go run ./cmd/quant backtest --from 2020-01-01
  go run ./cmd/quant score --model models/lr.json
  go run ./cmd/quant execute --dry-run`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "pipeline YAML file (default PIPELINE_CONFIG or built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
