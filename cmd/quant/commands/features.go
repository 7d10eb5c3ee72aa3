package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Compute technical features and forward labels",
	Long: `Recomputes transformed.technical_features from daily prices.

  full         every registry entity, bounded worker pool
  incremental  entities whose feature watermark is stale or never ran

Example:
  go run ./cmd/quant features --mode full --workers 8
  go run ./cmd/quant features --mode incremental --limit 500`,
	RunE: runFeatures,
}

var featureFlags stageFlags

func init() {
	rootCmd.AddCommand(featuresCmd)
	featureFlags.register(featuresCmd)
}

func runFeatures(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := featureFlags.options(a.pipeline, contracts.GroupTechnicalFeatures)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	PrintHeader("Feature transform",
		"Mode", string(opts.Mode),
		"Version", a.pipeline.FeatureVersion(),
		"Staleness", opts.Staleness.String())

	summary, err := a.featureRunner().Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("features: %w", err)
	}
	PrintSummary(summary, 10)
	return nil
}
