package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-craft/internal/external/alphavantage"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Entity registry (listing_status)",
}

var registrySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the provider listing report and upsert listing_status",
	Long: `Downloads the active and/or delisted listing reports and upserts them into
source.listing_status. A symbol present in both reports keeps its active row.

Example:
  go run ./cmd/quant registry sync
  go run ./cmd/quant registry sync --state delisted`,
	RunE: runRegistrySync,
}

var registryState string

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registrySyncCmd)

	registrySyncCmd.Flags().StringVar(&registryState, "state", "all", "listing state to download (active|delisted|all)")
}

func listingStates(s string) ([]alphavantage.ListingState, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return []alphavantage.ListingState{alphavantage.ListingStateActive, alphavantage.ListingStateDelisted}, nil
	case "active":
		return []alphavantage.ListingState{alphavantage.ListingStateActive}, nil
	case "delisted":
		return []alphavantage.ListingState{alphavantage.ListingStateDelisted}, nil
	default:
		return nil, fmt.Errorf("invalid --state %q (active|delisted|all)", s)
	}
}

func runRegistrySync(cmd *cobra.Command, args []string) error {
	states, err := listingStates(registryState)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	PrintHeader("Registry sync", "States", registryState)
	stats, err := a.syncer().Sync(ctx, states...)
	if err != nil {
		return fmt.Errorf("registry sync: %w", err)
	}

	PrintKeyValue("Inserted", fmt.Sprint(stats.Inserted), 10)
	PrintKeyValue("Updated", fmt.Sprint(stats.Updated), 10)
	PrintKeyValue("Delisted", fmt.Sprint(stats.Delisted), 10)
	PrintKeyValue("Unchanged", fmt.Sprint(stats.Unchanged), 10)
	PrintSuccess("Registry synced")
	return nil
}
