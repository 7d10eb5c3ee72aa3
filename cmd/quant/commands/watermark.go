package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/watermark"
	"github.com/kennydoit/fin-trade-craft/pkg/redis"
)

var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Inspect and repair per-entity processing state",
}

var (
	watermarkBlacklistCmd = &cobra.Command{
		Use:     "blacklist",
		Short:   "List entities blacklisted after repeated failures",
		Example: `  go run ./cmd/quant watermark blacklist --group earnings`,
		RunE:    runWatermarkBlacklist,
	}

	watermarkResetCmd = &cobra.Command{
		Use:     "reset",
		Short:   "Clear the failure state of one entity so the next sweep retries it",
		Example: `  go run ./cmd/quant watermark reset --group balance_sheet --symbol IBM`,
		RunE:    runWatermarkReset,
	}

	watermarkStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Tracked, never-run and blacklisted counts per group",
		RunE:  runWatermarkStatus,
	}
)

var (
	wmGroup  string
	wmSymbol string
)

func init() {
	rootCmd.AddCommand(watermarkCmd)
	watermarkCmd.AddCommand(watermarkBlacklistCmd, watermarkResetCmd, watermarkStatusCmd)

	watermarkBlacklistCmd.Flags().StringVar(&wmGroup, "group", "", "dataset group")
	_ = watermarkBlacklistCmd.MarkFlagRequired("group")

	watermarkResetCmd.Flags().StringVar(&wmGroup, "group", "", "dataset group")
	watermarkResetCmd.Flags().StringVar(&wmSymbol, "symbol", "", "ticker symbol")
	_ = watermarkResetCmd.MarkFlagRequired("group")
	_ = watermarkResetCmd.MarkFlagRequired("symbol")
}

func runWatermarkBlacklist(cmd *cobra.Command, args []string) error {
	group, err := contracts.ParseDatasetGroup(wmGroup)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	entries, err := a.marks.Blacklisted(ctx, group)
	if err != nil {
		return err
	}

	PrintHeader("Blacklist", "Group", string(group), "Entities", fmt.Sprint(len(entries)))
	if len(entries) == 0 {
		PrintSuccess("Nothing blacklisted")
		return nil
	}

	widths := []int{10, 10, 9, 16, 12}
	PrintTableHeader([]string{"SYMBOL", "SYMBOL_ID", "FAILURES", "LAST SUCCESS", "LAST DATE"}, widths)
	for _, w := range entries {
		PrintTableRow([]string{
			w.Symbol,
			fmt.Sprint(w.SymbolID),
			fmt.Sprint(w.ConsecutiveFailures),
			formatTime(w.LastSuccessfulRun),
			formatDate(w.LastDateProcessed),
		}, widths)
	}
	return nil
}

func runWatermarkReset(cmd *cobra.Command, args []string) error {
	group, err := contracts.ParseDatasetGroup(wmGroup)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	entity, err := a.registry.Lookup(ctx, strings.ToUpper(wmSymbol))
	if err != nil {
		return err
	}

	if err := a.marks.Reset(ctx, entity.SymbolID, group); err != nil {
		if errors.Is(err, watermark.ErrNotTracked) {
			return fmt.Errorf("%s has no %s watermark; run with --init first", entity.Symbol, group)
		}
		return err
	}
	if err := a.cache.Delete(ctx, redis.BlacklistKey(string(group))); err != nil {
		a.log.WithError(err).Warn("Failed to invalidate blacklist cache")
	}

	PrintSuccess(fmt.Sprintf("Reset %s/%s; it is selected first on the next sweep", group, entity.Symbol))
	return nil
}

func runWatermarkStatus(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	summary, err := a.marks.Summary(ctx)
	if err != nil {
		return err
	}

	PrintHeader("Watermarks")
	widths := []int{28, 9, 10, 12, 16}
	PrintTableHeader([]string{"GROUP", "TRACKED", "NEVER RUN", "BLACKLISTED", "LAST RUN"}, widths)
	for _, s := range summary {
		PrintTableRow([]string{
			string(s.Group),
			fmt.Sprint(s.Tracked),
			fmt.Sprint(s.NeverRun),
			fmt.Sprint(s.Blacklisted),
			formatTime(s.LastRun),
		}, widths)
	}
	return nil
}
