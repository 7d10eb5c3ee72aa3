package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Data-quality checks",
}

var monitorQualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Completeness, invalid and future-dated rows per fact table",
	Long: `Counts rows, entities, complete, invalid and future-dated records in each
source fact table, plus blacklisted watermarks per group. The report is
cached for the API. Exits non-zero when --strict is set and a check fails.

Example:
  go run ./cmd/quant monitor quality
  go run ./cmd/quant monitor quality --strict`,
	RunE: runMonitorQuality,
}

var monitorStrict bool

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.AddCommand(monitorQualityCmd)

	monitorQualityCmd.Flags().BoolVar(&monitorStrict, "strict", false, "fail when the report does not pass")
}

func runMonitorQuality(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	report, err := a.monitor().Check(ctx)
	if err != nil {
		return err
	}

	PrintHeader("Data quality", "Generated", report.GeneratedAt.Format(time.RFC3339))
	widths := []int{28, 10, 9, 9, 8, 7, 8}
	PrintTableHeader([]string{"TABLE", "ROWS", "ENTITIES", "COMPLETE", "INVALID", "FUTURE", "BLACKL."}, widths)
	for _, t := range report.Tables {
		PrintTableRow([]string{
			string(t.Group),
			fmt.Sprint(t.Rows),
			fmt.Sprint(t.Entities),
			fmt.Sprintf("%.1f%%", t.Completeness*100),
			fmt.Sprint(t.Invalid),
			fmt.Sprint(t.FutureDated),
			fmt.Sprint(report.Blacklisted[t.Group]),
		}, widths)
	}

	fmt.Println()
	if report.Passed {
		PrintSuccess("All checks passed")
		return nil
	}
	for _, issue := range report.Issues {
		PrintWarning(issue)
	}
	if monitorStrict {
		return fmt.Errorf("data quality: %d issues", len(report.Issues))
	}
	return nil
}
