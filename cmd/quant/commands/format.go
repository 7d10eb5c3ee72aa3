package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/kennydoit/fin-trade-craft/internal/sweep"
)

// Output helpers shared by every command so tallies look the same whether
// they come from extract, features or signals.

const ruleWidth = 59

// PrintHeader prints a titled block with key/value lines
func PrintHeader(title string, kv ...string) {
	fmt.Println()
	fmt.Println(strings.Repeat("═", ruleWidth))
	fmt.Printf("  %s\n", title)
	fmt.Println(strings.Repeat("─", ruleWidth))
	for i := 0; i+1 < len(kv); i += 2 {
		PrintKeyValue(kv[i], kv[i+1], 10)
	}
	if len(kv) > 0 {
		fmt.Println(strings.Repeat("─", ruleWidth))
	}
}

// PrintSummary prints the success/unchanged/skip/fail tally of a sweep and
// up to maxFailures failure lines.
func PrintSummary(s sweep.Summary, maxFailures int) {
	fmt.Printf("[%s] %d total | %d success | %d unchanged | %d skipped | %d failed | %d rows | %s\n",
		s.Group, s.Total, s.Success, s.Unchanged, s.Skipped, s.Failed, s.Rows, s.Duration.Round(time.Millisecond))
	for i, f := range s.Failures {
		if i == maxFailures {
			fmt.Printf("   ... %d more failures\n", len(s.Failures)-maxFailures)
			break
		}
		fmt.Printf("   ✗ %-10s %s\n", f.Symbol, f.Error)
	}
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	total := 0
	for i, w := range widths {
		total += w
		if i < len(widths)-1 {
			total += 2
		}
	}
	fmt.Println(strings.Repeat("─", total))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// parseDateFlag parses YYYY-MM-DD; empty yields the zero time
func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q (expected YYYY-MM-DD)", name, value)
	}
	return t, nil
}
