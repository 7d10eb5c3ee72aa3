package contracts

import (
	"fmt"
	"strings"
)

// DatasetGroup identifies a unit of incremental processing. The set is
// closed: values are only ever produced by the constants below or by
// ParseDatasetGroup, never taken verbatim from configuration.
type DatasetGroup string

const (
	GroupBalanceSheet      DatasetGroup = "balance_sheet"
	GroupIncomeStatement   DatasetGroup = "income_statement"
	GroupCashFlow          DatasetGroup = "cash_flow"
	GroupEarnings          DatasetGroup = "earnings"
	GroupCompanyOverview   DatasetGroup = "company_overview"
	GroupDailyPrices       DatasetGroup = "time_series_daily_adjusted"
	GroupTechnicalFeatures DatasetGroup = "technical_features"
	GroupSignalEvents      DatasetGroup = "signal_events"
)

var allGroups = []DatasetGroup{
	GroupBalanceSheet,
	GroupIncomeStatement,
	GroupCashFlow,
	GroupEarnings,
	GroupCompanyOverview,
	GroupDailyPrices,
	GroupTechnicalFeatures,
	GroupSignalEvents,
}

var apiFunctions = map[DatasetGroup]string{
	GroupBalanceSheet:    "BALANCE_SHEET",
	GroupIncomeStatement: "INCOME_STATEMENT",
	GroupCashFlow:        "CASH_FLOW",
	GroupEarnings:        "EARNINGS",
	GroupCompanyOverview: "OVERVIEW",
	GroupDailyPrices:     "TIME_SERIES_DAILY_ADJUSTED",
}

// AllDatasetGroups returns every known group in a fixed order
func AllDatasetGroups() []DatasetGroup {
	out := make([]DatasetGroup, len(allGroups))
	copy(out, allGroups)
	return out
}

// ExtractionGroups returns the groups fed by the market-data provider
func ExtractionGroups() []DatasetGroup {
	out := make([]DatasetGroup, 0, len(apiFunctions))
	for _, g := range allGroups {
		if _, ok := apiFunctions[g]; ok {
			out = append(out, g)
		}
	}
	return out
}

// ParseDatasetGroup maps user input onto the closed set of groups
func ParseDatasetGroup(s string) (DatasetGroup, error) {
	candidate := DatasetGroup(strings.ToLower(strings.TrimSpace(s)))
	for _, g := range allGroups {
		if g == candidate {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown dataset group %q", s)
}

// Valid reports whether g is one of the known groups
func (g DatasetGroup) Valid() bool {
	_, err := ParseDatasetGroup(string(g))
	return err == nil
}

// APIFunction returns the provider function name, or "" for derived groups
func (g DatasetGroup) APIFunction() string {
	return apiFunctions[g]
}

// IsExtraction reports whether g is fetched from the provider
func (g DatasetGroup) IsExtraction() bool {
	return g.APIFunction() != ""
}

// IsQuarterly reports whether g follows the fiscal-quarter reporting cycle
func (g DatasetGroup) IsQuarterly() bool {
	switch g {
	case GroupBalanceSheet, GroupIncomeStatement, GroupCashFlow, GroupEarnings:
		return true
	}
	return false
}

func (g DatasetGroup) String() string {
	return string(g)
}
