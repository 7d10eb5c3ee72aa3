// Package alphavantage is the market-data provider client. Responses are
// inspected with gjson so the raw bytes can be landed untouched.
package alphavantage

import (
	"github.com/tidwall/gjson"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

// Provider function names
const (
	FunctionBalanceSheet    = "BALANCE_SHEET"
	FunctionIncomeStatement = "INCOME_STATEMENT"
	FunctionCashFlow        = "CASH_FLOW"
	FunctionEarnings        = "EARNINGS"
	FunctionOverview        = "OVERVIEW"
	FunctionDailyAdjusted   = "TIME_SERIES_DAILY_ADJUSTED"
	FunctionListingStatus   = "LISTING_STATUS"
)

// DailySeriesKey holds the date-keyed bars of a daily adjusted response
const DailySeriesKey = "Time Series (Daily)"

// Classify maps a provider payload to a response status. The provider
// answers HTTP 200 for errors and throttling, so the body decides.
func Classify(function string, payload []byte) contracts.ResponseStatus {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return contracts.StatusError
	}

	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return contracts.StatusError
	}
	if root.Get("Error Message").Exists() {
		return contracts.StatusError
	}
	if root.Get("Note").Exists() || root.Get("Information").Exists() {
		return contracts.StatusRateLimited
	}

	if ReportCount(function, root) == 0 {
		return contracts.StatusEmpty
	}
	return contracts.StatusSuccess
}

// ReportCount returns how many reportable items a parsed payload holds
func ReportCount(function string, root gjson.Result) int {
	switch function {
	case FunctionBalanceSheet, FunctionIncomeStatement, FunctionCashFlow:
		return len(root.Get("annualReports").Array()) + len(root.Get("quarterlyReports").Array())
	case FunctionEarnings:
		return len(root.Get("annualEarnings").Array()) + len(root.Get("quarterlyEarnings").Array())
	case FunctionOverview:
		if root.Get("Symbol").String() == "" {
			return 0
		}
		return 1
	case FunctionDailyAdjusted:
		n := 0
		root.Get(DailySeriesKey).ForEach(func(_, _ gjson.Result) bool {
			n++
			return true
		})
		return n
	}
	return 0
}
