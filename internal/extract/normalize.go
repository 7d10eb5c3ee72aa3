package extract

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/external/alphavantage"
)

// Report types stored alongside each fact
const (
	ReportAnnual    = "annual"
	ReportQuarterly = "quarterly"
	ReportOverview  = "overview"
	ReportDaily     = "daily"
)

const dateLayout = "2006-01-02"

// dailyFieldNames maps provider keys to column names
var dailyFieldNames = map[string]string{
	"1. open":              "open",
	"2. high":              "high",
	"3. low":               "low",
	"4. close":             "close",
	"5. adjusted close":    "adjusted_close",
	"6. volume":            "volume",
	"7. dividend amount":   "dividend_amount",
	"8. split coefficient": "split_coefficient",
}

// Normalize turns a successful payload into hashed fact records and returns
// the newest period observed. Records come back sorted by key.
func Normalize(group contracts.DatasetGroup, symbolID int64, payload []byte) ([]contracts.FactRecord, *time.Time, error) {
	root := gjson.ParseBytes(payload)

	var (
		records []contracts.FactRecord
		err     error
	)
	switch group {
	case contracts.GroupBalanceSheet, contracts.GroupIncomeStatement, contracts.GroupCashFlow:
		records, err = periodReports(symbolID, root, "annualReports", "quarterlyReports")
	case contracts.GroupEarnings:
		records, err = periodReports(symbolID, root, "annualEarnings", "quarterlyEarnings")
	case contracts.GroupCompanyOverview:
		records, err = overview(symbolID, root)
	case contracts.GroupDailyPrices:
		records, err = dailyBars(symbolID, root)
	default:
		return nil, nil, fmt.Errorf("group %s is not extracted", group)
	}
	if err != nil {
		return nil, nil, err
	}

	var observed *time.Time
	for i := range records {
		records[i].ContentHash, err = HashRecord(records[i].Fields)
		if err != nil {
			return nil, nil, fmt.Errorf("hash %s: %w", records[i].Key().Period, err)
		}
		if observed == nil || records[i].Period.After(*observed) {
			p := records[i].Period
			observed = &p
		}
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Period.Equal(b.Period) {
			return a.Period.Before(b.Period)
		}
		return a.ReportType < b.ReportType
	})
	return records, observed, nil
}

func periodReports(symbolID int64, root gjson.Result, annualKey, quarterlyKey string) ([]contracts.FactRecord, error) {
	out := make([]contracts.FactRecord, 0)
	seen := make(map[contracts.FactKey]bool)

	for _, part := range []struct{ key, reportType string }{
		{annualKey, ReportAnnual},
		{quarterlyKey, ReportQuarterly},
	} {
		for _, report := range root.Get(part.key).Array() {
			period, err := time.Parse(dateLayout, report.Get("fiscalDateEnding").String())
			if err != nil {
				return nil, fmt.Errorf("%s: bad fiscalDateEnding %q", part.key, report.Get("fiscalDateEnding").String())
			}

			rec := contracts.FactRecord{
				SymbolID:   symbolID,
				Period:     period,
				ReportType: part.reportType,
				Fields:     normalizeFields(report, "fiscalDateEnding"),
			}
			// the provider occasionally repeats a period; first one wins
			if seen[rec.Key()] {
				continue
			}
			seen[rec.Key()] = true
			out = append(out, rec)
		}
	}
	return out, nil
}

func overview(symbolID int64, root gjson.Result) ([]contracts.FactRecord, error) {
	if root.Get("Symbol").String() == "" {
		return nil, nil
	}

	period, err := time.Parse(dateLayout, root.Get("LatestQuarter").String())
	if err != nil {
		return nil, fmt.Errorf("overview: bad LatestQuarter %q", root.Get("LatestQuarter").String())
	}

	return []contracts.FactRecord{{
		SymbolID:   symbolID,
		Period:     period,
		ReportType: ReportOverview,
		Fields:     normalizeFields(root),
	}}, nil
}

func dailyBars(symbolID int64, root gjson.Result) ([]contracts.FactRecord, error) {
	out := make([]contracts.FactRecord, 0)
	var parseErr error

	root.Get(alphavantage.DailySeriesKey).ForEach(func(key, bar gjson.Result) bool {
		date, err := time.Parse(dateLayout, key.String())
		if err != nil {
			parseErr = fmt.Errorf("daily series: bad date %q", key.String())
			return false
		}

		fields := make(map[string]any, len(dailyFieldNames))
		bar.ForEach(func(k, v gjson.Result) bool {
			if name, ok := dailyFieldNames[k.String()]; ok {
				fields[name] = normalizeValue(v)
			}
			return true
		})

		out = append(out, contracts.FactRecord{
			SymbolID:   symbolID,
			Period:     date,
			ReportType: ReportDaily,
			Fields:     fields,
		})
		return true
	})

	return out, parseErr
}

// normalizeFields converts one provider object. Numeric strings become
// numbers and the provider's "None" becomes null.
func normalizeFields(obj gjson.Result, skip ...string) map[string]any {
	fields := make(map[string]any)
	obj.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		for _, s := range skip {
			if name == s {
				return true
			}
		}
		fields[name] = normalizeValue(v)
		return true
	})
	return fields
}

func normalizeValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return v.Float()
	case gjson.True, gjson.False:
		return v.Bool()
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" || s == "None" || s == "-" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil
			}
			return f
		}
		return s
	}
	return v.Raw
}
