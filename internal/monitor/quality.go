// Package monitor checks stored facts for completeness, validity and
// future-dated rows, and reports blacklisted entities per group.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/watermark"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
	"github.com/kennydoit/fin-trade-craft/pkg/redis"
)

// DefaultMinCompleteness is the share of complete rows a table needs
const DefaultMinCompleteness = 0.95

// TableQuality holds the checks of one fact table
type TableQuality struct {
	Group        contracts.DatasetGroup `json:"group"`
	Rows         int64                  `json:"rows"`
	Entities     int64                  `json:"entities"`
	Complete     int64                  `json:"complete"`
	Invalid      int64                  `json:"invalid"`
	FutureDated  int64                  `json:"future_dated"`
	Completeness float64                `json:"completeness"`
}

// Report is one data-quality run
type Report struct {
	GeneratedAt time.Time                        `json:"generated_at"`
	Tables      []TableQuality                   `json:"tables"`
	Blacklisted map[contracts.DatasetGroup]int64 `json:"blacklisted"`
	Issues      []string                         `json:"issues"`
	Passed      bool                             `json:"passed"`
}

// qualitySQL holds one constant query per fact table. Each returns rows,
// entities, complete, invalid and future-dated counts for cutoff $1.
var qualitySQL = map[contracts.DatasetGroup]string{
	contracts.GroupDailyPrices: `
		SELECT COUNT(*), COUNT(DISTINCT symbol_id),
		       COUNT(*) FILTER (WHERE close IS NOT NULL AND volume IS NOT NULL),
		       COUNT(*) FILTER (WHERE close < 0 OR volume < 0 OR high < low),
		       COUNT(*) FILTER (WHERE date > $1)
		FROM source.time_series_daily_adjusted`,
	contracts.GroupBalanceSheet:    fundamentalsQualitySQL(fundamentalsChecks[contracts.GroupBalanceSheet]),
	contracts.GroupIncomeStatement: fundamentalsQualitySQL(fundamentalsChecks[contracts.GroupIncomeStatement]),
	contracts.GroupCashFlow:        fundamentalsQualitySQL(fundamentalsChecks[contracts.GroupCashFlow]),
	contracts.GroupEarnings:        fundamentalsQualitySQL(fundamentalsChecks[contracts.GroupEarnings]),
	contracts.GroupCompanyOverview: fundamentalsQualitySQL(fundamentalsChecks[contracts.GroupCompanyOverview]),
}

// fundamentalsCheck names the field a fundamentals row must carry.
// Loss quarters and cash outflows are negative in healthy data, so only
// fields that cannot go below zero get a sign check.
type fundamentalsCheck struct {
	table       string
	required    string
	nonNegative bool
}

var fundamentalsChecks = map[contracts.DatasetGroup]fundamentalsCheck{
	contracts.GroupBalanceSheet:    {table: "balance_sheet", required: "totalAssets", nonNegative: true},
	contracts.GroupIncomeStatement: {table: "income_statement", required: "totalRevenue"},
	contracts.GroupCashFlow:        {table: "cash_flow", required: "operatingCashflow"},
	contracts.GroupEarnings:        {table: "earnings", required: "reportedEPS"},
	contracts.GroupCompanyOverview: {table: "company_overview", required: "MarketCapitalization", nonNegative: true},
}

// invalidPredicate flags a required value that normalization left as text,
// plus a negative value where the field cannot be negative
func (c fundamentalsCheck) invalidPredicate() string {
	pred := fmt.Sprintf(`jsonb_typeof(fields->'%s') = 'string'`, c.required)
	if c.nonNegative {
		pred += fmt.Sprintf(` OR (jsonb_typeof(fields->'%[1]s') = 'number' AND (fields->>'%[1]s')::double precision < 0)`, c.required)
	}
	return pred
}

// fundamentalsQualitySQL is only called with the literals above
func fundamentalsQualitySQL(c fundamentalsCheck) string {
	return fmt.Sprintf(`
		SELECT COUNT(*), COUNT(DISTINCT symbol_id),
		       COUNT(*) FILTER (WHERE fields->>'%[2]s' IS NOT NULL),
		       COUNT(*) FILTER (WHERE %[3]s),
		       COUNT(*) FILTER (WHERE fiscal_date_ending > $1)
		FROM source.%[1]s`, c.table, c.required, c.invalidPredicate())
}

// Monitor builds data-quality reports
type Monitor struct {
	db              database.DBTX
	marks           watermark.Store
	cache           *redis.Cache
	minCompleteness float64
	logger          *logger.Logger
	now             func() time.Time
}

// NewMonitor creates a Monitor. cache may be nil.
func NewMonitor(db database.DBTX, marks watermark.Store, cache *redis.Cache, log *logger.Logger) *Monitor {
	return &Monitor{
		db:              db,
		marks:           marks,
		cache:           cache,
		minCompleteness: DefaultMinCompleteness,
		logger:          log.WithField("module", "monitor"),
		now:             time.Now,
	}
}

// Check runs every table check and the blacklist summary, then caches
// the report for the ops API.
func (m *Monitor) Check(ctx context.Context) (*Report, error) {
	now := m.now()
	report := &Report{
		GeneratedAt: now,
		Blacklisted: make(map[contracts.DatasetGroup]int64),
	}
	cutoff := now.UTC().Truncate(24 * time.Hour)

	for _, group := range contracts.ExtractionGroups() {
		q := TableQuality{Group: group}
		err := m.db.QueryRow(ctx, qualitySQL[group], cutoff).
			Scan(&q.Rows, &q.Entities, &q.Complete, &q.Invalid, &q.FutureDated)
		if err != nil {
			return nil, fmt.Errorf("quality %s: %w", group, err)
		}
		report.Tables = append(report.Tables, q)
	}

	summaries, err := m.marks.Summary(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		report.Blacklisted[s.Group] = s.Blacklisted
	}

	evaluate(report, m.minCompleteness)

	m.logger.WithFields(map[string]interface{}{
		"tables": len(report.Tables),
		"issues": len(report.Issues),
		"passed": report.Passed,
	}).Info("Data quality checked")

	if m.cache != nil {
		if err := m.cache.Set(ctx, redis.QualityReportKey(), report, redis.TTLMedium); err != nil {
			m.logger.WithError(err).Warn("Failed to cache quality report")
		}
	}
	return report, nil
}

// Cached returns the cached report, running Check on a miss
func (m *Monitor) Cached(ctx context.Context) (*Report, error) {
	if m.cache == nil {
		return m.Check(ctx)
	}
	var report Report
	found, err := m.cache.Get(ctx, redis.QualityReportKey(), &report)
	if err != nil {
		m.logger.WithError(err).Warn("Quality cache read failed")
	}
	if found {
		return &report, nil
	}
	return m.Check(ctx)
}

// evaluate fills completeness, issues and the pass flag
func evaluate(r *Report, minCompleteness float64) {
	r.Issues = []string{}
	for i := range r.Tables {
		t := &r.Tables[i]
		if t.Rows > 0 {
			t.Completeness = float64(t.Complete) / float64(t.Rows)
			if t.Completeness < minCompleteness {
				r.Issues = append(r.Issues, fmt.Sprintf("%s: completeness %.1f%% below %.1f%%",
					t.Group, t.Completeness*100, minCompleteness*100))
			}
		}
		if t.Invalid > 0 {
			r.Issues = append(r.Issues, fmt.Sprintf("%s: %d invalid rows", t.Group, t.Invalid))
		}
		if t.FutureDated > 0 {
			r.Issues = append(r.Issues, fmt.Sprintf("%s: %d future-dated rows", t.Group, t.FutureDated))
		}
	}
	r.Passed = len(r.Issues) == 0
}
