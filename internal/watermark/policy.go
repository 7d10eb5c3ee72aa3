package watermark

import (
	"sort"
	"time"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

// GapConfig configures the quarterly expected-but-missing rule
type GapConfig struct {
	ReportingLag    time.Duration
	RecheckInterval time.Duration
}

// FiscalQuarterTolerance is how far before a calendar quarter end a
// reported period may fall and still count as that quarter. Issuers on
// 52/53-week fiscal years close quarters a few days early (2024-06-29).
const FiscalQuarterTolerance = 7 * 24 * time.Hour

// NewSelectOptions builds the options for one sweep. Quarterly groups get a
// gap rule for the newest quarter whose filing should already be public,
// loosened by FiscalQuarterTolerance.
func NewSelectOptions(group contracts.DatasetGroup, staleness time.Duration, limit int, now time.Time, gap GapConfig) SelectOptions {
	opts := SelectOptions{
		Staleness: staleness,
		Limit:     limit,
		Now:       now,
	}
	if group.IsQuarterly() && gap.RecheckInterval > 0 {
		opts.Gap = &GapRule{
			ExpectedPeriod:  ExpectedQuarterEnd(now, gap.ReportingLag).Add(-FiscalQuarterTolerance),
			RecheckInterval: gap.RecheckInterval,
		}
	}
	return opts
}

// ExpectedQuarterEnd returns the latest calendar quarter end q with
// q + lag <= now.
func ExpectedQuarterEnd(now time.Time, lag time.Duration) time.Time {
	t := now.Add(-lag).UTC()
	quarterStartMonth := time.Month(((int(t.Month())-1)/3)*3 + 1)
	quarterStart := time.Date(t.Year(), quarterStartMonth, 1, 0, 0, 0, 0, time.UTC)
	end := quarterStart.AddDate(0, 0, -1)
	// t itself may be a quarter end
	if sameDay(t, quarterStart.AddDate(0, 3, -1)) {
		end = quarterStart.AddDate(0, 3, -1)
	}
	return end
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// dateOnly truncates to a UTC calendar date, matching a DATE column
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// selectable mirrors the SelectWork predicate for one watermark
func selectable(w contracts.Watermark, e contracts.Entity, opts SelectOptions) bool {
	if !w.Eligible || w.ConsecutiveFailures >= contracts.MaxConsecutiveFailures {
		return false
	}

	if !listedOrBacklogged(w, e) {
		return false
	}

	if w.LastSuccessfulRun == nil {
		return true
	}
	if w.LastSuccessfulRun.Before(opts.Now.Add(-opts.Staleness)) {
		return true
	}

	if g := opts.Gap; g != nil {
		missing := w.LastDateProcessed == nil || w.LastDateProcessed.Before(dateOnly(g.ExpectedPeriod))
		if missing && w.LastSuccessfulRun.Before(opts.Now.Add(-g.RecheckInterval)) {
			return true
		}
	}

	return false
}

// listedOrBacklogged is the domain rule: active symbols, or delisted ones
// that still have data from before their delisting date to ingest.
func listedOrBacklogged(w contracts.Watermark, e contracts.Entity) bool {
	if e.IsActive() {
		return true
	}
	if e.DelistingDate == nil {
		return false
	}
	return w.LastDateProcessed == nil || w.LastDateProcessed.Before(*e.DelistingDate)
}

// applySuccess resets failures and advances the watermark monotonically.
// It returns false when the watermark is blacklisted and left untouched.
func applySuccess(w *contracts.Watermark, o contracts.Outcome) bool {
	if !w.Eligible || w.ConsecutiveFailures >= contracts.MaxConsecutiveFailures {
		return false
	}
	at := o.At
	w.ConsecutiveFailures = 0
	w.LastSuccessfulRun = &at
	w.LastDateProcessed = laterDate(w.LastDateProcessed, o.ObservedMax)
	return true
}

// applyFailure counts a failure and blacklists at the threshold.
// It returns false when the watermark is already blacklisted.
func applyFailure(w *contracts.Watermark) bool {
	if !w.Eligible {
		return false
	}
	w.ConsecutiveFailures++
	w.Eligible = w.ConsecutiveFailures < contracts.MaxConsecutiveFailures
	return true
}

// laterDate behaves like SQL GREATEST: nulls are ignored
func laterDate(current, observed *time.Time) *time.Time {
	if observed == nil {
		return current
	}
	d := dateOnly(*observed)
	if current == nil || d.After(*current) {
		return &d
	}
	return current
}

// sortWork orders never-processed entities first, then the oldest success,
// then symbol so repeated calls are deterministic.
func sortWork(items []contracts.WorkItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].LastSuccessfulRun, items[j].LastSuccessfulRun
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return items[i].Symbol < items[j].Symbol
	})
}
