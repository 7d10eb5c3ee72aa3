package contracts

import "time"

// MaxConsecutiveFailures is the failure count at which a watermark is
// blacklisted. Recovery requires an explicit reset.
const MaxConsecutiveFailures = 3

// Watermark is the processing state of one (entity, dataset group) pair
type Watermark struct {
	SymbolID            int64        `json:"symbol_id"`
	Symbol              string       `json:"symbol,omitempty"`
	Group               DatasetGroup `json:"group"`
	LastDateProcessed   *time.Time   `json:"last_date_processed,omitempty"`
	LastSuccessfulRun   *time.Time   `json:"last_successful_run,omitempty"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	Eligible            bool         `json:"eligible"`
}

// Blacklisted reports whether the watermark has been permanently backed off
func (w Watermark) Blacklisted() bool {
	return !w.Eligible || w.ConsecutiveFailures >= MaxConsecutiveFailures
}

// WorkItem is one entity selected for processing
type WorkItem struct {
	SymbolID          int64
	Symbol            string
	Status            ListingStatus
	DelistingDate     *time.Time
	LastDateProcessed *time.Time
	LastSuccessfulRun *time.Time
}

// Outcome is the result of one processing attempt
type Outcome struct {
	Success bool
	// ObservedMax is the newest data date seen by the attempt, nil if none
	ObservedMax *time.Time
	At          time.Time
}
