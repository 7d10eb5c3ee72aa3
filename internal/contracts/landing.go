package contracts

import (
	"time"

	"github.com/google/uuid"
)

// ResponseStatus classifies a provider response
type ResponseStatus string

const (
	StatusSuccess     ResponseStatus = "success"
	StatusEmpty       ResponseStatus = "empty"
	StatusError       ResponseStatus = "error"
	StatusRateLimited ResponseStatus = "rate_limited"
)

// CountsAsFailure reports whether the status increments the failure counter.
// Empty responses are a valid terminal state, not a failure.
func (s ResponseStatus) CountsAsFailure() bool {
	return s == StatusError || s == StatusRateLimited
}

// RawLanding is one append-only audit row per extraction attempt
type RawLanding struct {
	RunID        uuid.UUID
	Group        DatasetGroup
	SymbolID     int64
	APIFunction  string
	Status       ResponseStatus
	Payload      []byte
	ResponseHash string
	FetchedAt    time.Time
}

// FactRecord is one normalized row keyed by (entity, period, report type)
type FactRecord struct {
	SymbolID    int64
	Period      time.Time
	ReportType  string
	Fields      map[string]any
	ContentHash string
}

// Key returns the natural key of the record within one entity
func (f FactRecord) Key() FactKey {
	return FactKey{Period: f.Period.Format("2006-01-02"), ReportType: f.ReportType}
}

// FactKey identifies a fact row within one entity
type FactKey struct {
	Period     string
	ReportType string
}
