// Package watermark tracks per (entity, dataset group) processing state and
// selects the entities that need work next.
//
// Every state change is a single conditional statement against the store,
// so two sweeps running concurrently cannot lose each other's updates.
package watermark

import (
	"context"
	"errors"
	"time"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

// ErrNotTracked is returned when an outcome or reset targets a watermark that
// does not exist or is blacklisted.
var ErrNotTracked = errors.New("watermark not tracked or blacklisted")

// Store is the durable watermark state
type Store interface {
	// InitializeGroup creates missing rows for every registry entity and
	// returns how many were added.
	InitializeGroup(ctx context.Context, group contracts.DatasetGroup) (int64, error)
	SelectWork(ctx context.Context, group contracts.DatasetGroup, opts SelectOptions) ([]contracts.WorkItem, error)
	ReportOutcome(ctx context.Context, symbolID int64, group contracts.DatasetGroup, outcome contracts.Outcome) error
	Blacklisted(ctx context.Context, group contracts.DatasetGroup) ([]contracts.Watermark, error)
	Reset(ctx context.Context, symbolID int64, group contracts.DatasetGroup) error
	Summary(ctx context.Context) ([]GroupSummary, error)
}

// SelectOptions parameterise one SelectWork call
type SelectOptions struct {
	Staleness time.Duration
	// Limit <= 0 means no limit
	Limit int
	Now   time.Time
	// Gap is the optional expected-but-missing rule
	Gap *GapRule
}

// GapRule reselects entities whose newest data predates ExpectedPeriod, but
// no more often than RecheckInterval. ExpectedPeriod is the earliest newest
// period that satisfies the rule, not necessarily a quarter end.
type GapRule struct {
	ExpectedPeriod  time.Time
	RecheckInterval time.Duration
}

// GroupSummary counts watermark states for one group
type GroupSummary struct {
	Group       contracts.DatasetGroup `json:"group"`
	Tracked     int64                  `json:"tracked"`
	NeverRun    int64                  `json:"never_run"`
	Blacklisted int64                  `json:"blacklisted"`
	LastRun     *time.Time             `json:"last_run,omitempty"`
}
