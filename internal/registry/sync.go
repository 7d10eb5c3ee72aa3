// Package registry maintains the entity registry from the provider's
// listing report.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/external/alphavantage"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// ListingSource downloads one side of the listing report
type ListingSource interface {
	ListingStatus(ctx context.Context, state alphavantage.ListingState) ([]contracts.Listing, error)
}

// Writer persists listings
type Writer interface {
	Upsert(ctx context.Context, listings []contracts.Listing) (UpsertStats, error)
}

// Syncer refreshes the registry from the provider
type Syncer struct {
	source ListingSource
	writer Writer
	logger *logger.Logger
}

// NewSyncer creates a new Syncer
func NewSyncer(source ListingSource, writer Writer, log *logger.Logger) *Syncer {
	return &Syncer{
		source: source,
		writer: writer,
		logger: log.WithField("module", "registry"),
	}
}

// Sync downloads the requested states and upserts the merged result.
// A symbol listed in both reports is a reused ticker: the active row wins.
func (s *Syncer) Sync(ctx context.Context, states ...alphavantage.ListingState) (UpsertStats, error) {
	if len(states) == 0 {
		states = []alphavantage.ListingState{alphavantage.ListingStateActive, alphavantage.ListingStateDelisted}
	}

	reports := make(map[alphavantage.ListingState][]contracts.Listing, len(states))
	for _, state := range states {
		listings, err := s.source.ListingStatus(ctx, state)
		if err != nil {
			return UpsertStats{}, fmt.Errorf("download %s listings: %w", state, err)
		}
		reports[state] = listings
	}

	merged := Merge(reports[alphavantage.ListingStateActive], reports[alphavantage.ListingStateDelisted])

	stats, err := s.writer.Upsert(ctx, merged)
	if err != nil {
		return stats, err
	}

	s.logger.WithFields(map[string]interface{}{
		"listings":  len(merged),
		"inserted":  stats.Inserted,
		"updated":   stats.Updated,
		"delisted":  stats.Delisted,
		"unchanged": stats.Unchanged,
	}).Info("Registry synced")

	return stats, nil
}

// Merge combines the two reports into one listing per symbol, sorted
func Merge(active, delisted []contracts.Listing) []contracts.Listing {
	bySymbol := make(map[string]contracts.Listing, len(active)+len(delisted))
	for _, l := range delisted {
		l.Status = contracts.ListingDelisted
		bySymbol[l.Symbol] = l
	}
	for _, l := range active {
		l.Status = contracts.ListingActive
		l.DelistingDate = nil
		bySymbol[l.Symbol] = l
	}

	out := make([]contracts.Listing, 0, len(bySymbol))
	for _, l := range bySymbol {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
