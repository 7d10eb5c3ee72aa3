package watermark

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

type memKey struct {
	symbolID int64
	group    contracts.DatasetGroup
}

// MemoryStore is an in-process Store applying the same rules as
// PostgresStore. Used for tests and local dry runs.
type MemoryStore struct {
	mu         sync.Mutex
	entities   map[int64]contracts.Entity
	watermarks map[memKey]*contracts.Watermark
}

// NewMemoryStore creates a store whose registry holds entities
func NewMemoryStore(entities ...contracts.Entity) *MemoryStore {
	s := &MemoryStore{
		entities:   make(map[int64]contracts.Entity),
		watermarks: make(map[memKey]*contracts.Watermark),
	}
	for _, e := range entities {
		s.entities[e.SymbolID] = e
	}
	return s
}

// PutEntity adds or replaces a registry entity
func (s *MemoryStore) PutEntity(e contracts.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.SymbolID] = e
}

// Get returns a copy of one watermark
func (s *MemoryStore) Get(symbolID int64, group contracts.DatasetGroup) (contracts.Watermark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watermarks[memKey{symbolID, group}]
	if !ok {
		return contracts.Watermark{}, false
	}
	return *w, true
}

func (s *MemoryStore) InitializeGroup(ctx context.Context, group contracts.DatasetGroup) (int64, error) {
	if !group.Valid() {
		return 0, fmt.Errorf("initialize group: unknown group %q", group)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var added int64
	for id, e := range s.entities {
		k := memKey{id, group}
		if _, ok := s.watermarks[k]; ok {
			continue
		}
		s.watermarks[k] = &contracts.Watermark{
			SymbolID: id,
			Symbol:   e.Symbol,
			Group:    group,
			Eligible: true,
		}
		added++
	}
	return added, nil
}

func (s *MemoryStore) SelectWork(ctx context.Context, group contracts.DatasetGroup, opts SelectOptions) ([]contracts.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]contracts.WorkItem, 0)
	for k, w := range s.watermarks {
		if k.group != group {
			continue
		}
		e, ok := s.entities[k.symbolID]
		if !ok || !selectable(*w, e, opts) {
			continue
		}
		items = append(items, contracts.WorkItem{
			SymbolID:          e.SymbolID,
			Symbol:            e.Symbol,
			Status:            e.Status,
			DelistingDate:     e.DelistingDate,
			LastDateProcessed: w.LastDateProcessed,
			LastSuccessfulRun: w.LastSuccessfulRun,
		})
	}

	sortWork(items)
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items, nil
}

func (s *MemoryStore) ReportOutcome(ctx context.Context, symbolID int64, group contracts.DatasetGroup, outcome contracts.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.watermarks[memKey{symbolID, group}]
	if !ok {
		return fmt.Errorf("report outcome %s/%d: %w", group, symbolID, ErrNotTracked)
	}

	var applied bool
	if outcome.Success {
		applied = applySuccess(w, outcome)
	} else {
		applied = applyFailure(w)
	}
	if !applied {
		return fmt.Errorf("report outcome %s/%d: %w", group, symbolID, ErrNotTracked)
	}
	return nil
}

func (s *MemoryStore) Blacklisted(ctx context.Context, group contracts.DatasetGroup) ([]contracts.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]contracts.Watermark, 0)
	for k, w := range s.watermarks {
		if k.group == group && w.Blacklisted() {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConsecutiveFailures != out[j].ConsecutiveFailures {
			return out[i].ConsecutiveFailures > out[j].ConsecutiveFailures
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (s *MemoryStore) Reset(ctx context.Context, symbolID int64, group contracts.DatasetGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.watermarks[memKey{symbolID, group}]
	if !ok {
		return fmt.Errorf("reset %s/%d: %w", group, symbolID, ErrNotTracked)
	}
	w.ConsecutiveFailures = 0
	w.Eligible = true
	w.LastSuccessfulRun = nil
	return nil
}

func (s *MemoryStore) Summary(ctx context.Context) ([]GroupSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byGroup := make(map[contracts.DatasetGroup]*GroupSummary)
	for k, w := range s.watermarks {
		gs, ok := byGroup[k.group]
		if !ok {
			gs = &GroupSummary{Group: k.group}
			byGroup[k.group] = gs
		}
		gs.Tracked++
		if w.LastSuccessfulRun == nil {
			gs.NeverRun++
		} else if gs.LastRun == nil || w.LastSuccessfulRun.After(*gs.LastRun) {
			t := *w.LastSuccessfulRun
			gs.LastRun = &t
		}
		if w.Blacklisted() {
			gs.Blacklisted++
		}
	}

	out := make([]GroupSummary, 0, len(byGroup))
	for _, gs := range byGroup {
		out = append(out, *gs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out, nil
}
