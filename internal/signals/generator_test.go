package signals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/features"
	"github.com/kennydoit/fin-trade-craft/internal/watermark"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

type fakeFrames map[int64][]contracts.FeatureRow

func (f fakeFrames) LatestRows(ctx context.Context, symbolID int64, n int) ([]contracts.FeatureRow, error) {
	rows := f[symbolID]
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows, nil
}

type eventKey struct {
	symbolID int64
	date     time.Time
	strategy string
}

// memoryEvents mimics the upsert: identical rewrites affect nothing
type memoryEvents struct {
	mu     sync.Mutex
	events map[eventKey]contracts.SignalEvent
}

func (m *memoryEvents) Upsert(ctx context.Context, events []contracts.SignalEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range events {
		k := eventKey{e.SymbolID, e.Date, e.Strategy}
		if old, ok := m.events[k]; ok && old == e {
			continue
		}
		m.events[k] = e
		n++
	}
	return n, nil
}

func (m *memoryEvents) snapshot() map[eventKey]contracts.SignalEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[eventKey]contracts.SignalEvent, len(m.events))
	for k, v := range m.events {
		out[k] = v
	}
	return out
}

type fakeEntities []contracts.Entity

func (f fakeEntities) Entities(ctx context.Context, activeOnly bool, limit int) ([]contracts.Entity, error) {
	return f, nil
}

func generatorFixture(t *testing.T) (*Generator, *memoryEvents, *watermark.MemoryStore) {
	t.Helper()
	entities := fakeEntities{
		{SymbolID: 7, Symbol: "AAA", Status: contracts.ListingActive},
		{SymbolID: 8, Symbol: "BBB", Status: contracts.ListingActive},
	}

	rsi := frameOf("rsi_14", f(25), f(28), f(33), f(50), f(75), f(68))
	frames := fakeFrames{7: rsi.Rows, 8: rsi.Rows[:1]}

	store := &memoryEvents{events: make(map[eventKey]contracts.SignalEvent)}
	marks := watermark.NewMemoryStore(entities...)
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	g := NewGenerator([]Strategy{RSIReversal{Period: 14, Oversold: 30, Overbought: 70}}, 250,
		frames, store, entities, marks, logger.NewNop()).
		WithClock(func() time.Time { return now })
	return g, store, marks
}

func TestGenerator_FullRunIsIdempotent(t *testing.T) {
	g, store, marks := generatorFixture(t)
	ctx := context.Background()
	opts := features.RunOptions{Mode: features.ModeFull, Workers: 2}

	first, err := g.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Success)
	assert.Equal(t, 1, first.Skipped)
	assert.Equal(t, 2, first.Rows)

	before := store.snapshot()
	require.Len(t, before, 2)

	second, err := g.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Unchanged)
	assert.Zero(t, second.Rows)

	if diff := cmp.Diff(before, store.snapshot(), cmp.AllowUnexported(eventKey{})); diff != "" {
		t.Errorf("rerun changed stored events (-before +after):\n%s", diff)
	}

	w, ok := marks.Get(7, contracts.GroupSignalEvents)
	require.True(t, ok)
	require.NotNil(t, w.LastDateProcessed)
	assert.Equal(t, day(5), *w.LastDateProcessed)
}

func TestGenerator_Incremental(t *testing.T) {
	g, _, _ := generatorFixture(t)
	ctx := context.Background()
	opts := features.RunOptions{Mode: features.ModeIncremental, Workers: 1, Init: true, Staleness: time.Hour}

	sum, err := g.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)

	// both were just processed, nothing is stale yet
	sum, err = g.Run(ctx, opts)
	require.NoError(t, err)
	assert.Zero(t, sum.Total)
}

func TestGenerator_UnknownMode(t *testing.T) {
	g, _, _ := generatorFixture(t)
	_, err := g.Run(context.Background(), features.RunOptions{Mode: "sideways"})
	assert.Error(t, err)
}

