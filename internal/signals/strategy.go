// Package signals turns feature rows into buy and sell events. Strategies
// are pure: they see one entity's frame and report transitions only.
package signals

import (
	"fmt"
	"sort"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
)

// Frame is one entity's feature rows in ascending date order
type Frame struct {
	SymbolID int64
	Rows     []contracts.FeatureRow
}

// Strategy detects buy and sell transitions in a frame
type Strategy interface {
	Name() string
	Evaluate(frame Frame) []contracts.SignalEvent
}

// Registry holds the known strategies by name. The set is open: anything
// implementing Strategy can be registered.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a registry with the shipped strategies configured
// from cfg.
func NewRegistry(cfg *pipelineconfig.Config) *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	f := cfg.Features
	s := cfg.Signals

	r.Register(RSIReversal{Period: s.RSIPeriod, Oversold: f.RSIOversold, Overbought: f.RSIOverbought})
	r.Register(MACDCrossover{})
	r.Register(EMACrossover{})
	r.Register(BollingerReversion{})
	r.Register(WilliamsRReversal{Period: f.WilliamsPeriod, Oversold: s.WilliamsOversold, Overbought: s.WilliamsOverbought})
	return r
}

// Register adds or replaces a strategy
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Names lists registered strategies, sorted
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Select resolves names to strategies, failing on the first unknown name
func (r *Registry) Select(names []string) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, ok := r.strategies[name]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q (known: %v)", name, r.Names())
		}
		out = append(out, s)
	}
	return out, nil
}

// Evaluate runs every strategy over the frame and returns the union of
// their events ordered by date then strategy.
func Evaluate(strategies []Strategy, frame Frame) []contracts.SignalEvent {
	out := make([]contracts.SignalEvent, 0)
	for _, s := range strategies {
		out = append(out, s.Evaluate(frame)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Strategy < out[j].Strategy
	})
	return out
}
