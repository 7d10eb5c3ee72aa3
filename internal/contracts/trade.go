package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a simulated or executed round trip. Derived, never stored as a
// source of truth.
type Trade struct {
	Strategy    string          `json:"strategy"`
	SymbolID    int64           `json:"symbol_id"`
	EntryDate   time.Time       `json:"entry_date"`
	ExitDate    time.Time       `json:"exit_date"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Commission  decimal.Decimal `json:"commission"`
	PnL         decimal.Decimal `json:"pnl"`
	PnLPct      decimal.Decimal `json:"pnl_pct"`
	HoldingDays int             `json:"holding_days"`
	ExitReason  ExitReason      `json:"exit_reason"`
}

// ExitReason explains why a simulated position closed
type ExitReason string

const (
	ExitSellSignal ExitReason = "sell_signal"
	ExitEndOfData  ExitReason = "end_of_window"
)

// IsWin reports whether the trade made money
func (t Trade) IsWin() bool {
	return t.PnL.IsPositive()
}

// Recommendation is a scored, ranked current signal
type Recommendation struct {
	AsOf         time.Time `json:"as_of"`
	SymbolID     int64     `json:"symbol_id"`
	Symbol       string    `json:"symbol"`
	Strategy     string    `json:"strategy"`
	Probability  float64   `json:"probability"`
	Strength     float64   `json:"strength"`
	Quality      float64   `json:"quality"`
	Composite    float64   `json:"composite"`
	Rank         int       `json:"rank"`
	ModelVersion string    `json:"model_version"`
}
