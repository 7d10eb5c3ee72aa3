package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

// Broker is the trading collaborator. Implementations own their wire
// protocol; the adapter only sees this contract.
type Broker interface {
	GetAccount(ctx context.Context) (contracts.Account, error)
	GetPositions(ctx context.Context) ([]contracts.Position, error)
	GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	PlaceMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, side contracts.OrderSide) (contracts.Order, error)
	ClosePosition(ctx context.Context, symbol string) (contracts.Order, error)
	IsMarketOpen(ctx context.Context) (bool, error)
}

// MockBroker is an in-memory broker for tests and dry runs
type MockBroker struct {
	mu        sync.Mutex
	open      bool
	account   contracts.Account
	prices    map[string]decimal.Decimal
	positions map[string]contracts.Position
	orders    []contracts.Order
	seq       int
}

// NewMockBroker creates an open-market broker holding equity in cash
func NewMockBroker(equity decimal.Decimal) *MockBroker {
	return &MockBroker{
		open:      true,
		account:   contracts.Account{Equity: equity, Cash: equity, BuyingPower: equity},
		prices:    make(map[string]decimal.Decimal),
		positions: make(map[string]contracts.Position),
	}
}

// SetMarketOpen toggles the market clock
func (b *MockBroker) SetMarketOpen(open bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = open
}

// SetPrice sets the latest price of a symbol
func (b *MockBroker) SetPrice(symbol string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price
}

// SetPosition seeds an open position
func (b *MockBroker) SetPosition(p contracts.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[p.Symbol] = p
}

// Orders returns every order placed so far
func (b *MockBroker) Orders() []contracts.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]contracts.Order, len(b.orders))
	copy(out, b.orders)
	return out
}

func (b *MockBroker) GetAccount(ctx context.Context) (contracts.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.account, nil
}

func (b *MockBroker) GetPositions(ctx context.Context) ([]contracts.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]contracts.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out, nil
}

func (b *MockBroker) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	price, ok := b.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func (b *MockBroker) PlaceMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, side contracts.OrderSide) (contracts.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	price := b.prices[symbol]
	switch side {
	case contracts.OrderSideBuy:
		p := b.positions[symbol]
		p.Symbol = symbol
		p.Qty = p.Qty.Add(qty)
		p.AvgEntryPrice = price
		p.MarketValue = p.Qty.Mul(price)
		b.positions[symbol] = p
		b.account.Cash = b.account.Cash.Sub(qty.Mul(price))
	case contracts.OrderSideSell:
		delete(b.positions, symbol)
		b.account.Cash = b.account.Cash.Add(qty.Mul(price))
	default:
		return contracts.Order{}, fmt.Errorf("unknown side %q", side)
	}
	b.account.BuyingPower = b.account.Cash

	return b.record(symbol, qty, side), nil
}

func (b *MockBroker) ClosePosition(ctx context.Context, symbol string) (contracts.Order, error) {
	b.mu.Lock()
	p, ok := b.positions[symbol]
	b.mu.Unlock()
	if !ok {
		return contracts.Order{}, fmt.Errorf("no position in %s", symbol)
	}
	return b.PlaceMarketOrder(ctx, symbol, p.Qty, contracts.OrderSideSell)
}

func (b *MockBroker) IsMarketOpen(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open, nil
}

func (b *MockBroker) record(symbol string, qty decimal.Decimal, side contracts.OrderSide) contracts.Order {
	b.seq++
	o := contracts.Order{
		ID:          fmt.Sprintf("MOCK-%d", b.seq),
		Symbol:      symbol,
		Side:        side,
		Qty:         qty,
		Status:      "filled",
		SubmittedAt: time.Now(),
	}
	b.orders = append(b.orders, o)
	return o
}
