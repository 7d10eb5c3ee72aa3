package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/execution"
	"github.com/kennydoit/fin-trade-craft/pkg/config"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

var _ execution.Broker = (*Client)(nil)

func newTestServer(t *testing.T) (*httptest.Server, *orderRequest) {
	t.Helper()
	var lastOrder orderRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/account", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
		w.Write([]byte(`{"equity":"100000.50","cash":"40000","buying_power":"80000"}`))
	})
	mux.HandleFunc("/v2/positions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"symbol":"AAPL","qty":"12","avg_entry_price":"187.25","market_value":"2280.00"}]`))
	})
	mux.HandleFunc("/v2/positions/IBM", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Write([]byte(`{"id":"o-2","symbol":"IBM","qty":"5","side":"sell","status":"accepted","submitted_at":"2024-06-14T14:31:00Z"}`))
	})
	mux.HandleFunc("/v2/positions/TSLA", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":40410000,"message":"position does not exist"}`))
	})
	mux.HandleFunc("/v2/orders", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastOrder))
		w.Write([]byte(`{"id":"o-1","symbol":"MSFT","qty":"7","side":"buy","status":"accepted","submitted_at":"2024-06-14T14:30:00Z"}`))
	})
	mux.HandleFunc("/v2/clock", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"timestamp":"2024-06-14T10:00:00-04:00","is_open":true}`))
	})
	mux.HandleFunc("/v2/stocks/MSFT/trades/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"MSFT","trade":{"t":"2024-06-14T14:29:59Z","p":441.06,"s":100}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lastOrder
}

func newClient(srv *httptest.Server) *Client {
	return NewClient(config.BrokerConfig{
		APIKey:    "key",
		SecretKey: "secret",
		BaseURL:   srv.URL,
		DataURL:   srv.URL,
		Timeout:   5 * time.Second,
	}, logger.NewNop())
}

func TestClient_AccountAndPositions(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(srv)
	ctx := context.Background()

	acct, err := c.GetAccount(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("100000.50").Equal(acct.Equity))

	positions, err := c.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.True(t, decimal.NewFromInt(12).Equal(positions[0].Qty))

	open, err := c.IsMarketOpen(ctx)
	require.NoError(t, err)
	assert.True(t, open)
}

func TestClient_LatestPrice(t *testing.T) {
	srv, _ := newTestServer(t)
	price, err := newClient(srv).GetLatestPrice(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("441.06").Equal(price))

	_, err = newClient(srv).GetLatestPrice(context.Background(), "NOPE")
	assert.Error(t, err)
}

func TestClient_Orders(t *testing.T) {
	srv, sent := newTestServer(t)
	c := newClient(srv)
	ctx := context.Background()

	o, err := c.PlaceMarketOrder(ctx, "MSFT", decimal.NewFromInt(7), contracts.OrderSideBuy)
	require.NoError(t, err)
	assert.Equal(t, "o-1", o.ID)
	assert.Equal(t, contracts.OrderSideBuy, o.Side)
	assert.Equal(t, orderRequest{Symbol: "MSFT", Qty: "7", Side: "buy", Type: "market", TimeInForce: "day"}, *sent)

	closed, err := c.ClosePosition(ctx, "IBM")
	require.NoError(t, err)
	assert.Equal(t, contracts.OrderSideSell, closed.Side)

	_, err = c.ClosePosition(ctx, "TSLA")
	assert.ErrorContains(t, err, "position does not exist")
}
