// Package alpaca is a REST client for the Alpaca trading and market-data
// APIs, implementing the execution.Broker contract.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/config"
	"github.com/kennydoit/fin-trade-craft/pkg/httputil"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
	"github.com/kennydoit/fin-trade-craft/pkg/redis"
)

// Client handles communication with the Alpaca API
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	dataURL    string
}

// NewClient creates a new Alpaca client. Credentials are sent as headers
// on every request. Retry is off because order submission is not
// idempotent.
func NewClient(cfg config.BrokerConfig, log *logger.Logger) *Client {
	httpClient := httputil.New(log, cfg.Timeout).
		DisableRetry().
		WithHeader("APCA-API-KEY-ID", cfg.APIKey).
		WithHeader("APCA-API-SECRET-KEY", cfg.SecretKey)

	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "alpaca"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		dataURL:    strings.TrimRight(cfg.DataURL, "/"),
	}
}

type accountResponse struct {
	Equity      decimal.Decimal `json:"equity"`
	Cash        decimal.Decimal `json:"cash"`
	BuyingPower decimal.Decimal `json:"buying_power"`
}

type positionResponse struct {
	Symbol        string          `json:"symbol"`
	Qty           decimal.Decimal `json:"qty"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

type orderResponse struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Qty         decimal.Decimal `json:"qty"`
	Side        string          `json:"side"`
	Status      string          `json:"status"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// WithRateLimiter shares the broker quota across processes
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter) *Client {
	c.httpClient.WithRateLimiter(limiter, redis.BrokerRateLimit)
	return c
}

func (o orderResponse) toOrder() contracts.Order {
	return contracts.Order{
		ID:          o.ID,
		Symbol:      o.Symbol,
		Side:        contracts.OrderSide(o.Side),
		Qty:         o.Qty,
		Status:      o.Status,
		SubmittedAt: o.SubmittedAt,
	}
}

// GetAccount returns the account equity and cash
func (c *Client) GetAccount(ctx context.Context) (contracts.Account, error) {
	var a accountResponse
	if err := c.getJSON(ctx, c.baseURL+"/v2/account", &a); err != nil {
		return contracts.Account{}, fmt.Errorf("account: %w", err)
	}
	return contracts.Account{Equity: a.Equity, Cash: a.Cash, BuyingPower: a.BuyingPower}, nil
}

// GetPositions returns all open positions
func (c *Client) GetPositions(ctx context.Context) ([]contracts.Position, error) {
	var resp []positionResponse
	if err := c.getJSON(ctx, c.baseURL+"/v2/positions", &resp); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	out := make([]contracts.Position, len(resp))
	for i, p := range resp {
		out[i] = contracts.Position(p)
	}
	return out, nil
}

// GetLatestPrice returns the last trade price of a symbol
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", c.dataURL, url.PathEscape(symbol))
	body, code, err := c.httpClient.GetBytes(ctx, endpoint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest trade %s: %w", symbol, err)
	}
	if code != http.StatusOK {
		return decimal.Zero, fmt.Errorf("latest trade %s: status %d: %s", symbol, code, string(body))
	}

	price := gjson.GetBytes(body, "trade.p")
	if !price.Exists() {
		return decimal.Zero, fmt.Errorf("latest trade %s: no price in response", symbol)
	}
	return decimal.NewFromString(price.Raw)
}

// PlaceMarketOrder submits a day market order
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, side contracts.OrderSide) (contracts.Order, error) {
	req := orderRequest{
		Symbol:      symbol,
		Qty:         qty.String(),
		Side:        string(side),
		Type:        "market",
		TimeInForce: "day",
	}

	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/v2/orders", req)
	if err != nil {
		return contracts.Order{}, fmt.Errorf("submit order %s: %w", symbol, err)
	}

	var o orderResponse
	if err := decode(resp, &o); err != nil {
		return contracts.Order{}, fmt.Errorf("submit order %s: %w", symbol, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"order_id": o.ID,
		"symbol":   symbol,
		"side":     string(side),
		"qty":      qty.String(),
	}).Info("Order accepted")
	return o.toOrder(), nil
}

// ClosePosition liquidates a position at market
func (c *Client) ClosePosition(ctx context.Context, symbol string) (contracts.Order, error) {
	resp, err := c.httpClient.Delete(ctx, fmt.Sprintf("%s/v2/positions/%s", c.baseURL, url.PathEscape(symbol)))
	if err != nil {
		return contracts.Order{}, fmt.Errorf("close position %s: %w", symbol, err)
	}

	var o orderResponse
	if err := decode(resp, &o); err != nil {
		return contracts.Order{}, fmt.Errorf("close position %s: %w", symbol, err)
	}
	return o.toOrder(), nil
}

// IsMarketOpen reads the market clock
func (c *Client) IsMarketOpen(ctx context.Context) (bool, error) {
	body, code, err := c.httpClient.GetBytes(ctx, c.baseURL+"/v2/clock")
	if err != nil {
		return false, fmt.Errorf("clock: %w", err)
	}
	if code != http.StatusOK {
		return false, fmt.Errorf("clock: status %d", code)
	}
	return gjson.GetBytes(body, "is_open").Bool(), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	resp, err := c.httpClient.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	return decode(resp, v)
}

func decode(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, gjson.GetBytes(body, "message").String())
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
