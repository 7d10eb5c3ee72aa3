package alphavantage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/httputil"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// DefaultBaseURL is the provider's query endpoint
const DefaultBaseURL = "https://www.alphavantage.co"

// Client handles communication with the market-data provider.
// The underlying httputil client must have retry disabled: a failed call is
// counted against the watermark and retried on a later sweep.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
}

// NewClient creates a new market-data client
func NewClient(httpClient *httputil.Client, baseURL, apiKey string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "alphavantage"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// queryURL carries the API key. Transport errors mention the URL, so
// pkg/httputil masks the key before they are logged or returned.
func (c *Client) queryURL(params url.Values) string {
	params.Set("apikey", c.apiKey)
	return fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())
}

// Fetch calls one provider function for one symbol and classifies the
// response. The payload is returned verbatim even when the status is not
// success, so it can be landed for audit.
func (c *Client) Fetch(ctx context.Context, symbol, function string) ([]byte, contracts.ResponseStatus, error) {
	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", symbol)
	if function == FunctionDailyAdjusted {
		params.Set("outputsize", "full")
	}

	body, code, err := c.httpClient.GetBytes(ctx, c.queryURL(params))
	if err != nil {
		return body, contracts.StatusError, fmt.Errorf("fetch %s %s: %w", function, symbol, err)
	}

	switch {
	case code == http.StatusTooManyRequests:
		return body, contracts.StatusRateLimited, nil
	case code != http.StatusOK:
		return body, contracts.StatusError, nil
	}

	status := Classify(function, body)
	if status != contracts.StatusSuccess {
		c.logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"function": function,
			"status":   string(status),
		}).Debug("Non-success provider response")
	}
	return body, status, nil
}
