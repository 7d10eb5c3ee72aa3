package alphavantage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

// ListingState selects which side of the listing report to download
type ListingState string

const (
	ListingStateActive   ListingState = "active"
	ListingStateDelisted ListingState = "delisted"
)

// ListingStatus downloads the provider's listing report for one state
func (c *Client) ListingStatus(ctx context.Context, state ListingState) ([]contracts.Listing, error) {
	params := url.Values{}
	params.Set("function", FunctionListingStatus)
	params.Set("state", string(state))

	body, code, err := c.httpClient.GetBytes(ctx, c.queryURL(params))
	if err != nil {
		return nil, fmt.Errorf("fetch listing status (%s): %w", state, err)
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("fetch listing status (%s): unexpected status code %d", state, code)
	}

	listings, err := ParseListingCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing status (%s): %w", state, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"state": string(state),
		"count": len(listings),
	}).Info("Fetched listing status")

	return listings, nil
}

var listingColumns = []string{"symbol", "name", "exchange", "assetType", "ipoDate", "delistingDate", "status"}

// ParseListingCSV reads the listing report. Rows without a symbol are
// dropped and the literal "null" is treated as a missing date.
func ParseListingCSV(r io.Reader) ([]contracts.Listing, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty listing report")
		}
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range listingColumns {
		if _, ok := idx[col]; !ok {
			// JSON error bodies land here when the key is invalid
			return nil, fmt.Errorf("listing report missing column %q", col)
		}
	}

	field := func(rec []string, col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	out := make([]contracts.Listing, 0, 1024)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		symbol := field(rec, "symbol")
		if symbol == "" {
			continue
		}

		status := contracts.ListingActive
		if strings.EqualFold(field(rec, "status"), string(contracts.ListingDelisted)) {
			status = contracts.ListingDelisted
		}

		out = append(out, contracts.Listing{
			Symbol:        symbol,
			Name:          field(rec, "name"),
			Exchange:      field(rec, "exchange"),
			AssetType:     field(rec, "assetType"),
			IPODate:       parseDate(field(rec, "ipoDate")),
			DelistingDate: parseDate(field(rec, "delistingDate")),
			Status:        status,
		})
	}
	return out, nil
}

func parseDate(s string) *time.Time {
	if s == "" || strings.EqualFold(s, "null") || s == "None" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
