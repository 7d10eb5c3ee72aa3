package contracts

import "time"

// ListingStatus is the listing state of a symbol in the registry
type ListingStatus string

const (
	ListingActive   ListingStatus = "Active"
	ListingDelisted ListingStatus = "Delisted"
)

// Entity is a tradable symbol from the registry. SymbolID never changes and
// rows are never deleted, so history stays joinable after delisting.
type Entity struct {
	SymbolID      int64         `json:"symbol_id"`
	Symbol        string        `json:"symbol"`
	Name          string        `json:"name"`
	Exchange      string        `json:"exchange"`
	AssetType     string        `json:"asset_type"`
	Status        ListingStatus `json:"status"`
	IPODate       *time.Time    `json:"ipo_date,omitempty"`
	DelistingDate *time.Time    `json:"delisting_date,omitempty"`
}

// IsActive reports whether the symbol is currently listed
func (e Entity) IsActive() bool {
	return e.Status == ListingActive
}

// Listing is one row of the provider's listing-status report
type Listing struct {
	Symbol        string
	Name          string
	Exchange      string
	AssetType     string
	IPODate       *time.Time
	DelistingDate *time.Time
	Status        ListingStatus
}
