package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Asset identifies a classic asset in Horizon queries
type Asset struct {
	Code   string
	Issuer string
}

// Native is XLM
var Native = Asset{Code: "XLM"}

// IsNative reports whether a is the native asset
func (a Asset) IsNative() bool {
	return a.Issuer == ""
}

func (a Asset) query(prefix string, q url.Values) {
	if a.IsNative() {
		q.Set(prefix+"_asset_type", "native")
		return
	}
	assetType := "credit_alphanum4"
	if len(a.Code) > 4 {
		assetType = "credit_alphanum12"
	}
	q.Set(prefix+"_asset_type", assetType)
	q.Set(prefix+"_asset_code", a.Code)
	q.Set(prefix+"_asset_issuer", a.Issuer)
}

// Balance is one trustline or the native balance of an account
type Balance struct {
	Balance     string `json:"balance"`
	AssetType   string `json:"asset_type"`
	AssetCode   string `json:"asset_code,omitempty"`
	AssetIssuer string `json:"asset_issuer,omitempty"`
}

// Symbol returns XLM for the native balance and the asset code otherwise
func (b Balance) Symbol() string {
	if b.AssetType == "native" {
		return "XLM"
	}
	return b.AssetCode
}

// Account is the subset of the Horizon account resource used here
type Account struct {
	ID       string    `json:"id"`
	Sequence string    `json:"sequence"`
	Balances []Balance `json:"balances"`
}

// SequenceNumber parses the account sequence
func (a *Account) SequenceNumber() (int64, error) {
	n, err := strconv.ParseInt(a.Sequence, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sequence %q: %w", a.Sequence, err)
	}
	return n, nil
}

// Level is one price level of an order book
type Level struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// OrderBook is a Horizon order book summary
type OrderBook struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// Horizon is a client for the ledger query API
type Horizon struct {
	http *HTTPClient
}

// NewHorizon creates a Horizon client
func NewHorizon(baseURL string, opts ...Option) *Horizon {
	return &Horizon{http: NewHTTPClient(baseURL, opts...)}
}

// Account loads an account by address
func (h *Horizon) Account(ctx context.Context, address string) (*Account, error) {
	var acc Account
	if err := h.http.GetJSON(ctx, "accounts/"+url.PathEscape(address), nil, &acc); err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", address, err)
	}
	return &acc, nil
}

// OrderBook fetches the bid/ask levels for selling against buying
func (h *Horizon) OrderBook(ctx context.Context, selling, buying Asset, limit int) (*OrderBook, error) {
	q := url.Values{}
	selling.query("selling", q)
	buying.query("buying", q)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var book OrderBook
	if err := h.http.GetJSON(ctx, "order_book", q, &book); err != nil {
		return nil, fmt.Errorf("failed to load order book: %w", err)
	}
	return &book, nil
}
