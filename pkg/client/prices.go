package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// PricePoint is one sample of a price history
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Prices is a client for the price-history API
type Prices struct {
	http *HTTPClient
}

// NewPrices creates a price-history client
func NewPrices(baseURL string, opts ...Option) *Prices {
	return &Prices{http: NewHTTPClient(baseURL, opts...)}
}

// History returns daily prices of asset in currency for the last days, oldest first
func (p *Prices) History(ctx context.Context, asset, currency string, days int) ([]PricePoint, error) {
	q := url.Values{}
	q.Set("vs_currency", currency)
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")

	var resp struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := p.http.GetJSON(ctx, "coins/"+url.PathEscape(asset)+"/market_chart", q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s price history: %w", asset, err)
	}

	points := make([]PricePoint, 0, len(resp.Prices))
	for _, p := range resp.Prices {
		points = append(points, PricePoint{Time: time.UnixMilli(int64(p[0])).UTC(), Price: p[1]})
	}
	return points, nil
}

// ChangePercent is the change from the first to the last point, in percent
func ChangePercent(points []PricePoint) float64 {
	if len(points) < 2 || points[0].Price == 0 {
		return 0
	}
	first, last := points[0].Price, points[len(points)-1].Price
	return (last - first) / first * 100
}
