package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stellar-swap/pkg/client"
	"stellar-swap/pkg/fee"
	"stellar-swap/pkg/poller"
	"stellar-swap/pkg/quote"
	"stellar-swap/pkg/tokens"
)

type MockPrices struct {
	mock.Mock
}

func (m *MockPrices) History(ctx context.Context, asset, currency string, days int) ([]client.PricePoint, error) {
	args := m.Called(ctx, asset, currency, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]client.PricePoint), args.Error(1)
}

type staticSnapshot[T any] struct {
	snap T
	info poller.Info
}

func (s staticSnapshot[T]) Snapshot() (T, poller.Info) { return s.snap, s.info }

type fixedFees struct{}

func (fixedFees) Estimate(_ context.Context, in fee.Input) fee.Estimate {
	if _, ok := quote.ParseAmount(in.Amount); !ok {
		return fee.Estimate{Status: fee.None}
	}
	return fee.Estimate{Status: fee.Settled, Stroops: 457_000, Source: fee.SourceSimulated}
}

func newTestServer(t *testing.T, deps Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if deps.Quotes == nil {
		table, err := quote.FromContractRates(6, 20000)
		require.NoError(t, err)
		deps.Quotes = quote.NewEngine(table)
	}
	cfg := Config{SlippageBps: 100, PriceAsset: "stellar", PriceCurrency: "usd", Metrics: true}
	return NewServer(cfg, deps, zerolog.Nop()).Router()
}

func get(t *testing.T, r *gin.Engine, target string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func TestHealth(t *testing.T) {
	r := newTestServer(t, Deps{})

	var body map[string]string
	w := get(t, r, "/health", &body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get(CorrelationIDHeader))
}

func TestCorrelationIDPreserved(t *testing.T) {
	r := newTestServer(t, Deps{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quote?pay=NOPE", nil)
	req.Header.Set(CorrelationIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(CorrelationIDHeader))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-123", body.CorrelationID)
}

func TestListTokens(t *testing.T) {
	r := newTestServer(t, Deps{})

	var all []tokens.Token
	get(t, r, "/api/v1/tokens", &all)
	require.Len(t, all, 10)
	assert.Equal(t, "XLM", all[0].Symbol)

	var filtered []tokens.Token
	get(t, r, "/api/v1/tokens?q=coin", &filtered)
	require.Len(t, filtered, 3)
	assert.Equal(t, "USDC", filtered[0].Symbol)

	var none []tokens.Token
	w := get(t, r, "/api/v1/tokens?q=zzz", &none)
	assert.Equal(t, "[]", w.Body.String())
}

func TestGetQuote(t *testing.T) {
	r := newTestServer(t, Deps{})

	var resp QuoteResponse
	w := get(t, r, "/api/v1/quote?pay=xlm&receive=usdc&amount=100", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", resp.PayAmount)
	assert.Equal(t, "16.666667", resp.ReceiveAmount)
	assert.Equal(t, "16.5", resp.MinReceive)
	assert.Equal(t, "1 XLM = 0.166667 USDC", resp.RateDisplay)

	var reverse QuoteResponse
	get(t, r, "/api/v1/quote?receive_amount=10", &reverse)
	assert.Equal(t, "60", reverse.PayAmount)
	assert.Equal(t, "10", reverse.ReceiveAmount)
}

func TestGetQuoteErrors(t *testing.T) {
	r := newTestServer(t, Deps{})
	tests := []struct {
		name   string
		target string
	}{
		{"unknown pay", "/api/v1/quote?pay=DOGE&amount=1"},
		{"unknown receive", "/api/v1/quote?receive=DOGE&amount=1"},
		{"same token", "/api/v1/quote?pay=USDC&receive=usdc&amount=1"},
		{"missing amount", "/api/v1/quote"},
		{"negative amount", "/api/v1/quote?amount=-3"},
		{"bad receive amount", "/api/v1/quote?receive_amount=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body ErrorResponse
			w := get(t, r, tt.target, &body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestGetQuoteUnpooledToken(t *testing.T) {
	table, err := quote.FromContractRates(6, 20000)
	require.NoError(t, err)
	engine := quote.NewEngine(quote.StaticTable())
	engine.SetPoolTable(table)
	r := newTestServer(t, Deps{Quotes: engine, Fees: fixedFees{}})

	var body ErrorResponse
	w := get(t, r, "/api/v1/quote?pay=SOL&receive=XLM&amount=1", &body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, body.Error, "SOL")

	w = get(t, r, "/api/v1/fee?pay=XLM&receive=EURC&amount=1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp QuoteResponse
	w = get(t, r, "/api/v1/quote?pay=ETH&receive=XLM&amount=0.5", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10000", resp.ReceiveAmount)
}

func TestGetBalances(t *testing.T) {
	w := get(t, newTestServer(t, Deps{}), "/api/v1/balances", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	balances := staticSnapshot[poller.BalanceSnapshot]{
		snap: poller.BalanceSnapshot{
			Account:  "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN",
			Balances: map[string]decimal.Decimal{"XLM": decimal.RequireFromString("9899.9543")},
		},
	}
	var resp SnapshotResponse[poller.BalanceSnapshot]
	w = get(t, newTestServer(t, Deps{Balances: balances}), "/api/v1/balances", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, balances.snap.Account, resp.Data.Account)
	assert.True(t, decimal.RequireFromString("9899.9543").Equal(resp.Data.Balances["XLM"]))

	// not yet fetched
	w = get(t, newTestServer(t, Deps{Balances: staticSnapshot[poller.BalanceSnapshot]{}}), "/api/v1/balances", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balances":{}`)
}

func TestGetFee(t *testing.T) {
	w := get(t, newTestServer(t, Deps{}), "/api/v1/fee?amount=1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r := newTestServer(t, Deps{Fees: fixedFees{}})
	var resp FeeResponse
	get(t, r, "/api/v1/fee?amount=100", &resp)
	assert.Equal(t, int64(457_000), resp.Stroops)
	assert.Equal(t, fee.SourceSimulated, resp.Source)
	assert.Equal(t, "~ 0.04570 XLM", resp.Display)

	get(t, r, "/api/v1/fee?amount=0", &resp)
	assert.Equal(t, "--", resp.Display)
}

func TestSnapshots(t *testing.T) {
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	book := staticSnapshot[poller.OrderbookSnapshot]{
		snap: poller.OrderbookSnapshot{
			Bids: []client.Level{{Price: "0.1250", Amount: "1000.00"}},
			Asks: []client.Level{{Price: "0.1252", Amount: "2000.00"}},
		},
		info: poller.Info{Placeholder: true},
	}
	reserves := staticSnapshot[poller.ReserveSnapshot]{
		snap: poller.ReserveSnapshot{Reserves: client.Reserves{XLM: 10000, USDC: 500, ETH: 0.5}, TVL: 2500},
		info: poller.Info{UpdatedAt: updated},
	}
	r := newTestServer(t, Deps{Orderbook: book, Reserves: reserves})

	var ob SnapshotResponse[poller.OrderbookSnapshot]
	get(t, r, "/api/v1/orderbook", &ob)
	assert.True(t, ob.Placeholder)
	require.Len(t, ob.Data.Bids, 1)
	assert.Equal(t, "0.1252", ob.Data.Asks[0].Price)

	var rs SnapshotResponse[poller.ReserveSnapshot]
	get(t, r, "/api/v1/reserves", &rs)
	assert.False(t, rs.Placeholder)
	assert.Equal(t, 2500.0, rs.Data.TVL)
	assert.Equal(t, 500.0, rs.Data.USDC)
	assert.True(t, updated.Equal(rs.UpdatedAt))
}

func TestGetPrices(t *testing.T) {
	prices := new(MockPrices)
	points := []client.PricePoint{
		{Time: time.UnixMilli(0).UTC(), Price: 0.1},
		{Time: time.UnixMilli(86_400_000).UTC(), Price: 0.12},
	}
	prices.On("History", mock.Anything, "stellar", "usd", 30).Return(points, nil).Once()
	prices.On("History", mock.Anything, "stellar", "usd", 7).Return(nil, errors.New("upstream down")).Once()
	r := newTestServer(t, Deps{Prices: prices})

	var resp PricesResponse
	w := get(t, r, "/api/v1/prices", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Points, 2)
	assert.InDelta(t, 20.0, resp.ChangePercent, 1e-9)

	w = get(t, r, "/api/v1/prices?days=7", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = get(t, r, "/api/v1/prices?days=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	prices.AssertExpectations(t)
}

func TestMetricsRoute(t *testing.T) {
	w := get(t, newTestServer(t, Deps{}), "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stellar_swap_confirmation_polls")
}
