package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stellar-swap/pkg/client"
	"stellar-swap/pkg/fee"
	"stellar-swap/pkg/poller"
	"stellar-swap/pkg/quote"
	"stellar-swap/pkg/tokens"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// QuoteResponse is a quote plus display helpers
type QuoteResponse struct {
	quote.Quote
	RateDisplay string `json:"rate_display"`
	MinReceive  string `json:"min_receive,omitempty"`
}

// FeeResponse is a settled fee estimate
type FeeResponse struct {
	fee.Estimate
	Display string `json:"display"`
}

// SnapshotResponse wraps a poller snapshot with its metadata
type SnapshotResponse[T any] struct {
	Data T `json:"data"`
	poller.Info
}

// PricesResponse is the chart data
type PricesResponse struct {
	Asset         string              `json:"asset"`
	Currency      string              `json:"currency"`
	Points        []client.PricePoint `json:"points"`
	ChangePercent float64             `json:"change_percent"`
}

func (s *Server) sendError(c *gin.Context, status int, message string, err error) {
	ev := s.log.Debug()
	if status >= http.StatusInternalServerError {
		ev = s.log.Warn()
	}
	ev.Err(err).Str("path", c.Request.URL.Path).Str("correlation_id", getCorrelationID(c)).Msg(message)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, CorrelationID: getCorrelationID(c)})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listTokens(c *gin.Context) {
	list := tokens.Filter(c.Query("q"))
	if list == nil {
		list = []tokens.Token{}
	}
	c.JSON(http.StatusOK, list)
}

// pair reads the pay and receive query parameters, defaulting to XLM/USDC
func (s *Server) pair(c *gin.Context) (tokens.Token, tokens.Token, bool) {
	defPay, defReceive := tokens.DefaultPair()
	pay, receive := defPay, defReceive
	if sym := c.Query("pay"); sym != "" {
		t, ok := tokens.Find(sym)
		if !ok {
			s.sendError(c, http.StatusBadRequest, "unknown token "+sym, nil)
			return pay, receive, false
		}
		pay = t
	}
	if sym := c.Query("receive"); sym != "" {
		t, ok := tokens.Find(sym)
		if !ok {
			s.sendError(c, http.StatusBadRequest, "unknown token "+sym, nil)
			return pay, receive, false
		}
		receive = t
	}
	if pay.Symbol == receive.Symbol {
		s.sendError(c, http.StatusBadRequest, "pay and receive tokens must differ", nil)
		return pay, receive, false
	}
	for _, t := range []tokens.Token{pay, receive} {
		if !s.deps.Quotes.Supports(t.Symbol) {
			s.sendError(c, http.StatusUnprocessableEntity, t.Symbol+" is not traded by the pool", nil)
			return pay, receive, false
		}
	}
	return pay, receive, true
}

// getQuote quotes ?amount= of pay, or the pay amount needed for ?receive_amount=
func (s *Server) getQuote(c *gin.Context) {
	pay, receive, ok := s.pair(c)
	if !ok {
		return
	}

	var q quote.Quote
	if ra := c.Query("receive_amount"); ra != "" {
		if _, ok := quote.ParseAmount(ra); !ok {
			s.sendError(c, http.StatusBadRequest, "receive_amount must be a positive number", nil)
			return
		}
		q = s.deps.Quotes.Quote(pay, receive, s.deps.Quotes.ComputePayAmount(ra, pay, receive))
	} else {
		if _, ok := quote.ParseAmount(c.Query("amount")); !ok {
			s.sendError(c, http.StatusBadRequest, "amount must be a positive number", nil)
			return
		}
		q = s.deps.Quotes.Quote(pay, receive, c.Query("amount"))
	}

	resp := QuoteResponse{Quote: q, RateDisplay: s.deps.Quotes.RateString(pay, receive)}
	if d, ok := quote.ParseAmount(q.ReceiveAmount); ok {
		floor := quote.MinimumOutput(receive.ToUnits(d), s.cfg.SlippageBps)
		resp.MinReceive = quote.Display(receive.FromUnits(floor), receive)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getFee(c *gin.Context) {
	if s.deps.Fees == nil {
		s.sendError(c, http.StatusServiceUnavailable, "fee estimates are not available", nil)
		return
	}
	pay, receive, ok := s.pair(c)
	if !ok {
		return
	}
	est := s.deps.Fees.Estimate(c.Request.Context(), fee.Input{Amount: c.Query("amount"), Pay: pay, Receive: receive})
	c.JSON(http.StatusOK, FeeResponse{Estimate: est, Display: est.XLM()})
}

func (s *Server) getOrderbook(c *gin.Context) {
	if s.deps.Orderbook == nil {
		s.sendError(c, http.StatusServiceUnavailable, "order book is not available", nil)
		return
	}
	snap, info := s.deps.Orderbook.Snapshot()
	c.JSON(http.StatusOK, SnapshotResponse[poller.OrderbookSnapshot]{Data: snap, Info: info})
}

func (s *Server) getReserves(c *gin.Context) {
	if s.deps.Reserves == nil {
		s.sendError(c, http.StatusServiceUnavailable, "pool reserves are not available", nil)
		return
	}
	snap, info := s.deps.Reserves.Snapshot()
	c.JSON(http.StatusOK, SnapshotResponse[poller.ReserveSnapshot]{Data: snap, Info: info})
}

func (s *Server) getBalances(c *gin.Context) {
	if s.deps.Balances == nil {
		s.sendError(c, http.StatusServiceUnavailable, "no wallet is connected", nil)
		return
	}
	snap, info := s.deps.Balances.Snapshot()
	if snap.Balances == nil {
		snap.Balances = map[string]decimal.Decimal{}
	}
	c.JSON(http.StatusOK, SnapshotResponse[poller.BalanceSnapshot]{Data: snap, Info: info})
}

func (s *Server) getPrices(c *gin.Context) {
	if s.deps.Prices == nil {
		s.sendError(c, http.StatusServiceUnavailable, "price history is not available", nil)
		return
	}
	days := s.cfg.PriceDays
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			s.sendError(c, http.StatusBadRequest, "days must be between 1 and 365", err)
			return
		}
		days = n
	}

	points, err := s.deps.Prices.History(c.Request.Context(), s.cfg.PriceAsset, s.cfg.PriceCurrency, days)
	if err != nil {
		s.sendError(c, http.StatusBadGateway, "failed to load price history", err)
		return
	}
	c.JSON(http.StatusOK, PricesResponse{
		Asset:         s.cfg.PriceAsset,
		Currency:      s.cfg.PriceCurrency,
		Points:        points,
		ChangePercent: client.ChangePercent(points),
	})
}
