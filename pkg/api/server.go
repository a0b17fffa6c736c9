// Package api serves the swap front end's read models over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stellar-swap/pkg/client"
	"stellar-swap/pkg/fee"
	"stellar-swap/pkg/metrics"
	"stellar-swap/pkg/poller"
	"stellar-swap/pkg/quote"
)

// Snapshotter is a poller as seen by the handlers
type Snapshotter[T any] interface {
	Snapshot() (T, poller.Info)
}

// PriceHistory loads chart data
type PriceHistory interface {
	History(ctx context.Context, asset, currency string, days int) ([]client.PricePoint, error)
}

// FeeEstimator computes a settled fee estimate
type FeeEstimator interface {
	Estimate(ctx context.Context, in fee.Input) fee.Estimate
}

// Config of the HTTP server
type Config struct {
	SlippageBps   int
	PriceAsset    string
	PriceCurrency string
	PriceDays     int
	Metrics       bool
}

// Deps are the components the handlers read from. Nil pollers or clients
// disable the matching routes with 503.
type Deps struct {
	Quotes    *quote.Engine
	Fees      FeeEstimator
	Orderbook Snapshotter[poller.OrderbookSnapshot]
	Reserves  Snapshotter[poller.ReserveSnapshot]
	Balances  Snapshotter[poller.BalanceSnapshot]
	Prices    PriceHistory
}

// Server holds the router dependencies
type Server struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
}

// NewServer creates a server
func NewServer(cfg Config, deps Deps, log zerolog.Logger) *Server {
	if cfg.PriceDays <= 0 {
		cfg.PriceDays = 30
	}
	return &Server{cfg: cfg, deps: deps, log: log.With().Str("component", "api").Logger()}
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), correlationID(), requestLogger(s.log))

	r.GET("/health", s.health)
	if s.cfg.Metrics {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/tokens", s.listTokens)
		v1.GET("/quote", s.getQuote)
		v1.GET("/fee", s.getFee)
		v1.GET("/orderbook", s.getOrderbook)
		v1.GET("/reserves", s.getReserves)
		v1.GET("/balances", s.getBalances)
		v1.GET("/prices", s.getPrices)
	}
	return r
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}
