// Package fee produces the network-fee estimate shown next to a swap quote.
package fee

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stellar-swap/pkg/metrics"
	"stellar-swap/pkg/quote"
	"stellar-swap/pkg/task"
	"stellar-swap/pkg/tokens"
	"stellar-swap/pkg/txn"
)

// Status of an estimate
type Status int

const (
	// None means there is no amount to estimate for
	None Status = iota
	// Pending means an estimate is being computed
	Pending
	// Settled carries a value
	Settled
)

// Source tells where a settled value came from
type Source string

const (
	SourceFallback    Source = "fallback"
	SourceSimulated   Source = "simulated"
	SourcePlaceholder Source = "placeholder"
)

// Estimate is the fee shown to the user
type Estimate struct {
	Status  Status `json:"-"`
	Stroops int64  `json:"stroops"`
	Source  Source `json:"source,omitempty"`
}

// XLM formats a settled estimate as "~ 0.04570 XLM"
func (e Estimate) XLM() string {
	switch e.Status {
	case Pending:
		return "estimating..."
	case Settled:
		return fmt.Sprintf("~ %s XLM", decimal.New(e.Stroops, -7).StringFixed(5))
	default:
		return "--"
	}
}

// Input is what the estimate depends on
type Input struct {
	Amount  string
	Pay     tokens.Token
	Receive tokens.Token
}

// Identity is the wallet session as seen by the estimator
type Identity interface {
	Address() (string, bool)
}

// Simulator dry-runs a swap and returns its fee in stroops
type Simulator interface {
	SimulateSwapFee(ctx context.Context, p txn.SwapParams) (int64, error)
}

// Config of an Estimator
type Config struct {
	Debounce           time.Duration
	FallbackStroops    int64
	PlaceholderStroops int64
}

// DefaultConfig matches the settings shipped in the example config
func DefaultConfig() Config {
	return Config{
		Debounce:           500 * time.Millisecond,
		FallbackStroops:    100_000,
		PlaceholderStroops: 457_000,
	}
}

// Estimator debounces input changes and publishes one settled estimate per stable input
type Estimator struct {
	cfg      Config
	identity Identity
	sim      Simulator
	log      zerolog.Logger

	runner  *task.Latest[settled]
	mu      sync.RWMutex
	gen     uint64
	current Estimate
	updates chan Estimate
}

type settled struct {
	gen uint64
	est Estimate
}

// NewEstimator creates an estimator. sim may be nil, in which case connected
// wallets get the placeholder value.
func NewEstimator(cfg Config, identity Identity, sim Simulator, log zerolog.Logger) *Estimator {
	e := &Estimator{
		cfg:      cfg,
		identity: identity,
		sim:      sim,
		log:      log.With().Str("component", "fee").Logger(),
		updates:  make(chan Estimate, 1),
	}
	e.runner = &task.Latest[settled]{Delay: cfg.Debounce, OnResult: e.deliver}
	return e
}

// Updates delivers every published estimate. Slow readers only see the latest.
func (e *Estimator) Updates() <-chan Estimate {
	return e.updates
}

// Current returns the last published estimate
func (e *Estimator) Current() Estimate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Update publishes Pending at once and schedules a settled estimate after the
// debounce window, superseding any estimate still in flight
func (e *Estimator) Update(ctx context.Context, in Input) {
	_, ok := quote.ParseAmount(in.Amount)

	e.mu.Lock()
	e.gen++
	gen := e.gen
	if ok {
		e.publishLocked(Estimate{Status: Pending})
	} else {
		e.publishLocked(Estimate{Status: None})
	}
	e.mu.Unlock()

	if !ok {
		e.runner.Cancel()
		return
	}
	e.runner.Go(ctx, func(ctx context.Context) settled {
		return settled{gen: gen, est: e.Estimate(ctx, in)}
	})
}

// Estimate computes a settled estimate right away
func (e *Estimator) Estimate(ctx context.Context, in Input) Estimate {
	amount, ok := quote.ParseAmount(in.Amount)
	if !ok {
		return Estimate{Status: None}
	}

	address, connected := e.identity.Address()
	if !connected {
		return e.settle(e.cfg.FallbackStroops, SourceFallback)
	}
	if e.sim == nil {
		return e.settle(e.cfg.PlaceholderStroops, SourcePlaceholder)
	}

	stroops, err := e.sim.SimulateSwapFee(ctx, txn.SwapParams{
		Source:   address,
		Pay:      in.Pay,
		Receive:  in.Receive,
		AmountIn: in.Pay.ToUnits(amount),
		MinOut:   1,
	})
	if err != nil {
		if ctx.Err() == nil {
			e.log.Warn().Err(err).Str("pair", in.Pay.Symbol+"/"+in.Receive.Symbol).Msg("fee simulation failed, using placeholder")
		}
		return e.settle(e.cfg.PlaceholderStroops, SourcePlaceholder)
	}
	return e.settle(stroops, SourceSimulated)
}

func (e *Estimator) settle(stroops int64, source Source) Estimate {
	metrics.FeeEstimates.WithLabelValues(string(source)).Inc()
	return Estimate{Status: Settled, Stroops: stroops, Source: source}
}

// Stop cancels any in-flight estimate
func (e *Estimator) Stop() {
	e.runner.Stop()
	e.runner.Wait()
}

func (e *Estimator) deliver(s settled) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.gen != e.gen {
		return
	}
	e.publishLocked(s.est)
}

func (e *Estimator) publishLocked(est Estimate) {
	e.current = est
	select {
	case <-e.updates:
	default:
	}
	select {
	case e.updates <- est:
	default:
	}
}
