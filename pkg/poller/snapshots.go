package poller

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stellar-swap/pkg/client"
	"stellar-swap/pkg/quote"
	"stellar-swap/pkg/tokens"
)

// Identity is the wallet session as seen by pollers
type Identity interface {
	Address() (string, bool)
}

// AccountSource loads account balances
type AccountSource interface {
	Account(ctx context.Context, address string) (*client.Account, error)
}

// OrderBookSource loads order book levels
type OrderBookSource interface {
	OrderBook(ctx context.Context, selling, buying client.Asset, limit int) (*client.OrderBook, error)
}

// ContractReader reads the DEX contract state
type ContractReader interface {
	Rates(ctx context.Context) (float64, float64, error)
	Reserves(ctx context.Context) (client.Reserves, error)
}

// PlaceholderBalance is the demo balance shown when balances are unavailable
var PlaceholderBalance = decimal.NewFromInt(10000)

// BalanceSnapshot maps token symbols to balances of one account
type BalanceSnapshot struct {
	Account  string                     `json:"account"`
	Balances map[string]decimal.Decimal `json:"balances"`
}

// Balances polls the connected account's balances
type Balances struct {
	*Poller[BalanceSnapshot]
}

// NewBalances creates a balances poller. It refreshes on Trigger, typically
// wired to session changes, and additionally every interval when > 0.
func NewBalances(identity Identity, accounts AccountSource, interval time.Duration, log zerolog.Logger) *Balances {
	return &Balances{Poller: &Poller[BalanceSnapshot]{
		Name:     "balances",
		Interval: interval,
		Log:      log,
		Fetch: func(ctx context.Context) (BalanceSnapshot, error) {
			address, ok := identity.Address()
			if !ok {
				return BalanceSnapshot{}, nil
			}
			acc, err := accounts.Account(ctx, address)
			if err != nil {
				return BalanceSnapshot{}, err
			}
			snap := BalanceSnapshot{Account: address, Balances: make(map[string]decimal.Decimal, len(acc.Balances))}
			for _, b := range acc.Balances {
				amount, err := decimal.NewFromString(b.Balance)
				if err != nil {
					return BalanceSnapshot{}, fmt.Errorf("invalid %s balance %q: %w", b.Symbol(), b.Balance, err)
				}
				snap.Balances[strings.ToUpper(b.Symbol())] = amount
			}
			return snap, nil
		},
		Empty: func(s BalanceSnapshot) bool { return len(s.Balances) == 0 },
		Placeholder: func() BalanceSnapshot {
			snap := BalanceSnapshot{Balances: map[string]decimal.Decimal{}}
			for _, t := range tokens.List() {
				snap.Balances[t.Symbol] = PlaceholderBalance
			}
			return snap
		},
	}}
}

// Balance returns the last known balance of symbol. A token missing from a
// fetched account is a known zero balance; known is false only while the
// snapshot is a placeholder without the token.
func (b *Balances) Balance(symbol string) (decimal.Decimal, bool) {
	snap, info := b.Snapshot()
	v, ok := snap.Balances[strings.ToUpper(symbol)]
	if !ok && !info.Placeholder && snap.Account != "" {
		return decimal.Zero, true
	}
	return v, ok
}

// ReserveSnapshot is the DEX pool state
type ReserveSnapshot struct {
	client.Reserves
	TVL float64 `json:"tvl_usd"`
}

// TVL estimates the pool value in USD with fixed reference prices
func TVL(r client.Reserves) float64 {
	return r.XLM*0.1 + r.USDC + r.ETH*2000
}

// NewReserves polls the pool reserves
func NewReserves(contract ContractReader, interval time.Duration, log zerolog.Logger) *Poller[ReserveSnapshot] {
	return &Poller[ReserveSnapshot]{
		Name:     "reserves",
		Interval: interval,
		Log:      log,
		Fetch: func(ctx context.Context) (ReserveSnapshot, error) {
			r, err := contract.Reserves(ctx)
			if err != nil {
				return ReserveSnapshot{}, err
			}
			return ReserveSnapshot{Reserves: r, TVL: TVL(r)}, nil
		},
		Placeholder: func() ReserveSnapshot { return ReserveSnapshot{} },
	}
}

// OrderbookDepth is the number of levels shown per side
const OrderbookDepth = 8

// OrderbookSnapshot holds the top levels of each side
type OrderbookSnapshot struct {
	Bids []client.Level `json:"bids"`
	Asks []client.Level `json:"asks"`
}

// NewOrderbook polls the XLM/counter order book
func NewOrderbook(source OrderBookSource, counter client.Asset, interval time.Duration, log zerolog.Logger) *Poller[OrderbookSnapshot] {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Poller[OrderbookSnapshot]{
		Name:     "orderbook",
		Interval: interval,
		Log:      log,
		Fetch: func(ctx context.Context) (OrderbookSnapshot, error) {
			book, err := source.OrderBook(ctx, client.Native, counter, OrderbookDepth)
			if err != nil {
				return OrderbookSnapshot{}, err
			}
			return OrderbookSnapshot{Bids: top(book.Bids), Asks: top(book.Asks)}, nil
		},
		Empty: func(s OrderbookSnapshot) bool { return len(s.Bids) == 0 || len(s.Asks) == 0 },
		Placeholder: func() OrderbookSnapshot {
			mu.Lock()
			defer mu.Unlock()
			return SyntheticOrderbook(rng)
		},
	}
}

func top(levels []client.Level) []client.Level {
	if len(levels) > OrderbookDepth {
		levels = levels[:OrderbookDepth]
	}
	out := make([]client.Level, len(levels))
	copy(out, levels)
	return out
}

// SyntheticOrderbook builds 8 bids stepping down from 0.1250 and 8 asks
// stepping up from 0.1252, asks listed highest first
func SyntheticOrderbook(rng *rand.Rand) OrderbookSnapshot {
	var (
		base   = decimal.RequireFromString("0.1250")
		step   = decimal.RequireFromString("0.0005")
		spread = decimal.RequireFromString("0.0002")
	)
	amount := func() string {
		return decimal.NewFromFloat(1000 + rng.Float64()*5000).Truncate(2).StringFixed(2)
	}

	snap := OrderbookSnapshot{
		Bids: make([]client.Level, OrderbookDepth),
		Asks: make([]client.Level, OrderbookDepth),
	}
	for i := 0; i < OrderbookDepth; i++ {
		offset := step.Mul(decimal.NewFromInt(int64(i)))
		snap.Bids[i] = client.Level{Price: base.Sub(offset).StringFixed(4), Amount: amount()}
		snap.Asks[OrderbookDepth-1-i] = client.Level{Price: base.Add(offset).Add(spread).StringFixed(4), Amount: amount()}
	}
	return snap
}

// NewRates refreshes the quote engine's table from the contract. On failure
// the engine keeps its current table.
func NewRates(contract ContractReader, engine *quote.Engine, interval time.Duration, log zerolog.Logger) *Poller[quote.RateTable] {
	return &Poller[quote.RateTable]{
		Name:     "rates",
		Interval: interval,
		Log:      log,
		Fetch: func(ctx context.Context) (quote.RateTable, error) {
			usdc, eth, err := contract.Rates(ctx)
			if err != nil {
				return nil, err
			}
			return quote.FromContractRates(usdc, eth)
		},
		Placeholder: quote.StaticTable,
		OnUpdate: func(table quote.RateTable, placeholder bool) {
			if !placeholder {
				engine.SetPoolTable(table)
			}
		},
	}
}
