// Package simnet is an in-process stand-in for Horizon and the Soroban RPC
// endpoint with the DEX contract deployed. The demo mode runs against it.
package simnet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"stellar-swap/pkg/client"
	"stellar-swap/pkg/tokens"
	"stellar-swap/pkg/txn"
)

const (
	scale = client.ContractScale

	// SimulatedResourceFee is the resource fee every swap simulation reports
	SimulatedResourceFee = 456_900

	simulatedInstructions = 4_000_000
)

// ContractError mirrors the DEX contract error codes
type ContractError int

const (
	ErrZeroAmount        ContractError = 2
	ErrInsufficientFunds ContractError = 3
	ErrSlippageExceeded  ContractError = 4
	ErrBadToken          ContractError = 7
)

func (e ContractError) Error() string {
	names := map[ContractError]string{
		ErrZeroAmount:        "ZeroAmount",
		ErrInsufficientFunds: "InsufficientFunds",
		ErrSlippageExceeded:  "SlippageExceeded",
		ErrBadToken:          "BadToken",
	}
	return fmt.Sprintf("HostError: Error(Contract, #%d) %s", int(e), names[e])
}

var errInsufficientBalance = errors.New("HostError: Error(Contract, #10) balance is not sufficient to spend")

// Options configure a Ledger
type Options struct {
	Passphrase string
	ContractID string
	// XLMPerUSDC and XLMPerETH are contract rates scaled by 1e7
	XLMPerUSDC int64
	XLMPerETH  int64
	// Reserves in smallest units keyed by symbol
	Reserves map[string]int64
	// Starting XLM balance of accounts seen for the first time, in smallest units
	StartingXLM int64
	// ConfirmAfter is the number of status polls a transaction stays pending
	ConfirmAfter int
}

// DefaultOptions is a funded pool at 6 XLM per USDC and 20000 XLM per ETH
func DefaultOptions(passphrase, contractID string) Options {
	return Options{
		Passphrase: passphrase,
		ContractID: contractID,
		XLMPerUSDC: 6 * scale,
		XLMPerETH:  20_000 * scale,
		Reserves: map[string]int64{
			"XLM":  1_000_000 * scale,
			"USDC": 100_000 * scale,
			"ETH":  50 * scale,
		},
		StartingXLM:  10_000 * scale,
		ConfirmAfter: 2,
	}
}

type account struct {
	sequence int64
	balances map[string]int64
}

type pendingTx struct {
	env       *txn.Envelope
	pollsLeft int
	status    string
	ledger    int64
}

// Ledger is the simulated network
type Ledger struct {
	opts Options

	mu       sync.Mutex
	accounts map[string]*account
	reserves map[string]int64
	txs      map[string]*pendingTx
	ledger   int64
}

// New creates a ledger
func New(opts Options) *Ledger {
	reserves := make(map[string]int64, len(opts.Reserves))
	for k, v := range opts.Reserves {
		reserves[strings.ToUpper(k)] = v
	}
	return &Ledger{
		opts:     opts,
		accounts: make(map[string]*account),
		reserves: reserves,
		txs:      make(map[string]*pendingTx),
		ledger:   1000,
	}
}

// accountLocked returns the account, funding it on first sight
func (l *Ledger) accountLocked(address string) *account {
	acc, ok := l.accounts[address]
	if !ok {
		acc = &account{sequence: l.ledger << 32, balances: map[string]int64{"XLM": l.opts.StartingXLM}}
		l.accounts[address] = acc
	}
	return acc
}

// Fund credits units of symbol to address
func (l *Ledger) Fund(address, symbol string, units int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accountLocked(address).balances[strings.ToUpper(symbol)] += units
}

// Account implements the ledger query API
func (l *Ledger) Account(_ context.Context, address string) (*client.Account, error) {
	if address == "" {
		return nil, &client.HTTPError{StatusCode: 404, Method: "GET", URL: "simnet://accounts/", Body: "account not found"}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accountLocked(address)

	out := &client.Account{ID: address, Sequence: fmt.Sprintf("%d", acc.sequence)}
	for _, t := range tokens.List() {
		units, ok := acc.balances[t.Symbol]
		if !ok {
			continue
		}
		b := client.Balance{Balance: decimal.New(units, -int32(t.Decimals)).StringFixed(int32(t.Decimals))}
		if t.Symbol == "XLM" {
			b.AssetType = "native"
		} else {
			b.AssetType = "credit_alphanum4"
			if len(t.Symbol) > 4 {
				b.AssetType = "credit_alphanum12"
			}
			b.AssetCode = t.Symbol
			b.AssetIssuer = t.ContractID
		}
		out.Balances = append(out.Balances, b)
	}
	return out, nil
}

// OrderBook returns levels around the contract's XLM/USDC price
func (l *Ledger) OrderBook(_ context.Context, selling, buying client.Asset, limit int) (*client.OrderBook, error) {
	if !selling.IsNative() || !strings.EqualFold(buying.Code, "USDC") {
		return &client.OrderBook{}, nil
	}
	if limit <= 0 || limit > 20 {
		limit = 20
	}
	l.mu.Lock()
	mid := decimal.NewFromInt(scale).Div(decimal.NewFromInt(l.opts.XLMPerUSDC))
	l.mu.Unlock()

	step := decimal.RequireFromString("0.0005")
	book := &client.OrderBook{}
	for i := 0; i < limit; i++ {
		offset := step.Mul(decimal.NewFromInt(int64(i + 1)))
		amount := decimal.NewFromInt(int64(1500 + 250*i)).StringFixed(7)
		book.Bids = append(book.Bids, client.Level{Price: mid.Sub(offset).StringFixed(7), Amount: amount})
		book.Asks = append(book.Asks, client.Level{Price: mid.Add(offset).StringFixed(7), Amount: amount})
	}
	return book, nil
}
