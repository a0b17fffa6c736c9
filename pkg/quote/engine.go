package quote

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"stellar-swap/pkg/tokens"
)

const (
	// MaxDisplayDecimals is the number of fractional digits shown for amounts
	// of 0.001 and above
	MaxDisplayDecimals = 6
	// SignificantDigits is the minimum precision kept for smaller amounts
	SignificantDigits = 4
)

// Quote is a derived pay/receive pair. Empty amounts mean "nothing to show".
type Quote struct {
	Pay           tokens.Token `json:"pay"`
	Receive       tokens.Token `json:"receive"`
	PayAmount     string       `json:"pay_amount"`
	ReceiveAmount string       `json:"receive_amount"`
	Rate          float64      `json:"rate"`

	version uint64
}

// Empty reports whether there is no receive amount to display
func (q Quote) Empty() bool {
	return q.ReceiveAmount == ""
}

// Engine computes quotes against the current rate table
type Engine struct {
	mu      sync.RWMutex
	table   RateTable
	version uint64
	// pooled restricts quoting to the symbols in table
	pooled bool
}

// NewEngine creates an engine over an initial table
func NewEngine(table RateTable) *Engine {
	return &Engine{table: table.Clone(), version: 1}
}

// SetTable replaces the rate table wholesale. Tokens missing from the table
// are quoted at a weight of 1.
func (e *Engine) SetTable(table RateTable) {
	e.set(table, false)
}

// SetPoolTable replaces the table with on-chain pool rates. Only the symbols
// in table can be quoted until the next SetTable.
func (e *Engine) SetPoolTable(table RateTable) {
	e.set(table, true)
}

func (e *Engine) set(table RateTable, pooled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table = table.Clone()
	e.pooled = pooled
	e.version++
}

// Supports reports whether symbol can be quoted against the current table
func (e *Engine) Supports(symbol string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.supportsLocked(symbol)
}

func (e *Engine) supportsLocked(symbol string) bool {
	return !e.pooled || e.table.Has(symbol)
}

func (e *Engine) pairLocked(pay, receive tokens.Token) bool {
	return e.supportsLocked(pay.Symbol) && e.supportsLocked(receive.Symbol)
}

// Table returns a copy of the current table
func (e *Engine) Table() RateTable {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.table.Clone()
}

// Version increments on every SetTable
func (e *Engine) Version() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Rate returns how many receive tokens one pay token buys, 0 when the pair
// cannot be quoted
func (e *Engine) Rate(pay, receive tokens.Token) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rateLocked(pay, receive)
}

func (e *Engine) rateLocked(pay, receive tokens.Token) float64 {
	if !e.pairLocked(pay, receive) {
		return 0
	}
	return e.table.Rate(pay.Symbol, receive.Symbol)
}

// RateString formats the rate for display, e.g. "1 XLM = 0.166667 USDC".
// It is empty when the pair cannot be quoted.
func (e *Engine) RateString(pay, receive tokens.Token) string {
	e.mu.RLock()
	if !e.pairLocked(pay, receive) {
		e.mu.RUnlock()
		return ""
	}
	rate := decimal.NewFromFloat(e.table.Value(pay.Symbol)).Div(decimal.NewFromFloat(e.table.Value(receive.Symbol)))
	e.mu.RUnlock()
	return fmt.Sprintf("1 %s = %s %s", pay.Symbol, Display(rate, receive), receive.Symbol)
}

// ComputeReceiveAmount converts payAmount of pay into receive. It returns ""
// for empty, zero, negative or non-numeric input.
func (e *Engine) ComputeReceiveAmount(payAmount string, pay, receive tokens.Token) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.convertLocked(payAmount, pay, receive)
}

// ComputePayAmount is the inverse: the amount of pay needed to receive receiveAmount of receive
func (e *Engine) ComputePayAmount(receiveAmount string, pay, receive tokens.Token) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.convertLocked(receiveAmount, receive, pay)
}

// Quote computes a full quote and stamps it with the table version
func (e *Engine) Quote(pay, receive tokens.Token, payAmount string) Quote {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Quote{
		Pay:           pay,
		Receive:       receive,
		PayAmount:     strings.TrimSpace(payAmount),
		ReceiveAmount: e.convertLocked(payAmount, pay, receive),
		Rate:          e.rateLocked(pay, receive),
		version:       e.version,
	}
}

// Flip swaps the direction of q. When the table has not changed since q was
// computed the amounts are swapped as-is; otherwise the old receive amount
// becomes the new pay amount and is requoted.
func (e *Engine) Flip(q Quote) Quote {
	e.mu.RLock()
	current := e.version
	e.mu.RUnlock()

	if q.version == current {
		flipped := Quote{
			Pay:           q.Receive,
			Receive:       q.Pay,
			PayAmount:     q.ReceiveAmount,
			ReceiveAmount: q.PayAmount,
			version:       q.version,
		}
		if q.Rate != 0 {
			flipped.Rate = 1 / q.Rate
		}
		return flipped
	}
	return e.Quote(q.Receive, q.Pay, q.ReceiveAmount)
}

func (e *Engine) convertLocked(amount string, from, to tokens.Token) string {
	if !e.pairLocked(from, to) {
		return ""
	}
	d, ok := ParseAmount(amount)
	if !ok {
		return ""
	}
	out := d.Mul(decimal.NewFromFloat(e.table.Value(from.Symbol))).Div(decimal.NewFromFloat(e.table.Value(to.Symbol)))
	return Display(out, to)
}

// ParseAmount parses a user-entered amount, accepting only positive numbers
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// Display rounds d to MaxDisplayDecimals places, or to SignificantDigits
// significant digits when that needs more, never past the token's decimals.
// Trailing zeros are trimmed and values that round to zero display as "".
func Display(d decimal.Decimal, t tokens.Token) string {
	rounded := d.Round(displayPlaces(d, t))
	if rounded.IsZero() {
		return ""
	}
	return rounded.String()
}

func displayPlaces(d decimal.Decimal, t tokens.Token) int32 {
	places := MaxDisplayDecimals
	if !d.IsZero() {
		// position of the leading digit, -5 for 0.000017
		lead := d.NumDigits() + int(d.Exponent()) - 1
		if p := SignificantDigits - 1 - lead; p > places {
			places = p
		}
	}
	if t.Decimals < places {
		places = t.Decimals
	}
	return int32(places)
}

// MinimumOutput is the slippage floor in smallest units for an expected
// output, never below one unit
func MinimumOutput(expectedUnits int64, slippageBps int) int64 {
	if slippageBps < 0 {
		slippageBps = 0
	}
	if slippageBps > 10000 {
		slippageBps = 10000
	}
	floor := decimal.NewFromInt(expectedUnits).
		Mul(decimal.NewFromInt(int64(10000 - slippageBps))).
		Div(decimal.NewFromInt(10000)).
		Floor().
		IntPart()
	if floor < 1 {
		return 1
	}
	return floor
}
