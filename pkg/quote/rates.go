// Package quote turns a pay amount into a receive amount using a table of
// token values expressed in one reference unit.
package quote

import (
	"fmt"
	"strings"
)

// RateTable maps a token symbol to its value in a common reference unit.
// Symbols missing from the table are worth 1.
type RateTable map[string]float64

// StaticTable is the hard-coded USD price table used before any on-chain rates are known
func StaticTable() RateTable {
	return RateTable{
		"XLM":  0.12,
		"USDC": 1,
		"USDT": 1,
		"SOL":  150,
		"EURC": 1.08,
		"ETH":  3500,
	}
}

// FromContractRates builds a table relative to XLM from the DEX contract's
// get_rates result (XLM per USDC, XLM per ETH)
func FromContractRates(xlmPerUSDC, xlmPerETH float64) (RateTable, error) {
	if xlmPerUSDC <= 0 || xlmPerETH <= 0 {
		return nil, fmt.Errorf("contract rates must be positive, got %v and %v", xlmPerUSDC, xlmPerETH)
	}
	return RateTable{
		"XLM":  1,
		"USDC": xlmPerUSDC,
		"ETH":  xlmPerETH,
	}, nil
}

// Value returns the reference value of symbol
func (t RateTable) Value(symbol string) float64 {
	v, ok := t[strings.ToUpper(symbol)]
	if !ok || v <= 0 {
		return 1
	}
	return v
}

// Has reports whether symbol carries a positive value
func (t RateTable) Has(symbol string) bool {
	return t[strings.ToUpper(symbol)] > 0
}

// Rate is how many receive tokens one pay token buys
func (t RateTable) Rate(pay, receive string) float64 {
	return t.Value(pay) / t.Value(receive)
}

// Clone returns an independent copy
func (t RateTable) Clone() RateTable {
	out := make(RateTable, len(t))
	for k, v := range t {
		out[strings.ToUpper(k)] = v
	}
	return out
}
