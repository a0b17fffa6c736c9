package tokens

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOrderAndCopy(t *testing.T) {
	list := List()
	require.Len(t, list, 10)
	assert.Equal(t, "XLM", list[0].Symbol)
	assert.Equal(t, "CTRLZ", list[9].Symbol)

	list[0].Symbol = "MUTATED"
	assert.Equal(t, "XLM", List()[0].Symbol)
}

func TestFind(t *testing.T) {
	tok, ok := Find(" usdc ")
	require.True(t, ok)
	assert.Equal(t, "USD Coin", tok.Name)
	assert.Equal(t, 7, tok.Decimals)

	_, ok = Find("DOGE")
	assert.False(t, ok)

	assert.Panics(t, func() { MustFind("DOGE") })
}

func TestDefaultPair(t *testing.T) {
	pay, receive := DefaultPair()
	assert.Equal(t, "XLM", pay.Symbol)
	assert.Equal(t, "USDC", receive.Symbol)
}

func TestFilter(t *testing.T) {
	assert.Len(t, Filter(""), 10)

	anchored := Filter("anchored")
	require.Len(t, anchored, 2)
	assert.Equal(t, "BTC", anchored[0].Symbol)
	assert.Equal(t, "ETH", anchored[1].Symbol)

	assert.Empty(t, Filter("nothing-matches"))
}

func TestUnits(t *testing.T) {
	xlm := MustFind("XLM")
	assert.Equal(t, int64(1_000_000_000), xlm.ToUnits(decimal.NewFromInt(100)))
	assert.Equal(t, int64(1), xlm.ToUnits(decimal.RequireFromString("0.00000019")))
	assert.Equal(t, "12.5", xlm.FromUnits(125_000_000).String())
}

func TestContractIDsAreValid(t *testing.T) {
	for _, tok := range List() {
		assert.True(t, strkey.IsValidContractAddress(tok.ContractID), tok.Symbol)
	}
}
