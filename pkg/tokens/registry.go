// Package tokens holds the fixed list of assets the DEX can swap.
package tokens

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Token describes a swappable asset
type Token struct {
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Decimals   int    `json:"decimals"`
	Icon       string `json:"icon"`
	ContractID string `json:"contract_id"`
}

// ToUnits scales a display amount to the token's smallest unit, truncating extra precision
func (t Token) ToUnits(amount decimal.Decimal) int64 {
	return amount.Shift(int32(t.Decimals)).Truncate(0).IntPart()
}

// FromUnits converts smallest units back to a display amount
func (t Token) FromUnits(units int64) decimal.Decimal {
	return decimal.New(units, -int32(t.Decimals))
}

const fallbackIcon = "https://cryptologos.cc/logos/stellar-xlm-logo.png"

var registry = []Token{
	{Symbol: "XLM", Name: "Stellar Lumens", Decimals: 7, Icon: fallbackIcon,
		ContractID: "CDLZFC3SYJYDZT7K67VZ75HPJVIEUVNIXF47ZG2FB2RMQQVU2HHGCYSC"},
	{Symbol: "USDC", Name: "USD Coin", Decimals: 7, Icon: "https://cryptologos.cc/logos/usd-coin-usdc-logo.png",
		ContractID: "CBIELTK6YBZJU5UP2WWQEUCYKLPU6AUNZ2BQ4WWFEIE3USCIHMXQDAMA"},
	{Symbol: "EURC", Name: "Euro Coin", Decimals: 7, Icon: "https://cryptologos.cc/logos/euro-coin-euroc-logo.png",
		ContractID: "CBHMUY2W5A2IQH4ILPZZJKDXWN2FXZSFJAHJDU5UHNZHF5HP6UBHJMS6"},
	{Symbol: "BTC", Name: "Bitcoin (Anchored)", Decimals: 7, Icon: "https://cryptologos.cc/logos/bitcoin-btc-logo.png",
		ContractID: "CDNIKYXHVPABU3YNJGRF2FCM42U5O5JKA6OF3FIK2WUT7VWWEP372ANE"},
	{Symbol: "ETH", Name: "Ethereum (Anchored)", Decimals: 7, Icon: "https://cryptologos.cc/logos/ethereum-eth-logo.png",
		ContractID: "CD2KG5QGITIGJM7X3AV3RZB4ZMEQULNMRNK4YKEUX5QYYVI3BPBKRCSW"},
	{Symbol: "SOL", Name: "Solana (Simulated)", Decimals: 7, Icon: "https://cryptologos.cc/logos/solana-sol-logo.png",
		ContractID: "CAUSS3AHUW5EA34BAV6RJ7OQ2WF5TANY4VYB3EA3LEHYJRYQQUMRWBPW"},
	{Symbol: "LINK", Name: "Chainlink", Decimals: 7, Icon: "https://cryptologos.cc/logos/chainlink-link-logo.png",
		ContractID: "CDRG54MQFHGJFYRU3FCXQI6KBAI3SLNZZ2O37DNZTQH525ORCM4PBOKW"},
	{Symbol: "UNI", Name: "Uniswap", Decimals: 7, Icon: "https://cryptologos.cc/logos/uniswap-uni-logo.png",
		ContractID: "CBBGEYDNGNKN7QE3YDSQ4VOCZB47EIZJT2YVP3KYCMPUTV24ZDOY5IUW"},
	{Symbol: "AQUA", Name: "Aquarius", Decimals: 7, Icon: fallbackIcon,
		ContractID: "CAG4EQUSYUHWC3TOMMANKY26DBYRXIRMRJKQW4FMNRMGQ3W45S46IPWV"},
	{Symbol: "CTRLZ", Name: "Control Z", Decimals: 7, Icon: fallbackIcon,
		ContractID: "CBXUBVXYXNDYSA7ASGVH5NRJ4RKPBS6IT6GQV5VOHPZBM26EX5Q4BUYQ"},
}

// List returns the registry in display order. The returned slice is a copy.
func List() []Token {
	out := make([]Token, len(registry))
	copy(out, registry)
	return out
}

// Find looks a token up by symbol, ignoring case
func Find(symbol string) (Token, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, t := range registry {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return Token{}, false
}

// MustFind is Find for symbols known to be in the registry
func MustFind(symbol string) Token {
	t, ok := Find(symbol)
	if !ok {
		panic("tokens: unknown symbol " + symbol)
	}
	return t
}

// DefaultPair is the pay/receive pair selected at startup
func DefaultPair() (Token, Token) {
	return registry[0], registry[1]
}

// Filter returns tokens whose symbol or name contains query
func Filter(query string) []Token {
	query = strings.ToUpper(strings.TrimSpace(query))
	if query == "" {
		return List()
	}
	var out []Token
	for _, t := range registry {
		if strings.Contains(t.Symbol, query) || strings.Contains(strings.ToUpper(t.Name), query) {
			out = append(out, t)
		}
	}
	return out
}

