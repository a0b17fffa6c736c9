package client

import (
	"context"
	"fmt"

	"stellar-swap/pkg/txn"
)

// ContractScale is the fixed-point scale of contract amounts and rates (7 decimals)
const ContractScale = 10_000_000

// Simulator dry-runs encoded transactions. *RPC and the demo ledger implement it.
type Simulator interface {
	Simulate(ctx context.Context, encodedTx string) (*SimulateResult, error)
}

// Reserves are the DEX pool balances in whole tokens
type Reserves struct {
	XLM  float64 `json:"xlm"`
	USDC float64 `json:"usdc"`
	ETH  float64 `json:"eth"`
}

// Contract reads the DEX contract through simulation
type Contract struct {
	rpc    Simulator
	id     string
	source string
}

// NewContract binds a contract id. source is the account used for read-only simulations.
func NewContract(rpc Simulator, contractID, source string) *Contract {
	return &Contract{rpc: rpc, id: contractID, source: source}
}

// ID returns the contract address
func (c *Contract) ID() string {
	return c.id
}

func (c *Contract) read(ctx context.Context, function string, want int) ([]int64, error) {
	if c.id == "" {
		return nil, fmt.Errorf("no DEX contract configured")
	}
	env, err := txn.BuildCall(c.source, c.id, function)
	if err != nil {
		return nil, err
	}
	encoded, err := env.Encode()
	if err != nil {
		return nil, err
	}
	res, err := c.rpc.Simulate(ctx, encoded)
	if err != nil {
		return nil, err
	}
	ret, err := res.ReturnValue()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", function, err)
	}
	vals, err := txn.DecodeInts(ret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", function, err)
	}
	if len(vals) != want {
		return nil, fmt.Errorf("%s: expected %d values, got %d", function, want, len(vals))
	}
	return vals, nil
}

// Rates returns XLM per USDC and XLM per ETH
func (c *Contract) Rates(ctx context.Context) (float64, float64, error) {
	vals, err := c.read(ctx, "get_rates", 2)
	if err != nil {
		return 0, 0, err
	}
	return float64(vals[0]) / ContractScale, float64(vals[1]) / ContractScale, nil
}

// Reserves returns the pool reserves
func (c *Contract) Reserves(ctx context.Context) (Reserves, error) {
	vals, err := c.read(ctx, "get_reserves", 3)
	if err != nil {
		return Reserves{}, err
	}
	return Reserves{
		XLM:  float64(vals[0]) / ContractScale,
		USDC: float64(vals[1]) / ContractScale,
		ETH:  float64(vals[2]) / ContractScale,
	}, nil
}

// SimulateSwapFee dry-runs a swap and returns the total fee in stroops
// (resource fee plus the base inclusion fee). Without a source account the
// read-only simulation account stands in.
func (c *Contract) SimulateSwapFee(ctx context.Context, p txn.SwapParams) (int64, error) {
	p.Contract = c.id
	if p.Source == "" {
		p.Source = c.source
	}
	if p.Source == "" {
		p.Source = txn.SimulationSource
	}
	env, err := txn.BuildSwap(p)
	if err != nil {
		return 0, err
	}
	encoded, err := env.Encode()
	if err != nil {
		return 0, err
	}
	res, err := c.rpc.Simulate(ctx, encoded)
	if err != nil {
		return 0, err
	}
	if res.Error != "" {
		return 0, fmt.Errorf("swap simulation failed: %s", res.Error)
	}
	fee, err := res.Fee()
	if err != nil {
		return 0, err
	}
	return fee + txn.BaseFee, nil
}
