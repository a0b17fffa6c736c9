package txn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellar/go-stellar-sdk/txnbuild"
	"github.com/stellar/go-stellar-sdk/xdr"

	"stellar-swap/pkg/tokens"
)

const (
	// BaseFee is the minimum inclusion fee in stroops
	BaseFee = txnbuild.MinBaseFee
	// DefaultTimeout bounds how long a signed envelope stays valid, in seconds
	DefaultTimeout = 30
	// SimulationSource is the all-zero account id. Read-only simulations use it
	// when no funded account is configured.
	SimulationSource = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"
)

// SwapParams describes a swap invocation
type SwapParams struct {
	Source   string
	Sequence int64
	Contract string
	Pay      tokens.Token
	Receive  tokens.Token
	AmountIn int64
	MinOut   int64
	Fee      int64
}

// SwapFunction names the contract entry point for a pair, e.g. swap_xlm_for_usdc
func SwapFunction(pay, receive string) string {
	return fmt.Sprintf("swap_%s_for_%s", strings.ToLower(pay), strings.ToLower(receive))
}

// BuildSwap builds the unsigned swap transaction. Sequence is the account's
// current sequence number; the transaction uses the next one.
func BuildSwap(p SwapParams) (*Envelope, error) {
	if p.Source == "" {
		return nil, errors.New("source account is required")
	}
	if p.Contract == "" {
		return nil, errors.New("contract address is required")
	}
	if p.Pay.Symbol == p.Receive.Symbol {
		return nil, fmt.Errorf("cannot swap %s for itself", p.Pay.Symbol)
	}
	if p.AmountIn <= 0 {
		return nil, fmt.Errorf("amount in must be positive, got %d", p.AmountIn)
	}
	if p.MinOut < 0 {
		return nil, fmt.Errorf("minimum out must not be negative, got %d", p.MinOut)
	}
	user, err := AddressArg(p.Source)
	if err != nil {
		return nil, fmt.Errorf("invalid source account: %w", err)
	}
	args := xdr.ScVec{user, I128Arg(p.AmountIn), I128Arg(p.MinOut)}
	return build(invocation{
		source:   p.Source,
		sequence: p.Sequence,
		fee:      p.Fee,
		contract: p.Contract,
		function: SwapFunction(p.Pay.Symbol, p.Receive.Symbol),
		args:     args,
		bounds:   txnbuild.NewTimeout(DefaultTimeout),
	})
}

// BuildCall builds a read-only invocation used for simulation. An empty source
// falls back to SimulationSource.
func BuildCall(source, contract, function string, args ...xdr.ScVal) (*Envelope, error) {
	if source == "" {
		source = SimulationSource
	}
	return build(invocation{
		source:   source,
		contract: contract,
		function: function,
		args:     args,
		bounds:   txnbuild.NewTimeout(DefaultTimeout),
	})
}

// ParseSwapFunction splits swap_<in>_for_<out> into upper-case symbols
func ParseSwapFunction(fn string) (string, string, bool) {
	rest, ok := strings.CutPrefix(fn, "swap_")
	if !ok {
		return "", "", false
	}
	in, out, ok := strings.Cut(rest, "_for_")
	if !ok || in == "" || out == "" {
		return "", "", false
	}
	return strings.ToUpper(in), strings.ToUpper(out), true
}

type invocation struct {
	source   string
	sequence int64
	// keepSequence uses sequence as is instead of sequence+1
	keepSequence bool
	fee      int64
	contract string
	function string
	args     xdr.ScVec
	auth     []xdr.SorobanAuthorizationEntry
	data     *xdr.SorobanTransactionData
	bounds   txnbuild.TimeBounds
}

func build(in invocation) (*Envelope, error) {
	contract, err := contractAddress(in.contract)
	if err != nil {
		return nil, err
	}
	if in.fee < BaseFee {
		in.fee = BaseFee
	}

	op := &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: contract,
				FunctionName:    xdr.ScSymbol(in.function),
				Args:            in.args,
			},
		},
		Auth: in.auth,
	}
	if in.data != nil {
		op.Ext = xdr.TransactionExt{V: 1, SorobanData: in.data}
	}

	account := txnbuild.NewSimpleAccount(in.source, in.sequence)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: !in.keepSequence,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              in.fee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: in.bounds},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s transaction: %w", in.function, err)
	}
	return fromTransaction(tx)
}
