package simnet

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"stellar-swap/pkg/client"
	"stellar-swap/pkg/txn"
)

var (
	feeNumerator   = decimal.NewFromInt(997)
	feeDenominator = decimal.NewFromInt(1000)
	scaleDec       = decimal.NewFromInt(scale)
)

// SetRates replaces the contract rates, both scaled by 1e7
func (l *Ledger) SetRates(xlmPerUSDC, xlmPerETH int64) error {
	if xlmPerUSDC <= 0 || xlmPerETH <= 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opts.XLMPerUSDC = xlmPerUSDC
	l.opts.XLMPerETH = xlmPerETH
	return nil
}

// Simulate dry-runs a contract call without touching state
func (l *Ledger) Simulate(_ context.Context, encodedTx string) (*client.SimulateResult, error) {
	env, err := txn.Decode(encodedTx)
	if err != nil {
		return nil, &client.RPCError{Code: -32602, Message: err.Error()}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res := &client.SimulateResult{LatestLedger: l.ledger}
	if env.Contract != l.opts.ContractID {
		res.Error = fmt.Sprintf("contract %s not found", env.Contract)
		return res, nil
	}

	switch env.Function {
	case "get_rates":
		encoded, err := txn.EncodeInts(l.opts.XLMPerUSDC, l.opts.XLMPerETH)
		if err != nil {
			return nil, err
		}
		res.Results = []client.SimulateReturn{{XDR: encoded}}
	case "get_reserves":
		encoded, err := txn.EncodeInts(l.reserves["XLM"], l.reserves["USDC"], l.reserves["ETH"])
		if err != nil {
			return nil, err
		}
		res.Results = []client.SimulateReturn{{XDR: encoded}}
	default:
		out, err := l.executeLocked(env, false)
		if err != nil {
			res.Error = err.Error()
			return res, nil
		}
		encoded, err := txn.EncodeInts(out)
		if err != nil {
			return nil, err
		}
		auth, err := env.SourceAuth()
		if err != nil {
			return nil, err
		}
		data, err := txn.EncodeTransactionData(SimulatedResourceFee, simulatedInstructions)
		if err != nil {
			return nil, err
		}
		res.MinResourceFee = strconv.Itoa(SimulatedResourceFee)
		res.TransactionData = data
		res.Results = []client.SimulateReturn{{XDR: encoded, Auth: []string{auth}}}
	}
	return res, nil
}

// Send accepts a signed transaction. It consumes the source sequence number and
// leaves the transaction pending for ConfirmAfter status polls.
func (l *Ledger) Send(_ context.Context, encodedTx string) (*client.SendResult, error) {
	env, err := txn.Decode(encodedTx)
	if err != nil {
		return nil, &client.RPCError{Code: -32602, Message: err.Error()}
	}
	hash, err := env.Hash(l.opts.Passphrase)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res := &client.SendResult{Hash: hash, LatestLedger: l.ledger}
	if _, ok := l.txs[hash]; ok {
		res.Status = client.SendDuplicate
		return res, nil
	}
	if err := env.Verify(l.opts.Passphrase); err != nil {
		res.Status = client.SendError
		res.ErrorResultXDR = "txBadAuth"
		return res, nil
	}
	if env.ResourceFee < SimulatedResourceFee {
		res.Status = client.SendError
		res.ErrorResultXDR = "txSorobanInvalid"
		return res, nil
	}
	acc := l.accountLocked(env.Source)
	if env.Sequence != acc.sequence+1 {
		res.Status = client.SendError
		res.ErrorResultXDR = "txBadSeq"
		return res, nil
	}
	if env.Fee > acc.balances["XLM"] {
		res.Status = client.SendError
		res.ErrorResultXDR = "txInsufficientFee"
		return res, nil
	}

	acc.sequence = env.Sequence
	acc.balances["XLM"] -= env.Fee
	l.txs[hash] = &pendingTx{env: env, pollsLeft: l.opts.ConfirmAfter}
	res.Status = client.SendPending
	return res, nil
}

// GetTransaction reports NOT_FOUND until the transaction has been polled
// ConfirmAfter times, then applies it and reports the outcome
func (l *Ledger) GetTransaction(_ context.Context, hash string) (*client.TransactionResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[hash]
	if !ok {
		return &client.TransactionResult{Status: client.TxNotFound, LatestLedger: l.ledger}, nil
	}
	if tx.status == "" {
		if tx.pollsLeft > 0 {
			tx.pollsLeft--
			return &client.TransactionResult{Status: client.TxNotFound, LatestLedger: l.ledger}, nil
		}
		l.ledger++
		tx.ledger = l.ledger
		if _, err := l.executeLocked(tx.env, true); err != nil {
			tx.status = client.TxFailed
		} else {
			tx.status = client.TxSuccess
		}
	}
	return &client.TransactionResult{Status: tx.status, Ledger: tx.ledger, LatestLedger: l.ledger}, nil
}

// executeLocked runs a swap invocation and returns the amount out. State is
// only changed when commit is set.
func (l *Ledger) executeLocked(env *txn.Envelope, commit bool) (int64, error) {
	in, out, ok := txn.ParseSwapFunction(env.Function)
	if !ok {
		return 0, fmt.Errorf("function %s not found", env.Function)
	}
	if !l.pooled(in) || !l.pooled(out) || in == out {
		return 0, ErrBadToken
	}
	if len(env.Args) != 3 {
		return 0, fmt.Errorf("%s expects 3 arguments, got %d", env.Function, len(env.Args))
	}
	if caller, err := txn.ArgAddress(env.Args[0]); err != nil || caller != env.Source {
		return 0, errors.New("HostError: Error(Auth, InvalidAction) caller is not the transaction source")
	}
	if commit && len(env.Auth) == 0 {
		return 0, errors.New("HostError: Error(Auth, InvalidAction) invocation is not authorized")
	}
	amountIn, err := txn.ArgInt(env.Args[1])
	if err != nil {
		return 0, err
	}
	minOut, err := txn.ArgInt(env.Args[2])
	if err != nil {
		return 0, err
	}
	if amountIn <= 0 {
		return 0, ErrZeroAmount
	}

	acc := l.accountLocked(env.Source)
	if acc.balances[in] < amountIn {
		return 0, errInsufficientBalance
	}

	amountOut := l.convert(in, out, amountIn)
	if amountOut < minOut {
		return 0, ErrSlippageExceeded
	}
	if l.reserves[out] < amountOut {
		return 0, ErrInsufficientFunds
	}

	if commit {
		acc.balances[in] -= amountIn
		acc.balances[out] += amountOut
		l.reserves[in] += amountIn
		l.reserves[out] -= amountOut
	}
	return amountOut, nil
}

func (l *Ledger) pooled(symbol string) bool {
	switch symbol {
	case "XLM", "USDC", "ETH":
		return true
	}
	return false
}

// convert applies the 0.3% pool fee per hop. Swaps between two non-native
// tokens route through XLM and pay the fee twice.
func (l *Ledger) convert(in, out string, amount int64) int64 {
	value := decimal.NewFromInt(amount)
	if in != "XLM" {
		value = value.Mul(feeNumerator).Div(feeDenominator).Floor().
			Mul(l.rateLocked(in)).Div(scaleDec).Floor()
	}
	if out != "XLM" {
		value = value.Mul(feeNumerator).Div(feeDenominator).Floor().
			Mul(scaleDec).Div(l.rateLocked(out)).Floor()
	}
	return value.IntPart()
}

func (l *Ledger) rateLocked(symbol string) decimal.Decimal {
	if symbol == "ETH" {
		return decimal.NewFromInt(l.opts.XLMPerETH)
	}
	return decimal.NewFromInt(l.opts.XLMPerUSDC)
}
