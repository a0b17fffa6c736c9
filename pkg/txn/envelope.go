// Package txn builds, encodes and signs the Soroban contract invocations sent to the network.
package txn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/txnbuild"
	"github.com/stellar/go-stellar-sdk/xdr"
)

// Envelope is a transaction carrying a single contract invocation by its
// source account. The exported fields mirror the wrapped transaction and are
// read only.
type Envelope struct {
	Source      string
	Sequence    int64
	Fee         int64
	ResourceFee int64
	Contract    string
	Function    string
	Args        []xdr.ScVal
	Auth        []xdr.SorobanAuthorizationEntry

	tx *txnbuild.Transaction
}

// ErrUnsigned is returned when an envelope carries no valid source signature
var ErrUnsigned = errors.New("envelope is not signed by its source account")

func fromTransaction(tx *txnbuild.Transaction) (*Envelope, error) {
	ops := tx.Operations()
	if len(ops) != 1 {
		return nil, fmt.Errorf("expected one operation, got %d", len(ops))
	}
	op, ok := ops[0].(*txnbuild.InvokeHostFunction)
	if !ok {
		return nil, fmt.Errorf("operation is %T, not a contract invocation", ops[0])
	}
	call, ok := op.HostFunction.GetInvokeContract()
	if !ok {
		return nil, errors.New("host function is not a contract invocation")
	}
	contract, err := call.ContractAddress.String()
	if err != nil {
		return nil, fmt.Errorf("invalid contract address: %w", err)
	}

	env := &Envelope{
		Source:   tx.SourceAccount().AccountID,
		Sequence: tx.SequenceNumber(),
		Fee:      tx.MaxFee(),
		Contract: contract,
		Function: string(call.FunctionName),
		Args:     call.Args,
		Auth:     op.Auth,
		tx:       tx,
	}
	if op.Ext.SorobanData != nil {
		env.ResourceFee = int64(op.Ext.SorobanData.ResourceFee)
	}
	return env, nil
}

// Encode returns the base64 XDR envelope handed to wallets and the network
func (e *Envelope) Encode() (string, error) {
	out, err := e.tx.Base64()
	if err != nil {
		return "", fmt.Errorf("failed to encode envelope: %w", err)
	}
	return out, nil
}

// Decode parses a base64 XDR transaction envelope
func Decode(encoded string) (*Envelope, error) {
	generic, err := txnbuild.TransactionFromXDR(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	tx, ok := generic.Transaction()
	if !ok {
		return nil, errors.New("fee bump envelopes are not supported")
	}
	return fromTransaction(tx)
}

// Hash is the transaction id on the given network
func (e *Envelope) Hash(passphrase string) (string, error) {
	return e.tx.HashHex(passphrase)
}

// Sign adds a signature by kp
func (e *Envelope) Sign(kp *keypair.Full, passphrase string) error {
	signed, err := e.tx.Sign(passphrase, kp)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	e.tx = signed
	return nil
}

// Signatures counts the attached signatures
func (e *Envelope) Signatures() int {
	return len(e.tx.Signatures())
}

// Verify checks that at least one signature belongs to the source account
func (e *Envelope) Verify(passphrase string) error {
	source, err := keypair.ParseAddress(e.Source)
	if err != nil {
		return fmt.Errorf("invalid source account: %w", err)
	}
	hash, err := e.tx.Hash(passphrase)
	if err != nil {
		return err
	}
	hint := xdr.SignatureHint(source.Hint())
	for _, sig := range e.tx.Signatures() {
		if sig.Hint == hint && source.Verify(hash[:], sig.Signature) == nil {
			return nil
		}
	}
	return ErrUnsigned
}

// Assemble attaches the resource footprint and authorization returned by a
// simulation. The result keeps the sequence number and time bounds but carries
// no signatures, so assemble before signing.
func (e *Envelope) Assemble(transactionData string, auth []string) (*Envelope, error) {
	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(transactionData, &data); err != nil {
		return nil, fmt.Errorf("invalid transaction data: %w", err)
	}
	entries := make([]xdr.SorobanAuthorizationEntry, 0, len(auth))
	for i, a := range auth {
		var entry xdr.SorobanAuthorizationEntry
		if err := xdr.SafeUnmarshalBase64(a, &entry); err != nil {
			return nil, fmt.Errorf("invalid auth entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	bounds := e.tx.Timebounds()
	return build(invocation{
		source:       e.Source,
		sequence:     e.Sequence,
		keepSequence: true,
		fee:          e.Fee - e.ResourceFee,
		contract:     e.Contract,
		function:     e.Function,
		args:         e.Args,
		auth:         entries,
		data:         &data,
		bounds:       txnbuild.NewTimebounds(bounds.MinTime, bounds.MaxTime),
	})
}

// SourceAuth is the authorization entry that lets the source account's
// signature cover this invocation
func (e *Envelope) SourceAuth() (string, error) {
	contract, err := contractAddress(e.Contract)
	if err != nil {
		return "", err
	}
	entry := xdr.SorobanAuthorizationEntry{
		Credentials: xdr.SorobanCredentials{
			Type: xdr.SorobanCredentialsTypeSorobanCredentialsSourceAccount,
		},
		RootInvocation: xdr.SorobanAuthorizedInvocation{
			Function: xdr.SorobanAuthorizedFunction{
				Type: xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeContractFn,
				ContractFn: &xdr.InvokeContractArgs{
					ContractAddress: contract,
					FunctionName:    xdr.ScSymbol(e.Function),
					Args:            e.Args,
				},
			},
		},
	}
	return xdr.MarshalBase64(entry)
}

// EncodeTransactionData renders a resource declaration charging resourceFee
func EncodeTransactionData(resourceFee int64, instructions uint32) (string, error) {
	return xdr.MarshalBase64(xdr.SorobanTransactionData{
		Resources:   xdr.SorobanResources{Instructions: xdr.Uint32(instructions)},
		ResourceFee: xdr.Int64(resourceFee),
	})
}

// Summary is the one-line description shown when asking for approval
func (e *Envelope) Summary() string {
	vals := make([]string, len(e.Args))
	for i, a := range e.Args {
		vals[i] = describeArg(a)
	}
	return fmt.Sprintf("%s(%s) on %s, fee %d stroops", e.Function, strings.Join(vals, ", "), e.Contract, e.Fee)
}

func describeArg(v xdr.ScVal) string {
	if n, err := ArgInt(v); err == nil {
		return strconv.FormatInt(n, 10)
	}
	if addr, err := ArgAddress(v); err == nil {
		return addr
	}
	if sym, ok := v.GetSym(); ok {
		return string(sym)
	}
	return v.Type.String()
}
