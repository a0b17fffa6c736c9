package txn

import (
	"errors"
	"fmt"
	"math"

	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stellar/go-stellar-sdk/xdr"
)

// ErrOverflow is returned when an i128 does not fit in an int64
var ErrOverflow = errors.New("i128 value does not fit in int64")

// AddressArg wraps an account (G...) or contract (C...) id
func AddressArg(addr string) (xdr.ScVal, error) {
	var sc xdr.ScAddress
	switch {
	case strkey.IsValidEd25519PublicKey(addr):
		id, err := xdr.AddressToAccountId(addr)
		if err != nil {
			return xdr.ScVal{}, err
		}
		sc = xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeAccount, AccountId: &id}
	default:
		c, err := contractAddress(addr)
		if err != nil {
			return xdr.ScVal{}, err
		}
		sc = c
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &sc}, nil
}

// I128Arg wraps an integer amount in smallest units
func I128Arg(n int64) xdr.ScVal {
	hi := xdr.Int64(0)
	if n < 0 {
		hi = -1
	}
	return xdr.ScVal{
		Type: xdr.ScValTypeScvI128,
		I128: &xdr.Int128Parts{Hi: hi, Lo: xdr.Uint64(uint64(n))},
	}
}

// ArgInt reads an i128 value
func ArgInt(v xdr.ScVal) (int64, error) {
	parts, ok := v.GetI128()
	if !ok {
		return 0, fmt.Errorf("argument is %s, not i128", v.Type)
	}
	lo := uint64(parts.Lo)
	switch {
	case parts.Hi == 0 && lo <= math.MaxInt64:
		return int64(lo), nil
	case parts.Hi == -1 && lo > math.MaxInt64:
		return int64(lo), nil
	}
	return 0, ErrOverflow
}

// ArgAddress reads an address value as its strkey form
func ArgAddress(v xdr.ScVal) (string, error) {
	addr, ok := v.GetAddress()
	if !ok {
		return "", fmt.Errorf("argument is %s, not address", v.Type)
	}
	return addr.String()
}

// EncodeInts renders integers as a base64 ScVal: a bare i128 for one value, a
// vec of i128 otherwise
func EncodeInts(vals ...int64) (string, error) {
	if len(vals) == 1 {
		return xdr.MarshalBase64(I128Arg(vals[0]))
	}
	vec := make(xdr.ScVec, len(vals))
	for i, v := range vals {
		vec[i] = I128Arg(v)
	}
	pv := &vec
	return xdr.MarshalBase64(xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &pv})
}

// DecodeInts parses a simulation return value produced by EncodeInts or by a
// contract returning i128 or Vec<i128>
func DecodeInts(encoded string) ([]int64, error) {
	var v xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(encoded, &v); err != nil {
		return nil, fmt.Errorf("failed to decode return value: %w", err)
	}
	if _, ok := v.GetI128(); ok {
		n, err := ArgInt(v)
		if err != nil {
			return nil, err
		}
		return []int64{n}, nil
	}
	vec, ok := v.GetVec()
	if !ok || vec == nil {
		return nil, fmt.Errorf("return value is %s, not i128 or vec", v.Type)
	}
	out := make([]int64, len(*vec))
	for i, item := range *vec {
		n, err := ArgInt(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

func contractAddress(id string) (xdr.ScAddress, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, id)
	if err != nil {
		return xdr.ScAddress{}, fmt.Errorf("invalid contract address %q: %w", id, err)
	}
	var cid xdr.ContractId
	copy(cid[:], raw)
	return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &cid}, nil
}
