package deploy

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// convertArg turns string values into the Go type abi packing expects for t.
// Non-string values are passed through and type checked by the packer.
func convertArg(t abi.Type, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	s = strings.TrimSpace(s)

	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case abi.UintTy, abi.IntTy:
		return convertInt(t, s)
	case abi.BoolTy:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", s)
		}
		return b, nil
	case abi.StringTy:
		return s, nil
	case abi.BytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes %q: %w", s, err)
		}
		return b, nil
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes%d %q: %w", t.Size, s, err)
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("bytes%d needs %d bytes, got %d", t.Size, t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported constructor input type %s", t.String())
	}
}

func convertInt(t abi.Type, s string) (any, error) {
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if t.T == abi.UintTy && n.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s for %s", s, t.String())
	}
	if overflows(t, n) {
		return nil, fmt.Errorf("value %s overflows %s", s, t.String())
	}

	switch t.Size {
	case 8, 16, 32, 64:
		v := reflect.New(t.GetType()).Elem()
		if t.T == abi.UintTy {
			v.SetUint(n.Uint64())
		} else {
			v.SetInt(n.Int64())
		}
		return v.Interface(), nil
	default:
		return n, nil
	}
}

func overflows(t abi.Type, n *big.Int) bool {
	if t.T == abi.UintTy {
		return n.BitLen() > t.Size
	}
	if n.Sign() >= 0 {
		return n.BitLen() > t.Size-1
	}
	// -2^(size-1) is the smallest value
	abs := new(big.Int).Neg(n)
	return abs.Sub(abs, big.NewInt(1)).BitLen() > t.Size-1
}
