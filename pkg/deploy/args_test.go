package deploy

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abiType(t *testing.T, s string) abi.Type {
	t.Helper()
	typ, err := abi.NewType(s, "", nil)
	require.NoError(t, err)
	return typ
}

func TestConvertArg(t *testing.T) {
	tests := []struct {
		typ  string
		in   string
		want any
	}{
		{"address", "0x5FbDB2315678afecb367f032d93F642f64180aa3", common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")},
		{"uint16", "7500", uint16(7500)},
		{"uint64", "0x10", uint64(16)},
		{"int32", "-5", int32(-5)},
		{"uint256", "1000000000000000000", big.NewInt(1e18)},
		{"bool", "true", true},
		{"string", " xREP ", "xREP"},
		{"bytes", "0x0102", []byte{1, 2}},
		{"bytes4", "0x01020304", [4]byte{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, err := convertArg(abiType(t, tt.typ), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertArg_Errors(t *testing.T) {
	tests := []struct {
		typ string
		in  string
	}{
		{"address", "0x123"},
		{"uint8", "256"},
		{"uint16", "-1"},
		{"int8", "128"},
		{"int8", "-129"},
		{"uint256", "abc"},
		{"bool", "maybe"},
		{"bytes", "zz"},
		{"bytes4", "0x01"},
		{"uint256[]", "1"},
	}
	for _, tt := range tests {
		_, err := convertArg(abiType(t, tt.typ), tt.in)
		assert.Error(t, err, "%s %s", tt.typ, tt.in)
	}
}

func TestConvertArg_Bounds(t *testing.T) {
	v, err := convertArg(abiType(t, "int8"), "-128")
	require.NoError(t, err)
	assert.Equal(t, int8(-128), v)

	v, err = convertArg(abiType(t, "int8"), "127")
	require.NoError(t, err)
	assert.Equal(t, int8(127), v)
}

func TestConvertArg_PassThrough(t *testing.T) {
	addr := common.HexToAddress("0x01")
	v, err := convertArg(abiType(t, "address"), addr)
	require.NoError(t, err)
	assert.Equal(t, addr, v)
}
