package deploy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain-1337", "deployed_addresses.json")
	gate := &Result{
		Module:    ModuleFlowYieldGate,
		Contracts: map[string]*Deployed{"flowYieldGate": {Address: common.HexToAddress("0x01")}},
	}
	require.NoError(t, WriteAddresses(path, gate))

	system := &Result{
		Module: ModuleRewardSystem,
		Contracts: map[string]*Deployed{
			"token": {Address: common.HexToAddress("0x02")},
			"gauge": {Address: common.HexToAddress("0x03")},
		},
	}
	require.NoError(t, WriteAddresses(path, system))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, map[string]string{
		"FlowYieldGateModule#flowYieldGate": common.HexToAddress("0x01").Hex(),
		"RewardSystemModule#token":          common.HexToAddress("0x02").Hex(),
		"RewardSystemModule#gauge":          common.HexToAddress("0x03").Hex(),
	}, got)
}

func TestWriteAddresses_Invalid(t *testing.T) {
	assert.Error(t, WriteAddresses("", &Result{}))
	assert.Error(t, WriteAddresses(filepath.Join(t.TempDir(), "a.json"), nil))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))
	assert.Error(t, WriteAddresses(bad, &Result{Module: "M"}))
}
