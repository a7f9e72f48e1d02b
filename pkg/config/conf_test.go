package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	dir := t.TempDir()

	c1, err := ReadOrCreate(dir)
	require.NoError(t, err)
	require.NotNil(t, c1)

	c1.EpochSeconds = 60
	c1.Server.Port = 9090
	c1.Gate.NFTContract = "0x0000000000000000000000000000000000000001"

	require.NoError(t, Save(dir, c1))

	c2, err := ReadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, c1.EpochSeconds, c2.EpochSeconds)
	assert.Equal(t, c1.Server.Port, c2.Server.Port)
	assert.Equal(t, c1.Gate.NFTContract, c2.Gate.NFTContract)
	assert.Equal(t, time.Hour, c2.RecalcInterval)
}

func TestReadOrCreate_EmptyDir(t *testing.T) {
	_, err := ReadOrCreate("")
	assert.Error(t, err)
}

func TestSave_Nil(t *testing.T) {
	assert.Error(t, Save(t.TempDir(), nil))
	assert.Error(t, Save("", Default()))
}

func TestDefaultNetworks(t *testing.T) {
	nets := DefaultNetworks()
	require.Len(t, nets, 2)

	flow := nets[NetworkFlow]
	require.NotNil(t, flow)
	assert.Equal(t, uint64(747), flow.ChainID)
	assert.Equal(t, "https://mainnet.evm.nodes.onflow.org", flow.URL)
	assert.Equal(t, "https://evm.flowscan.io/api", flow.Explorer.APIURL)
	assert.Equal(t, "https://evm.flowscan.io/", flow.Explorer.BrowserURL)

	testnet := nets[NetworkFlowTestnet]
	require.NotNil(t, testnet)
	assert.Equal(t, uint64(545), testnet.ChainID)
	assert.Equal(t, "https://testnet.evm.nodes.onflow.org", testnet.URL)
	assert.Equal(t, "https://evm-testnet.flowscan.io/api", testnet.Explorer.APIURL)
	assert.Equal(t, "abc", testnet.Explorer.APIKey)
}

func TestConfig_Network(t *testing.T) {
	c := Default()

	n, err := c.Network(NetworkFlowTestnet)
	require.NoError(t, err)
	assert.Equal(t, uint64(545), n.ChainID)

	_, err = c.Network("sepolia")
	assert.ErrorIs(t, err, ErrUnknownNetwork)

	c.Networks["broken"] = &Network{URL: "http://localhost:8545"}
	_, err = c.Network("broken")
	assert.Error(t, err)
}

func TestConfig_NetworkNames(t *testing.T) {
	assert.Equal(t, []string{NetworkFlow, NetworkFlowTestnet}, Default().NetworkNames())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	content := `networks:
  local:
    chain_id: 1337
    url: http://127.0.0.1:8545
recalc_interval: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	c, err := Load(path)
	require.NoError(t, err)

	n, err := c.Network("local")
	require.NoError(t, err)
	assert.Equal(t, "local", n.Name)
	assert.Nil(t, n.Explorer)
	assert.Equal(t, 5*time.Minute, c.RecalcInterval)
	assert.Equal(t, uint64(3600), c.EpochSeconds)
	assert.InDelta(t, 1.96, c.WilsonZ, 0.0001)
	assert.Equal(t, 8000, c.Server.Port)
}

func TestLoad_KeepsExplicitZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	content := `epoch_seconds: 0
server:
  rate_limit_rps: 0
  rate_limit_burst: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, c.EpochSeconds)
	assert.Zero(t, c.Server.RateLimitRPS)
	assert.Zero(t, c.Server.RateLimitBurst)
	assert.Equal(t, 8000, c.Server.Port)
	assert.Equal(t, time.Hour, c.RecalcInterval)
	assert.Equal(t, []string{NetworkFlow, NetworkFlowTestnet}, c.NetworkNames())

	// survives a save and reload
	require.NoError(t, Save(dir, c))
	c, err = ReadOrCreate(dir)
	require.NoError(t, err)
	assert.Zero(t, c.EpochSeconds)
	assert.Zero(t, c.Server.RateLimitRPS)
}

func TestLoad_ReplacesNetworks(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `networks:
  local:
    chain_id: 1337
    url: http://127.0.0.1:8545
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, c.NetworkNames())
	assert.InDelta(t, 10, c.Server.RateLimitRPS, 0.0001)
	assert.Equal(t, 20, c.Server.RateLimitBurst)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
