package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveDeployment(t *testing.T) {
	db := setupTestDB(t)

	d := &Deployment{
		ChainID:  545,
		Module:   "RewardGaugeModule",
		Future:   "gauge",
		Contract: "RewardGauge",
		Address:  "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		TxHash:   "0x01",
	}
	require.NoError(t, SaveDeployment(db, d))
	assert.NotEmpty(t, d.DeployedAt)
	assert.Equal(t, "RewardGaugeModule#gauge", d.Key())

	got, err := GetDeployment(db, 545, "RewardGaugeModule", "gauge")
	require.NoError(t, err)
	assert.Equal(t, d.Address, got.Address)
	assert.Equal(t, uint64(545), got.ChainID)

	d.Address = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	require.NoError(t, SaveDeployment(db, d))
	got, err = GetDeployment(db, 545, "RewardGaugeModule", "gauge")
	require.NoError(t, err)
	assert.Equal(t, d.Address, got.Address)
}

func TestGetDeployment_OtherChain(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SaveDeployment(db, &Deployment{
		ChainID: 545, Module: "FlowYieldGateModule", Future: "flowYieldGate", Address: "0x01",
	}))

	_, err := GetDeployment(db, 747, "FlowYieldGateModule", "flowYieldGate")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveDeployment_Invalid(t *testing.T) {
	assert.Error(t, SaveDeployment(nil, &Deployment{}))

	db := setupTestDB(t)
	assert.Error(t, SaveDeployment(db, nil))
	assert.Error(t, SaveDeployment(db, &Deployment{ChainID: 1, Module: "m"}))
}

func TestListDeployments(t *testing.T) {
	db := setupTestDB(t)
	for _, d := range []*Deployment{
		{ChainID: 545, Module: "RewardSystemModule", Future: "token", Address: "0x01", DeployedAt: "2025-01-01T00:00:00Z"},
		{ChainID: 545, Module: "RewardSystemModule", Future: "gauge", Address: "0x02", DeployedAt: "2025-01-01T00:00:01Z"},
		{ChainID: 747, Module: "FlowYieldGateModule", Future: "flowYieldGate", Address: "0x03"},
	} {
		require.NoError(t, SaveDeployment(db, d))
	}

	all, err := ListDeployments(db, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	testnet, err := ListDeployments(db, 545)
	require.NoError(t, err)
	require.Len(t, testnet, 2)
	assert.Equal(t, "token", testnet[0].Future)
	assert.Equal(t, "gauge", testnet[1].Future)
}

func TestResetModule(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SaveDeployment(db, &Deployment{ChainID: 545, Module: "RewardGaugeModule", Future: "gauge", Address: "0x01"}))
	require.NoError(t, SaveDeployment(db, &Deployment{ChainID: 747, Module: "RewardGaugeModule", Future: "gauge", Address: "0x02"}))

	n, err := ResetModule(db, 545, "RewardGaugeModule")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = GetDeployment(db, 747, "RewardGaugeModule", "gauge")
	assert.NoError(t, err)
}

func TestSaveDeployment_ConstructorArgs(t *testing.T) {
	db := setupTestDB(t)
	args := "0000000000000000000000005fbdb2315678afecb367f032d93f642f64180aa3"
	require.NoError(t, SaveDeployment(db, &Deployment{
		ChainID: 545, Module: "RewardGaugeModule", Future: "gauge", Address: "0x01", ConstructorArgs: args,
	}))

	got, err := GetDeployment(db, 545, "RewardGaugeModule", "gauge")
	require.NoError(t, err)
	assert.Equal(t, args, got.ConstructorArgs)
}
