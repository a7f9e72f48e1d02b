package gauge_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/axintera/axctl/pkg/chain/chaintest"
	"github.com/axintera/axctl/pkg/gauge"
	"github.com/axintera/axctl/pkg/score"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGauge_Invalid(t *testing.T) {
	c := chaintest.New(t)

	_, err := gauge.NewGauge(common.Address{}, c.Client, 0)
	assert.Error(t, err)

	_, err = gauge.NewGauge(common.HexToAddress("0x01"), nil, 0)
	assert.Error(t, err)

	_, err = gauge.NewToken(common.Address{}, c.Client)
	assert.Error(t, err)
}

func TestOneToken(t *testing.T) {
	assert.Equal(t, "1000000000000000000", gauge.OneToken.String())
}

func TestLastScoreAndBalance(t *testing.T) {
	c := chaintest.New(t)
	addr := c.Deploy(t, chaintest.ConstantCode)
	ctx := context.Background()

	g, err := gauge.NewGauge(addr, c.Client, chaintest.PollInterval)
	require.NoError(t, err)
	v, err := g.LastScore(ctx, c.Signer.Address)
	require.NoError(t, err)
	assert.Equal(t, chaintest.ConstantValue, v)

	tok, err := gauge.NewToken(addr, c.Client)
	require.NoError(t, err)
	bal, err := tok.BalanceOf(ctx, c.Signer.Address)
	require.NoError(t, err)
	assert.Equal(t, chaintest.ConstantValue, bal)
}

func TestLastScore_Reverts(t *testing.T) {
	c := chaintest.New(t)
	addr := c.Deploy(t, chaintest.RevertingCode)

	g, err := gauge.NewGauge(addr, c.Client, chaintest.PollInterval)
	require.NoError(t, err)
	_, err = g.LastScore(context.Background(), c.Signer.Address)
	assert.Error(t, err)
}

func TestSubmit_StubContracts(t *testing.T) {
	c := chaintest.New(t)
	addr := c.Deploy(t, chaintest.ConstantCode)
	ctx := context.Background()

	g, err := gauge.NewGauge(addr, c.Client, chaintest.PollInterval)
	require.NoError(t, err)
	tok, err := gauge.NewToken(addr, c.Client)
	require.NoError(t, err)

	rec := score.Record{Subject: c.Signer.Address, ScoreBps: 7500, Epoch: 0}
	o, err := gauge.Submit(ctx, g, tok, c.Signer, rec)
	require.NoError(t, err)

	assert.Equal(t, rec.Hash(), o.Hash)
	assert.Len(t, o.Signature, score.SignatureLen)
	require.NoError(t, score.Verify(rec, o.Signature))
	assert.NotEqual(t, common.Hash{}, o.Tx)
	assert.Positive(t, o.Block)

	// the stub answers 42 to everything and mints nothing
	assert.Equal(t, chaintest.ConstantValue, o.StoredScore)
	assert.Zero(t, o.Minted.Sign())

	err = o.Check(7500)
	assert.ErrorIs(t, err, gauge.ErrUnexpectedOutcome)
}

func TestSubmit_RewardSystem(t *testing.T) {
	c := chaintest.New(t)
	ctx := context.Background()
	gaugeAddr, tokAddr := c.DeployRewardSystem(t)

	g, err := gauge.NewGauge(gaugeAddr, c.Client, chaintest.PollInterval)
	require.NoError(t, err)
	tok, err := gauge.NewToken(tokAddr, c.Client)
	require.NoError(t, err)

	o, err := gauge.Submit(ctx, g, tok, c.Signer, score.Record{Subject: c.Signer.Address, ScoreBps: 7500, Epoch: 0})
	require.NoError(t, err)
	require.NoError(t, o.Check(7500))
	assert.Zero(t, o.BalanceBefore.Sign())
	assert.Equal(t, gauge.OneToken, o.Minted)

	o, err = gauge.Submit(ctx, g, tok, c.Signer, score.Record{Subject: c.Signer.Address, ScoreBps: 5000, Epoch: 1})
	require.NoError(t, err)
	require.NoError(t, o.Check(5000))
	assert.Equal(t, gauge.OneToken, o.BalanceBefore)
	assert.Equal(t, new(big.Int).Mul(gauge.OneToken, big.NewInt(2)), o.BalanceAfter)

	stranger := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	v, err := g.LastScore(ctx, stranger)
	require.NoError(t, err)
	assert.Zero(t, v.Sign())
}

func TestSubmit_Reverted(t *testing.T) {
	c := chaintest.New(t)
	ctx := context.Background()
	tokAddr := c.Deploy(t, chaintest.ConstantCode)
	gaugeAddr := c.Deploy(t, chaintest.RevertingCode)

	g, err := gauge.NewGauge(gaugeAddr, c.Client, chaintest.PollInterval)
	require.NoError(t, err)
	tok, err := gauge.NewToken(tokAddr, c.Client)
	require.NoError(t, err)

	_, err = gauge.Submit(ctx, g, tok, c.Signer, score.Record{Subject: c.Signer.Address, ScoreBps: 10})
	assert.Error(t, err)
}

func TestSubmit_InvalidScore(t *testing.T) {
	c := chaintest.New(t)
	addr := c.Deploy(t, chaintest.ConstantCode)

	g, err := gauge.NewGauge(addr, c.Client, chaintest.PollInterval)
	require.NoError(t, err)
	tok, err := gauge.NewToken(addr, c.Client)
	require.NoError(t, err)

	_, err = gauge.Submit(context.Background(), g, tok, c.Signer, score.Record{ScoreBps: 10001})
	assert.ErrorIs(t, err, score.ErrInvalidScore)

	_, err = gauge.Submit(context.Background(), g, tok, nil, score.Record{})
	assert.Error(t, err)
}

func TestOutcome_Check(t *testing.T) {
	ok := &gauge.Outcome{StoredScore: big.NewInt(7500), Minted: new(big.Int).Set(gauge.OneToken)}
	assert.NoError(t, ok.Check(7500))

	assert.ErrorIs(t, ok.Check(7000), gauge.ErrUnexpectedOutcome)

	twice := &gauge.Outcome{StoredScore: big.NewInt(7500), Minted: new(big.Int).Mul(gauge.OneToken, big.NewInt(2))}
	assert.ErrorIs(t, twice.Check(7500), gauge.ErrUnexpectedOutcome)

	assert.Error(t, (&gauge.Outcome{}).Check(0))

	var nilOutcome *gauge.Outcome
	assert.Error(t, nilOutcome.Check(0))
}
