// Package chaintest runs an in-process simulated chain for tests.
package chaintest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/axintera/axctl/pkg/chain"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/require"
)

const (
	commitInterval = 20 * time.Millisecond

	// PollInterval is short enough to keep receipt waits fast against the
	// auto-committing chain.
	PollInterval = 25 * time.Millisecond
)

var (
	// ConstantCode deploys a contract that answers every call with uint256(42).
	ConstantCode = hexutil.MustDecode("0x600a600c600039600a6000f3602a60005260206000f3")

	// RevertingCode deploys a contract that reverts every call.
	RevertingCode = hexutil.MustDecode("0x6005600c60003960056000f360006000fd")

	// TokenCode deploys a reward token double: mint(address,uint256) credits
	// any caller and balanceOf(address) reads the balance back.
	TokenCode = hexutil.MustDecode("0x6039600c60003960396000f360003560e01c806340c10f1914602b576370a0823114601e575b600080fd5b6004355460005260206000f35b50600435805460243501905500")

	// GaugeCode deploys a reward gauge double taking the token address as its
	// only constructor argument. submitScore stores the bps for the sender and
	// mints it one token, lastScore(address) reads the stored bps back.
	// The signature is not checked.
	GaugeCode = hexutil.MustDecode("0x6020803803600039600051600055606d601a600039606d6000f360003560e01c8063e1de4c2a1460315763eb60db6714601e575b600080fd5b600435600160a01b175460005260206000f35b5060243533600160a01b17556340c10f1960e01b60005233600452670de0b6b3a7640000602452600060006044600060006000545af11560195700")

	// ConstantValue is what ConstantCode returns.
	ConstantValue = big.NewInt(42)

	fundingBalance = new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))
)

// Chain is a funded account on a simulated backend that mines on a timer.
type Chain struct {
	Sim    *simulated.Backend
	Client simulated.Client
	Key    *ecdsa.PrivateKey
	Signer *chain.Signer
}

var _ chain.Backend = simulated.Client(nil)

// New starts a simulated chain and stops it when the test ends.
func New(t testing.TB) *Chain {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sim := simulated.NewBackend(types.GenesisAlloc{
		addr: {Balance: fundingBalance},
	})
	client := sim.Client()

	id, err := client.ChainID(context.Background())
	require.NoError(t, err)

	signer, err := chain.NewSigner(key, id)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(commitInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sim.Commit()
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		sim.Close()
	})

	return &Chain{Sim: sim, Client: client, Key: key, Signer: signer}
}

// Deploy sends raw creation code and waits for the contract address.
func (c *Chain) Deploy(t testing.TB, code []byte) common.Address {
	t.Helper()
	ctx := context.Background()

	opts, err := c.Signer.TransactOpts(ctx)
	require.NoError(t, err)

	nonce, err := c.Client.PendingNonceAt(ctx, c.Signer.Address)
	require.NoError(t, err)

	gasPrice, err := c.Client.SuggestGasPrice(ctx)
	require.NoError(t, err)

	tx := types.NewContractCreation(nonce, big.NewInt(0), 1_000_000, new(big.Int).Mul(gasPrice, big.NewInt(2)), code)
	signed, err := opts.Signer(opts.From, tx)
	require.NoError(t, err)
	require.NoError(t, c.Client.SendTransaction(ctx, signed))

	receipt, err := chain.WaitMined(ctx, c.Client, signed, PollInterval)
	require.NoError(t, err)
	return receipt.ContractAddress
}

// DeployRewardSystem deploys TokenCode and a GaugeCode wired to it.
func (c *Chain) DeployRewardSystem(t testing.TB) (gauge, token common.Address) {
	t.Helper()
	token = c.Deploy(t, TokenCode)
	code := append(append([]byte{}, GaugeCode...), common.LeftPadBytes(token.Bytes(), 32)...)
	return c.Deploy(t, code), token
}

// CallOpts returns read options for the funded account.
func (c *Chain) CallOpts() *bind.CallOpts {
	return &bind.CallOpts{From: c.Signer.Address, Context: context.Background()}
}
