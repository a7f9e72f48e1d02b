// Package gauge calls the reward gauge and its reward token through the
// minimal ABI the score flow needs.
package gauge

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/axintera/axctl/pkg/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	methodSubmitScore = "submitScore"
	methodLastScore   = "lastScore"
	methodBalanceOf   = "balanceOf"
)

var (
	//go:embed abi/*.json
	abiFS embed.FS

	gaugeABI = mustABI("abi/RewardGauge.json")
	tokenABI = mustABI("abi/RewardToken.json")

	// OneToken is one whole 18 decimal token.
	OneToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func mustABI(name string) abi.ABI {
	b, err := abiFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded abi %s: %v", name, err))
	}
	parsed, err := abi.JSON(bytes.NewReader(b))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded abi %s: %v", name, err))
	}
	return parsed
}

// Gauge is a deployed RewardGauge.
type Gauge struct {
	Address common.Address

	backend  chain.Backend
	contract *bind.BoundContract
	interval time.Duration
}

// NewGauge binds the gauge at addr. interval is the receipt poll period,
// zero means chain.PollIntervalDefault.
func NewGauge(addr common.Address, backend chain.Backend, interval time.Duration) (*Gauge, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	if addr == (common.Address{}) {
		return nil, errors.New("gauge address required")
	}
	return &Gauge{
		Address:  addr,
		backend:  backend,
		contract: bind.NewBoundContract(addr, gaugeABI, backend, backend, backend),
		interval: interval,
	}, nil
}

// SubmitScore sends submitScore(hash, bps, sig) and waits for it to be mined.
func (g *Gauge) SubmitScore(ctx context.Context, signer *chain.Signer, hash common.Hash, bps uint16, sig []byte) (*types.Receipt, error) {
	if signer == nil {
		return nil, chain.ErrNoKey
	}
	opts, err := signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := g.contract.Transact(opts, methodSubmitScore, [32]byte(hash), bps, sig)
	if err != nil {
		return nil, fmt.Errorf("error sending %s to %s: %w", methodSubmitScore, g.Address.Hex(), err)
	}

	receipt, err := chain.WaitMined(ctx, g.backend, tx, g.interval)
	if err != nil {
		return receipt, fmt.Errorf("%s: %w", methodSubmitScore, err)
	}
	return receipt, nil
}

// LastScore reads the last score stored for addr.
func (g *Gauge) LastScore(ctx context.Context, addr common.Address) (*big.Int, error) {
	return callUint(ctx, g.contract, methodLastScore, addr)
}

// Token is the ERC-20 minted by the gauge.
type Token struct {
	Address common.Address

	contract *bind.BoundContract
}

// NewToken binds the token at addr.
func NewToken(addr common.Address, backend chain.Backend) (*Token, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	if addr == (common.Address{}) {
		return nil, errors.New("token address required")
	}
	return &Token{
		Address:  addr,
		contract: bind.NewBoundContract(addr, tokenABI, backend, backend, backend),
	}, nil
}

// BalanceOf returns the token balance of addr.
func (t *Token) BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	return callUint(ctx, t.contract, methodBalanceOf, addr)
}

func callUint(ctx context.Context, c *bind.BoundContract, method string, args ...any) (*big.Int, error) {
	var out []any
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("error calling %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want uint256", method, out[0])
	}
	return v, nil
}
