package gate

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const methodGetYieldRate = "getYieldRate"

var (
	//go:embed abi/FlowYieldGate.json
	yieldGateJSON []byte

	yieldGateABI = func() abi.ABI {
		a, err := abi.JSON(bytes.NewReader(yieldGateJSON))
		if err != nil {
			panic(fmt.Sprintf("invalid embedded yield gate abi: %v", err))
		}
		return a
	}()
)

// YieldGate is a deployed FlowYieldGate. Wallets granted premium access by
// the contract owner get the premium rate, everyone else the base rate.
type YieldGate struct {
	Address  common.Address
	contract *bind.BoundContract
}

// Yield is the rate a wallet is offered.
type Yield struct {
	Wallet   common.Address `json:"wallet" yaml:"wallet"`
	Contract common.Address `json:"contract" yaml:"contract"`
	RateBps  *big.Int       `json:"rate_bps" yaml:"rateBps"`
	APY      float64        `json:"apy" yaml:"apy"`
}

// NewYieldGate binds the yield gate at addr through caller.
func NewYieldGate(addr common.Address, caller bind.ContractCaller) (*YieldGate, error) {
	if caller == nil {
		return nil, errors.New("contract caller required")
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("%w: yield gate", ErrInvalidAddress)
	}
	return &YieldGate{
		Address:  addr,
		contract: bind.NewBoundContract(addr, yieldGateABI, caller, nil, nil),
	}, nil
}

// YieldRate reads the rate offered to wallet. Call failures are returned,
// unlike HasNFT.
func (y *YieldGate) YieldRate(ctx context.Context, wallet string) (*Yield, error) {
	owner, err := parseWallet(wallet)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := y.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGetYieldRate, owner); err != nil {
		return nil, fmt.Errorf("error calling %s on %s: %w", methodGetYieldRate, y.Address.Hex(), err)
	}
	bps, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want uint256", methodGetYieldRate, out[0])
	}

	return &Yield{
		Wallet:   owner,
		Contract: y.Address,
		RateBps:  bps,
		APY:      APY(bps),
	}, nil
}

// APY converts a basis point rate to a percentage.
func APY(bps *big.Int) float64 {
	if bps == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(bps).Float64()
	return f / 100
}
