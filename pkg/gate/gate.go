// Package gate authorizes wallets that hold a token of an ERC-721 collection.
package gate

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// maxTokenIDs bounds the enumeration of a single wallet.
const maxTokenIDs = 1024

var (
	//go:embed abi/ERC721.json
	erc721JSON []byte

	erc721ABI = func() abi.ABI {
		a, err := abi.JSON(bytes.NewReader(erc721JSON))
		if err != nil {
			panic(fmt.Sprintf("invalid embedded erc721 abi: %v", err))
		}
		return a
	}()

	ErrInvalidAddress = errors.New("invalid address")
)

// Authorizer checks NFT ownership. In mock mode every wallet is authorized
// and owns no token ids.
type Authorizer struct {
	Collection common.Address
	mock       bool
	contract   *bind.BoundContract
}

// New binds the collection at addr through caller.
func New(addr common.Address, caller bind.ContractCaller) (*Authorizer, error) {
	if caller == nil {
		return nil, errors.New("contract caller required")
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("%w: nft collection", ErrInvalidAddress)
	}
	return &Authorizer{
		Collection: addr,
		contract:   bind.NewBoundContract(addr, erc721ABI, caller, nil, nil),
	}, nil
}

// NewMock returns an authorizer that lets everyone through.
func NewMock() *Authorizer {
	return &Authorizer{mock: true}
}

// Mock reports whether the authorizer short-circuits every check.
func (a *Authorizer) Mock() bool {
	return a.mock
}

// HasNFT reports whether wallet owns at least one token. Call failures count as not owned.
func (a *Authorizer) HasNFT(ctx context.Context, wallet string) (bool, error) {
	if a.mock {
		return true, nil
	}
	owner, err := parseWallet(wallet)
	if err != nil {
		return false, err
	}
	bal, err := a.balance(ctx, owner)
	if err != nil {
		slog.Debug("nft balance call failed", "collection", a.Collection.Hex(), "wallet", wallet, "error", err)
		return false, nil
	}
	return bal.Sign() > 0, nil
}

// OwnedTokenIDs enumerates the token ids owned by wallet. Enumeration
// stops at the first failing index.
func (a *Authorizer) OwnedTokenIDs(ctx context.Context, wallet string) ([]*big.Int, error) {
	ids := make([]*big.Int, 0)
	if a.mock {
		return ids, nil
	}
	owner, err := parseWallet(wallet)
	if err != nil {
		return nil, err
	}

	bal, err := a.balance(ctx, owner)
	if err != nil || bal.Sign() <= 0 {
		return ids, nil
	}

	n := maxTokenIDs
	if bal.IsInt64() && bal.Int64() < int64(n) {
		n = int(bal.Int64())
	}

	for i := 0; i < n; i++ {
		var out []any
		if err := a.contract.Call(&bind.CallOpts{Context: ctx}, &out, "tokenOfOwnerByIndex", owner, big.NewInt(int64(i))); err != nil {
			slog.Debug("token enumeration stopped", "index", i, "error", err)
			break
		}
		id, ok := out[0].(*big.Int)
		if !ok {
			break
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *Authorizer) balance(ctx context.Context, owner common.Address) (*big.Int, error) {
	var out []any
	if err := a.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T", out[0])
	}
	return v, nil
}

func parseWallet(wallet string) (common.Address, error) {
	if !common.IsHexAddress(wallet) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, wallet)
	}
	return common.HexToAddress(wallet), nil
}
