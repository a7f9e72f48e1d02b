package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrNoKey = errors.New("private key required")

// ParseKey decodes a hex private key with or without the 0x prefix.
func ParseKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, ErrNoKey
	}
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// Signer sends transactions from one account on one chain.
type Signer struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
	ChainID *big.Int
}

func NewSigner(key *ecdsa.PrivateKey, chainID *big.Int) (*Signer, error) {
	if key == nil {
		return nil, ErrNoKey
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("chain id required")
	}
	return &Signer{
		Key:     key,
		Address: crypto.PubkeyToAddress(key.PublicKey),
		ChainID: new(big.Int).Set(chainID),
	}, nil
}

// TransactOpts returns fresh options bound to ctx. Nonce and fees are left
// to the backend.
func (s *Signer) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.Key, s.ChainID)
	if err != nil {
		return nil, fmt.Errorf("error creating transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}
