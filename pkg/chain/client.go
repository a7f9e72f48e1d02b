package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/axintera/axctl/pkg/net"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var ErrChainMismatch = errors.New("chain id mismatch")

// Backend is everything the contract packages need from a chain connection.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client is a dialed RPC endpoint with a verified chain id.
type Client struct {
	*ethclient.Client
	chainID *big.Int
}

// ID returns the chain id verified at dial time.
func (c *Client) ID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Dial connects to url and verifies the remote chain id equals chainID.
// A non-empty token is sent as a bearer credential on every request.
func Dial(ctx context.Context, url string, chainID uint64, token string) (*Client, error) {
	if url == "" {
		return nil, errors.New("rpc url required")
	}

	opts := make([]rpc.ClientOption, 0, 1)
	if token != "" {
		opts = append(opts, rpc.WithHTTPClient(net.GetOAuthClient(ctx, token)))
	}

	rc, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("error dialing %s: %w", url, err)
	}

	ec := ethclient.NewClient(rc)
	id, err := CheckChainID(ctx, ec, chainID)
	if err != nil {
		ec.Close()
		return nil, err
	}

	slog.Debug("rpc connected", "url", url, "chain_id", id)
	return &Client{Client: ec, chainID: id}, nil
}

// ChainIDReader is satisfied by every go-ethereum client.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// CheckChainID returns the remote chain id, failing with ErrChainMismatch
// when want is non-zero and differs.
func CheckChainID(ctx context.Context, r ChainIDReader, want uint64) (*big.Int, error) {
	got, err := r.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading chain id: %w", err)
	}
	if want != 0 && (!got.IsUint64() || got.Uint64() != want) {
		return nil, fmt.Errorf("%w: remote %s, configured %d", ErrChainMismatch, got, want)
	}
	return got, nil
}
