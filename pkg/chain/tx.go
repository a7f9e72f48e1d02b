package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const PollIntervalDefault = 2 * time.Second

var ErrReverted = errors.New("transaction reverted")

// ReceiptReader is the part of a backend needed to wait for a receipt.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WaitMined polls for the receipt of tx until ctx is done. A failed
// receipt is returned together with ErrReverted.
func WaitMined(ctx context.Context, r ReceiptReader, tx *types.Transaction, interval time.Duration) (*types.Receipt, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if interval <= 0 {
		interval = PollIntervalDefault
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := r.TransactionReceipt(ctx, tx.Hash())
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s (block %s)", ErrReverted, tx.Hash().Hex(), receipt.BlockNumber)
			}
			slog.Debug("transaction mined", "tx", tx.Hash().Hex(), "block", receipt.BlockNumber, "gas", receipt.GasUsed)
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			slog.Debug("receipt lookup failed, retrying", "tx", tx.Hash().Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
