package gauge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/axintera/axctl/pkg/chain"
	"github.com/axintera/axctl/pkg/score"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrUnexpectedOutcome = errors.New("unexpected gauge outcome")

// Outcome is what one signed submission did on chain.
type Outcome struct {
	Subject       common.Address `json:"subject" yaml:"subject"`
	Epoch         uint64         `json:"epoch" yaml:"epoch"`
	ScoreBps      uint16         `json:"score_bps" yaml:"scoreBps"`
	Hash          common.Hash    `json:"hash" yaml:"hash"`
	Signature     hexutil.Bytes  `json:"signature" yaml:"signature"`
	Tx            common.Hash    `json:"tx" yaml:"tx"`
	Block         uint64         `json:"block" yaml:"block"`
	StoredScore   *big.Int       `json:"stored_score" yaml:"storedScore"`
	BalanceBefore *big.Int       `json:"balance_before" yaml:"balanceBefore"`
	BalanceAfter  *big.Int       `json:"balance_after" yaml:"balanceAfter"`
	Minted        *big.Int       `json:"minted" yaml:"minted"`
}

// Check fails unless the gauge stored expectedBps and minted exactly one token.
func (o *Outcome) Check(expectedBps uint16) error {
	if o == nil {
		return errors.New("outcome required")
	}
	var problems []string
	if o.StoredScore == nil || o.StoredScore.Cmp(big.NewInt(int64(expectedBps))) != 0 {
		problems = append(problems, fmt.Sprintf("stored score %v, want %d", o.StoredScore, expectedBps))
	}
	if o.Minted == nil || o.Minted.Cmp(OneToken) != 0 {
		problems = append(problems, fmt.Sprintf("minted %v, want %s", o.Minted, OneToken))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrUnexpectedOutcome, problems)
	}
	return nil
}

// Submit signs r with the signer key, submits it to g and reads back the
// stored score and the subject's token balance. Each step waits for the
// previous one.
func Submit(ctx context.Context, g *Gauge, token *Token, signer *chain.Signer, r score.Record) (*Outcome, error) {
	if g == nil || token == nil {
		return nil, errors.New("gauge and token required")
	}
	if signer == nil {
		return nil, chain.ErrNoKey
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	before, err := token.BalanceOf(ctx, r.Subject)
	if err != nil {
		return nil, fmt.Errorf("reading balance before submit: %w", err)
	}

	h, sig, err := r.Sign(signer.Key)
	if err != nil {
		return nil, err
	}

	slog.Debug("submitting score",
		"gauge", g.Address.Hex(),
		"subject", r.Subject.Hex(),
		"score_bps", r.ScoreBps,
		"epoch", r.Epoch,
		"hash", h.Hex())

	receipt, err := g.SubmitScore(ctx, signer, h, r.ScoreBps, sig)
	if err != nil {
		return nil, err
	}

	stored, err := g.LastScore(ctx, r.Subject)
	if err != nil {
		return nil, fmt.Errorf("reading stored score: %w", err)
	}

	after, err := token.BalanceOf(ctx, r.Subject)
	if err != nil {
		return nil, fmt.Errorf("reading balance after submit: %w", err)
	}

	o := &Outcome{
		Subject:       r.Subject,
		Epoch:         r.Epoch,
		ScoreBps:      r.ScoreBps,
		Hash:          h,
		Signature:     sig,
		Tx:            receipt.TxHash,
		StoredScore:   stored,
		BalanceBefore: before,
		BalanceAfter:  after,
		Minted:        new(big.Int).Sub(after, before),
	}
	if receipt.BlockNumber != nil {
		o.Block = receipt.BlockNumber.Uint64()
	}

	slog.Info("score submitted",
		"tx", o.Tx.Hex(),
		"stored", o.StoredScore,
		"minted", o.Minted)
	return o, nil
}
