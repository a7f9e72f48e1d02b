package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/axintera/axctl/pkg/chain"
	"github.com/axintera/axctl/pkg/config"
	"github.com/axintera/axctl/pkg/data"
	"github.com/axintera/axctl/pkg/gate"
	"github.com/axintera/axctl/pkg/gauge"
	"github.com/axintera/axctl/pkg/metrics"
	"github.com/axintera/axctl/pkg/score"
	"github.com/urfave/cli/v3"
)

var errNotAuthorized = errors.New("wallet holds no token of the gate collection")

func newPublishCmd() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Sign the funding wallet's reputation score and submit it to the journaled gauge",
		UsageText: `axctl publish --network flowTestnet
   axctl publish -n flow --epoch 12`,
		HideHelpCommand: true,
		Flags:           chainFlags(gaugeFlag(), tokenFlag(), epochFlag()),
		Action:          cmdPublish,
	}
}

// publishResult is one published epoch.
type publishResult struct {
	Provider string         `json:"provider" yaml:"provider"`
	Epoch    uint64         `json:"epoch" yaml:"epoch"`
	Score    float64        `json:"score" yaml:"score"`
	ScoreBps uint16         `json:"score_bps" yaml:"scoreBps"`
	Outcome  *gauge.Outcome `json:"outcome" yaml:"outcome"`
}

// publisher submits the wallet's own Wilson score once per epoch.
type publisher struct {
	db      *sql.DB
	cfg     *config.Config
	chainID uint64
	signer  *chain.Signer
	gauge   *gauge.Gauge
	token   *gauge.Token
	gate    *gate.Authorizer
	metrics *metrics.Metrics
	closers []func()
}

func newPublisher(ctx context.Context, cmd *cli.Command, m *metrics.Metrics) (*publisher, error) {
	cfg := getConfig(cmd)
	conn, signer, err := connectSigner(ctx, cmd)
	if err != nil {
		return nil, err
	}

	p := &publisher{
		db:      cfg.DB,
		cfg:     cfg.Config,
		chainID: conn.ChainID.Uint64(),
		signer:  signer,
		metrics: m,
		closers: []func(){conn.Close},
	}

	if p.gauge, p.token, err = openGauge(cmd, conn); err != nil {
		p.Close()
		return nil, err
	}
	a, closeGate, err := openGate(ctx, p.cfg, conn)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.gate = a
	p.closers = append(p.closers, closeGate)
	return p, nil
}

func (p *publisher) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}

// currentEpoch is the epoch of now for the configured epoch length.
func (p *publisher) currentEpoch() uint64 {
	return score.EpochAt(time.Now(), p.cfg.EpochSeconds)
}

// publish recalculates scores and submits the wallet's score for epoch.
// The chain outcome is fed back into the wallet's own stats.
func (p *publisher) publish(ctx context.Context, epoch uint64) (*publishResult, error) {
	wallet := p.signer.Address.Hex()

	if _, err := data.RecalcScores(p.db, p.cfg.WilsonZ); err != nil {
		return nil, fmt.Errorf("recalculating scores: %w", err)
	}
	p.metrics.ObserveRecalc()

	stat, err := data.GetStat(p.db, wallet)
	if err != nil {
		p.metrics.ObserveSubmission(metrics.ResultSkipped)
		return nil, fmt.Errorf("no reputation for %s: %w", wallet, err)
	}

	if p.gate != nil {
		ok, err := p.gate.HasNFT(ctx, wallet)
		if err != nil {
			return nil, fmt.Errorf("checking gate: %w", err)
		}
		if !ok {
			p.metrics.ObserveSubmission(metrics.ResultRejected)
			return nil, fmt.Errorf("%w: %s in %s", errNotAuthorized, wallet, p.gate.Collection.Hex())
		}
	}

	submitted, err := data.HasSubmission(p.db, p.chainID, wallet, epoch)
	if err != nil {
		return nil, err
	}
	if submitted {
		p.metrics.ObserveSubmission(metrics.ResultSkipped)
		return nil, fmt.Errorf("%w: %s epoch %d", data.ErrAlreadySubmitted, wallet, epoch)
	}

	r := score.Record{Subject: p.signer.Address, ScoreBps: score.FromRatio(stat.Score), Epoch: epoch}
	slog.Info("publishing score",
		"provider", wallet,
		"score", stat.Score,
		"score_bps", r.ScoreBps,
		"epoch", epoch,
		"gauge", p.gauge.Address.Hex())

	o, err := gauge.Submit(ctx, p.gauge, p.token, p.signer, r)
	if err != nil {
		p.metrics.ObserveSubmission(metrics.ResultFailed)
		p.record(wallet, false)
		return nil, fmt.Errorf("submitting score: %w", err)
	}

	// the score is on chain from here, count it even if the journal write fails
	p.metrics.ObserveSubmission(metrics.ResultOK)
	p.record(wallet, true)

	if err := data.SaveSubmission(p.db, &data.Submission{
		ChainID:  p.chainID,
		Provider: wallet,
		Epoch:    epoch,
		ScoreBps: r.ScoreBps,
		Hash:     o.Hash.Hex(),
		TxHash:   o.Tx.Hex(),
	}); err != nil {
		return nil, fmt.Errorf("recording submission %s: %w", o.Tx.Hex(), err)
	}

	return &publishResult{
		Provider: data.NormalizeProviderID(wallet),
		Epoch:    epoch,
		Score:    stat.Score,
		ScoreBps: r.ScoreBps,
		Outcome:  o,
	}, nil
}

func (p *publisher) record(wallet string, ok bool) {
	if _, err := data.UpdateStats(p.db, wallet, ok); err != nil {
		slog.Error("failed to record publish outcome", "provider", wallet, "error", err)
		return
	}
	p.metrics.ObserveStat(ok)
}

func newSubmissionsCmd() *cli.Command {
	return &cli.Command{
		Name:            "submissions",
		Usage:           "List published scores, newest first",
		UsageText:       "axctl submissions --provider 0x...",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagProvider,
				Aliases: []string{"p"},
				Usage:   "Only this provider (optional, default: all)",
			},
		},
		Action: cmdSubmissions,
	}
}

func cmdSubmissions(_ context.Context, cmd *cli.Command) error {
	list, err := data.ListSubmissions(getConfig(cmd).DB, cmd.String(flagProvider))
	if err != nil {
		return err
	}
	return encode(cmd, list)
}

func cmdPublish(ctx context.Context, cmd *cli.Command) error {
	p, err := newPublisher(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer p.Close()

	epoch := p.currentEpoch()
	if cmd.IsSet(flagEpoch) {
		epoch = cmd.Uint64(flagEpoch)
	}

	res, err := p.publish(ctx, epoch)
	if err != nil {
		return err
	}
	return encode(cmd, res)
}
