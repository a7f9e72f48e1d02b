package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/axintera/axctl/pkg/data"
	"github.com/axintera/axctl/pkg/deploy"
	"github.com/axintera/axctl/pkg/gauge"
	"github.com/axintera/axctl/pkg/score"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v3"
)

// gaugeModules are searched in order for a journaled gauge.
var gaugeModules = []string{deploy.ModuleRewardSystem, deploy.ModuleRewardGauge}

const (
	futureGauge = "gauge"
	futureToken = "token"
)

func gaugeFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  flagGauge,
		Usage: "Gauge address (optional, defaults to the journaled gauge of the network)",
	}
}

func tokenFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  flagToken,
		Usage: "Reward token address (optional, defaults to the token the gauge was deployed with)",
	}
}

func newGaugeCmd() *cli.Command {
	return &cli.Command{
		Name:            "gauge",
		Usage:           "Submit signed scores to a deployed gauge and read it back",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "Sign a score for the funding account, submit it and report what was stored and minted",
				UsageText: `axctl gauge submit --network flowTestnet --score 7500 --epoch 0 --expect
   axctl gauge submit -n flow --gauge 0x... --token 0x... --score 5000`,
				Flags: chainFlags(
					gaugeFlag(),
					tokenFlag(),
					scoreFlag(true),
					epochFlag(),
					&cli.BoolFlag{
						Name:  flagExpect,
						Usage: "Fail unless the score was stored and exactly one token minted",
					},
				),
				Action: cmdGaugeSubmit,
			},
			{
				Name:   "score",
				Usage:  "Print the last score the gauge stored for an address",
				Flags:  []cli.Flag{networkFlag(), rpcTokenFlag(), gaugeFlag(), addressFlag(true, "Subject address")},
				Action: cmdGaugeScore,
			},
			{
				Name:   "balance",
				Usage:  "Print the reward token balance of an address",
				Flags:  []cli.Flag{networkFlag(), rpcTokenFlag(), gaugeFlag(), tokenFlag(), addressFlag(true, "Holder address")},
				Action: cmdGaugeBalance,
			},
		},
	}
}

type gaugeValue struct {
	Contract common.Address `json:"contract" yaml:"contract"`
	Address  common.Address `json:"address" yaml:"address"`
	Value    *big.Int       `json:"value" yaml:"value"`
}

// flagAddressOr parses the named flag as an address. An empty flag returns the zero address.
func flagAddressOr(cmd *cli.Command, name string) (common.Address, error) {
	v := cmd.String(name)
	if v == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid --%s address: %s", name, v)
	}
	return common.HexToAddress(v), nil
}

// journaledGauge returns the most specific journaled gauge deployment on chainID.
func journaledGauge(cmd *cli.Command, chainID uint64) (*data.Deployment, error) {
	db := getConfig(cmd).DB
	for _, m := range gaugeModules {
		d, err := data.GetDeployment(db, chainID, m, futureGauge)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, data.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no journaled gauge on chain %d, deploy one or set --%s: %w", chainID, flagGauge, data.ErrNotFound)
}

// resolveGauge returns the gauge from --gauge or the journal. The journal
// entry is nil when a flag address was never deployed by this tool.
func resolveGauge(cmd *cli.Command, chainID uint64) (common.Address, *data.Deployment, error) {
	addr, err := flagAddressOr(cmd, flagGauge)
	if err != nil {
		return common.Address{}, nil, err
	}
	if addr != (common.Address{}) {
		d, err := deploymentAt(cmd, chainID, addr)
		return addr, d, err
	}

	d, err := journaledGauge(cmd, chainID)
	if err != nil {
		return common.Address{}, nil, err
	}
	return common.HexToAddress(d.Address), d, nil
}

func deploymentAt(cmd *cli.Command, chainID uint64, addr common.Address) (*data.Deployment, error) {
	list, err := data.ListDeployments(getConfig(cmd).DB, chainID)
	if err != nil {
		return nil, err
	}
	for _, d := range list {
		if common.HexToAddress(d.Address) == addr {
			return d, nil
		}
	}
	return nil, nil
}

// resolveToken returns the token from --token, the journaled token future of
// the gauge module, or the address the gauge was constructed with.
func resolveToken(cmd *cli.Command, chainID uint64, g *data.Deployment) (common.Address, error) {
	addr, err := flagAddressOr(cmd, flagToken)
	if err != nil || addr != (common.Address{}) {
		return addr, err
	}
	if g == nil {
		return common.Address{}, fmt.Errorf("token of the gauge unknown, set --%s", flagToken)
	}

	t, err := data.GetDeployment(getConfig(cmd).DB, chainID, g.Module, futureToken)
	if err == nil {
		return common.HexToAddress(t.Address), nil
	}
	if !errors.Is(err, data.ErrNotFound) {
		return common.Address{}, err
	}

	// the gauge constructor takes the token as its only argument
	args, err := hexutil.Decode("0x" + g.ConstructorArgs)
	if err != nil || len(args) != common.HashLength {
		return common.Address{}, fmt.Errorf("token of %s unknown, set --%s", g.Key(), flagToken)
	}
	return common.BytesToAddress(args), nil
}

// openGauge binds the gauge and its token on an open connection.
func openGauge(cmd *cli.Command, conn *connection) (*gauge.Gauge, *gauge.Token, error) {
	chainID := conn.ChainID.Uint64()
	gaugeAddr, d, err := resolveGauge(cmd, chainID)
	if err != nil {
		return nil, nil, err
	}
	tokenAddr, err := resolveToken(cmd, chainID, d)
	if err != nil {
		return nil, nil, err
	}

	g, err := gauge.NewGauge(gaugeAddr, conn.Backend, pollInterval)
	if err != nil {
		return nil, nil, err
	}
	t, err := gauge.NewToken(tokenAddr, conn.Backend)
	if err != nil {
		return nil, nil, err
	}
	return g, t, nil
}

func cmdGaugeSubmit(ctx context.Context, cmd *cli.Command) error {
	bps := cmd.Uint64(flagScore)
	if bps > math.MaxUint16 {
		return fmt.Errorf("%w: %d bps", score.ErrInvalidScore, bps)
	}

	conn, signer, err := connectSigner(ctx, cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	g, t, err := openGauge(cmd, conn)
	if err != nil {
		return err
	}

	r := score.Record{Subject: signer.Address, ScoreBps: uint16(bps), Epoch: cmd.Uint64(flagEpoch)}
	o, err := gauge.Submit(ctx, g, t, signer, r)
	if err != nil {
		return fmt.Errorf("submitting score to %s: %w", g.Address.Hex(), err)
	}

	if err := encode(cmd, o); err != nil {
		return err
	}
	if cmd.Bool(flagExpect) {
		return o.Check(r.ScoreBps)
	}
	return nil
}

func cmdGaugeScore(ctx context.Context, cmd *cli.Command) error {
	addr, err := flagAddressOr(cmd, flagAddress)
	if err != nil {
		return err
	}

	conn, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	gaugeAddr, _, err := resolveGauge(cmd, conn.ChainID.Uint64())
	if err != nil {
		return err
	}
	g, err := gauge.NewGauge(gaugeAddr, conn.Backend, pollInterval)
	if err != nil {
		return err
	}

	v, err := g.LastScore(ctx, addr)
	if err != nil {
		return err
	}
	return encode(cmd, &gaugeValue{Contract: gaugeAddr, Address: addr, Value: v})
}

func cmdGaugeBalance(ctx context.Context, cmd *cli.Command) error {
	addr, err := flagAddressOr(cmd, flagAddress)
	if err != nil {
		return err
	}

	conn, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	var d *data.Deployment
	if cmd.String(flagToken) == "" {
		if _, d, err = resolveGauge(cmd, conn.ChainID.Uint64()); err != nil {
			return err
		}
	}
	tokenAddr, err := resolveToken(cmd, conn.ChainID.Uint64(), d)
	if err != nil {
		return err
	}
	t, err := gauge.NewToken(tokenAddr, conn.Backend)
	if err != nil {
		return err
	}

	v, err := t.BalanceOf(ctx, addr)
	if err != nil {
		return err
	}
	return encode(cmd, &gaugeValue{Contract: tokenAddr, Address: addr, Value: v})
}
