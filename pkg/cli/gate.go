package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/axintera/axctl/pkg/config"
	"github.com/axintera/axctl/pkg/data"
	"github.com/axintera/axctl/pkg/deploy"
	"github.com/axintera/axctl/pkg/gate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v3"
)

const (
	futureYieldGate = "flowYieldGate"

	minScoreDefault = 0.8
)

var errNoGate = errors.New("no nft gate configured, set gate.nft_contract or --collection")

func newGateCmd() *cli.Command {
	return &cli.Command{
		Name:            "gate",
		Usage:           "Check NFT gate ownership and read gated yield rates",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Report whether a wallet holds the gate collection and which token ids it owns",
				UsageText: "axctl gate check --network flow --address 0x...",
				Flags: []cli.Flag{
					networkFlag(),
					rpcTokenFlag(),
					addressFlag(true, "Wallet address"),
					&cli.StringFlag{
						Name:  flagCollection,
						Usage: "NFT collection address (optional, defaults to gate.nft_contract)",
					},
				},
				Action: cmdGateCheck,
			},
			{
				Name:      "yield",
				Usage:     "Read the yield rate a wallet gets from the FlowYieldGate contract",
				UsageText: "axctl gate yield --network flow --address 0x... --min-score 0.9",
				Flags: []cli.Flag{
					networkFlag(),
					rpcTokenFlag(),
					addressFlag(true, "Wallet address"),
					&cli.StringFlag{
						Name:  flagContract,
						Usage: "FlowYieldGate address (optional, defaults to the journaled deployment)",
					},
					&cli.FloatFlag{
						Name:  flagMinScore,
						Usage: "Reputation score that grants premium access without an NFT",
						Value: minScoreDefault,
					},
				},
				Action: cmdGateYield,
			},
		},
	}
}

// openGate binds the NFT gate of cfg. It returns a nil authorizer when no
// contract is configured and mock mode is off. The returned func closes the
// extra connection of a gate living on another network.
func openGate(ctx context.Context, cfg *config.Config, conn *connection) (*gate.Authorizer, func(), error) {
	noop := func() {}
	g := cfg.Gate
	if g.Mock {
		slog.Warn("nft gate in mock mode, every wallet is authorized")
		return gate.NewMock(), noop, nil
	}
	if g.NFTContract == "" {
		return nil, noop, nil
	}
	if !common.IsHexAddress(g.NFTContract) {
		return nil, noop, fmt.Errorf("%w: gate nft_contract %q", gate.ErrInvalidAddress, g.NFTContract)
	}

	gateConn, closeFn := conn, noop
	if g.Network != "" && g.Network != conn.Network.Name {
		n, err := cfg.Network(g.Network)
		if err != nil {
			return nil, noop, fmt.Errorf("gate network: %w", err)
		}
		c, err := dialNetwork(ctx, n, cfg.RPCToken)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to gate network %s: %w", n.Name, err)
		}
		gateConn, closeFn = c, c.Close
	}

	a, err := gate.New(common.HexToAddress(g.NFTContract), gateConn.Backend)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	return a, closeFn, nil
}

type gateCheck struct {
	Wallet     common.Address `json:"wallet" yaml:"wallet"`
	Collection common.Address `json:"collection" yaml:"collection"`
	Mock       bool           `json:"mock" yaml:"mock"`
	HasNFT     bool           `json:"has_nft" yaml:"hasNft"`
	TokenIDs   []*big.Int     `json:"token_ids" yaml:"tokenIds"`
}

func cmdGateCheck(ctx context.Context, cmd *cli.Command) error {
	wallet, err := flagAddressOr(cmd, flagAddress)
	if err != nil {
		return err
	}

	cfg := *getConfig(cmd).Config
	if c := cmd.String(flagCollection); c != "" {
		cfg.Gate = config.Gate{NFTContract: c, Network: cfg.Gate.Network}
	}

	conn, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	a, closeGate, err := openGate(ctx, &cfg, conn)
	if err != nil {
		return err
	}
	defer closeGate()
	if a == nil {
		return errNoGate
	}

	ok, err := a.HasNFT(ctx, wallet.Hex())
	if err != nil {
		return err
	}
	ids, err := a.OwnedTokenIDs(ctx, wallet.Hex())
	if err != nil {
		return err
	}

	return encode(cmd, &gateCheck{
		Wallet:     wallet,
		Collection: a.Collection,
		Mock:       a.Mock(),
		HasNFT:     ok,
		TokenIDs:   ids,
	})
}

type yieldResult struct {
	Wallet        common.Address `json:"wallet" yaml:"wallet"`
	Contract      common.Address `json:"contract" yaml:"contract"`
	RateBps       *big.Int       `json:"rate_bps" yaml:"rateBps"`
	APY           float64        `json:"apy" yaml:"apy"`
	Score         float64        `json:"score" yaml:"score"`
	HoldsNFT      bool           `json:"holds_nft" yaml:"holdsNft"`
	PremiumAccess bool           `json:"premium_access" yaml:"premiumAccess"`
}

// resolveYieldGate returns --contract or the journaled FlowYieldGate of the chain.
func resolveYieldGate(cmd *cli.Command, chainID uint64) (common.Address, error) {
	addr, err := flagAddressOr(cmd, flagContract)
	if err != nil || addr != (common.Address{}) {
		return addr, err
	}
	d, err := data.GetDeployment(getConfig(cmd).DB, chainID, deploy.ModuleFlowYieldGate, futureYieldGate)
	if err != nil {
		return common.Address{}, fmt.Errorf("no journaled %s on chain %d, deploy it or set --%s: %w",
			deploy.ModuleFlowYieldGate, chainID, flagContract, err)
	}
	return common.HexToAddress(d.Address), nil
}

// cmdGateYield reads the on-chain rate and derives premium access from NFT
// ownership or a reputation score of at least --min-score.
func cmdGateYield(ctx context.Context, cmd *cli.Command) error {
	wallet, err := flagAddressOr(cmd, flagAddress)
	if err != nil {
		return err
	}
	cfg := getConfig(cmd)

	conn, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	addr, err := resolveYieldGate(cmd, conn.ChainID.Uint64())
	if err != nil {
		return err
	}
	y, err := gate.NewYieldGate(addr, conn.Backend)
	if err != nil {
		return err
	}
	rate, err := y.YieldRate(ctx, wallet.Hex())
	if err != nil {
		return err
	}

	res := &yieldResult{
		Wallet:   rate.Wallet,
		Contract: rate.Contract,
		RateBps:  rate.RateBps,
		APY:      rate.APY,
	}

	a, closeGate, err := openGate(ctx, cfg.Config, conn)
	if err != nil {
		return err
	}
	defer closeGate()
	if a != nil {
		if res.HoldsNFT, err = a.HasNFT(ctx, wallet.Hex()); err != nil {
			return err
		}
	}

	stat, err := data.GetStat(cfg.DB, wallet.Hex())
	switch {
	case err == nil:
		res.Score = stat.Score
	case !errors.Is(err, data.ErrNotFound):
		return err
	}

	res.PremiumAccess = res.HoldsNFT || res.Score >= cmd.Float(flagMinScore)
	return encode(cmd, res)
}
