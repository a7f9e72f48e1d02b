package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/axintera/axctl/pkg/data"
	"github.com/axintera/axctl/pkg/verify"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v3"
)

func newVerifyCmd() *cli.Command {
	return &cli.Command{
		Name:            "verify",
		Usage:           "Verify journaled contracts on the network explorer",
		UsageText:       "axctl verify --network flowTestnet --module RewardGaugeModule",
		HideHelpCommand: true,
		Action:          cmdVerify,
		Flags:           verifyFlags(),
	}
}

type verifyResult struct {
	Future  string `json:"future" yaml:"future"`
	Address string `json:"address" yaml:"address"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Status  string `json:"status" yaml:"status"`
}

func cmdVerify(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	n, err := cfg.Config.Network(cmd.String(flagNetwork))
	if err != nil {
		return err
	}
	client, err := verify.NewClient(n.Explorer)
	if err != nil {
		return fmt.Errorf("network %s: %w", n.Name, err)
	}

	module := cmd.String(flagModule)
	deps, err := data.ListDeployments(cfg.DB, n.ChainID)
	if err != nil {
		return err
	}

	store := artifactStore(cmd)
	only := cmd.String(flagFuture)
	results := make([]*verifyResult, 0)
	for _, d := range deps {
		if d.Module != module || (only != "" && d.Future != only) {
			continue
		}

		addr := common.HexToAddress(d.Address)
		art, err := store.Load(d.Contract)
		if err != nil {
			return err
		}
		info, err := store.BuildInfo(art)
		if err != nil {
			return err
		}
		var ctorArgs []byte
		if d.ConstructorArgs != "" {
			if ctorArgs, err = hexutil.Decode("0x" + d.ConstructorArgs); err != nil {
				return fmt.Errorf("invalid constructor args of %s: %w", d.Key(), err)
			}
		}
		req, err := verify.NewRequest(art, info, addr, ctorArgs)
		if err != nil {
			return err
		}

		slog.Info("verifying", "future", d.Key(), "address", addr.Hex(), "network", n.Name)
		if err := client.Verify(ctx, req, cmd.Duration(flagPoll)); err != nil {
			return fmt.Errorf("verifying %s: %w", d.Key(), err)
		}
		results = append(results, &verifyResult{
			Future:  d.Key(),
			Address: addr.Hex(),
			URL:     client.AddressURL(addr),
			Status:  "verified",
		})
	}

	if len(results) == 0 {
		return fmt.Errorf("no journaled deployments of %s on %s: %w", module, n.Name, data.ErrNotFound)
	}
	return encode(cmd, results)
}

// pollInterval is the receipt poll period of CLI transactions.
var pollInterval = 2 * time.Second
