package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/axintera/axctl/pkg/artifact"
	"github.com/axintera/axctl/pkg/data"
	"github.com/axintera/axctl/pkg/deploy"
	"github.com/urfave/cli/v3"
)

func newDeployCmd() *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Deploy a module to a network",
		UsageText: `axctl deploy --network flowTestnet --module RewardGaugeModule --param rewardToken=0xABC...
   axctl deploy -n flow -m FlowYieldGateModule --reset`,
		HideHelpCommand: true,
		Action:          cmdDeploy,
		Flags:           deployFlags(),
	}
}

func newDeploymentsCmd() *cli.Command {
	return &cli.Command{
		Name:            "deployments",
		Usage:           "List journaled deployments",
		HideHelpCommand: true,
		Action:          cmdDeployments,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagNetwork,
				Usage: "Only this network (optional, default: all)",
			},
		},
	}
}

func artifactStore(cmd *cli.Command) *artifact.Store {
	dir := cmd.String(flagArtifacts)
	if dir == "" {
		dir = getConfig(cmd).Config.Artifacts
	}
	return artifact.NewStore(dir)
}

func moduleParameters(cmd *cli.Command, module string) (deploy.Parameters, error) {
	params := deploy.Parameters{}
	if path := cmd.String(flagParameters); path != "" {
		p, err := deploy.LoadParameters(path)
		if err != nil {
			return nil, err
		}
		params = p
	}

	kv, err := deploy.ParseParams(cmd.StringSlice(flagParam))
	if err != nil {
		return nil, err
	}
	return params.Set(module, kv), nil
}

func cmdDeploy(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	m, err := deploy.Builtin(cmd.String(flagModule))
	if err != nil {
		return err
	}
	params, err := moduleParameters(cmd, m.ID)
	if err != nil {
		return err
	}

	conn, signer, err := connectSigner(ctx, cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	journal, err := deploy.NewDBJournal(cfg.DB)
	if err != nil {
		return err
	}
	d, err := deploy.NewDeployer(conn.Backend, signer, artifactStore(cmd), journal)
	if err != nil {
		return err
	}
	d.PollInterval = pollInterval

	slog.Info("deploying",
		"module", m.ID,
		"network", conn.Network.Name,
		"deployer", signer.Address.Hex())

	res, err := d.Deploy(ctx, m, deploy.Options{Params: params, Reset: cmd.Bool(flagReset)})
	if err != nil {
		return fmt.Errorf("deploying %s: %w", m.ID, err)
	}
	if path := cmd.String(flagAddresses); path != "" {
		if err := deploy.WriteAddresses(path, res); err != nil {
			return err
		}
		slog.Debug("deployed addresses written", "path", path, "count", len(res.Contracts))
	}
	return encode(cmd, res)
}

func cmdDeployments(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	var chainID uint64
	if name := cmd.String(flagNetwork); name != "" {
		n, err := cfg.Config.Network(name)
		if err != nil {
			return err
		}
		chainID = n.ChainID
	}

	list, err := data.ListDeployments(cfg.DB, chainID)
	if err != nil {
		return fmt.Errorf("listing deployments: %w", err)
	}
	return encode(cmd, list)
}
