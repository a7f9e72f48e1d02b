package cli

import (
	"context"
	"fmt"
	"math/big"

	"github.com/axintera/axctl/pkg/chain"
	"github.com/axintera/axctl/pkg/config"
	"github.com/urfave/cli/v3"
)

func newNetworkCmd() *cli.Command {
	return &cli.Command{
		Name:            "network",
		Usage:           "Inspect configured networks",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List networks and their explorers",
				Action: cmdNetworkList,
			},
		},
	}
}

func cmdNetworkList(_ context.Context, cmd *cli.Command) error {
	c := getConfig(cmd).Config
	list := make([]*config.Network, 0, len(c.Networks))
	for _, name := range c.NetworkNames() {
		list = append(list, c.Networks[name])
	}
	return encode(cmd, list)
}

// connection is a dialed network.
type connection struct {
	Network *config.Network
	Backend chain.Backend
	ChainID *big.Int
	close   func()
}

func (c *connection) Close() {
	if c.close != nil {
		c.close()
	}
}

// dialNetwork is swapped in tests to run against a simulated chain.
var dialNetwork = func(ctx context.Context, n *config.Network, token string) (*connection, error) {
	client, err := chain.Dial(ctx, n.URL, n.ChainID, token)
	if err != nil {
		return nil, err
	}
	return &connection{Network: n, Backend: client, ChainID: client.ID(), close: client.Close}, nil
}

// connect dials the network named by --network.
func connect(ctx context.Context, cmd *cli.Command) (*connection, error) {
	cfg := getConfig(cmd)
	n, err := cfg.Config.Network(cmd.String(flagNetwork))
	if err != nil {
		return nil, err
	}

	token := cmd.String(flagRPCToken)
	if token == "" {
		token = cfg.Config.RPCToken
	}

	conn, err := dialNetwork(ctx, n, token)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", n.Name, err)
	}
	return conn, nil
}

// connectSigner dials the network and loads the funding key for it.
func connectSigner(ctx context.Context, cmd *cli.Command) (*connection, *chain.Signer, error) {
	key, _, err := resolveKey(cmd)
	if err != nil {
		return nil, nil, err
	}
	conn, err := connect(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	signer, err := chain.NewSigner(key, conn.ChainID)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, signer, nil
}
