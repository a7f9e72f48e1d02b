package cli

import (
	"fmt"
	"strings"

	"github.com/axintera/axctl/pkg/config"
	"github.com/axintera/axctl/pkg/deploy"
	"github.com/axintera/axctl/pkg/logging"
	"github.com/axintera/axctl/pkg/verify"
	"github.com/urfave/cli/v3"
)

// Flags are built per app so parsed values never leak between runs.

const (
	flagDebug      = "debug"
	flagDB         = "db"
	flagFormat     = "format"
	flagLogFormat  = "log-format"
	flagConfig     = "config"
	flagNetwork    = "network"
	flagRPCToken   = "rpc-token"
	flagKey        = "key"
	flagModule     = "module"
	flagParam      = "param"
	flagParameters = "parameters"
	flagReset      = "reset"
	flagArtifacts  = "artifacts"
	flagFuture     = "future"
	flagPoll       = "poll"
	flagAddress    = "address"
	flagScore      = "score"
	flagEpoch      = "epoch"
	flagHash       = "hash"
	flagSig        = "sig"
	flagGauge      = "gauge"
	flagToken      = "token"
	flagExpect     = "expect"
	flagProvider   = "provider"
	flagOK         = "ok"
	flagPort       = "port"
	flagHost       = "host"
	flagYes        = "yes"
	flagCollection = "collection"
	flagContract   = "contract"
	flagMinScore   = "min-score"
	flagAddresses  = "addresses"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  flagDebug,
			Usage: "Prints verbose logs (optional, default: false)",
		},
		&cli.StringFlag{
			Name:    flagDB,
			Usage:   "Sqlite file path or postgres:// URL (optional, defaults to $HOME/.axctl/data.db)",
			Sources: cli.EnvVars(dbEnvVar),
		},
		&cli.StringFlag{
			Name:  flagFormat,
			Usage: "Output format [json, yaml]",
			Value: formatJSON,
		},
		&cli.StringFlag{
			Name:  flagLogFormat,
			Usage: "Log format [text, json, cli]",
			Value: logging.FormatText,
		},
		&cli.StringFlag{
			Name:  flagConfig,
			Usage: "Config directory (optional, defaults to $HOME/.axctl)",
		},
	}
}

func networkFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    flagNetwork,
		Aliases: []string{"n"},
		Usage:   "Network name from config",
		Value:   config.NetworkFlowTestnet,
		Sources: cli.EnvVars(networkEnvVar),
	}
}

func rpcTokenFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    flagRPCToken,
		Usage:   "Bearer token for gated RPC endpoints (optional)",
		Sources: cli.EnvVars(tokenEnvVar),
	}
}

func keyFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    flagKey,
		Usage:   "Hex private key of the funding account (optional, defaults to the keychain)",
		Sources: cli.EnvVars(config.DeployKeyEnvVar),
	}
}

func moduleFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     flagModule,
		Aliases:  []string{"m"},
		Usage:    fmt.Sprintf("Deployment module [%s]", strings.Join(deploy.BuiltinNames(), ", ")),
		Required: true,
	}
}

func artifactsFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  flagArtifacts,
		Usage: "Hardhat artifacts directory (optional, defaults to config)",
	}
}

func chainFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{networkFlag(), keyFlag(), rpcTokenFlag()}, extra...)
}

func deployFlags() []cli.Flag {
	return chainFlags(
		moduleFlag(),
		&cli.StringSliceFlag{
			Name:  flagParam,
			Usage: "Module parameter as name=value, repeatable (e.g. --param rewardToken=0x...)",
		},
		&cli.StringFlag{
			Name:  flagParameters,
			Usage: "Ignition style JSON parameters file (optional)",
		},
		&cli.BoolFlag{
			Name:  flagReset,
			Usage: "Ignore previously journaled deployments of the module",
		},
		&cli.StringFlag{
			Name:  flagAddresses,
			Usage: "Merge the deployed addresses into this deployed_addresses.json (optional)",
		},
		artifactsFlag(),
	)
}

func verifyFlags() []cli.Flag {
	return []cli.Flag{
		networkFlag(),
		moduleFlag(),
		&cli.StringFlag{
			Name:  flagFuture,
			Usage: "Only this future of the module (optional, default: all)",
		},
		artifactsFlag(),
		&cli.DurationFlag{
			Name:  flagPoll,
			Usage: "Verification status poll interval",
			Value: verify.PollIntervalDefault,
		},
	}
}

func addressFlag(required bool, usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     flagAddress,
		Aliases:  []string{"a"},
		Usage:    usage,
		Required: required,
	}
}

func scoreFlag(required bool) *cli.Uint64Flag {
	return &cli.Uint64Flag{
		Name:     flagScore,
		Usage:    "Score in basis points [0-10000]",
		Required: required,
	}
}

func epochFlag() *cli.Uint64Flag {
	return &cli.Uint64Flag{
		Name:  flagEpoch,
		Usage: "Epoch index",
	}
}

func providerFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     flagProvider,
		Aliases:  []string{"p"},
		Usage:    "Provider id (usually a wallet address)",
		Required: true,
	}
}
