package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/axintera/axctl/pkg/data"
	"github.com/urfave/cli/v3"
)

func newStatsCmd() *cli.Command {
	return &cli.Command{
		Name:            "stats",
		Usage:           "Record provider outcomes and inspect reputation scores",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:      "record",
				Usage:     "Record one served request, successful with --ok",
				UsageText: "axctl stats record --provider 0xABC... --ok",
				Flags: []cli.Flag{
					providerFlag(),
					&cli.BoolFlag{
						Name:  flagOK,
						Usage: "The request succeeded",
					},
				},
				Action: cmdStatsRecord,
			},
			{
				Name:   "get",
				Usage:  "Print the stats of one provider",
				Flags:  []cli.Flag{providerFlag()},
				Action: cmdStatsGet,
			},
			{
				Name:   "list",
				Usage:  "List all providers, best score first",
				Action: cmdStatsList,
			},
			{
				Name:   "recalc",
				Usage:  "Recompute every provider score",
				Action: cmdStatsRecalc,
			},
			{
				Name:   "state",
				Usage:  "Print row counts of the local store",
				Action: cmdStatsState,
			},
		},
	}
}

type recalcResult struct {
	Providers int     `json:"providers" yaml:"providers"`
	WilsonZ   float64 `json:"wilson_z" yaml:"wilsonZ"`
}

func cmdStatsRecord(_ context.Context, cmd *cli.Command) error {
	s, err := data.UpdateStats(getConfig(cmd).DB, cmd.String(flagProvider), cmd.Bool(flagOK))
	if err != nil {
		return err
	}
	return encode(cmd, s)
}

func cmdStatsGet(_ context.Context, cmd *cli.Command) error {
	s, err := data.GetStat(getConfig(cmd).DB, cmd.String(flagProvider))
	if err != nil {
		return err
	}
	return encode(cmd, s)
}

func cmdStatsList(_ context.Context, cmd *cli.Command) error {
	list, err := data.ListStats(getConfig(cmd).DB)
	if err != nil {
		return err
	}
	return encode(cmd, list)
}

func cmdStatsRecalc(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	n, err := data.RecalcScores(cfg.DB, cfg.Config.WilsonZ)
	if err != nil {
		return fmt.Errorf("recalculating scores: %w", err)
	}
	slog.Info("scores recalculated", "providers", n)
	return encode(cmd, &recalcResult{Providers: n, WilsonZ: cfg.Config.WilsonZ})
}

func cmdStatsState(_ context.Context, cmd *cli.Command) error {
	state, err := data.GetDataState(getConfig(cmd).DB)
	if err != nil {
		return err
	}
	return encode(cmd, state)
}
