package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/axintera/axctl/pkg/data"
	"github.com/urfave/cli/v3"
)

var errResetPostgres = errors.New("reset only deletes local sqlite files, drop the postgres tables instead")

func newResetCmd() *cli.Command {
	return &cli.Command{
		Name:            "reset",
		Usage:           "Delete all local stats, journaled deployments and submissions and start fresh",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagYes,
				Aliases: []string{"y"},
				Usage:   "Do not ask for confirmation",
			},
		},
		Action: cmdReset,
	}
}

func reader(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func cmdReset(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	if data.IsPostgres(cfg.DBPath) {
		return errResetPostgres
	}

	w := writer(cmd)
	if !cmd.Bool(flagYes) {
		fmt.Fprintf(w, "This will permanently delete all data in %s\n", cfg.DBPath)
		fmt.Fprint(w, "Are you sure? [y/N]: ")

		answer, err := bufio.NewReader(reader(cmd)).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	// close the DB before deleting the file
	if cfg.DB != nil {
		cfg.DB.Close()
		cfg.DB = nil
	}

	for _, p := range []string{cfg.DBPath, cfg.DBPath + "-wal", cfg.DBPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting database: %w", err)
		}
	}
	slog.Info("database deleted", "path", cfg.DBPath)

	if err := data.Init(cfg.DBPath); err != nil {
		return fmt.Errorf("re-initializing database: %w", err)
	}

	slog.Info("database re-initialized", "path", cfg.DBPath)
	fmt.Fprintln(w, "Reset complete.")
	return nil
}
