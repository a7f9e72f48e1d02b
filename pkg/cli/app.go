package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/axintera/axctl/pkg/config"
	"github.com/axintera/axctl/pkg/data"
	"github.com/axintera/axctl/pkg/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "axctl"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"

	dbEnvVar      = "AXCTL_DB"
	networkEnvVar = "AXCTL_NETWORK"
	tokenEnvVar   = "AXCTL_RPC_TOKEN"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefault(logging.FormatText, "info")

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Dir    string
	DBPath string
	Debug  bool
	Format string
	Config *config.Config
	DB     *sql.DB
}

func getConfig(cmd *cli.Command) *appConfig {
	cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig)
	if !ok {
		panic("app config not initialized")
	}
	return cfg
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Deploy reward gauges, sign scores and serve provider reputation",
		Metadata:              map[string]any{},
		Flags:                 globalFlags(),
		Commands: []*cli.Command{
			newNetworkCmd(),
			newKeyCmd(),
			newDeployCmd(),
			newDeploymentsCmd(),
			newVerifyCmd(),
			newScoreCmd(),
			newGaugeCmd(),
			newStatsCmd(),
			newPublishCmd(),
			newSubmissionsCmd(),
			newGateCmd(),
			newServerCmd(),
			newResetCmd(),
		},
		Before: before,
		After: func(_ context.Context, cmd *cli.Command) error {
			if cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				cfg.DB.Close()
			}
			return nil
		},
	}
}

func before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := "info"
	if cmd.Bool(flagDebug) {
		level = "debug"
	}
	logging.SetDefault(cmd.String(flagLogFormat), level)

	format := formatJSON
	if f := cmd.String(flagFormat); f == formatYAML || f == "yml" {
		format = formatYAML
	}

	dir := cmd.String(flagConfig)
	if dir == "" {
		home, _, err := config.GetOrCreateHomeDir(appName)
		if err != nil {
			return ctx, fmt.Errorf("resolving home dir: %w", err)
		}
		dir = home
	}

	c, err := config.ReadOrCreate(dir)
	if err != nil {
		return ctx, fmt.Errorf("reading config: %w", err)
	}

	dbPath := cmd.String(flagDB)
	if dbPath == "" {
		dbPath = filepath.Join(dir, data.DataFileName)
	}

	if err := data.Init(dbPath); err != nil {
		return ctx, fmt.Errorf("initializing database: %w", err)
	}

	db, err := data.GetDB(dbPath)
	if err != nil {
		return ctx, fmt.Errorf("opening database: %w", err)
	}

	cmd.Root().Metadata[appConfigKey] = &appConfig{
		Dir:    dir,
		DBPath: dbPath,
		Debug:  cmd.Bool(flagDebug),
		Format: format,
		Config: c,
		DB:     db,
	}
	return ctx, nil
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func encode(cmd *cli.Command, v any) error {
	w := writer(cmd)
	if f, ok := cmd.Root().Metadata[appConfigKey].(*appConfig); ok && f.Format == formatYAML {
		return yaml.NewEncoder(w).Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

var errMissingFlag = errors.New("missing required flag")

func requireString(cmd *cli.Command, name string) (string, error) {
	v := cmd.String(name)
	if v == "" {
		return "", fmt.Errorf("%w: --%s", errMissingFlag, name)
	}
	return v, nil
}
