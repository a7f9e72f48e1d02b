package cli

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/axintera/axctl/pkg/chain"
	"github.com/axintera/axctl/pkg/config"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v3"
	"github.com/zalando/go-keyring"
)

const (
	keyFileName    = "deploy_wallet"
	keyringService = "axctl"
	keyringUser    = "deploy_wallet"
)

func newKeyCmd() *cli.Command {
	return &cli.Command{
		Name:            "key",
		Usage:           "Manage the funding account key",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:   "set",
				Usage:  "Store the key in the OS keychain (file fallback)",
				Flags:  []cli.Flag{keyFlag()},
				Action: cmdKeySet,
			},
			{
				Name:   "show",
				Usage:  "Print the address of the stored key",
				Flags:  []cli.Flag{keyFlag()},
				Action: cmdKeyShow,
			},
			{
				Name:   "delete",
				Usage:  "Remove the stored key",
				Action: cmdKeyDelete,
			},
		},
	}
}

type keyInfo struct {
	Address string `json:"address" yaml:"address"`
	Source  string `json:"source" yaml:"source"`
}

func cmdKeySet(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	raw, err := requireString(cmd, flagKey)
	if err != nil {
		return err
	}
	key, err := chain.ParseKey(raw)
	if err != nil {
		return err
	}

	source, err := saveKey(cfg.Dir, strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return fmt.Errorf("saving key: %w", err)
	}
	return encode(cmd, &keyInfo{Address: crypto.PubkeyToAddress(key.PublicKey).Hex(), Source: source})
}

func cmdKeyShow(_ context.Context, cmd *cli.Command) error {
	key, source, err := resolveKey(cmd)
	if err != nil {
		return err
	}
	return encode(cmd, &keyInfo{Address: crypto.PubkeyToAddress(key.PublicKey).Hex(), Source: source})
}

func cmdKeyDelete(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Warn("keychain unavailable", "error", err)
	}
	if err := os.Remove(keyFilePath(cfg.Dir)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing key file: %w", err)
	}
	slog.Info("key deleted")
	return nil
}

// resolveKey returns the funding key from the flag or env var, then the
// keychain, then the key file.
func resolveKey(cmd *cli.Command) (*ecdsa.PrivateKey, string, error) {
	if raw := cmd.String(flagKey); raw != "" {
		key, err := chain.ParseKey(raw)
		return key, "flag", err
	}

	raw, source, err := getKey(getConfig(cmd).Dir)
	if err != nil {
		return nil, "", fmt.Errorf("%w: set --key, %s or run `axctl key set`", chain.ErrNoKey, config.DeployKeyEnvVar)
	}
	key, err := chain.ParseKey(raw)
	return key, source, err
}

func saveKey(dir, key string) (string, error) {
	if err := keyring.Set(keyringService, keyringUser, key); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return "file", saveKeyFile(dir, key)
	}

	// the keychain wins, drop any old file copy
	os.Remove(keyFilePath(dir))
	return "keychain", nil
}

func getKey(dir string) (string, string, error) {
	key, err := keyring.Get(keyringService, keyringUser)
	if err == nil && key != "" {
		return key, "keychain", nil
	}

	key, err = getKeyFile(dir)
	if err != nil {
		return "", "", err
	}
	return key, "file", nil
}

func keyFilePath(dir string) string {
	return filepath.Join(dir, keyFileName)
}

func saveKeyFile(dir, key string) error {
	return os.WriteFile(keyFilePath(dir), []byte(key), 0600)
}

func getKeyFile(dir string) (string, error) {
	p := keyFilePath(dir)
	b, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("reading key file %s: %w", p, err)
	}
	return strings.TrimSpace(string(b)), nil
}
