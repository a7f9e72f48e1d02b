package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FileName = "config.yaml"
	dirMode  = 0700
	fileMode = 0600

	// DeployKeyEnvVar holds the funding account used by every network.
	DeployKeyEnvVar = "DEPLOY_WALLET_1"

	NetworkFlow        = "flow"
	NetworkFlowTestnet = "flowTestnet"

	// blockscout does not check the key, any non-empty value is accepted
	placeholderAPIKey = "abc"

	epochSecondsDefault   = 3600
	recalcIntervalDefault = time.Hour
	wilsonZDefault        = 1.96
	serverPortDefault     = 8000
	rateLimitRPSDefault   = 10
	rateLimitBurstDefault = 20
	artifactsDirDefault   = "artifacts"
)

var (
	ErrUnknownNetwork = errors.New("unknown network")
)

// Explorer is the contract-source verification endpoint of a network.
type Explorer struct {
	APIURL     string `yaml:"api_url" json:"api_url"`
	BrowserURL string `yaml:"browser_url" json:"browser_url"`
	APIKey     string `yaml:"api_key" json:"api_key"`
}

// Network is a remote EVM endpoint.
type Network struct {
	Name     string    `yaml:"name" json:"name"`
	ChainID  uint64    `yaml:"chain_id" json:"chain_id"`
	URL      string    `yaml:"url" json:"url"`
	Explorer *Explorer `yaml:"explorer,omitempty" json:"explorer,omitempty"`
}

// Validate checks the network has enough to dial.
func (n *Network) Validate() error {
	if n == nil {
		return errors.New("network required")
	}
	if n.ChainID == 0 {
		return fmt.Errorf("network %s: chain_id required", n.Name)
	}
	if n.URL == "" {
		return fmt.Errorf("network %s: url required", n.Name)
	}
	return nil
}

type Server struct {
	Port           int     `yaml:"port" json:"port"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// Gate restricts score publishing to holders of an NFT collection.
// An empty contract disables the gate.
type Gate struct {
	NFTContract string `yaml:"nft_contract,omitempty" json:"nft_contract,omitempty"`
	Network     string `yaml:"network,omitempty" json:"network,omitempty"`
	Mock        bool   `yaml:"mock,omitempty" json:"mock,omitempty"`
}

// Config represents app config object.
type Config struct {
	Networks       map[string]*Network `yaml:"networks" json:"networks"`
	Artifacts      string              `yaml:"artifacts" json:"artifacts"`
	EpochSeconds   uint64              `yaml:"epoch_seconds" json:"epoch_seconds"`
	RecalcInterval time.Duration       `yaml:"recalc_interval" json:"recalc_interval"`
	WilsonZ        float64             `yaml:"wilson_z" json:"wilson_z"`
	Server         Server              `yaml:"server" json:"server"`
	Gate           Gate                `yaml:"gate" json:"gate"`
	RPCToken       string              `yaml:"rpc_token,omitempty" json:"-"`
}

// DefaultNetworks returns the Flow EVM mainnet and testnet definitions.
func DefaultNetworks() map[string]*Network {
	return map[string]*Network{
		NetworkFlow: {
			Name:    NetworkFlow,
			ChainID: 747,
			URL:     "https://mainnet.evm.nodes.onflow.org",
			Explorer: &Explorer{
				APIURL:     "https://evm.flowscan.io/api",
				BrowserURL: "https://evm.flowscan.io/",
				APIKey:     placeholderAPIKey,
			},
		},
		NetworkFlowTestnet: {
			Name:    NetworkFlowTestnet,
			ChainID: 545,
			URL:     "https://testnet.evm.nodes.onflow.org",
			Explorer: &Explorer{
				APIURL:     "https://evm-testnet.flowscan.io/api",
				BrowserURL: "https://evm-testnet.flowscan.io/",
				APIKey:     placeholderAPIKey,
			},
		},
	}
}

// Default returns the config written on first run.
func Default() *Config {
	return &Config{
		Networks:       DefaultNetworks(),
		Artifacts:      artifactsDirDefault,
		EpochSeconds:   epochSecondsDefault,
		RecalcInterval: recalcIntervalDefault,
		WilsonZ:        wilsonZDefault,
		Server: Server{
			Port:           serverPortDefault,
			RateLimitRPS:   rateLimitRPSDefault,
			RateLimitBurst: rateLimitBurstDefault,
		},
	}
}

// Network returns the named network or ErrUnknownNetwork.
func (c *Config) Network(name string) (*Network, error) {
	if c == nil {
		return nil, errors.New("config required")
	}
	n, ok := c.Networks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownNetwork, name, strings.Join(c.NetworkNames(), ", "))
	}
	if n.Name == "" {
		n.Name = name
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// NetworkNames returns the configured network names in sorted order.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for k := range c.Networks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// applyDefaults refills the values where zero is invalid. Load decodes over
// Default, so an explicit zero epoch length or rate limit is kept.
func (c *Config) applyDefaults() {
	d := Default()
	if len(c.Networks) == 0 {
		c.Networks = d.Networks
	}
	for name, n := range c.Networks {
		if n != nil && n.Name == "" {
			n.Name = name
		}
	}
	if c.Artifacts == "" {
		c.Artifacts = d.Artifacts
	}
	if c.RecalcInterval <= 0 {
		c.RecalcInterval = d.RecalcInterval
	}
	if c.WilsonZ <= 0 {
		c.WilsonZ = d.WilsonZ
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
}

func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, FileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// Load reads the config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	// networks are replaced as a whole, not merged into the defaults
	c := Default()
	c.Networks = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	c.applyDefaults()
	return c, nil
}

// ReadOrCreate reads app config from directory or creates a new one.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
		}
	}

	path := filepath.Join(dirPath, FileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("writing default config", "path", path)
		if err := Save(dirPath, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	return Load(path)
}

// GetOrCreateHomeDir returns the app directory under the user home.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
