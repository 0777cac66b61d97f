// Package config provides configuration management for walletlink.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/walletlink/internal/fileutil"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// Provider kinds understood by the provider host.
const (
	ProviderNode     = "node"
	ProviderHDWallet = "hdwallet"
	ProviderNone     = "none"
)

// Config represents the application configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Home     string         `yaml:"home"`
	Provider ProviderConfig `yaml:"provider"`
	Session  SessionConfig  `yaml:"session"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProviderConfig selects and configures the wallet provider capability.
type ProviderConfig struct {
	Kind      string  `yaml:"kind"`
	RPC       string  `yaml:"rpc"`
	ChainID   int64   `yaml:"chain_id"` // 0 disables the chain guard
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	Vault     string  `yaml:"vault"`
	Accounts  int     `yaml:"accounts"`
}

// SessionConfig defines wallet session timing.
type SessionConfig struct {
	ConnectTimeoutSeconds  int `json:"connect_timeout_seconds"  yaml:"connect_timeout_seconds"`
	QueryTimeoutSeconds    int `json:"query_timeout_seconds"    yaml:"query_timeout_seconds"`
	RefreshIntervalSeconds int `json:"refresh_interval_seconds" yaml:"refresh_interval_seconds"`
	RefreshAttempts        int `json:"refresh_attempts"         yaml:"refresh_attempts"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
// Missing keys keep their default values.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, walleterr.WithCause(walleterr.ErrConfigNotFound, err)
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, walleterr.WithCause(walleterr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fileutil.WriteFile(path, data, 0o600, 0o750)
}

// Validate checks the configuration for values the provider host cannot use.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderNode, ProviderHDWallet:
		if c.Provider.RPC == "" {
			return walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{"provider.rpc": "required"})
		}
		u, err := url.Parse(c.Provider.RPC)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{"provider.rpc": c.Provider.RPC})
		}
	}

	if c.Provider.Kind == ProviderHDWallet && (c.Provider.Accounts < 1 || c.Provider.Accounts > MaxAccounts) {
		return walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{
			"provider.accounts": fmt.Sprintf("must be between 1 and %d", MaxAccounts),
		})
	}

	if c.Provider.RateLimit < 0 || c.Provider.RateBurst < 0 {
		return walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{"provider.rate_limit": "must not be negative"})
	}

	return nil
}

// SetHome moves the configuration to home. The vault and log file follow it
// unless they were configured explicitly.
func (c *Config) SetHome(home string) {
	defaults := Defaults()
	if c.Provider.Vault == defaults.Provider.Vault {
		c.Provider.Vault = filepath.Join(home, DefaultVaultFile)
	}
	if c.Logging.File == defaults.Logging.File {
		c.Logging.File = filepath.Join(home, DefaultLogFile)
	}
	c.Home = home
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GetProviderKind returns the configured provider kind.
func (c *Config) GetProviderKind() string {
	return c.Provider.Kind
}

// GetRPC returns the JSON-RPC endpoint URL.
func (c *Config) GetRPC() string {
	return c.Provider.RPC
}

// GetVaultPath returns the vault path with the home directory expanded.
func (c *Config) GetVaultPath() string {
	return ExpandPath(c.Provider.Vault)
}

// ConnectTimeout returns the connect timeout, or 0 when disabled.
func (c *Config) ConnectTimeout() time.Duration {
	return seconds(c.Session.ConnectTimeoutSeconds)
}

// QueryTimeout returns the balance query timeout, or 0 when disabled.
func (c *Config) QueryTimeout() time.Duration {
	return seconds(c.Session.QueryTimeoutSeconds)
}

// RefreshInterval returns the polling interval used by watch.
func (c *Config) RefreshInterval() time.Duration {
	return seconds(c.Session.RefreshIntervalSeconds)
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default walletlink home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletlink"
	}
	return filepath.Join(home, ".walletlink")
}

// ExpandPath expands a leading "~/" to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
