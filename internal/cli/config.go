package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and initialize walletlink configuration.`,
}

// configInitCmd writes the default configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.walletlink/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.

Example:
  walletlink config init
  walletlink config init --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd shows the effective configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: the config file merged with
environment variables and flags. Credentials in the RPC URL are hidden.

Example:
  walletlink config show
  walletlink config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return walleterr.WithSuggestion(
			walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"path": configPath}),
			"configuration already exists; use --force to overwrite",
		)
	}

	defaults := config.Defaults()
	defaults.Home = cfg.Home
	if err := config.Save(defaults, configPath); err != nil {
		return walleterr.Wrap(err, "writing config file %s", configPath)
	}

	if formatter.IsJSON() {
		return output.FormatSuccess(cmd.OutOrStdout(), "configuration initialized at "+configPath, output.FormatJSON)
	}

	w := cmd.OutOrStdout()
	output.Successf(w, "Configuration initialized at %s", configPath)
	_, _ = fmt.Fprintln(w, "\nEdit this file to configure:")
	_, _ = fmt.Fprintln(w, "  - provider.kind: node, hdwallet or none")
	_, _ = fmt.Fprintln(w, "  - provider.rpc: your Ethereum JSON-RPC endpoint")
	_, _ = fmt.Fprintln(w, "  - session.refresh_interval_seconds: how often watch refreshes")
	_, _ = fmt.Fprintln(w, "  - logging.level: off, error or debug")
	return nil
}

// configView is the displayed form of the configuration.
type configView struct {
	Home     string `json:"home"`
	File     string `json:"file"`
	Provider struct {
		Kind      string  `json:"kind"`
		RPC       string  `json:"rpc"`
		ChainID   int64   `json:"chain_id,omitempty"`
		RateLimit float64 `json:"rate_limit"`
		RateBurst int     `json:"rate_burst"`
		Vault     string  `json:"vault"`
		Accounts  int     `json:"accounts"`
	} `json:"provider"`
	Session config.SessionConfig `json:"session"`
	Output  struct {
		DefaultFormat string `json:"default_format"`
		Verbose       bool   `json:"verbose"`
	} `json:"output"`
	Logging struct {
		Level string `json:"level"`
		File  string `json:"file"`
	} `json:"logging"`
}

func newConfigView(c *config.Config) configView {
	var v configView
	v.Home = c.Home
	v.File = config.Path(c.Home)
	v.Provider.Kind = c.Provider.Kind
	v.Provider.RPC = config.RedactURL(c.Provider.RPC)
	v.Provider.ChainID = c.Provider.ChainID
	v.Provider.RateLimit = c.Provider.RateLimit
	v.Provider.RateBurst = c.Provider.RateBurst
	v.Provider.Vault = c.GetVaultPath()
	v.Provider.Accounts = c.Provider.Accounts
	v.Session = c.Session
	v.Output.DefaultFormat = c.Output.DefaultFormat
	v.Output.Verbose = c.Output.Verbose
	v.Logging.Level = c.Logging.Level
	v.Logging.File = c.Logging.File
	return v
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if cfgErr != nil {
		return cfgErr
	}

	v := newConfigView(cfg)
	if formatter.IsJSON() {
		return output.NewFormatter(output.FormatJSON, cmd.OutOrStdout()).Print(v)
	}
	return displayConfigText(cmd.OutOrStdout(), v)
}

func displayConfigText(w io.Writer, v configView) error {
	chainID := "any"
	if v.Provider.ChainID != 0 {
		chainID = strconv.FormatInt(v.Provider.ChainID, 10)
	}

	return output.NewFields().
		Add("Config file", v.File).
		Add("Provider", v.Provider.Kind).
		Add("RPC", v.Provider.RPC).
		Add("Chain ID", chainID).
		Add("Rate limit", fmt.Sprintf("%g/s (burst %d)", v.Provider.RateLimit, v.Provider.RateBurst)).
		Add("Vault", v.Provider.Vault).
		Add("Accounts", strconv.Itoa(v.Provider.Accounts)).
		Add("Connect timeout", fmt.Sprintf("%ds", v.Session.ConnectTimeoutSeconds)).
		Add("Query timeout", fmt.Sprintf("%ds", v.Session.QueryTimeoutSeconds)).
		Add("Refresh every", fmt.Sprintf("%ds", v.Session.RefreshIntervalSeconds)).
		Add("Refresh attempts", strconv.Itoa(v.Session.RefreshAttempts)).
		Add("Output", v.Output.DefaultFormat).
		Add("Log level", v.Logging.Level).
		Add("Log file", v.Logging.File).
		Render(w)
}
