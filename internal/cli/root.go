// Package cli implements the walletlink command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/version"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool
	providerKind string
	rpcURL       string

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	cfgErr    error
	logger    *config.Logger
	formatter *output.Formatter
	buildInfo version.Info
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "walletlink",
	Short: "Connect to a wallet and watch its balance",
	Long: `walletlink connects to a wallet provider, asks it for account access and
shows the authorized address with its balance.

Providers:
  node      an Ethereum JSON-RPC node that manages accounts (eth_requestAccounts)
  hdwallet  a local BIP39 wallet kept in an encrypted vault, read through a node

Example:
  walletlink connect
  walletlink watch --interval 30s
  walletlink vault create --words 24
  walletlink connect --provider hdwallet -o json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command for the given build and prints any error.
func Execute(info version.Info) error {
	buildInfo = info
	rootCmd.Version = info.String()

	err := rootCmd.Execute()
	if err != nil {
		formatErr(os.Stderr, err)
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return walleterr.ExitCode(err)
}

func formatErr(w io.Writer, err error) {
	format := output.FormatText
	if formatter != nil {
		format = formatter.Format()
	}
	_ = output.FormatError(w, err, format)
}

// initGlobals loads configuration and sets up the logger and formatter.
// A missing config file means defaults; an unreadable one is kept in cfgErr
// for the commands that depend on it.
func initGlobals(cmd *cobra.Command) error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfgErr = nil
	cfg, err = config.Load(config.Path(home))
	if err != nil {
		if !errors.Is(err, walleterr.ErrConfigNotFound) {
			cfgErr = err
		}
		cfg = config.Defaults()
	}
	cfg.SetHome(home)

	config.ApplyEnvironment(cfg)
	cfg.Home = home

	// Flags win over file and environment
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}
	if providerKind != "" {
		cfg.Provider.Kind = providerKind
	}
	if rpcURL != "" {
		cfg.Provider.RPC = config.SanitizeURL(rpcURL)
	}

	logger, err = config.NewLogger(config.ParseLogLevel(cfg.Logging.Level), config.ExpandPath(cfg.Logging.File))
	if err != nil {
		logger = config.NullLogger()
	}

	if !output.ValidFormat(cfg.Output.DefaultFormat) {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{
			"output": cfg.Output.DefaultFormat + " (expected text, json or auto)",
		})
	}
	formatter = output.NewFormatter(output.ParseFormat(cfg.Output.DefaultFormat), cmd.OutOrStdout())

	return nil
}

// requireConfig returns the loaded configuration once it is known to be usable.
func requireConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, walleterr.WithSuggestion(cfgErr,
			"fix "+config.Path(cfg.Home)+" or recreate it with: walletlink config init --force")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// commandContext returns the command context, or a background context outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "walletlink data directory (default: ~/.walletlink)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&providerKind, "provider", "", "wallet provider: node, hdwallet, none")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc", "", "JSON-RPC endpoint URL")
}
