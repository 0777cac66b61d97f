package cli

import (
	"github.com/spf13/cobra"
)

// connectCmd connects once and prints the session state.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the wallet and show its balance",
	Long: `Connect to the configured wallet provider, request account access, fetch the
balance of the authorized address, print it and disconnect.

Example:
  walletlink connect
  walletlink connect --rpc http://127.0.0.1:8545 -o json
  walletlink connect --provider hdwallet`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	m := newMountable(c)
	defer func() {
		if err := m.controller.Unmount(); err != nil {
			logger.Error("closing session: %v", err)
		}
		printMetrics()
	}()

	_, err = m.controller.Mount(commandContext(cmd))
	return err
}
