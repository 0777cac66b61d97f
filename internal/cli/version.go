package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/version"
)

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := buildInfo.Resolve()
		if formatter.IsJSON() {
			return formatter.Print(struct {
				version.Info

				Platform string `json:"platform"`
			}{info, version.Platform()})
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "walletlink %s\n%s\n", info, version.Platform())
		return err
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
}
