package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// watchCmd keeps a session open and refreshes the balance periodically.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect and keep the balance up to date",
	Long: `Connect to the wallet provider and refresh the balance on an interval until
interrupted. Every change of the session is printed.

Example:
  walletlink watch
  walletlink watch --interval 5s -o json`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var watchInterval time.Duration

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "refresh interval (default: session.refresh_interval_seconds)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	interval := watchInterval
	if interval <= 0 {
		interval = c.RefreshInterval()
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := newMountable(c)
	defer func() {
		if err := m.controller.Unmount(); err != nil {
			logger.Error("closing session: %v", err)
		}
		printMetrics()
	}()

	if _, err := m.controller.Mount(ctx); err != nil {
		// A failed first refresh is retried on the next tick.
		if !errors.Is(err, walleterr.ErrBalanceQueryFailed) {
			return err
		}
	}

	return m.controller.Run(ctx, interval)
}
