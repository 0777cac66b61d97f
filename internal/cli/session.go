package cli

import (
	"fmt"
	"os"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/controller"
	"github.com/mrz1836/walletlink/internal/host"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/rpcutil"
	"github.com/mrz1836/walletlink/internal/session"
)

// newHostFn builds the provider host from configuration. Tests replace it.
//
//nolint:gochecknoglobals // Function variable allows the provider host to be mocked in tests
var newHostFn = func(c *config.Config) provider.Host {
	opts := host.Options{
		Logger:  logger.With("provider"),
		Metrics: metrics.Global,
	}
	if isTerminalFn() {
		opts.Prompter = terminalPrompter{}
	}
	return host.New(c.Provider, opts)
}

// mountable bundles a session with the controller that drives it.
type mountable struct {
	session    *session.WalletSession
	controller *controller.Controller
}

// newMountable builds a session for the configured provider and a controller
// rendering to the global formatter.
func newMountable(c *config.Config) *mountable {
	s := session.New(newHostFn(c), session.Options{
		ConnectTimeout: c.ConnectTimeout(),
		QueryTimeout:   c.QueryTimeout(),
		Logger:         logger.With("session"),
		Metrics:        metrics.Global,
	})

	retry := rpcutil.DefaultRetryConfig()
	retry.MaxAttempts = max(c.Session.RefreshAttempts, 1)

	ctrl := controller.New(s, controller.NewStateView(formatter), controller.Options{
		Retry:  retry,
		Logger: logger.With("controller"),
	})

	logger.Debug("session %s: provider %s at %s", s.ID(), c.Provider.Kind, config.RedactURL(c.Provider.RPC))
	return &mountable{session: s, controller: ctrl}
}

// printMetrics writes the metrics snapshot to stderr in verbose mode.
func printMetrics() {
	if !cfg.IsVerbose() {
		return
	}
	snap := metrics.Global.Snapshot()
	_, _ = fmt.Fprintf(os.Stderr,
		"connects: %d ok / %d rejected / %d failed, balance queries: %d (%d failed), rpc calls: %d (avg %.1fms)\n",
		snap.ConnectsSucceeded, snap.ConnectsRejected, snap.ConnectsFailed,
		snap.BalanceQueries, snap.BalanceQueryFailures,
		snap.RPCCallsTotal, snap.RPCLatencyAvgMs)
}
