// Package host resolves the configured wallet provider capability.
package host

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/provider/hdwallet"
	"github.com/mrz1836/walletlink/internal/provider/node"
	"github.com/mrz1836/walletlink/internal/rpcutil"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// maxKindDistance is the largest edit distance for a provider kind suggestion.
const maxKindDistance = 3

// Options carries the collaborators providers are built with.
type Options struct {
	// Prompter asks for the vault passphrase. Without one the hdwallet kind is unavailable.
	Prompter   hdwallet.Prompter
	Limiter    *rpcutil.RateLimiter
	Metrics    *metrics.Metrics
	Logger     provider.Logger
	HTTPClient *http.Client
}

// Compile-time interface check
var _ provider.Host = (*Host)(nil)

// Host builds a fresh provider for every connection attempt from the provider config.
type Host struct {
	cfg  config.ProviderConfig
	opts Options
}

// New creates a host for cfg. The rate limiter is shared by every provider it builds.
func New(cfg config.ProviderConfig, opts Options) *Host {
	if opts.Limiter == nil {
		opts.Limiter = rpcutil.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Global
	}
	if opts.Logger == nil {
		opts.Logger = provider.NopLogger()
	}
	return &Host{cfg: cfg, opts: opts}
}

// Kinds returns the provider kinds a host can build.
func Kinds() []string {
	return []string{config.ProviderNode, config.ProviderHDWallet, config.ProviderNone}
}

// Provider returns a new capability, or an error matching ErrProviderUnavailable.
func (h *Host) Provider(ctx context.Context) (provider.Provider, error) {
	kind := strings.ToLower(strings.TrimSpace(h.cfg.Kind))

	switch kind {
	case config.ProviderNode:
		return h.dialNode(ctx)

	case config.ProviderHDWallet:
		vault := hdwallet.NewVault(config.ExpandPath(h.cfg.Vault))
		if !vault.Exists() {
			return nil, walleterr.WithDetails(
				walleterr.WithSuggestion(walleterr.ErrProviderUnavailable, "create a vault with: walletlink vault create"),
				map[string]string{"vault": vault.Path()},
			)
		}
		if h.opts.Prompter == nil {
			return nil, walleterr.WithSuggestion(walleterr.ErrProviderUnavailable,
				"the hdwallet provider needs an interactive terminal to unlock the vault")
		}

		balances, err := h.dialNode(ctx)
		if err != nil {
			return nil, err
		}
		return hdwallet.New(vault, h.opts.Prompter, balances, hdwallet.Options{
			Accounts: h.cfg.Accounts,
			Logger:   h.opts.Logger,
		}), nil

	case config.ProviderNone, "":
		return nil, walleterr.ErrProviderUnavailable

	default:
		err := walleterr.WithDetails(walleterr.ErrProviderUnavailable, map[string]string{"kind": kind})
		if s := SuggestKind(kind); s != "" {
			return nil, walleterr.WithSuggestion(err, fmt.Sprintf("unknown provider kind %q, did you mean %q?", kind, s))
		}
		return nil, walleterr.WithSuggestion(err,
			fmt.Sprintf("unknown provider kind %q, expected one of: %s", kind, strings.Join(Kinds(), ", ")))
	}
}

func (h *Host) dialNode(ctx context.Context) (*node.Provider, error) {
	return node.Dial(ctx, h.cfg.RPC, node.Options{
		ChainID:    h.cfg.ChainID,
		Limiter:    h.opts.Limiter,
		Metrics:    h.opts.Metrics,
		Logger:     h.opts.Logger,
		HTTPClient: h.opts.HTTPClient,
	})
}

// SuggestKind returns the known provider kind closest to kind, or "".
func SuggestKind(kind string) string {
	best, bestDist := "", maxKindDistance+1
	for _, k := range Kinds() {
		if d := levenshtein.ComputeDistance(kind, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}
