// Package node implements a wallet provider backed by an Ethereum JSON-RPC node.
package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/rpcutil"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// JSON-RPC and EIP-1193 error codes the provider interprets.
const (
	codeMethodNotFound   = -32601
	codeUserRejected     = 4001
	codeUnauthorized     = 4100
	defaultClientTimeout = 30 * time.Second
)

var (
	// ErrEndpointRequired indicates no RPC endpoint was configured.
	ErrEndpointRequired = &walleterr.WalletError{
		Code:     "NODE_ENDPOINT_REQUIRED",
		Message:  "RPC endpoint is required",
		ExitCode: walleterr.ExitInput,
	}

	// ErrChainMismatch indicates the node serves a different chain than configured.
	ErrChainMismatch = &walleterr.WalletError{
		Code:     "NODE_CHAIN_MISMATCH",
		Message:  "node reports an unexpected chain ID",
		ExitCode: walleterr.ExitUnavailable,
	}
)

// Options configures a node provider.
type Options struct {
	// ChainID is the expected chain ID. Zero accepts any chain.
	ChainID int64
	// Limiter throttles calls per endpoint. Nil disables limiting.
	Limiter *rpcutil.RateLimiter
	// Metrics receives per-call latency. Nil uses metrics.Global.
	Metrics *metrics.Metrics
	// Logger receives debug output. Nil discards it.
	Logger provider.Logger
	// HTTPClient overrides the HTTP client used for the transport.
	HTTPClient *http.Client
}

// Compile-time interface checks
var (
	_ provider.Provider          = (*Provider)(nil)
	_ provider.ConcurrentQuerier = (*Provider)(nil)
)

// Provider is a wallet capability served by a JSON-RPC node. Authorization is
// eth_requestAccounts; nodes that do not implement it fall back to eth_accounts.
type Provider struct {
	endpoint string
	opts     Options
	rpc      *rpc.Client
	eth      *ethclient.Client

	closeOnce sync.Once
}

// Dial creates a provider for endpoint. HTTP transports connect lazily, so Dial
// does not contact the node.
func Dial(ctx context.Context, endpoint string, opts Options) (*Provider, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.Global
	}
	if opts.Logger == nil {
		opts.Logger = provider.NopLogger()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultClientTimeout}
	}

	client, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(opts.HTTPClient))
	if err != nil {
		return nil, walleterr.WithDetails(
			walleterr.WithCause(walleterr.ErrProviderError, err),
			map[string]string{"endpoint": endpoint},
		)
	}

	return &Provider{
		endpoint: endpoint,
		opts:     opts,
		rpc:      client,
		eth:      ethclient.NewClient(client),
	}, nil
}

// Endpoint returns the RPC endpoint URL.
func (p *Provider) Endpoint() string {
	return p.endpoint
}

// ConcurrentQueries reports that the node accepts parallel balance queries.
func (p *Provider) ConcurrentQueries() bool {
	return true
}

// RequestAccounts checks the chain ID when one is configured, then requests account access.
func (p *Provider) RequestAccounts(ctx context.Context) ([]provider.Account, error) {
	if p.opts.ChainID != 0 {
		if err := p.checkChain(ctx); err != nil {
			return nil, err
		}
	}

	var addrs []string
	err := p.call(ctx, &addrs, "eth_requestAccounts")
	if rpcErrorCode(err) == codeMethodNotFound {
		p.opts.Logger.Debug("eth_requestAccounts not supported by %s, using eth_accounts", p.endpoint)
		addrs = nil
		err = p.call(ctx, &addrs, "eth_accounts")
	}
	if err != nil {
		return nil, classifyAuthError(err)
	}

	accounts := make([]provider.Account, 0, len(addrs))
	for _, a := range addrs {
		normalized, normErr := provider.NormalizeAddress(a)
		if normErr != nil {
			return nil, walleterr.WithCause(walleterr.ErrProviderError, normErr)
		}
		accounts = append(accounts, provider.Account{Ref: normalized})
	}

	p.opts.Logger.Debug("node %s authorized %d account(s)", p.endpoint, len(accounts))
	return accounts, nil
}

// Address returns the checksummed address of an account.
func (p *Provider) Address(acct provider.Account) (string, error) {
	return provider.NormalizeAddress(acct.Ref)
}

// Balance returns the latest balance of address in wei.
func (p *Provider) Balance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{"address": address})
	}

	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	balance, err := p.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	p.opts.Metrics.RecordRPCCall(time.Since(start), err)
	if err != nil {
		return nil, walleterr.WithCause(walleterr.ErrProviderError, fmt.Errorf("eth_getBalance: %w", markTransient(err)))
	}

	return balance, nil
}

// Close closes the underlying RPC client.
func (p *Provider) Close() error {
	p.closeOnce.Do(p.rpc.Close)
	return nil
}

func (p *Provider) checkChain(ctx context.Context) error {
	if err := p.wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	id, err := p.eth.ChainID(ctx)
	p.opts.Metrics.RecordRPCCall(time.Since(start), err)
	if err != nil {
		return walleterr.WithCause(walleterr.ErrProviderError, fmt.Errorf("eth_chainId: %w", err))
	}

	if id.Cmp(big.NewInt(p.opts.ChainID)) != 0 {
		return walleterr.WithCause(walleterr.ErrProviderError, walleterr.WithDetails(ErrChainMismatch, map[string]string{
			"expected": fmt.Sprintf("%d", p.opts.ChainID),
			"actual":   id.String(),
		}))
	}
	return nil
}

func (p *Provider) call(ctx context.Context, result any, method string, args ...any) error {
	if err := p.wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	err := p.rpc.CallContext(ctx, result, method, args...)
	p.opts.Metrics.RecordRPCCall(time.Since(start), err)
	return err
}

func (p *Provider) wait(ctx context.Context) error {
	if p.opts.Limiter == nil {
		return nil
	}
	if err := p.opts.Limiter.Wait(ctx, p.endpoint); err != nil {
		return walleterr.WithCause(walleterr.ErrProviderError, fmt.Errorf("rate limit: %w", err))
	}
	return nil
}

// markTransient flags failures worth retrying: throttling, server errors and
// requests that never got an answer. JSON-RPC errors returned by the node are
// left as they are.
func markTransient(err error) error {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError {
			return rpcutil.WrapRetryable(err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return rpcutil.WrapRetryable(err)
	}
	return err
}

// classifyAuthError maps an account request failure onto rejected or provider error.
func classifyAuthError(err error) error {
	switch rpcErrorCode(err) {
	case codeUserRejected, codeUnauthorized:
		return walleterr.WithCause(walleterr.ErrConnectionRejected, err)
	}
	return provider.ClassifyConnectError(err)
}

// rpcErrorCode returns the JSON-RPC error code carried by err, or 0.
func rpcErrorCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}
