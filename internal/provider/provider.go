// Package provider defines the wallet provider capability a session connects through.
//
// A capability is obtained from a Host for each connection attempt and is owned by
// the session that requested it until that session disconnects.
package provider

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// Account identifies an account within its provider. Ref is provider specific:
// a node provider uses the address, an HD provider the derivation path.
type Account struct {
	Ref string
}

// Provider is the wallet provider capability.
type Provider interface {
	// RequestAccounts asks for authorization and returns the authorized accounts.
	// It may block on user interaction.
	RequestAccounts(ctx context.Context) ([]Account, error)

	// Address returns the checksummed address for an authorized account.
	Address(acct Account) (string, error)

	// Balance returns the balance of address in minor units (wei).
	Balance(ctx context.Context, address string) (*big.Int, error)

	// Close releases the capability. It is safe to call more than once.
	Close() error
}

// ConcurrentQuerier is implemented by providers that declare whether parallel
// Balance calls are safe.
type ConcurrentQuerier interface {
	ConcurrentQueries() bool
}

// SupportsConcurrentQueries reports whether p allows parallel balance queries.
// Providers that do not say are assumed not to.
func SupportsConcurrentQueries(p Provider) bool {
	if cq, ok := p.(ConcurrentQuerier); ok {
		return cq.ConcurrentQueries()
	}
	return false
}

// Host supplies provider capabilities.
type Host interface {
	// Provider returns a fresh capability, or an error matching
	// errors.ErrProviderUnavailable when the host has none.
	Provider(ctx context.Context) (Provider, error)
}

// HostFunc adapts a function to the Host interface.
type HostFunc func(ctx context.Context) (Provider, error)

// Provider calls f(ctx).
func (f HostFunc) Provider(ctx context.Context) (Provider, error) {
	return f(ctx)
}

// NoHost is a host environment that exposes no wallet capability.
//
//nolint:gochecknoglobals // Stateless host value
var NoHost Host = HostFunc(func(context.Context) (Provider, error) {
	return nil, walleterr.ErrProviderUnavailable
})

// NormalizeAddress validates a hex address and returns its EIP-55 checksummed form.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{"address": address})
	}
	if !common.IsHexAddress(address) {
		return "", walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{"address": address})
	}
	return common.HexToAddress(address).Hex(), nil
}

// ClassifyConnectError maps an error from a connection attempt onto the connection
// error taxonomy: unavailable, rejected, or a generic provider error.
func ClassifyConnectError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, walleterr.ErrProviderUnavailable),
		errors.Is(err, walleterr.ErrConnectionRejected),
		errors.Is(err, walleterr.ErrProviderError):
		return err
	default:
		return walleterr.WithCause(walleterr.ErrProviderError, err)
	}
}

// Logger is the logging surface providers write to. *config.Logger satisfies it.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}
