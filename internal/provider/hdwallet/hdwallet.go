// Package hdwallet implements a wallet provider backed by a local BIP39 mnemonic
// kept in an age-encrypted vault. Authorization is a passphrase prompt; balances
// are read through a separate balance source, usually a node provider.
package hdwallet

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/mrz1836/walletlink/internal/provider"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// ErrPromptDeclined is returned by a Prompter when the user declines to answer.
var ErrPromptDeclined = errors.New("prompt declined")

// Prompter asks the user for the vault passphrase.
type Prompter interface {
	Passphrase(ctx context.Context, prompt string) (string, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, prompt string) (string, error)

// Passphrase calls f.
func (f PrompterFunc) Passphrase(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// BalanceSource answers balance queries for derived addresses.
type BalanceSource interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
	Close() error
}

// Options configures the HD wallet provider.
type Options struct {
	// Accounts is how many addresses to derive; values below 1 derive one.
	Accounts int
	Logger   provider.Logger
}

// Compile-time interface checks
var (
	_ provider.Provider          = (*Provider)(nil)
	_ provider.ConcurrentQuerier = (*Provider)(nil)
)

// Provider is an HD wallet capability.
type Provider struct {
	vault    *Vault
	prompter Prompter
	balances BalanceSource
	accounts int
	logger   provider.Logger

	mu      sync.Mutex
	derived map[string]string // derivation path -> address
}

// New creates an HD wallet provider.
func New(vault *Vault, prompter Prompter, balances BalanceSource, opts Options) *Provider {
	if opts.Accounts < 1 {
		opts.Accounts = 1
	}
	if opts.Logger == nil {
		opts.Logger = provider.NopLogger()
	}
	return &Provider{
		vault:    vault,
		prompter: prompter,
		balances: balances,
		accounts: opts.Accounts,
		logger:   opts.Logger,
		derived:  make(map[string]string),
	}
}

// RequestAccounts prompts for the vault passphrase and derives the configured accounts.
// Declining the prompt or a wrong passphrase is a rejection.
func (p *Provider) RequestAccounts(ctx context.Context) ([]provider.Account, error) {
	if !p.vault.Exists() {
		return nil, walleterr.WithCause(walleterr.ErrProviderError,
			walleterr.WithDetails(walleterr.ErrVaultNotFound, map[string]string{"path": p.vault.Path()}))
	}

	passphrase, err := p.prompter.Passphrase(ctx, "Unlock wallet vault: ")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, walleterr.WithCause(walleterr.ErrProviderError, ctxErr)
		}
		return nil, walleterr.WithCause(walleterr.ErrConnectionRejected, err)
	}
	if passphrase == "" {
		return nil, walleterr.WithCause(walleterr.ErrConnectionRejected, ErrPromptDeclined)
	}

	mnemonic, err := p.vault.Open(passphrase)
	if err != nil {
		if errors.Is(err, ErrWrongPassphrase) {
			p.logger.Debug("vault %s: wrong passphrase", p.vault.Path())
			return nil, walleterr.WithCause(walleterr.ErrConnectionRejected, err)
		}
		return nil, walleterr.WithCause(walleterr.ErrProviderError, err)
	}
	if mlock(mnemonic) {
		defer munlock(mnemonic)
	}
	defer zeroBytes(mnemonic)

	derived, err := DeriveFromMnemonic(string(mnemonic), p.accounts)
	if err != nil {
		return nil, walleterr.WithCause(walleterr.ErrProviderError, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	accounts := make([]provider.Account, 0, len(derived))
	for _, d := range derived {
		p.derived[d.Path] = d.Address
		accounts = append(accounts, provider.Account{Ref: d.Path})
	}

	p.logger.Debug("vault %s unlocked, %d account(s) derived", p.vault.Path(), len(accounts))
	return accounts, nil
}

// Address returns the address derived for acct.
func (p *Provider) Address(acct provider.Account) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	addr, ok := p.derived[acct.Ref]
	if !ok {
		return "", walleterr.WithDetails(walleterr.ErrProviderError, map[string]string{"account": acct.Ref})
	}
	return addr, nil
}

// Balance reads the balance of address from the balance source.
func (p *Provider) Balance(ctx context.Context, address string) (*big.Int, error) {
	return p.balances.Balance(ctx, address)
}

// ConcurrentQueries defers to the balance source.
func (p *Provider) ConcurrentQueries() bool {
	if cq, ok := p.balances.(provider.ConcurrentQuerier); ok {
		return cq.ConcurrentQueries()
	}
	return false
}

// Close forgets derived addresses and closes the balance source.
func (p *Provider) Close() error {
	p.mu.Lock()
	clear(p.derived)
	p.mu.Unlock()

	return p.balances.Close()
}
