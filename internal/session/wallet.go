package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/provider"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// errDisconnectedWhileConnecting is the cause reported when Disconnect or Close
// overtakes an in-flight Connect.
var errDisconnectedWhileConnecting = errors.New("disconnected while connecting")

// Options configures a WalletSession.
type Options struct {
	// ConnectTimeout bounds a whole Connect call. Zero leaves it to the caller's context.
	ConnectTimeout time.Duration
	// QueryTimeout bounds a single balance query. Zero leaves it to the caller's context.
	QueryTimeout time.Duration
	// ID overrides the generated session ID.
	ID      string
	Logger  provider.Logger
	Metrics *metrics.Metrics
}

// WalletSession mediates between a UI layer and a wallet provider capability.
// All methods are safe for concurrent use.
type WalletSession struct {
	id      string
	host    provider.Host
	opts    Options
	logger  provider.Logger
	metrics *metrics.Metrics

	// refreshSem serializes balance queries for providers without concurrent query support.
	refreshSem *semaphore.Weighted

	mu        sync.Mutex
	status    Status
	address   string
	balance   *big.Int
	updatedAt time.Time
	lastErr   error
	handle    provider.Provider
	// gen changes whenever a connection starts or ends; results from an older
	// generation are discarded.
	gen    uint64
	closed bool

	subs   map[uint64]chan State
	nextID uint64
}

// New creates a disconnected session that obtains its capability from host.
func New(host provider.Host, opts Options) *WalletSession {
	if host == nil {
		host = provider.NoHost
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = provider.NopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Global
	}

	return &WalletSession{
		id:         opts.ID,
		host:       host,
		opts:       opts,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		refreshSem: semaphore.NewWeighted(1),
		status:     StatusDisconnected,
		subs:       make(map[uint64]chan State),
	}
}

// ID returns the session ID.
func (s *WalletSession) ID() string {
	return s.id
}

// State returns a snapshot of the session.
func (s *WalletSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Connect obtains a capability from the host and requests account access.
//
// While a connection is in flight or established, Connect returns the current
// state without contacting the provider. ProviderUnavailable leaves the session
// Disconnected; a rejection or provider failure moves it to Error and releases
// the capability. Connect never retries.
func (s *WalletSession) Connect(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return State{}, walleterr.ErrSessionClosed
	}
	if s.status == StatusConnecting || s.status == StatusConnected {
		st := s.snapshotLocked()
		s.mu.Unlock()
		return st, nil
	}
	s.gen++
	gen := s.gen
	s.status = StatusConnecting
	s.lastErr = nil
	s.notifyLocked()
	s.mu.Unlock()

	s.logger.Debug("session %s: connecting", s.id)

	if s.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ConnectTimeout)
		defer cancel()
	}

	p, err := s.host.Provider(ctx)
	if err == nil && p == nil {
		err = walleterr.ErrProviderUnavailable
	}
	if err != nil {
		if !errors.Is(err, walleterr.ErrProviderUnavailable) {
			err = provider.ClassifyConnectError(err)
		}
		return s.failConnect(gen, nil, err)
	}

	address, err := s.authorize(ctx, p)
	if err != nil {
		return s.failConnect(gen, p, provider.ClassifyConnectError(err))
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		_ = p.Close()
		err = walleterr.WithCause(walleterr.ErrNotConnected, errDisconnectedWhileConnecting)
		s.metrics.RecordConnect(err)
		return s.State(), err
	}
	s.handle = p
	s.status = StatusConnected
	s.address = address
	s.balance = nil
	s.updatedAt = time.Time{}
	s.lastErr = nil
	s.notifyLocked()
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.RecordConnect(nil)
	s.logger.Debug("session %s: connected as %s", s.id, address)
	return st, nil
}

// authorize requests accounts and resolves the first one to an address.
func (s *WalletSession) authorize(ctx context.Context, p provider.Provider) (string, error) {
	accounts, err := p.RequestAccounts(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, walleterr.ErrConnectionRejected) {
			return "", walleterr.WithCause(walleterr.ErrProviderError, fmt.Errorf("%w: %w", ctxErr, err))
		}
		return "", err
	}
	if len(accounts) == 0 {
		return "", walleterr.WithDetails(walleterr.ErrConnectionRejected, map[string]string{"accounts": "none authorized"})
	}

	address, err := p.Address(accounts[0])
	if err != nil {
		return "", walleterr.WithCause(walleterr.ErrProviderError, err)
	}
	if address == "" {
		return "", walleterr.WithDetails(walleterr.ErrProviderError, map[string]string{"address": "empty"})
	}
	return address, nil
}

// failConnect records a failed connection attempt of generation gen and closes p.
func (s *WalletSession) failConnect(gen uint64, p provider.Provider, err error) (State, error) {
	if p != nil {
		if closeErr := p.Close(); closeErr != nil {
			s.logger.Debug("session %s: closing provider: %v", s.id, closeErr)
		}
	}
	s.metrics.RecordConnect(err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return s.snapshotLocked(), err
	}

	if errors.Is(err, walleterr.ErrProviderUnavailable) {
		s.status = StatusDisconnected
	} else {
		s.status = StatusError
	}
	s.address = ""
	s.balance = nil
	s.updatedAt = time.Time{}
	s.lastErr = err
	s.notifyLocked()

	s.logger.Error("session %s: connect failed: %v", s.id, err)
	return s.snapshotLocked(), err
}

// RefreshBalance queries the provider for the balance of the connected address.
//
// It fails with NotConnected, without contacting the provider, unless the
// session is Connected. A failed query leaves the previous balance in place and
// returns BalanceQueryFailed. Queries run in parallel only when the provider
// declares support for it; otherwise they queue.
func (s *WalletSession) RefreshBalance(ctx context.Context) (*big.Int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, walleterr.ErrSessionClosed
	}
	if s.status != StatusConnected || s.address == "" || s.handle == nil {
		s.mu.Unlock()
		return nil, walleterr.ErrNotConnected
	}
	p, address, gen := s.handle, s.address, s.gen
	s.mu.Unlock()

	if !provider.SupportsConcurrentQueries(p) {
		if err := s.refreshSem.Acquire(ctx, 1); err != nil {
			return nil, s.failRefresh(gen, walleterr.WithCause(walleterr.ErrBalanceQueryFailed, err))
		}
		defer s.refreshSem.Release(1)

		// The connection may have ended while this call was queued.
		s.mu.Lock()
		current := s.gen == gen && s.status == StatusConnected
		s.mu.Unlock()
		if !current {
			return nil, walleterr.ErrNotConnected
		}
	}

	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}

	balance, err := p.Balance(ctx, address)
	if err == nil && balance == nil {
		err = errors.New("provider returned no balance")
	}
	if err == nil && balance.Sign() < 0 {
		err = fmt.Errorf("provider returned negative balance %s", balance)
	}
	if err != nil {
		return nil, s.failRefresh(gen, walleterr.WithCause(walleterr.ErrBalanceQueryFailed, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || s.status != StatusConnected {
		s.metrics.RecordBalanceQuery(walleterr.ErrNotConnected)
		return nil, walleterr.ErrNotConnected
	}
	s.balance = new(big.Int).Set(balance)
	s.updatedAt = time.Now()
	s.lastErr = nil
	s.notifyLocked()
	s.metrics.RecordBalanceQuery(nil)

	s.logger.Debug("session %s: balance of %s is %s", s.id, address, balance)
	return new(big.Int).Set(balance), nil
}

// failRefresh surfaces a balance query failure without touching status or balance.
func (s *WalletSession) failRefresh(gen uint64, err error) error {
	s.metrics.RecordBalanceQuery(err)
	s.logger.Error("session %s: balance query failed: %v", s.id, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.status == StatusConnected {
		s.lastErr = err
		s.notifyLocked()
	}
	return err
}

// Disconnect releases the capability and returns the session to Disconnected.
// It is idempotent. An in-flight Connect is abandoned and its result discarded.
func (s *WalletSession) Disconnect() error {
	s.mu.Lock()
	p, changed := s.resetLocked()
	if changed {
		s.notifyLocked()
	}
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	s.logger.Debug("session %s: disconnected", s.id)
	return p.Close()
}

// Close disconnects and ends all subscriptions. Later calls to Connect and
// RefreshBalance fail with SessionClosed.
func (s *WalletSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	p, changed := s.resetLocked()
	if changed {
		s.notifyLocked()
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Close()
}

// resetLocked moves the session to Disconnected and hands back the capability to close.
func (s *WalletSession) resetLocked() (provider.Provider, bool) {
	changed := s.status != StatusDisconnected || s.lastErr != nil
	if s.status != StatusDisconnected {
		s.gen++
	}

	p := s.handle
	s.handle = nil
	s.status = StatusDisconnected
	s.address = ""
	s.balance = nil
	s.updatedAt = time.Time{}
	s.lastErr = nil
	return p, changed
}

func (s *WalletSession) snapshotLocked() State {
	st := State{
		ID:               s.id,
		Status:           s.status,
		Address:          s.address,
		BalanceUpdatedAt: s.updatedAt,
		Err:              s.lastErr,
	}
	if s.balance != nil {
		st.Balance = new(big.Int).Set(s.balance)
	}
	return st
}
