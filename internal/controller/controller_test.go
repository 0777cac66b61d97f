package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/controller"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/rpcutil"
	"github.com/mrz1836/walletlink/internal/session"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

var errFlaky = errors.New("flaky node")

// stubProvider authorizes testAddress and fails the first failFirst balance
// queries, transiently unless permanent is set.
type stubProvider struct {
	rejected  bool
	failFirst int32
	permanent bool
	balance   *big.Int

	balanceCalls atomic.Int32
	closed       atomic.Bool
}

func (p *stubProvider) RequestAccounts(context.Context) ([]provider.Account, error) {
	if p.rejected {
		return nil, walleterr.ErrConnectionRejected
	}
	return []provider.Account{{Ref: testAddress}}, nil
}

func (p *stubProvider) Address(acct provider.Account) (string, error) {
	return acct.Ref, nil
}

func (p *stubProvider) Balance(context.Context, string) (*big.Int, error) {
	n := p.balanceCalls.Add(1)
	if n <= p.failFirst {
		if p.permanent {
			return nil, errFlaky
		}
		return nil, rpcutil.WrapRetryable(errFlaky)
	}
	return new(big.Int).Set(p.balance), nil
}

func (p *stubProvider) Close() error {
	p.closed.Store(true)
	return nil
}

// recorder is a view keeping every rendered state.
type recorder struct {
	mu     sync.Mutex
	states []session.State
}

func (r *recorder) Render(st session.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
	return nil
}

func (r *recorder) all() []session.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.State(nil), r.states...)
}

func (r *recorder) lastState() session.State {
	all := r.all()
	if len(all) == 0 {
		return session.State{}
	}
	return all[len(all)-1]
}

func fastRetry(attempts int) rpcutil.RetryConfig {
	return rpcutil.RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func newSession(p *stubProvider) *session.WalletSession {
	host := provider.HostFunc(func(context.Context) (provider.Provider, error) { return p, nil })
	return session.New(host, session.Options{Metrics: &metrics.Metrics{}})
}

func TestMount_ConnectsThenRefreshes(t *testing.T) {
	t.Parallel()

	p := &stubProvider{balance: big.NewInt(1_000_000_000_000_000_000)}
	view := &recorder{}
	c := controller.New(newSession(p), view, controller.Options{Retry: fastRetry(3)})

	st, err := c.Mount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.StatusConnected, st.Status)
	assert.Equal(t, testAddress, st.Address)
	require.NotNil(t, st.Balance)
	assert.Equal(t, "1000000000000000000", st.Balance.String())
	assert.Equal(t, int32(1), p.balanceCalls.Load())

	assert.Equal(t, st.Balance.String(), view.lastState().Balance.String())
}

func TestMount_ConnectFailureSkipsRefresh(t *testing.T) {
	t.Parallel()

	p := &stubProvider{rejected: true, balance: big.NewInt(1)}
	view := &recorder{}
	c := controller.New(newSession(p), view, controller.Options{Retry: fastRetry(3)})

	st, err := c.Mount(context.Background())
	require.ErrorIs(t, err, walleterr.ErrConnectionRejected)
	assert.Equal(t, session.StatusError, st.Status)
	assert.Equal(t, int32(0), p.balanceCalls.Load())
	assert.Equal(t, session.StatusError, view.lastState().Status)
}

func TestMount_RetriesTransientRefreshFailures(t *testing.T) {
	t.Parallel()

	p := &stubProvider{failFirst: 2, balance: big.NewInt(99)}
	c := controller.New(newSession(p), &recorder{}, controller.Options{Retry: fastRetry(3)})

	st, err := c.Mount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "99", st.Balance.String())
	assert.Equal(t, int32(3), p.balanceCalls.Load())
	assert.NoError(t, st.Err)
}

func TestMount_RefreshFailureIsReported(t *testing.T) {
	t.Parallel()

	p := &stubProvider{failFirst: 100, balance: big.NewInt(1)}
	view := &recorder{}
	c := controller.New(newSession(p), view, controller.Options{Retry: fastRetry(2)})

	st, err := c.Mount(context.Background())
	require.ErrorIs(t, err, walleterr.ErrBalanceQueryFailed)
	assert.Equal(t, session.StatusConnected, st.Status)
	assert.Nil(t, st.Balance)
	assert.Equal(t, int32(2), p.balanceCalls.Load())
	require.ErrorIs(t, view.lastState().Err, walleterr.ErrBalanceQueryFailed)
}

func TestMount_PermanentRefreshFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	p := &stubProvider{failFirst: 100, permanent: true, balance: big.NewInt(1)}
	c := controller.New(newSession(p), &recorder{}, controller.Options{Retry: fastRetry(3)})

	_, err := c.Mount(context.Background())
	require.ErrorIs(t, err, walleterr.ErrBalanceQueryFailed)
	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, int32(1), p.balanceCalls.Load())
}

func TestMount_AlreadyConnectedDoesNotRefresh(t *testing.T) {
	t.Parallel()

	p := &stubProvider{balance: big.NewInt(5)}
	s := newSession(p)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	c := controller.New(s, &recorder{}, controller.Options{Retry: fastRetry(1)})
	_, err = c.Mount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(0), p.balanceCalls.Load())
}

func TestRun_PollsWhileConnected(t *testing.T) {
	t.Parallel()

	p := &stubProvider{balance: big.NewInt(7)}
	c := controller.New(newSession(p), &recorder{}, controller.Options{Retry: fastRetry(1)})
	_, err := c.Mount(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return p.balanceCalls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestRun_RefreshesWhenAddressAppears(t *testing.T) {
	t.Parallel()

	p := &stubProvider{balance: big.NewInt(12)}
	s := newSession(p)
	view := &recorder{}
	c := controller.New(s, view, controller.Options{Retry: fastRetry(1)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 0) }()

	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st := view.lastState()
		return st.Balance != nil && st.Balance.Int64() == 12
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), p.balanceCalls.Load())

	require.NoError(t, c.Unmount())
	require.NoError(t, <-done)
}

func TestUnmount_ClosesSession(t *testing.T) {
	t.Parallel()

	p := &stubProvider{balance: big.NewInt(1)}
	s := newSession(p)
	c := controller.New(s, &recorder{}, controller.Options{})
	_, err := c.Mount(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Unmount())
	assert.True(t, p.closed.Load())
	_, err = s.RefreshBalance(context.Background())
	require.ErrorIs(t, err, walleterr.ErrSessionClosed)
}

func TestRender_SkipsDuplicateStates(t *testing.T) {
	t.Parallel()

	p := &stubProvider{balance: big.NewInt(1)}
	view := &recorder{}
	c := controller.New(newSession(p), view, controller.Options{Retry: fastRetry(1)})
	_, err := c.Mount(context.Background())
	require.NoError(t, err)
	rendered := len(view.all())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx, 0))
	assert.Len(t, view.all(), rendered)
}

func TestViewFunc(t *testing.T) {
	t.Parallel()

	var got session.Status
	v := controller.ViewFunc(func(st session.State) error {
		got = st.Status
		return nil
	})
	require.NoError(t, v.Render(session.State{Status: session.StatusConnecting}))
	assert.Equal(t, session.StatusConnecting, got)
}

func TestStateView_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	v := controller.NewStateView(output.NewFormatter(output.FormatText, &buf))
	require.NoError(t, v.Render(session.State{
		ID:               "s1",
		Status:           session.StatusConnected,
		Address:          testAddress,
		Balance:          big.NewInt(1_500_000_000_000_000_000),
		BalanceUpdatedAt: time.Now(),
	}))

	text := buf.String()
	assert.Contains(t, text, "Status:   connected")
	assert.Contains(t, text, "Address:  "+testAddress)
	assert.Contains(t, text, "Balance:  1.5 ETH")
	assert.Contains(t, text, "Wei:      1500000000000000000")
	assert.NotContains(t, text, "Error:")

	buf.Reset()
	require.NoError(t, v.Render(session.State{ID: "s1", Status: session.StatusError, Err: walleterr.ErrConnectionRejected}))
	assert.Contains(t, buf.String(), "Address:  -")
	assert.Contains(t, buf.String(), "Error:    account access was not authorized")
	assert.NotContains(t, buf.String(), "Balance:")
}

func TestStateView_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	v := controller.NewStateView(output.NewFormatter(output.FormatJSON, &buf))
	require.NoError(t, v.Render(session.State{
		ID:      "s1",
		Status:  session.StatusConnected,
		Address: testAddress,
		Balance: big.NewInt(2_000_000_000_000_000_000),
	}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "connected", got["status"])
	assert.Equal(t, testAddress, got["address"])
	assert.Equal(t, "2000000000000000000", got["balance_minor_units"])
	assert.Equal(t, "2.0", got["balance"])

	buf.Reset()
	require.NoError(t, v.Render(session.State{ID: "s2", Status: session.StatusDisconnected}))
	got = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.NotContains(t, got, "balance")
}
