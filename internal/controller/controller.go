// Package controller drives a wallet session on behalf of a view.
//
// It is the UI side of the session contract: connect when mounted, fetch the
// balance once an address appears, keep it fresh while running, render every
// state the session reports, and tear the session down when unmounted.
package controller

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/rpcutil"
	"github.com/mrz1836/walletlink/internal/session"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// Session is the part of a wallet session the controller drives.
// *session.WalletSession satisfies it.
type Session interface {
	Connect(ctx context.Context) (session.State, error)
	RefreshBalance(ctx context.Context) (*big.Int, error)
	Close() error
	State() session.State
	Subscribe() (<-chan session.State, func())
}

// View renders session states.
type View interface {
	Render(st session.State) error
}

// ViewFunc adapts a function to the View interface.
type ViewFunc func(st session.State) error

// Render calls f(st).
func (f ViewFunc) Render(st session.State) error {
	return f(st)
}

// Options configures a Controller.
type Options struct {
	// Retry is applied to balance refreshes. The session itself never retries.
	Retry  rpcutil.RetryConfig
	Logger provider.Logger
}

// Controller connects a session to a view.
type Controller struct {
	session Session
	view    View
	retry   rpcutil.RetryConfig
	logger  provider.Logger

	last     session.State
	rendered bool
}

// New creates a controller for s rendering to v.
func New(s Session, v View, opts Options) *Controller {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = rpcutil.DefaultRetryConfig()
	}
	if opts.Logger == nil {
		opts.Logger = provider.NopLogger()
	}
	return &Controller{
		session: s,
		view:    v,
		retry:   opts.Retry,
		logger:  opts.Logger,
	}
}

// Mount connects the session and, when that produced an address, refreshes
// the balance. The resulting state is rendered. A connect failure is returned
// as is; a refresh failure is returned after the state showing it is rendered.
func (c *Controller) Mount(ctx context.Context) (session.State, error) {
	before := c.session.State()

	st, err := c.session.Connect(ctx)
	if err != nil {
		return st, c.render(st, err)
	}

	if before.Address == "" && st.Address != "" {
		if refreshErr := c.Refresh(ctx); refreshErr != nil {
			st = c.session.State()
			return st, c.render(st, refreshErr)
		}
		st = c.session.State()
	}

	return st, c.render(st, nil)
}

// Refresh fetches the balance, retrying transient failures per the retry policy.
func (c *Controller) Refresh(ctx context.Context) error {
	_, err := rpcutil.RetryWithConfig(ctx, c.retry, func() (*big.Int, error) {
		return c.session.RefreshBalance(ctx)
	})
	if err != nil {
		c.logger.Error("balance refresh failed [%s]: %v", walleterr.Code(err), err)
	}
	return err
}

// Run renders every state the session reports and refreshes the balance on
// each tick of interval while connected. An address appearing triggers an
// immediate refresh. A zero interval disables polling. Run returns nil when ctx
// is done or the session is closed; refresh failures are shown through the
// rendered state rather than returned.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	updates, cancel := c.session.Subscribe()
	defer cancel()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case st, ok := <-updates:
			if !ok {
				return nil
			}
			appeared := c.last.Address == "" && st.Address != ""
			if err := c.render(st, nil); err != nil {
				return err
			}
			if appeared && st.Balance == nil {
				_ = c.Refresh(ctx)
			}

		case <-tick:
			if c.session.State().Connected() {
				_ = c.Refresh(ctx)
			}
		}
	}
}

// Unmount closes the session, releasing the provider and ending Run.
func (c *Controller) Unmount() error {
	return c.session.Close()
}

// render passes st to the view unless it is indistinguishable from the last
// rendered state. It returns cause when rendering succeeds.
func (c *Controller) render(st session.State, cause error) error {
	if c.rendered && sameState(c.last, st) {
		return cause
	}
	c.last = st
	c.rendered = true

	if err := c.view.Render(st); err != nil {
		return fmt.Errorf("rendering state: %w", err)
	}
	return cause
}

func sameState(a, b session.State) bool {
	if a.Status != b.Status || a.Address != b.Address || !a.BalanceUpdatedAt.Equal(b.BalanceUpdatedAt) {
		return false
	}
	if (a.Balance == nil) != (b.Balance == nil) {
		return false
	}
	if a.Balance != nil && a.Balance.Cmp(b.Balance) != 0 {
		return false
	}
	if (a.Err == nil) != (b.Err == nil) {
		return false
	}
	return a.Err == nil || a.Err.Error() == b.Err.Error()
}
