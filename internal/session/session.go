// Package session manages a wallet connection on behalf of a UI layer.
//
// A WalletSession obtains a provider capability from its host on Connect, keeps
// the authorized address and the last fetched balance, and releases the
// capability on Disconnect or Close. The UI observes it through State and
// Subscribe and drives it with Connect and RefreshBalance.
package session

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// Status is the connection status of a session.
type Status int

// Session statuses.
const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a snapshot of a session. It is a copy; changing it does not affect the session.
type State struct {
	ID     string
	Status Status
	// Address is empty unless Status is StatusConnected.
	Address string
	// Balance is the last fetched balance in minor units, nil until the first refresh.
	Balance          *big.Int
	BalanceUpdatedAt time.Time
	// Err is the last error surfaced by Connect or RefreshBalance.
	Err error
}

// Connected reports whether the snapshot has an active connection.
func (s State) Connected() bool {
	return s.Status == StatusConnected && s.Address != ""
}

// stateJSON is the wire form of State.
type stateJSON struct {
	ID               string     `json:"id"`
	Status           Status     `json:"status"`
	Address          string     `json:"address,omitempty"`
	Balance          string     `json:"balance_minor_units,omitempty"`
	BalanceUpdatedAt *time.Time `json:"balance_updated_at,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// MarshalJSON encodes the balance as a decimal string so no precision is lost.
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		ID:      s.ID,
		Status:  s.Status,
		Address: s.Address,
	}
	if s.Balance != nil {
		out.Balance = s.Balance.String()
	}
	if !s.BalanceUpdatedAt.IsZero() {
		t := s.BalanceUpdatedAt.UTC()
		out.BalanceUpdatedAt = &t
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}
