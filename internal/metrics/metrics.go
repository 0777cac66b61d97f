// Package metrics provides wallet session metrics collection.
// This is a lightweight metrics foundation using atomic counters.
package metrics

import (
	"errors"
	"sync/atomic"
	"time"

	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// Metrics holds session and provider metrics using atomic counters for thread safety.
type Metrics struct {
	// Connection metrics
	connectsTotal     atomic.Int64
	connectsRejected  atomic.Int64
	connectsFailed    atomic.Int64
	connectsSucceeded atomic.Int64

	// Balance metrics
	balanceQueries       atomic.Int64
	balanceQueryFailures atomic.Int64

	// Provider RPC metrics
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcLatencyNanos atomic.Int64
}

// Global is the global metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordConnect records the outcome of a connection attempt.
func (m *Metrics) RecordConnect(err error) {
	m.connectsTotal.Add(1)

	switch {
	case err == nil:
		m.connectsSucceeded.Add(1)
	case errors.Is(err, walleterr.ErrConnectionRejected):
		m.connectsRejected.Add(1)
	default:
		m.connectsFailed.Add(1)
	}
}

// RecordBalanceQuery records a balance refresh.
func (m *Metrics) RecordBalanceQuery(err error) {
	m.balanceQueries.Add(1)
	if err != nil {
		m.balanceQueryFailures.Add(1)
	}
}

// RecordRPCCall records a provider RPC call with its duration and success status.
func (m *Metrics) RecordRPCCall(duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	ConnectsTotal        int64   `json:"connects_total"`
	ConnectsSucceeded    int64   `json:"connects_succeeded"`
	ConnectsRejected     int64   `json:"connects_rejected"`
	ConnectsFailed       int64   `json:"connects_failed"`
	BalanceQueries       int64   `json:"balance_queries"`
	BalanceQueryFailures int64   `json:"balance_query_failures"`
	RPCCallsTotal        int64   `json:"rpc_calls_total"`
	RPCErrorsTotal       int64   `json:"rpc_errors_total"`
	RPCLatencyAvgMs      float64 `json:"rpc_latency_avg_ms"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		ConnectsTotal:        m.connectsTotal.Load(),
		ConnectsSucceeded:    m.connectsSucceeded.Load(),
		ConnectsRejected:     m.connectsRejected.Load(),
		ConnectsFailed:       m.connectsFailed.Load(),
		BalanceQueries:       m.balanceQueries.Load(),
		BalanceQueryFailures: m.balanceQueryFailures.Load(),
		RPCCallsTotal:        m.rpcCallsTotal.Load(),
		RPCErrorsTotal:       m.rpcErrorsTotal.Load(),
		RPCLatencyAvgMs:      m.RPCLatencyAvgMs(),
	}
}

// RPCCallsTotal returns the total number of RPC calls made.
func (m *Metrics) RPCCallsTotal() int64 {
	return m.rpcCallsTotal.Load()
}

// RPCLatencyAvgMs returns the average RPC latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	calls := m.rpcCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	return float64(m.rpcLatencyNanos.Load()) / float64(calls) / 1e6
}

// Reset resets all metrics to zero.
func (m *Metrics) Reset() {
	m.connectsTotal.Store(0)
	m.connectsSucceeded.Store(0)
	m.connectsRejected.Store(0)
	m.connectsFailed.Store(0)
	m.balanceQueries.Store(0)
	m.balanceQueryFailures.Store(0)
	m.rpcCallsTotal.Store(0)
	m.rpcErrorsTotal.Store(0)
	m.rpcLatencyNanos.Store(0)
}
