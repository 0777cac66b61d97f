package node

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/provider"
	"github.com/mrz1836/walletlink/internal/rpcutil"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

const (
	lowerAddr    = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	checksumAddr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcHandler func(method string, params []json.RawMessage) (any, *rpcError)

// fakeNode is a JSON-RPC 2.0 server recording the methods it was asked for.
type fakeNode struct {
	*httptest.Server

	mu      sync.Mutex
	methods []string
}

func newFakeNode(t *testing.T, handle rpcHandler) *fakeNode {
	t.Helper()
	n := &fakeNode{}
	n.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}

		n.mu.Lock()
		n.methods = append(n.methods, req.Method)
		n.mu.Unlock()

		result, rerr := handle(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(n.Close)
	return n
}

func (n *fakeNode) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.methods...)
}

func dialTest(t *testing.T, url string, opts Options) *Provider {
	t.Helper()
	if opts.Metrics == nil {
		opts.Metrics = &metrics.Metrics{}
	}
	p, err := Dial(context.Background(), url, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDial_EndpointRequired(t *testing.T) {
	t.Parallel()
	_, err := Dial(context.Background(), "", Options{})
	require.ErrorIs(t, err, ErrEndpointRequired)
}

func TestRequestAccounts_Success(t *testing.T) {
	t.Parallel()
	n := newFakeNode(t, func(method string, _ []json.RawMessage) (any, *rpcError) {
		assert.Equal(t, "eth_requestAccounts", method)
		return []string{lowerAddr}, nil
	})
	p := dialTest(t, n.URL, Options{})

	accounts, err := p.RequestAccounts(testContext(t))
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	addr, err := p.Address(accounts[0])
	require.NoError(t, err)
	assert.Equal(t, checksumAddr, addr)
}

func TestRequestAccounts_UserRejected(t *testing.T) {
	t.Parallel()
	for _, code := range []int{codeUserRejected, codeUnauthorized} {
		n := newFakeNode(t, func(string, []json.RawMessage) (any, *rpcError) {
			return nil, &rpcError{Code: code, Message: "User rejected the request."}
		})
		p := dialTest(t, n.URL, Options{})

		_, err := p.RequestAccounts(testContext(t))
		require.ErrorIs(t, err, walleterr.ErrConnectionRejected)
		assert.NotErrorIs(t, err, walleterr.ErrProviderError)
	}
}

func TestRequestAccounts_FallsBackToEthAccounts(t *testing.T) {
	t.Parallel()
	n := newFakeNode(t, func(method string, _ []json.RawMessage) (any, *rpcError) {
		if method == "eth_requestAccounts" {
			return nil, &rpcError{Code: codeMethodNotFound, Message: "the method eth_requestAccounts does not exist"}
		}
		return []string{lowerAddr}, nil
	})
	p := dialTest(t, n.URL, Options{})

	accounts, err := p.RequestAccounts(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []provider.Account{{Ref: checksumAddr}}, accounts)
	assert.Equal(t, []string{"eth_requestAccounts", "eth_accounts"}, n.calls())
}

func TestRequestAccounts_ProviderError(t *testing.T) {
	t.Parallel()
	n := newFakeNode(t, func(string, []json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "internal failure"}
	})
	p := dialTest(t, n.URL, Options{})

	_, err := p.RequestAccounts(testContext(t))
	require.ErrorIs(t, err, walleterr.ErrProviderError)
	assert.NotErrorIs(t, err, walleterr.ErrConnectionRejected)
}

func TestRequestAccounts_InvalidAddressFromNode(t *testing.T) {
	t.Parallel()
	n := newFakeNode(t, func(string, []json.RawMessage) (any, *rpcError) {
		return []string{"not-an-address"}, nil
	})
	p := dialTest(t, n.URL, Options{})

	_, err := p.RequestAccounts(testContext(t))
	require.ErrorIs(t, err, walleterr.ErrProviderError)
	require.ErrorIs(t, err, walleterr.ErrInvalidAddress)
}

func TestRequestAccounts_ChainGuard(t *testing.T) {
	t.Parallel()
	n := newFakeNode(t, func(method string, _ []json.RawMessage) (any, *rpcError) {
		if method == "eth_chainId" {
			return "0x539", nil // 1337
		}
		return []string{lowerAddr}, nil
	})

	ok := dialTest(t, n.URL, Options{ChainID: 1337})
	_, err := ok.RequestAccounts(testContext(t))
	require.NoError(t, err)

	wrong := dialTest(t, n.URL, Options{ChainID: 1})
	_, err = wrong.RequestAccounts(testContext(t))
	require.ErrorIs(t, err, walleterr.ErrProviderError)
	require.ErrorIs(t, err, ErrChainMismatch)
}

func TestBalance_ExactMinorUnits(t *testing.T) {
	t.Parallel()
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	huge.Add(huge, big.NewInt(7))

	n := newFakeNode(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		assert.Equal(t, "eth_getBalance", method)
		if !assert.Len(t, params, 2) {
			return nil, &rpcError{Code: -32602, Message: "invalid params"}
		}
		var addr, block string
		assert.NoError(t, json.Unmarshal(params[0], &addr))
		assert.NoError(t, json.Unmarshal(params[1], &block))
		assert.Equal(t, "latest", block)
		if addr == lowerAddr {
			return "0xde0b6b3a7640000", nil // 1 ETH
		}
		return "0x" + huge.Text(16), nil
	})
	m := &metrics.Metrics{}
	p := dialTest(t, n.URL, Options{Metrics: m})

	bal, err := p.Balance(testContext(t), checksumAddr)
	require.NoError(t, err)
	expected, _ := new(big.Int).SetString("1000000000000000000", 10)
	assert.Equal(t, 0, expected.Cmp(bal))

	bal, err = p.Balance(testContext(t), "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, 0, huge.Cmp(bal))

	assert.Equal(t, int64(2), m.RPCCallsTotal())
}

func TestBalance_InvalidAddressNeverCallsNode(t *testing.T) {
	t.Parallel()
	n := newFakeNode(t, func(string, []json.RawMessage) (any, *rpcError) {
		return "0x0", nil
	})
	p := dialTest(t, n.URL, Options{})

	_, err := p.Balance(testContext(t), "0x123")
	require.ErrorIs(t, err, walleterr.ErrInvalidAddress)
	assert.Empty(t, n.calls())
}

func TestBalance_NodeError(t *testing.T) {
	t.Parallel()
	n := newFakeNode(t, func(string, []json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "header not found"}
	})
	p := dialTest(t, n.URL, Options{})

	_, err := p.Balance(testContext(t), checksumAddr)
	require.ErrorIs(t, err, walleterr.ErrProviderError)
	assert.Contains(t, err.Error(), "eth_getBalance")
	assert.False(t, rpcutil.IsRetryable(err), "a JSON-RPC error from the node is final")
}

func TestBalance_TransportFailuresAreRetryable(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		status int
		want   bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	} {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, http.StatusText(tc.status), tc.status)
			}))
			t.Cleanup(srv.Close)
			p := dialTest(t, srv.URL, Options{})

			_, err := p.Balance(testContext(t), checksumAddr)
			require.ErrorIs(t, err, walleterr.ErrProviderError)
			assert.Equal(t, tc.want, rpcutil.IsRetryable(err))
		})
	}
}

func TestBalance_UnreachableNodeIsRetryable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := dialTest(t, url, Options{})
	_, err := p.Balance(testContext(t), checksumAddr)
	require.ErrorIs(t, err, walleterr.ErrProviderError)
	assert.True(t, rpcutil.IsRetryable(err))
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	p, err := Dial(context.Background(), "http://127.0.0.1:1", Options{})
	require.NoError(t, err)
	assert.True(t, p.ConcurrentQueries())
	assert.Equal(t, "http://127.0.0.1:1", p.Endpoint())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}
