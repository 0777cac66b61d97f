package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/walletlink/internal/metrics"
)

const (
	testMnemonic   = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testPassphrase = "correct horse battery"
	testHDAddress  = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	testNodeAddr   = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

// saveGlobals snapshots the package state a command run mutates and restores it on cleanup.
func saveGlobals(t *testing.T) {
	t.Helper()

	origCfg, origCfgErr, origLogger, origFormatter := cfg, cfgErr, logger, formatter
	origHome, origOutput, origVerbose := homeDir, outputFormat, verbose
	origProvider, origRPC := providerKind, rpcURL
	origInterval, origWords, origImport, origForce := watchInterval, vaultWords, vaultImport, configForce
	origHost := newHostFn
	origPassword, origNewPass, origMnemonic, origTerminal := promptPasswordFn, promptNewPassphraseFn, promptMnemonicFn, isTerminalFn
	origSaveTerminal := saveTerminalFn

	t.Cleanup(func() {
		cfg, cfgErr, logger, formatter = origCfg, origCfgErr, origLogger, origFormatter
		homeDir, outputFormat, verbose = origHome, origOutput, origVerbose
		providerKind, rpcURL = origProvider, origRPC
		watchInterval, vaultWords, vaultImport, configForce = origInterval, origWords, origImport, origForce
		newHostFn = origHost
		promptPasswordFn, promptNewPassphraseFn, promptMnemonicFn, isTerminalFn = origPassword, origNewPass, origMnemonic, origTerminal
		saveTerminalFn = origSaveTerminal

		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		if f := vaultCreateCmd.Flags().Lookup("words"); f != nil {
			f.Changed = false
		}
	})

	t.Setenv("WALLETLINK_HOME", "")
	t.Setenv("WALLETLINK_PROVIDER", "")
	t.Setenv("WALLETLINK_RPC", "")
	t.Setenv("WALLETLINK_LOG_LEVEL", "off")
	t.Setenv("WALLETLINK_OUTPUT_FORMAT", "")
	t.Setenv("WALLETLINK_VERBOSE", "")
	isTerminalFn = func() bool { return false }
	saveTerminalFn = func() func() { return func() {} }
	metrics.Global.Reset()
}

// runCLI executes the root command with args and returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLIStreams(t, args...)
	return out, err
}

// runCLIStreams is runCLI returning stderr as well.
func runCLIStreams(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// fakeNode is a JSON-RPC node that manages one account.
type fakeNode struct {
	*httptest.Server

	mu        sync.Mutex
	balance   string
	reject    bool
	failQuery bool
	methods   []string
}

func newFakeNode(t *testing.T, balanceHex string) *fakeNode {
	t.Helper()
	n := &fakeNode{balance: balanceHex}
	n.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}

		n.mu.Lock()
		n.methods = append(n.methods, req.Method)
		reject, failQuery, balance := n.reject, n.failQuery, n.balance
		n.mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case req.Method == "eth_requestAccounts" && reject:
			resp["error"] = map[string]any{"code": 4001, "message": "User rejected the request."}
		case req.Method == "eth_requestAccounts":
			resp["result"] = []string{testNodeAddr}
		case req.Method == "eth_getBalance" && failQuery:
			resp["error"] = map[string]any{"code": -32000, "message": "header not found"}
		case req.Method == "eth_getBalance":
			resp["result"] = balance
		default:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(n.Close)
	return n
}

func (n *fakeNode) calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.methods {
		if m == method {
			count++
		}
	}
	return count
}
