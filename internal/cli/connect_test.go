package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/provider/hdwallet"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// decodeStates reads the stream of JSON documents a session view writes.
func decodeStates(t *testing.T, out string) []map[string]any {
	t.Helper()

	var states []map[string]any
	dec := json.NewDecoder(strings.NewReader(out))
	for {
		var st map[string]any
		err := dec.Decode(&st)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		states = append(states, st)
	}
	return states
}

func TestConnect_NodeJSON(t *testing.T) {
	saveGlobals(t)
	node := newFakeNode(t, "0xde0b6b3a7640000")

	out, err := runCLI(t, "connect", "--home", t.TempDir(), "-o", "json", "--rpc", node.URL)
	require.NoError(t, err)

	states := decodeStates(t, out)
	require.Len(t, states, 1)

	st := states[0]
	assert.Equal(t, "connected", st["status"])
	assert.Equal(t, testNodeAddr, st["address"])
	assert.Equal(t, "1000000000000000000", st["balance_minor_units"])
	assert.Equal(t, "1.0", st["balance"])
	assert.NotEmpty(t, st["id"])
	assert.NotEmpty(t, st["balance_updated_at"])
	assert.NotContains(t, st, "error")

	assert.Equal(t, 1, node.calls("eth_requestAccounts"))
	assert.Equal(t, 1, node.calls("eth_getBalance"))
}

func TestConnect_NodeText(t *testing.T) {
	saveGlobals(t)
	node := newFakeNode(t, "0x0")

	out, err := runCLI(t, "connect", "--home", t.TempDir(), "-o", "text", "--rpc", node.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "Status:")
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, testNodeAddr)
	assert.Contains(t, out, "0.0 ETH")
}

func TestConnect_Rejected(t *testing.T) {
	saveGlobals(t)
	node := newFakeNode(t, "0x1")
	node.reject = true

	out, err := runCLI(t, "connect", "--home", t.TempDir(), "-o", "json", "--rpc", node.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, walleterr.ErrConnectionRejected)
	assert.Equal(t, walleterr.ExitAuth, ExitCode(err))

	states := decodeStates(t, out)
	require.NotEmpty(t, states)
	assert.Equal(t, "error", states[len(states)-1]["status"])
	assert.NotContains(t, states[len(states)-1], "address")
	assert.Zero(t, node.calls("eth_getBalance"))
}

func TestConnect_BalanceQueryFailed(t *testing.T) {
	saveGlobals(t)
	node := newFakeNode(t, "0x1")
	node.failQuery = true

	home := t.TempDir()
	c := config.Defaults()
	c.Session.RefreshAttempts = 1
	require.NoError(t, config.Save(c, config.Path(home)))

	out, err := runCLI(t, "connect", "--home", home, "-o", "json", "--rpc", node.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, walleterr.ErrBalanceQueryFailed)

	states := decodeStates(t, out)
	require.NotEmpty(t, states)
	last := states[len(states)-1]
	assert.Equal(t, "connected", last["status"])
	assert.Equal(t, testNodeAddr, last["address"])
	assert.NotContains(t, last, "balance_minor_units")
	assert.Contains(t, last["error"], "balance")
	assert.Equal(t, 1, node.calls("eth_getBalance"))
}

func TestConnect_ProviderUnavailable(t *testing.T) {
	saveGlobals(t)

	out, err := runCLI(t, "connect", "--home", t.TempDir(), "-o", "json", "--provider", "none")
	require.Error(t, err)
	assert.ErrorIs(t, err, walleterr.ErrProviderUnavailable)
	assert.Equal(t, walleterr.ExitUnavailable, ExitCode(err))

	states := decodeStates(t, out)
	require.NotEmpty(t, states)
	assert.Equal(t, "disconnected", states[len(states)-1]["status"])
}

func TestConnect_UnknownProviderSuggestsKind(t *testing.T) {
	saveGlobals(t)

	_, err := runCLI(t, "connect", "--home", t.TempDir(), "-o", "json", "--provider", "nodee")
	require.Error(t, err)

	var we *walleterr.WalletError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, walleterr.ErrProviderUnavailable.Code, we.Code)
	assert.Contains(t, we.Suggestion, `"node"`)
}

func TestConnect_HDWallet(t *testing.T) {
	saveGlobals(t)
	home := t.TempDir()
	node := newFakeNode(t, "0x2a")

	vault := hdwallet.NewVault(home + "/" + config.DefaultVaultFile)
	require.NoError(t, vault.Create(testMnemonic, testPassphrase))

	isTerminalFn = func() bool { return true }
	promptPasswordFn = func(string) ([]byte, error) { return []byte(testPassphrase), nil }

	out, err := runCLI(t, "connect", "--home", home, "-o", "json", "--provider", "hdwallet", "--rpc", node.URL)
	require.NoError(t, err)

	states := decodeStates(t, out)
	require.NotEmpty(t, states)
	last := states[len(states)-1]
	assert.Equal(t, testHDAddress, last["address"])
	assert.Equal(t, "42", last["balance_minor_units"])
	assert.Zero(t, node.calls("eth_requestAccounts"))
}

func TestConnect_HDWalletWithoutTerminal(t *testing.T) {
	saveGlobals(t)
	home := t.TempDir()

	vault := hdwallet.NewVault(home + "/" + config.DefaultVaultFile)
	require.NoError(t, vault.Create(testMnemonic, testPassphrase))

	_, err := runCLI(t, "connect", "--home", home, "-o", "json", "--provider", "hdwallet")
	require.Error(t, err)
	assert.ErrorIs(t, err, walleterr.ErrProviderUnavailable)
}

func TestWatch_RefreshesUntilCancelled(t *testing.T) {
	saveGlobals(t)
	node := newFakeNode(t, "0x64")

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	rootCmd.SetArgs([]string{"watch", "--home", t.TempDir(), "-o", "json", "--rpc", node.URL, "--interval", "20ms"})
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)

	require.NoError(t, rootCmd.ExecuteContext(ctx))

	assert.Equal(t, 1, node.calls("eth_requestAccounts"))
	assert.GreaterOrEqual(t, node.calls("eth_getBalance"), 2)

	states := decodeStates(t, out.String())
	require.NotEmpty(t, states)
	assert.Equal(t, "100", states[len(states)-1]["balance_minor_units"])
}

func TestWatch_ConnectFailureStops(t *testing.T) {
	saveGlobals(t)

	_, err := runCLI(t, "watch", "--home", t.TempDir(), "-o", "json", "--provider", "none", "--interval", "10ms")
	assert.ErrorIs(t, err, walleterr.ErrProviderUnavailable)
}
