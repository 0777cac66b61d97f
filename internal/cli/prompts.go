package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mrz1836/walletlink/internal/provider/hdwallet"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // Function variables allow prompts to be mocked in tests
var (
	promptPasswordFn      = promptPassword
	promptNewPassphraseFn = promptNewPassphrase
	promptMnemonicFn      = promptMnemonic
	isTerminalFn          = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) } //nolint:gosec // G115: Fd() fits in int
	saveTerminalFn        = saveTerminal
)

// promptPassword reads a line from the terminal without echo.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	_, _ = fmt.Fprint(os.Stderr, prompt)

	password, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // G115: Fd() fits in int
	_, _ = fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// promptNewPassphrase asks for a vault passphrase twice.
func promptNewPassphrase() (string, error) {
	first, err := promptPasswordFn("Enter vault passphrase: ")
	if err != nil {
		return "", err
	}
	defer zeroBytes(first)

	if len(first) < hdwallet.MinPassphraseLength {
		return "", walleterr.WithSuggestion(walleterr.ErrInvalidInput,
			fmt.Sprintf("passphrase must be at least %d characters", hdwallet.MinPassphraseLength))
	}

	confirm, err := promptPasswordFn("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	defer zeroBytes(confirm)

	if string(first) != string(confirm) {
		return "", walleterr.WithSuggestion(walleterr.ErrInvalidInput, "passphrases do not match")
	}
	return string(first), nil
}

// promptMnemonic reads a mnemonic phrase from stdin.
func promptMnemonic() (string, error) {
	_, _ = fmt.Fprint(os.Stderr, "Enter mnemonic (all words on one line): ")
	return readLine(os.Stdin)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", walleterr.WithCause(walleterr.ErrInvalidInput, err)
	}
	return strings.TrimSpace(line), nil
}

// saveTerminal captures the mode of the stdin terminal and returns a function
// that puts it back.
func saveTerminal() func() {
	fd := int(os.Stdin.Fd()) //nolint:gosec // G115: Fd() fits in int
	state, err := term.GetState(fd)
	if err != nil {
		return func() {}
	}
	return func() { _ = term.Restore(fd, state) }
}

// terminalPrompter asks for the vault passphrase on the terminal.
type terminalPrompter struct{}

// Passphrase implements hdwallet.Prompter. It returns as soon as ctx is done;
// the pending terminal read is then abandoned and echo is switched back on.
func (terminalPrompter) Passphrase(ctx context.Context, prompt string) (string, error) {
	type result struct {
		pass []byte
		err  error
	}
	restore := saveTerminalFn()
	read := promptPasswordFn
	ch := make(chan result, 1)
	go func() {
		pass, err := read(prompt)
		ch <- result{pass, err}
	}()

	select {
	case <-ctx.Done():
		restore()
		_, _ = fmt.Fprintln(os.Stderr)
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		defer zeroBytes(r.pass)
		if len(r.pass) == 0 {
			return "", hdwallet.ErrPromptDeclined
		}
		return string(r.pass), nil
	}
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
