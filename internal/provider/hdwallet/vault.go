package hdwallet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"filippo.io/age"

	"github.com/mrz1836/walletlink/internal/fileutil"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

const (
	vaultFilePermissions = 0o600
	vaultDirPermissions  = 0o700

	// MinPassphraseLength is the shortest passphrase accepted for a new vault.
	MinPassphraseLength = 8
)

// ErrWrongPassphrase indicates the vault could not be opened with the given passphrase.
var ErrWrongPassphrase = &walleterr.WalletError{
	Code:     "WRONG_PASSPHRASE",
	Message:  "wrong vault passphrase",
	ExitCode: walleterr.ExitAuth,
}

// Vault is an age-encrypted file holding a BIP39 mnemonic.
type Vault struct {
	path string

	// workFactor is the scrypt log2(N) used when sealing; 0 keeps age's default.
	workFactor int
}

// NewVault returns a vault stored at path.
func NewVault(path string) *Vault {
	return &Vault{path: path}
}

// Path returns the vault file path.
func (v *Vault) Path() string {
	return v.path
}

// Exists reports whether the vault file is present.
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// Create validates and encrypts mnemonic with passphrase. It refuses to replace an
// existing vault.
func (v *Vault) Create(mnemonic, passphrase string) error {
	if v.Exists() {
		return walleterr.WithDetails(walleterr.ErrVaultExists, map[string]string{"path": v.path})
	}
	if len(passphrase) < MinPassphraseLength {
		return walleterr.WithSuggestion(walleterr.ErrInvalidInput,
			fmt.Sprintf("passphrase must be at least %d characters", MinPassphraseLength))
	}

	mnemonic = NormalizeMnemonic(mnemonic)
	if err := ValidateMnemonic(mnemonic); err != nil {
		return err
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if v.workFactor > 0 {
		recipient.SetWorkFactor(v.workFactor)
	}

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return fmt.Errorf("initializing encryption: %w", err)
	}
	if _, err := io.WriteString(w, mnemonic); err != nil {
		return fmt.Errorf("writing encrypted data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	if err := fileutil.CreateFile(v.path, buf.Bytes(), vaultFilePermissions, vaultDirPermissions); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return walleterr.WithDetails(walleterr.ErrVaultExists, map[string]string{"path": v.path})
		}
		return fmt.Errorf("writing vault: %w", err)
	}
	return nil
}

// Open decrypts the vault and returns the mnemonic bytes. The caller must zero them.
func (v *Vault) Open(passphrase string) ([]byte, error) {
	// #nosec G304 -- vault path is from validated config
	data, err := os.ReadFile(v.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, walleterr.WithDetails(walleterr.ErrVaultNotFound, map[string]string{"path": v.path})
		}
		return nil, fmt.Errorf("reading vault: %w", err)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, ErrWrongPassphrase
		}
		return nil, fmt.Errorf("decrypting vault: %w", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted vault: %w", err)
	}
	return plaintext, nil
}
