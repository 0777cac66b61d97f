package hdwallet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// BIP44 path components for Ethereum: m/44'/60'/0'/0/i.
const (
	purpose  = 44
	coinType = 60
)

// DerivedAccount is an address derived from the seed.
type DerivedAccount struct {
	Path    string
	Address string
}

// DerivationPath returns the BIP44 path of the index-th external Ethereum address.
func DerivationPath(index uint32) string {
	return fmt.Sprintf("m/%d'/%d'/0'/0/%d", purpose, coinType, index)
}

// DeriveAccounts derives the first n external addresses from a BIP39 seed.
func DeriveAccounts(seed []byte, n int) ([]DerivedAccount, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}

	external := master
	for _, idx := range []uint32{
		bip32.FirstHardenedChild + purpose,
		bip32.FirstHardenedChild + coinType,
		bip32.FirstHardenedChild,
		0,
	} {
		if external, err = external.NewChildKey(idx); err != nil {
			return nil, fmt.Errorf("deriving account key: %w", err)
		}
	}

	accounts := make([]DerivedAccount, 0, n)
	for i := 0; i < n; i++ {
		child, err := external.NewChildKey(uint32(i)) //nolint:gosec // n is bounded by config validation
		if err != nil {
			return nil, fmt.Errorf("deriving address %d: %w", i, err)
		}

		addr, err := addressFromPrivateKey(child.Key)
		zeroBytes(child.Key)
		if err != nil {
			return nil, err
		}

		accounts = append(accounts, DerivedAccount{
			Path:    DerivationPath(uint32(i)), //nolint:gosec // n is bounded by config validation
			Address: addr,
		})
	}

	zeroBytes(external.Key)
	zeroBytes(master.Key)
	return accounts, nil
}

// addressFromPrivateKey returns the checksummed address for a secp256k1 private key.
func addressFromPrivateKey(key []byte) (string, error) {
	padded := common.LeftPadBytes(key, 32)
	defer zeroBytes(padded)

	priv, err := crypto.ToECDSA(padded)
	if err != nil {
		return "", fmt.Errorf("loading private key: %w", err)
	}
	return crypto.PubkeyToAddress(priv.PublicKey).Hex(), nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// DeriveFromMnemonic derives the first n external addresses of a mnemonic
// without a BIP39 passphrase.
func DeriveFromMnemonic(mnemonic string, n int) ([]DerivedAccount, error) {
	seed, err := bip39.NewSeedWithErrorChecking(NormalizeMnemonic(mnemonic), "")
	if err != nil {
		return nil, walleterr.WithCause(walleterr.ErrInvalidMnemonic, err)
	}
	if mlock(seed) {
		defer munlock(seed)
	}
	defer zeroBytes(seed)

	return DeriveAccounts(seed, n)
}
