package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/provider/hdwallet"
	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// vaultCmd is the parent command for the hdwallet vault.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the hdwallet vault",
	Long:  `Create the encrypted vault holding the mnemonic used by the hdwallet provider.`,
}

// vaultCreateCmd creates the vault.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var vaultCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new vault",
	Long: `Generate a new BIP39 mnemonic, or import an existing one, and store it in
the vault encrypted with a passphrase. The passphrase is asked for every time
the hdwallet provider connects.

Write the generated mnemonic down: it is the only way to recover the wallet
if the vault or its passphrase is lost.

Example:
  walletlink vault create
  walletlink vault create --words 24
  walletlink vault create --import`,
	Args: cobra.NoArgs,
	RunE: runVaultCreate,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	vaultWords  int
	vaultImport bool
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultCreateCmd)

	vaultCreateCmd.Flags().IntVar(&vaultWords, "words", 12, "mnemonic length: 12 or 24")
	vaultCreateCmd.Flags().BoolVar(&vaultImport, "import", false, "import an existing mnemonic instead of generating one")
}

// vaultCreated is the JSON result of vault create.
type vaultCreated struct {
	Path     string `json:"path"`
	Address  string `json:"address"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

func runVaultCreate(cmd *cobra.Command, _ []string) error {
	vault := hdwallet.NewVault(cfg.GetVaultPath())
	if vault.Exists() {
		return walleterr.WithDetails(walleterr.ErrVaultExists, map[string]string{"path": vault.Path()})
	}

	mnemonic, err := vaultMnemonic(cmd)
	if err != nil {
		return err
	}

	accounts, err := hdwallet.DeriveFromMnemonic(mnemonic, 1)
	if err != nil {
		return err
	}

	passphrase, err := promptNewPassphraseFn()
	if err != nil {
		return err
	}

	if err := vault.Create(mnemonic, passphrase); err != nil {
		return err
	}
	logger.Debug("vault created at %s", vault.Path())

	result := vaultCreated{Path: vault.Path(), Address: accounts[0].Address}
	if !vaultImport {
		result.Mnemonic = mnemonic
	}

	if formatter.IsJSON() {
		return formatter.Print(result)
	}

	w := cmd.OutOrStdout()
	if result.Mnemonic != "" {
		_, _ = fmt.Fprintln(w, "Recovery phrase (write it down, it is not shown again):")
		_, _ = fmt.Fprintln(w)
		for i, word := range strings.Fields(result.Mnemonic) {
			_, _ = fmt.Fprintf(w, "  %2d. %s\n", i+1, word)
		}
		_, _ = fmt.Fprintln(w)
	}
	output.Successf(w, "Vault created at %s", result.Path)
	return output.NewFields().
		Add("Address", result.Address).
		Add("Path", hdwallet.DerivationPath(0)).
		Render(w)
}

// vaultMnemonic generates a mnemonic, or reads and validates one with --import.
func vaultMnemonic(cmd *cobra.Command) (string, error) {
	if !vaultImport {
		return hdwallet.GenerateMnemonic(vaultWords)
	}

	mnemonic, err := promptMnemonicFn()
	if err != nil {
		return "", err
	}
	mnemonic = hdwallet.NormalizeMnemonic(mnemonic)
	if err := hdwallet.ValidateMnemonic(mnemonic); err != nil {
		return "", err
	}
	if len(strings.Fields(mnemonic)) != vaultWords && cmd.Flags().Changed("words") {
		output.Warnf(cmd.ErrOrStderr(), "imported mnemonic has %d words, ignoring --words %d", len(strings.Fields(mnemonic)), vaultWords)
	}
	return mnemonic, nil
}
