package config

// DefaultRPCURL is the default JSON-RPC endpoint: a local development node.
const DefaultRPCURL = "http://127.0.0.1:7545"

// Default file locations, relative to the home directory.
const (
	DefaultVaultFile = "vault.age"
	DefaultLogFile   = "walletlink.log"
)

// MaxAccounts bounds how many accounts the hdwallet provider derives.
const MaxAccounts = 20

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.walletlink",
		Provider: ProviderConfig{
			Kind:      ProviderNode,
			RPC:       DefaultRPCURL,
			ChainID:   0,
			RateLimit: 5,
			RateBurst: 10,
			Vault:     "~/.walletlink/" + DefaultVaultFile,
			Accounts:  1,
		},
		Session: SessionConfig{
			ConnectTimeoutSeconds:  120, // leaves time for a passphrase prompt
			QueryTimeoutSeconds:    15,
			RefreshIntervalSeconds: 15,
			RefreshAttempts:        3,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.walletlink/" + DefaultLogFile,
		},
	}
}
