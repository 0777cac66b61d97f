package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome         = "WALLETLINK_HOME"
	EnvProvider     = "WALLETLINK_PROVIDER"
	EnvRPC          = "WALLETLINK_RPC"
	EnvChainID      = "WALLETLINK_CHAIN_ID"
	EnvVault        = "WALLETLINK_VAULT"
	EnvOutputFormat = "WALLETLINK_OUTPUT_FORMAT"
	EnvVerbose      = "WALLETLINK_VERBOSE"
	EnvLogLevel     = "WALLETLINK_LOG_LEVEL"
	EnvNoColor      = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Provider.Kind = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvRPC); v != "" {
		cfg.Provider.RPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvChainID); v != "" {
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && id >= 0 {
			cfg.Provider.ChainID = id
		}
	}

	if v := os.Getenv(EnvVault); v != "" {
		cfg.Provider.Vault = v
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL trims whitespace and copy-paste artifacts (quotes, trailing slashes) from a URL.
func SanitizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"'`")
	s = strings.Map(func(r rune) rune {
		if r < 0x21 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.TrimRight(s, "/")
}

// RedactURL hides credentials in a URL for display: user info, query string and
// any path segment after the first are replaced.
func RedactURL(raw string) string {
	u, err := url.Parse(SanitizeURL(raw))
	if err != nil || u.Host == "" {
		return SanitizeURL(raw)
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	if parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2); len(parts) == 2 {
		u.Path = "/" + parts[0] + "/***"
		u.RawPath = "/" + url.PathEscape(parts[0]) + "/***"
	}
	return u.String()
}
