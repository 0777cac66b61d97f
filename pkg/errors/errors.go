// Package errors provides structured error handling for walletlink.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess     = 0 // Successful execution
	ExitGeneral     = 1 // General/unknown error
	ExitInput       = 2 // Invalid input
	ExitAuth        = 3 // Authorization declined
	ExitNotFound    = 4 // Resource not found
	ExitUnavailable = 5 // No wallet provider or provider failure
)

// WalletError is the structured error type for walletlink.
type WalletError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *WalletError) Error() string {
	msg := e.Message

	// Details are sorted for deterministic output
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *WalletError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for WalletError. Two errors match when their codes match.
func (e *WalletError) Is(target error) bool {
	var t *WalletError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &WalletError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &WalletError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	// Session errors.
	ErrProviderUnavailable = &WalletError{
		Code:       "PROVIDER_UNAVAILABLE",
		Message:    "no wallet provider is available",
		Suggestion: "configure provider.kind (node or hdwallet) in config.yaml or pass --provider",
		ExitCode:   ExitUnavailable,
	}

	ErrConnectionRejected = &WalletError{
		Code:     "CONNECTION_REJECTED",
		Message:  "account access was not authorized",
		ExitCode: ExitAuth,
	}

	ErrProviderError = &WalletError{
		Code:     "PROVIDER_ERROR",
		Message:  "wallet provider failed",
		ExitCode: ExitUnavailable,
	}

	ErrNotConnected = &WalletError{
		Code:       "NOT_CONNECTED",
		Message:    "wallet is not connected",
		Suggestion: "connect the wallet before querying balances",
		ExitCode:   ExitGeneral,
	}

	ErrBalanceQueryFailed = &WalletError{
		Code:     "BALANCE_QUERY_FAILED",
		Message:  "balance query failed",
		ExitCode: ExitGeneral,
	}

	ErrSessionClosed = &WalletError{
		Code:     "SESSION_CLOSED",
		Message:  "wallet session is closed",
		ExitCode: ExitGeneral,
	}

	// Address errors.
	ErrInvalidAddress = &WalletError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	// Config errors.
	ErrConfigNotFound = &WalletError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &WalletError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	// Vault errors.
	ErrInvalidMnemonic = &WalletError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	ErrVaultNotFound = &WalletError{
		Code:       "VAULT_NOT_FOUND",
		Message:    "wallet vault not found",
		Suggestion: "create one with: walletlink vault create",
		ExitCode:   ExitNotFound,
	}

	ErrVaultExists = &WalletError{
		Code:     "VAULT_EXISTS",
		Message:  "wallet vault already exists",
		ExitCode: ExitInput,
	}
)

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var we *WalletError
	if errors.As(err, &we) {
		return &WalletError{
			Code:       we.Code,
			Message:    fmt.Sprintf("%s: %s", msg, we.Message),
			Details:    we.Details,
			Suggestion: we.Suggestion,
			Cause:      err,
			ExitCode:   we.ExitCode,
		}
	}

	return &WalletError{
		Code:     ErrGeneral.Code,
		Message:  msg,
		Cause:    err,
		ExitCode: ErrGeneral.ExitCode,
	}
}

// WithCause returns a copy of the sentinel carrying cause as its underlying error.
// Both the sentinel and the cause remain matchable with errors.Is.
func WithCause(sentinel *WalletError, cause error) error {
	if sentinel == nil {
		return cause
	}
	return &WalletError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var we *WalletError
	if errors.As(err, &we) {
		return &WalletError{
			Code:       we.Code,
			Message:    we.Message,
			Details:    details,
			Suggestion: we.Suggestion,
			Cause:      we.Cause,
			ExitCode:   we.ExitCode,
		}
	}

	return &WalletError{
		Code:     ErrGeneral.Code,
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ErrGeneral.ExitCode,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var we *WalletError
	if errors.As(err, &we) {
		return &WalletError{
			Code:       we.Code,
			Message:    we.Message,
			Details:    we.Details,
			Suggestion: suggestion,
			Cause:      we.Cause,
			ExitCode:   we.ExitCode,
		}
	}

	return &WalletError{
		Code:       ErrGeneral.Code,
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ErrGeneral.ExitCode,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var we *WalletError
	if errors.As(err, &we) {
		return we.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Code
	}
	return ErrGeneral.Code
}
