// Package errors defines the user-facing error values of the keyturn CLI.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// KeyFileError wraps a key file load/parse failure with context about
// the path and a suggestion matching the failure mode.
func KeyFileError(path string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("Cannot use key file '%s'", path),
		Suggestion: keyFileSuggestion(err),
		Err:        err,
	}
}

func keyFileSuggestion(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "no such file") || strings.Contains(errStr, "not exist") {
		return "Verify the path exists, or generate a fresh key file with 'keyturn keyfile <path>'"
	}
	if strings.Contains(errStr, "permission denied") {
		return "Check the file permissions; key files should be readable only by you (chmod 600)"
	}
	if strings.Contains(errStr, "is a directory") {
		return "Point --set-key-file at a file, not a directory"
	}
	if strings.Contains(errStr, "hash mismatch") || strings.Contains(errStr, "malformed") {
		return "The key file looks damaged. Restore it from backup; a rewritten key file will NOT open existing vaults"
	}
	return ""
}

// VaultError wraps a vault open/save failure with context.
func VaultError(path string, operation string, err error) error {
	suggestion := ""
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "wrong credential"):
		suggestion = "Check the password and make sure you supplied the same key file the vault was sealed with"
	case strings.Contains(errStr, "no such file") || strings.Contains(errStr, "not exist"):
		suggestion = "Verify the vault path, or create a new vault with 'keyturn create'"
	case strings.Contains(errStr, "unsupported vault version"):
		suggestion = "This vault was written by a newer keyturn; upgrade and try again"
	case strings.Contains(errStr, "permission denied"):
		suggestion = "Check file permissions on the vault and its directory"
	}

	return UserError{
		Message:    fmt.Sprintf("Vault %s failed for '%s'", operation, path),
		Suggestion: suggestion,
		Err:        err,
	}
}

// KeyringError wraps an OS keyring failure with platform hints.
func KeyringError(err error) error {
	suggestion := "Pass the password interactively instead of --use-keyring"
	errStr := err.Error()
	if strings.Contains(errStr, "secret service") || strings.Contains(errStr, "dbus") {
		suggestion = "Make sure a Secret Service daemon (gnome-keyring, KWallet) is running, or drop --use-keyring"
	}
	return UserError{
		Message:    "OS keyring access failed",
		Suggestion: suggestion,
		Err:        err,
	}
}

// Simplify maps low-level errors onto friendlier ones where a pattern
// is recognized; anything else passes through unchanged.
func Simplify(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	errStr := err.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}
	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}
	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
