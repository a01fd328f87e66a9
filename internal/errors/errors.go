package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/pidops/pkg/identifier"
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

// ConfigError represents a configuration file error with helpful context
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

// RegistrarError wraps an identifier core error with an operator-facing
// suggestion.
func RegistrarError(op identifier.Operation, err error) error {
	return UserError{
		Message:    fmt.Sprintf("registrar %s failed", op),
		Suggestion: RegistrarSuggestion(err),
		Err:        err,
	}
}

// CredentialStoreError wraps a credential backend failure with context.
func CredentialStoreError(storeType string, stateKey string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s credential store could not resolve '%s'", storeType, stateKey),
		Suggestion: credentialStoreSuggestion(storeType, err),
		Err:        err,
	}
}

// RegistrarSuggestion returns an operator hint for a registrar call failure,
// or "" when there is none.
func RegistrarSuggestion(err error) string {
	if identifier.IsConfigError(err) {
		return "Check the identifier configuration and that its state_key has stored credentials ('pidops login')"
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The registrar did not answer in time. Raise registrar.timeout_ms or try again later"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to reach the registrar. Check registrar.base_url and your network"
	}
	if strings.Contains(errStr, "x509") || strings.Contains(errStr, "tls") {
		return "TLS handshake with the registrar failed. Check the registrar certificate chain"
	}
	return ""
}

func credentialStoreSuggestion(storeType string, err error) string {
	errStr := err.Error()

	switch storeType {
	case "keyring":
		if strings.Contains(errStr, "not found") {
			return "Store the credentials first with 'pidops login --state-key <key> --username <user>'"
		}
		if strings.Contains(errStr, "dbus") || strings.Contains(errStr, "secret service") {
			return "No Secret Service is running. Use the 'env' or 'vault' credential store on headless hosts"
		}
	case "aws.secretsmanager":
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue"
		}
		if strings.Contains(errStr, "ResourceNotFoundException") || strings.Contains(errStr, "not found") {
			return "Verify the secret name and region. List secrets with: 'aws secretsmanager list-secrets'"
		}
	case "vault":
		if strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "403") {
			return "Check the Vault token policy allows reading the credential path"
		}
	case "env":
		return "Export <STATE_KEY>_USERNAME and <STATE_KEY>_PASSWORD, upper-cased with non-alphanumerics as '_'"
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	return ""
}

// IsRetryable checks if an error is worth retrying by the operator
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if identifier.IsConfigError(err) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"temporary failure",
		"connection reset",
		"connection refused",
		"broken pipe",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "json:") || strings.Contains(errStr, "invalid character") {
		return UserError{
			Message:    "Invalid JSON input",
			Suggestion: "Entity snapshots must be JSON objects with entity_type, bundle and fields",
			Err:        err,
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
