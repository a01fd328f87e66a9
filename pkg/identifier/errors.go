package identifier

import (
	"errors"
	"fmt"
)

// ConfigError is returned when an identifier configuration or a credential
// state key does not resolve.
type ConfigError struct {
	Name     string // identifier configuration name, if known
	StateKey string // credential state key, if known
	Message  string
	Err      error
}

func (e *ConfigError) Error() string {
	msg := "identifier configuration error"
	if e.Name != "" {
		msg += fmt.Sprintf(" for '%s'", e.Name)
	}
	if e.StateKey != "" {
		msg += fmt.Sprintf(" (state key '%s')", e.StateKey)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransportError is returned when a registrar request could not complete:
// dial failures, TLS errors, timeouts and cancellation.
type TransportError struct {
	Op  Operation
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("registrar %s request to %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
