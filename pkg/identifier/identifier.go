package identifier

import (
	"context"
	"fmt"
)

// Config describes one named identifier configuration.
type Config struct {
	// Name is the configuration name callers select, e.g. "ark".
	Name string `yaml:"-" json:"name"`

	// EntityType is the entity type that carries the identifier, e.g. "node".
	EntityType string `yaml:"entity" json:"entity"`

	// Bundle is the entity bundle that carries the identifier.
	Bundle string `yaml:"bundle" json:"bundle"`

	// Field is the entity field the identifier is stored in.
	Field string `yaml:"field" json:"field"`

	// StateKey names the credential pair used for registrar calls.
	StateKey string `yaml:"state_key" json:"state_key"`

	// Shoulder is the namespace new identifiers are minted under.
	Shoulder string `yaml:"shoulder,omitempty" json:"shoulder,omitempty"`

	// CredentialStore names the credential backend holding StateKey.
	// Empty means DefaultCredentialStore.
	CredentialStore string `yaml:"credential_store,omitempty" json:"credential_store,omitempty"`
}

// DefaultCredentialStore is the credential backend used when a Config does
// not name one.
const DefaultCredentialStore = "default"

// CredentialStoreName returns the credential backend for this configuration.
func (c Config) CredentialStoreName() string {
	if c.CredentialStore == "" {
		return DefaultCredentialStore
	}
	return c.CredentialStore
}

// Credentials is a registrar username/password pair.
type Credentials struct {
	Username string
	Password string
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %s, Password: [REDACTED]}", c.Username)
}

// GoString implements the GoStringer interface for %#v formatting
func (c Credentials) GoString() string {
	return c.String()
}

// Entity is a read-only view of a repository entity.
//
// A key missing from Fields means the entity does not have that field.
// A key present with a nil value means the field exists but holds nothing.
type Entity struct {
	EntityType string         `json:"entity_type"`
	Bundle     string         `json:"bundle"`
	Fields     map[string]any `json:"fields"`
}

// HasField reports whether the entity defines the named field.
func (e Entity) HasField(name string) bool {
	if e.Fields == nil {
		return false
	}
	_, ok := e.Fields[name]
	return ok
}

// FieldString returns the first non-empty string stored in a field.
// It is used to recover the identifier value itself, e.g. for deletion.
func (e Entity) FieldString(name string) (string, bool) {
	if !e.HasField(name) {
		return "", false
	}
	return firstString(e.Fields[name])
}

func firstString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, val != ""
	case []string:
		for _, item := range val {
			if item != "" {
				return item, true
			}
		}
	case []any:
		for _, item := range val {
			if s, ok := firstString(item); ok {
				return s, true
			}
		}
	case map[string]any:
		// Field items are commonly stored as {"value": "..."}.
		if inner, ok := val["value"]; ok {
			return firstString(inner)
		}
	}
	return "", false
}

// ConfigStore resolves named identifier configurations.
type ConfigStore interface {
	// Get returns the configuration with the given name. Implementations
	// return a *ConfigError when the name does not resolve.
	Get(ctx context.Context, name string) (Config, error)
}

// CredentialStore resolves state keys to registrar credentials.
type CredentialStore interface {
	// Get returns the credentials stored under stateKey. Implementations
	// return a *ConfigError when the key does not resolve.
	Get(ctx context.Context, stateKey string) (Credentials, error)
}
