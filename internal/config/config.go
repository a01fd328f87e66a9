package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	dserrors "github.com/systmms/pidops/internal/errors"
	"github.com/systmms/pidops/internal/logging"
	"github.com/systmms/pidops/pkg/identifier"
	"gopkg.in/yaml.v3"
)

// DefaultRegistrarURL is the CDL EZID API root.
const DefaultRegistrarURL = "https://ezid.cdlib.org"

// DefaultTimeoutMs bounds every registrar call when no timeout is configured.
const DefaultTimeoutMs = 30000

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the pidops.yaml structure
type Definition struct {
	Version          int                              `yaml:"version"`
	Registrar        RegistrarConfig                  `yaml:"registrar,omitempty"`
	CredentialStores map[string]CredentialStoreConfig `yaml:"credentialStores,omitempty"`
	IdentifierSource *IdentifierSourceConfig          `yaml:"identifierSource,omitempty"`
	Identifiers      map[string]identifier.Config     `yaml:"identifiers,omitempty"`
}

// RegistrarConfig holds the registrar endpoint settings
type RegistrarConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	TimeoutMs int    `yaml:"timeout_ms,omitempty"`
}

// CredentialStoreConfig holds credential backend configuration
type CredentialStoreConfig struct {
	Type      string                 `yaml:"type"`
	TimeoutMs int                    `yaml:"timeout_ms,omitempty"`
	Config    map[string]interface{} `yaml:",inline"`
}

// IdentifierSourceConfig points identifier lookups at a SQL table instead
// of the identifiers section of the file
type IdentifierSourceConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table,omitempty"`
}

// GetBaseURL returns the registrar API root without a trailing slash
func (r RegistrarConfig) GetBaseURL() string {
	if r.BaseURL == "" {
		return DefaultRegistrarURL
	}
	return strings.TrimSuffix(r.BaseURL, "/")
}

// GetTimeout returns the bounded registrar request timeout
func (r RegistrarConfig) GetTimeout() time.Duration {
	if r.TimeoutMs <= 0 {
		return DefaultTimeoutMs * time.Millisecond
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// GetTimeout returns the credential lookup timeout
func (c CredentialStoreConfig) GetTimeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return DefaultTimeoutMs * time.Millisecond
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Load reads, validates and stores the pidops.yaml definition
func (c *Config) Load() error {
	def, err := c.Snapshot()
	if err != nil {
		return err
	}
	c.Definition = def
	return nil
}

// Snapshot reads and validates the file without touching c, so concurrent
// lookups never share a Definition.
func (c *Config) Snapshot() (*Definition, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create pidops.yaml or pass --config <path>",
			}
		}
		return nil, dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "configuration does not match the expected structure",
			Suggestion: err.Error(),
		}
	}

	if def.Version != 0 {
		return nil, dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your pidops.yaml file",
		}
	}

	for name, idc := range def.Identifiers {
		idc.Name = name
		def.Identifiers[name] = idc
	}

	return &def, nil
}

// Get resolves a named identifier configuration. The file is re-read on
// every call so edits take effect on the next operation.
func (c *Config) Get(ctx context.Context, name string) (identifier.Config, error) {
	if err := ctx.Err(); err != nil {
		return identifier.Config{}, err
	}

	def, err := c.Snapshot()
	if err != nil {
		return identifier.Config{}, &identifier.ConfigError{
			Name:    name,
			Message: "failed to load configuration",
			Err:     err,
		}
	}

	idc, ok := def.Identifiers[name]
	if !ok {
		msg := "identifier configuration not found"
		if available := def.IdentifierNames(); len(available) > 0 {
			msg = fmt.Sprintf("%s (available: %s)", msg, strings.Join(available, ", "))
		}
		return identifier.Config{}, &identifier.ConfigError{
			Name:    name,
			Message: msg,
		}
	}

	return idc, nil
}

// IdentifierNames returns the configured identifier names in sorted order
func (d *Definition) IdentifierNames() []string {
	names := make([]string, 0, len(d.Identifiers))
	for name := range d.Identifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetCredentialStore returns the configuration for a credential backend
func (c *Config) GetCredentialStore(name string) (CredentialStoreConfig, error) {
	if c.Definition == nil {
		return CredentialStoreConfig{}, dserrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}
	return c.Definition.GetCredentialStore(name)
}

// GetCredentialStore returns the configuration for a credential backend
func (d *Definition) GetCredentialStore(name string) (CredentialStoreConfig, error) {
	if store, ok := d.CredentialStores[name]; ok {
		return store, nil
	}

	var available []string
	for storeName := range d.CredentialStores {
		available = append(available, storeName)
	}
	sort.Strings(available)

	suggestion := "Add the store to the 'credentialStores:' section of your pidops.yaml"
	if len(available) > 0 {
		suggestion = fmt.Sprintf("Available credential stores: %s. %s", strings.Join(available, ", "), suggestion)
	}

	return CredentialStoreConfig{}, dserrors.ConfigError{
		Field:      "credential_store",
		Value:      name,
		Message:    "credential store not found in configuration",
		Suggestion: suggestion,
	}
}

// Registrar returns the registrar settings, falling back to defaults when
// the configuration has not been loaded.
func (c *Config) Registrar() RegistrarConfig {
	if c.Definition == nil {
		return RegistrarConfig{}
	}
	return c.Definition.Registrar
}
