// Package testutil provides shared test helpers for pidops: a capturing
// logger, a configuration builder and a fake EZID registrar.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/pkg/identifier"
	"gopkg.in/yaml.v3"
)

// TestConfigBuilder builds pidops.yaml files for tests.
//
//	path := NewTestConfig(t).
//	    WithRegistrar(server.URL).
//	    WithLiteralCredentials("default", "ezid_creds", "apitest", "apitest").
//	    WithIdentifier("ark", ArkConfig()).
//	    Write()
type TestConfigBuilder struct {
	config  *config.Definition
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a builder with an empty version 0 definition.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		config: &config.Definition{
			Version:          0,
			CredentialStores: make(map[string]config.CredentialStoreConfig),
			Identifiers:      make(map[string]identifier.Config),
		},
		tempDir: t.TempDir(),
		t:       t,
	}
}

// ArkConfig returns the islandora ARK configuration used across tests.
func ArkConfig() identifier.Config {
	return identifier.Config{
		EntityType: "node",
		Bundle:     "islandora_object",
		Field:      "field_ark",
		StateKey:   "ezid_creds",
		Shoulder:   "ark:/99999/fk4",
	}
}

// WithRegistrar points the registrar at baseURL.
func (b *TestConfigBuilder) WithRegistrar(baseURL string) *TestConfigBuilder {
	b.config.Registrar.BaseURL = baseURL
	return b
}

// WithTimeout sets the registrar timeout in milliseconds.
func (b *TestConfigBuilder) WithTimeout(ms int) *TestConfigBuilder {
	b.config.Registrar.TimeoutMs = ms
	return b
}

// WithCredentialStore adds a credential store.
func (b *TestConfigBuilder) WithCredentialStore(name, storeType string, cfg map[string]any) *TestConfigBuilder {
	b.config.CredentialStores[name] = config.CredentialStoreConfig{
		Type:   storeType,
		Config: cfg,
	}
	return b
}

// WithLiteralCredentials adds (or extends) a literal store holding one pair.
func (b *TestConfigBuilder) WithLiteralCredentials(store, stateKey, username, password string) *TestConfigBuilder {
	existing, ok := b.config.CredentialStores[store]
	if !ok || existing.Type != "literal" {
		existing = config.CredentialStoreConfig{
			Type:   "literal",
			Config: map[string]interface{}{"values": map[string]interface{}{}},
		}
	}
	values := existing.Config["values"].(map[string]interface{})
	values[stateKey] = map[string]interface{}{"username": username, "password": password}
	b.config.CredentialStores[store] = existing
	return b
}

// WithIdentifier adds a named identifier configuration.
func (b *TestConfigBuilder) WithIdentifier(name string, idc identifier.Config) *TestConfigBuilder {
	b.config.Identifiers[name] = idc
	return b
}

// Build returns the in-memory definition.
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.config
}

// Write writes pidops.yaml to a temporary directory and returns its path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	path := filepath.Join(b.tempDir, "pidops.yaml")
	if err := b.WriteYAML(path); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// WriteYAML writes the definition to path.
func (b *TestConfigBuilder) WriteYAML(path string) error {
	data, err := yaml.Marshal(b.config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Config returns a *config.Config for the written file.
func (b *TestConfigBuilder) Config() *config.Config {
	b.t.Helper()
	return &config.Config{Path: b.Write()}
}
