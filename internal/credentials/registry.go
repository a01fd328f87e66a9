// Package credentials resolves registrar state keys to username/password
// pairs from configurable backends: literal values, environment variables,
// the OS keyring, AWS Secrets Manager and HashiCorp Vault.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/pkg/identifier"
)

// Store is a named credential backend.
type Store interface {
	identifier.CredentialStore

	// Name returns the configured store name.
	Name() string
}

// StoreFactory creates a store instance from configuration
type StoreFactory func(name string, cfg config.CredentialStoreConfig) (Store, error)

// Registry manages credential store creation
type Registry struct {
	factories map[string]StoreFactory
}

// NewRegistry creates a registry with the built-in store types
func NewRegistry() *Registry {
	registry := &Registry{
		factories: make(map[string]StoreFactory),
	}

	registry.RegisterFactory("literal", NewLiteralStoreFactory)
	registry.RegisterFactory("env", NewEnvStoreFactory)
	registry.RegisterFactory("keyring", NewKeyringStoreFactory)
	registry.RegisterFactory("aws.secretsmanager", NewAWSSecretsManagerStoreFactory)
	registry.RegisterFactory("vault", NewVaultStoreFactory)

	return registry
}

// RegisterFactory registers a store factory for a given type
func (r *Registry) RegisterFactory(storeType string, factory StoreFactory) {
	r.factories[storeType] = factory
}

// CreateStore creates a store instance from configuration
func (r *Registry) CreateStore(name string, cfg config.CredentialStoreConfig) (Store, error) {
	factory, exists := r.factories[cfg.Type]
	if !exists {
		return nil, fmt.Errorf("unknown credential store type: %s", cfg.Type)
	}
	return factory(name, cfg)
}

// GetSupportedTypes returns the supported store types in sorted order
func (r *Registry) GetSupportedTypes() []string {
	types := make([]string, 0, len(r.factories))
	for storeType := range r.factories {
		types = append(types, storeType)
	}
	sort.Strings(types)
	return types
}

// IsSupported checks if a store type is supported
func (r *Registry) IsSupported(storeType string) bool {
	_, exists := r.factories[storeType]
	return exists
}

// Router picks the credential store named by an identifier configuration
// and resolves its state key. The configuration file is re-read and the
// store rebuilt on every call, so rotated credentials and edited store
// settings apply to the next operation.
type Router struct {
	Config   *config.Config
	Registry *Registry
}

// NewRouter creates a router over the given configuration
func NewRouter(cfg *config.Config) *Router {
	return &Router{Config: cfg, Registry: NewRegistry()}
}

// ResolveCredentials returns the credentials for idc.StateKey.
func (r *Router) ResolveCredentials(ctx context.Context, idc identifier.Config) (identifier.Credentials, error) {
	def, err := r.Config.Snapshot()
	if err != nil {
		return identifier.Credentials{}, err
	}

	storeName := idc.CredentialStoreName()
	storeCfg, err := def.GetCredentialStore(storeName)
	if err != nil {
		return identifier.Credentials{}, &identifier.ConfigError{
			Name:     idc.Name,
			StateKey: idc.StateKey,
			Message:  fmt.Sprintf("credential store '%s' is not configured", storeName),
			Err:      err,
		}
	}

	store, err := r.Registry.CreateStore(storeName, storeCfg)
	if err != nil {
		return identifier.Credentials{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, storeCfg.GetTimeout())
	defer cancel()

	return store.Get(ctx, idc.StateKey)
}

// notFound builds the error every store returns for an unknown state key.
func notFound(store, stateKey string) error {
	return &identifier.ConfigError{
		StateKey: stateKey,
		Message:  fmt.Sprintf("no credentials stored in '%s'", store),
	}
}

// pair is the JSON shape secret backends hold credentials in.
type pair struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// decodePair parses a {"username": ..., "password": ...} document.
func decodePair(store, stateKey string, data []byte) (identifier.Credentials, error) {
	var p pair
	if err := json.Unmarshal(data, &p); err != nil {
		return identifier.Credentials{}, &identifier.ConfigError{
			StateKey: stateKey,
			Message:  fmt.Sprintf("credentials in '%s' are not a username/password JSON object", store),
			Err:      err,
		}
	}
	return fromMap(store, stateKey, map[string]interface{}{"username": p.Username, "password": p.Password})
}

// fromMap validates a username/password map.
func fromMap(store, stateKey string, m map[string]interface{}) (identifier.Credentials, error) {
	username, _ := m["username"].(string)
	password, _ := m["password"].(string)
	if username == "" || password == "" {
		return identifier.Credentials{}, &identifier.ConfigError{
			StateKey: stateKey,
			Message:  fmt.Sprintf("credentials in '%s' need both username and password", store),
		}
	}
	return identifier.Credentials{Username: username, Password: password}, nil
}

func stringOption(cfg map[string]interface{}, key, fallback string) string {
	if cfg != nil {
		if v, ok := cfg[key].(string); ok && v != "" {
			return v
		}
	}
	return fallback
}
