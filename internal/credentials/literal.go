package credentials

import (
	"context"

	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/pkg/identifier"
)

// LiteralStore serves credentials written directly into configuration.
// Meant for tests and local registrar sandboxes.
type LiteralStore struct {
	name   string
	values map[string]identifier.Credentials
}

// NewLiteralStore creates a literal store with predefined values
func NewLiteralStore(name string, values map[string]identifier.Credentials) *LiteralStore {
	if values == nil {
		values = make(map[string]identifier.Credentials)
	}
	return &LiteralStore{name: name, values: values}
}

// NewLiteralStoreFactory reads
//
//	values:
//	  <state_key>: {username: ..., password: ...}
func NewLiteralStoreFactory(name string, cfg config.CredentialStoreConfig) (Store, error) {
	values := make(map[string]identifier.Credentials)
	if raw, ok := cfg.Config["values"].(map[string]interface{}); ok {
		for key, v := range raw {
			m, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			creds, err := fromMap(name, key, m)
			if err != nil {
				return nil, err
			}
			values[key] = creds
		}
	}
	return NewLiteralStore(name, values), nil
}

// Name returns the store name
func (l *LiteralStore) Name() string {
	return l.name
}

// Get returns the literal credentials for stateKey
func (l *LiteralStore) Get(ctx context.Context, stateKey string) (identifier.Credentials, error) {
	creds, ok := l.values[stateKey]
	if !ok {
		return identifier.Credentials{}, notFound(l.name, stateKey)
	}
	return creds, nil
}
