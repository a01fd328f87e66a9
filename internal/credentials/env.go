package credentials

import (
	"context"
	"os"
	"strings"

	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/pkg/identifier"
)

// EnvStore reads credentials from environment variables named
// <PREFIX><STATE_KEY>_USERNAME and <PREFIX><STATE_KEY>_PASSWORD, with the
// state key upper-cased and non-alphanumerics replaced by '_'.
type EnvStore struct {
	name   string
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvStore creates an environment-backed store
func NewEnvStore(name, prefix string) *EnvStore {
	return &EnvStore{name: name, prefix: prefix, lookup: os.LookupEnv}
}

// NewEnvStoreFactory reads an optional "prefix" setting
func NewEnvStoreFactory(name string, cfg config.CredentialStoreConfig) (Store, error) {
	return NewEnvStore(name, stringOption(cfg.Config, "prefix", "")), nil
}

// Name returns the store name
func (e *EnvStore) Name() string {
	return e.name
}

// VariableNames returns the username and password variable names for stateKey
func (e *EnvStore) VariableNames(stateKey string) (string, string) {
	base := e.prefix + envName(stateKey)
	return base + "_USERNAME", base + "_PASSWORD"
}

// Get reads the credential pair for stateKey
func (e *EnvStore) Get(ctx context.Context, stateKey string) (identifier.Credentials, error) {
	userVar, passVar := e.VariableNames(stateKey)
	username, uok := e.lookup(userVar)
	password, pok := e.lookup(passVar)
	if !uok && !pok {
		return identifier.Credentials{}, notFound(e.name, stateKey)
	}
	return fromMap(e.name, stateKey, map[string]interface{}{"username": username, "password": password})
}

func envName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
}
