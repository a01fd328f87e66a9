package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/pkg/identifier"
)

// DefaultKeyringService is the keyring service credentials are filed under.
const DefaultKeyringService = "pidops"

// KeyringClient is the subset of the OS keyring the store needs.
type KeyringClient interface {
	Get(service, account string) (string, error)
	Set(service, account, secret string) error
	Delete(service, account string) error
}

// ErrKeyringItemNotFound is returned by clients when no item exists
var ErrKeyringItemNotFound = errors.New("keyring item not found")

// osKeyring implements KeyringClient with macOS Keychain, Linux Secret
// Service or Windows Credential Manager.
type osKeyring struct{}

func (osKeyring) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrKeyringItemNotFound
	}
	return secret, err
}

func (osKeyring) Set(service, account, secret string) error {
	return keyring.Set(service, account, secret)
}

func (osKeyring) Delete(service, account string) error {
	err := keyring.Delete(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrKeyringItemNotFound
	}
	return err
}

// KeyringStore keeps credential pairs as JSON documents in the OS keyring,
// one item per state key.
type KeyringStore struct {
	name    string
	service string
	client  KeyringClient
}

// NewKeyringStore creates a keyring store on the OS keyring
func NewKeyringStore(name, service string) *KeyringStore {
	return NewKeyringStoreWithClient(name, service, osKeyring{})
}

// NewKeyringStoreWithClient creates a keyring store with a custom client.
// This is primarily for testing, allowing the keyring to be mocked.
func NewKeyringStoreWithClient(name, service string, client KeyringClient) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{name: name, service: service, client: client}
}

// NewKeyringStoreFactory reads an optional "service" setting
func NewKeyringStoreFactory(name string, cfg config.CredentialStoreConfig) (Store, error) {
	return NewKeyringStore(name, stringOption(cfg.Config, "service", DefaultKeyringService)), nil
}

// KeyringStoreFactoryWithClient is NewKeyringStoreFactory over a custom client.
func KeyringStoreFactoryWithClient(client KeyringClient) StoreFactory {
	return func(name string, cfg config.CredentialStoreConfig) (Store, error) {
		return NewKeyringStoreWithClient(name, stringOption(cfg.Config, "service", DefaultKeyringService), client), nil
	}
}

// Name returns the store name
func (k *KeyringStore) Name() string {
	return k.name
}

// Service returns the keyring service name
func (k *KeyringStore) Service() string {
	return k.service
}

// Get reads the credential pair stored under stateKey
func (k *KeyringStore) Get(ctx context.Context, stateKey string) (identifier.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return identifier.Credentials{}, err
	}

	secret, err := k.client.Get(k.service, stateKey)
	if err != nil {
		if errors.Is(err, ErrKeyringItemNotFound) {
			return identifier.Credentials{}, notFound(k.name, stateKey)
		}
		return identifier.Credentials{}, fmt.Errorf("keyring query for %s/%s failed: %w", k.service, stateKey, err)
	}

	return decodePair(k.name, stateKey, []byte(secret))
}

// Put stores a credential pair under stateKey, replacing any existing one
func (k *KeyringStore) Put(stateKey string, creds identifier.Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("username and password are required")
	}

	data, err := json.Marshal(pair{Username: creds.Username, Password: creds.Password})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	if err := k.client.Set(k.service, stateKey, string(data)); err != nil {
		return fmt.Errorf("keyring write for %s/%s failed: %w", k.service, stateKey, err)
	}
	return nil
}

// Remove deletes the credential pair stored under stateKey
func (k *KeyringStore) Remove(stateKey string) error {
	if err := k.client.Delete(k.service, stateKey); err != nil {
		if errors.Is(err, ErrKeyringItemNotFound) {
			return notFound(k.name, stateKey)
		}
		return fmt.Errorf("keyring delete for %s/%s failed: %w", k.service, stateKey, err)
	}
	return nil
}
