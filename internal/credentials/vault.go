package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/pkg/identifier"
)

// VaultStore reads credential pairs from a Vault KV secrets engine.
// The secret at <mount>/<path_prefix><state_key> must hold "username" and
// "password" keys.
type VaultStore struct {
	name       string
	address    string
	token      string
	namespace  string
	mount      string
	pathPrefix string
	kvVersion  int
	httpClient *http.Client
}

// NewVaultStore creates a Vault store. Recognised settings: address, token,
// namespace, mount, path_prefix and kv_version. The address and token fall
// back to VAULT_ADDR and VAULT_TOKEN.
func NewVaultStore(name string, settings map[string]interface{}, timeout time.Duration) (*VaultStore, error) {
	v := &VaultStore{
		name:       name,
		address:    strings.TrimSuffix(stringOption(settings, "address", os.Getenv("VAULT_ADDR")), "/"),
		token:      stringOption(settings, "token", os.Getenv("VAULT_TOKEN")),
		namespace:  stringOption(settings, "namespace", ""),
		mount:      strings.Trim(stringOption(settings, "mount", "secret"), "/"),
		pathPrefix: strings.TrimPrefix(stringOption(settings, "path_prefix", ""), "/"),
		kvVersion:  2,
		httpClient: &http.Client{Timeout: timeout},
	}

	if kv, ok := settings["kv_version"].(int); ok && kv == 1 {
		v.kvVersion = 1
	}

	if v.address == "" {
		return nil, fmt.Errorf("vault address is required (set 'address' or VAULT_ADDR)")
	}
	if v.token == "" {
		return nil, fmt.Errorf("no vault token found in config or VAULT_TOKEN environment variable")
	}

	return v, nil
}

// NewVaultStoreFactory creates a Vault store factory
func NewVaultStoreFactory(name string, cfg config.CredentialStoreConfig) (Store, error) {
	return NewVaultStore(name, cfg.Config, cfg.GetTimeout())
}

// Name returns the store name
func (v *VaultStore) Name() string {
	return v.name
}

func (v *VaultStore) secretURL(stateKey string) string {
	path := v.pathPrefix + stateKey
	if v.kvVersion == 2 {
		return fmt.Sprintf("%s/v1/%s/data/%s", v.address, v.mount, path)
	}
	return fmt.Sprintf("%s/v1/%s/%s", v.address, v.mount, path)
}

// Get reads the credential pair for stateKey
func (v *VaultStore) Get(ctx context.Context, stateKey string) (identifier.Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.secretURL(stateKey), nil)
	if err != nil {
		return identifier.Credentials{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Vault-Token", v.token)
	if v.namespace != "" {
		req.Header.Set("X-Vault-Namespace", v.namespace)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return identifier.Credentials{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return identifier.Credentials{}, notFound(v.name, stateKey)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return identifier.Credentials{}, fmt.Errorf("vault returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return identifier.Credentials{}, fmt.Errorf("failed to decode response: %w", err)
	}

	data := response.Data
	if v.kvVersion == 2 {
		inner, _ := data["data"].(map[string]interface{})
		data = inner
	}
	if data == nil {
		return identifier.Credentials{}, notFound(v.name, stateKey)
	}

	return fromMap(v.name, stateKey, data)
}
