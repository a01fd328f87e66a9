package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/internal/credentials"
	dserrors "github.com/systmms/pidops/internal/errors"
	"github.com/systmms/pidops/internal/logging"
	"github.com/systmms/pidops/internal/metrics"
	"github.com/systmms/pidops/internal/registrar"
	"github.com/systmms/pidops/internal/sqlstore"
	"github.com/systmms/pidops/pkg/identifier"
)

// ErrConditionNotMet is returned by check when the entity does not satisfy
// the condition. main exits non-zero without printing it.
var ErrConditionNotMet = errors.New("condition not met")

func commandLogger(cfg *config.Config) *logging.Logger {
	if cfg.Logger == nil {
		cfg.Logger = logging.New(false, false)
	}
	return cfg.Logger
}

// openConfigStore returns the SQL identifier source when one is configured
// and the configuration file otherwise.
func openConfigStore(cfg *config.Config) (identifier.ConfigStore, func() error, error) {
	src := cfg.Definition.IdentifierSource
	if src == nil {
		return cfg, func() error { return nil }, nil
	}

	store, err := sqlstore.Open(*src)
	if err != nil {
		return nil, nil, dserrors.ConfigError{
			Field:      "identifierSource",
			Value:      src.Driver,
			Message:    err.Error(),
			Suggestion: "Check identifierSource.driver and identifierSource.dsn in pidops.yaml",
		}
	}
	return store, store.Close, nil
}

// newRegistrarClient loads the configuration and builds a client wired to
// the configured identifier source and credential stores.
func newRegistrarClient(cfg *config.Config, m *metrics.RegistrarMetrics) (*registrar.Client, identifier.ConfigStore, func() error, error) {
	if err := cfg.Load(); err != nil {
		return nil, nil, nil, err
	}

	configs, closeFn, err := openConfigStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	reg := cfg.Registrar()
	client := registrar.NewClient(
		configs,
		newCredentialRouter(cfg),
		commandLogger(cfg),
		registrar.WithBaseURL(reg.GetBaseURL()),
		registrar.WithTimeout(reg.GetTimeout()),
		registrar.WithMetrics(m),
	)
	return client, configs, closeFn, nil
}

func newCredentialRouter(cfg *config.Config) *credentials.Router {
	router := credentials.NewRouter(cfg)
	if keyringClient != nil {
		router.Registry.RegisterFactory("keyring", credentials.KeyringStoreFactoryWithClient(keyringClient))
	}
	return router
}

func requireIdentifier(name string) error {
	if name == "" {
		return dserrors.UserError{
			Message:    "Identifier configuration name is required",
			Suggestion: "Use --identifier <name>. List them with 'pidops identifiers'",
		}
	}
	return nil
}

// parseMetadata turns repeated --meta key=value flags into a map.
func parseMetadata(pairs []string) (map[string]string, error) {
	metadata := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, dserrors.UserError{
				Message:    fmt.Sprintf("Invalid metadata %q", p),
				Suggestion: "Use --meta key=value, e.g. --meta _target=https://example.org/node/1",
			}
		}
		metadata[key] = value
	}
	return metadata, nil
}

// openInput opens path for reading; "-" means the command's stdin.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    fmt.Sprintf("Failed to open %s", path),
			Suggestion: "Check the file path and permissions",
			Err:        err,
		}
	}
	return f, nil
}

// readEntity decodes one entity snapshot:
//
//	{"entity_type": "node", "bundle": "islandora_object", "fields": {"field_ark": [...]}}
func readEntity(cmd *cobra.Command, path string) (identifier.Entity, error) {
	r, err := openInput(cmd, path)
	if err != nil {
		return identifier.Entity{}, err
	}
	defer func() { _ = r.Close() }()

	var entity identifier.Entity
	if err := json.NewDecoder(r).Decode(&entity); err != nil {
		return identifier.Entity{}, dserrors.UserError{
			Message:    fmt.Sprintf("Invalid entity snapshot in %s", path),
			Details:    err.Error(),
			Suggestion: `Provide JSON like {"entity_type": "node", "bundle": "page", "fields": {"field_ark": "ark:/..."}}`,
			Err:        err,
		}
	}
	return entity, nil
}

// readEntities decodes a JSON Lines file of entity snapshots. Blank lines
// are skipped.
func readEntities(cmd *cobra.Command, path string) ([]identifier.Entity, error) {
	r, err := openInput(cmd, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var entities []identifier.Entity
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var entity identifier.Entity
		if err := json.Unmarshal([]byte(text), &entity); err != nil {
			return nil, dserrors.UserError{
				Message: fmt.Sprintf("Invalid entity snapshot on line %d of %s", line, path),
				Details: err.Error(),
				Err:     err,
			}
		}
		entities = append(entities, entity)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return entities, nil
}

// reportResult prints a successful result and turns a rejection into an
// error so the process exits non-zero.
func reportResult(cmd *cobra.Command, op identifier.Operation, result identifier.Result, jsonOutput bool) error {
	out := cmd.OutOrStdout()

	if jsonOutput {
		payload := map[string]interface{}{
			"operation": string(op),
			"success":   result.Success,
		}
		if result.Success {
			payload["identifier"] = result.Identifier()
			payload["metadata"] = result.Metadata
		} else {
			payload["message"] = result.Message
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else if result.Success {
		_, _ = fmt.Fprintln(out, result.Identifier())
	}

	if !result.Success {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Registrar rejected the %s request", op),
			Details:    strings.TrimSpace(result.Message),
			Suggestion: "Check the identifier, its metadata and the account's permissions on the registrar",
		}
	}
	return nil
}
