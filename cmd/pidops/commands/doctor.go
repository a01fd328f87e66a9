package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/internal/credentials"
	dserrors "github.com/systmms/pidops/internal/errors"
	"github.com/systmms/pidops/internal/registrar"
	"github.com/systmms/pidops/internal/sqlstore"
)

// HealthCheck is one line of doctor output.
type HealthCheck struct {
	Kind       string // store, source, identifier, registrar
	Name       string
	Type       string
	Healthy    bool
	Message    string
	Suggestion string
}

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var (
		verbose          bool
		checkCredentials bool
		ping             bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credential stores and registrar connectivity",
		Long: `Verify that pidops is ready to talk to the registrar.

This command checks:
- Configuration file validity
- Credential store types
- The SQL identifier source, when configured
- Every identifier configuration and the credential store it names
- Optionally, that each state key resolves (--check-credentials)
- Optionally, that the registrar answers its status endpoint (--ping)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := commandLogger(cfg)
			logger.Info("Checking pidops configuration...")
			if err := cfg.Load(); err != nil {
				logger.Error("Configuration error: %v", err)
				return err
			}
			logger.Info("Configuration loaded successfully")

			ctx := context.Background()
			results := checkCredentialStores(cfg)

			configs, closeFn, err := openConfigStore(cfg)
			if err != nil {
				results = append(results, HealthCheck{
					Kind:    "source",
					Name:    "identifierSource",
					Type:    cfg.Definition.IdentifierSource.Driver,
					Message: err.Error(),
				})
			} else {
				defer func() { _ = closeFn() }()

				names := cfg.Definition.IdentifierNames()
				if store, ok := configs.(*sqlstore.Store); ok {
					check := HealthCheck{Kind: "source", Name: "identifierSource", Type: cfg.Definition.IdentifierSource.Driver}
					pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
					err := store.Ping(pingCtx)
					cancel()
					if err == nil {
						names, err = store.Names(ctx)
					}
					if err != nil {
						check.Message = err.Error()
						check.Suggestion = "Check identifierSource.dsn and that the table exists"
					} else {
						check.Healthy = true
						check.Message = fmt.Sprintf("%d identifier configurations", len(names))
					}
					results = append(results, check)
				}

				router := newCredentialRouter(cfg)
				for _, name := range names {
					check := HealthCheck{Kind: "identifier", Name: name}
					idc, err := configs.Get(ctx, name)
					if err != nil {
						check.Message = err.Error()
						results = append(results, check)
						continue
					}
					check.Type = idc.Bundle
					storeName := idc.CredentialStoreName()
					if _, err := cfg.Definition.GetCredentialStore(storeName); err != nil {
						check.Message = fmt.Sprintf("credential store '%s' is not configured", storeName)
						check.Suggestion = "Add it under credentialStores or set credential_store on the identifier"
						results = append(results, check)
						continue
					}
					if checkCredentials {
						if _, err := router.ResolveCredentials(ctx, idc); err != nil {
							check.Message = err.Error()
							check.Suggestion = dserrors.RegistrarSuggestion(err)
							results = append(results, check)
							continue
						}
					}
					check.Healthy = true
					check.Message = fmt.Sprintf("%s.%s field %s, state key %s", idc.EntityType, idc.Bundle, idc.Field, idc.StateKey)
					results = append(results, check)
				}
			}

			if ping {
				reg := cfg.Registrar()
				client := registrar.NewClient(nil, nil, logger,
					registrar.WithBaseURL(reg.GetBaseURL()),
					registrar.WithTimeout(reg.GetTimeout()),
				)
				check := HealthCheck{Kind: "registrar", Name: reg.GetBaseURL(), Type: "ezid"}
				result, err := client.Status(ctx)
				switch {
				case err != nil:
					check.Message = err.Error()
					check.Suggestion = dserrors.RegistrarSuggestion(err)
				case !result.Success:
					check.Message = result.Message
				default:
					check.Healthy = true
					check.Message = result.Metadata["success"]
				}
				results = append(results, check)
			}

			out := cmd.OutOrStdout()
			displayHealthResults(out, results, verbose)

			healthy := 0
			for _, r := range results {
				if r.Healthy {
					healthy++
				}
			}
			_, _ = fmt.Fprintf(out, "\nSummary: %d/%d checks healthy\n", healthy, len(results))
			if healthy < len(results) {
				return fmt.Errorf("some checks are not healthy")
			}

			logger.Info("All systems operational!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")
	cmd.Flags().BoolVar(&checkCredentials, "check-credentials", false, "Resolve every state key through its credential store")
	cmd.Flags().BoolVar(&ping, "ping", false, "Query the registrar status endpoint")

	return cmd
}

func checkCredentialStores(cfg *config.Config) []HealthCheck {
	registry := credentials.NewRegistry()
	var results []HealthCheck
	for _, name := range sortedKeys(cfg.Definition.CredentialStores) {
		storeCfg := cfg.Definition.CredentialStores[name]
		check := HealthCheck{Kind: "store", Name: name, Type: storeCfg.Type}
		if _, err := registry.CreateStore(name, storeCfg); err != nil {
			check.Message = err.Error()
			check.Suggestion = fmt.Sprintf("Supported types: %v", registry.GetSupportedTypes())
		} else {
			check.Healthy = true
			check.Message = "configured"
		}
		results = append(results, check)
	}
	return results
}

// displayHealthResults shows health checks in a formatted table
func displayHealthResults(out io.Writer, results []HealthCheck, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tNAME\tTYPE\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t----\t----\t------\t-------\n")
	for _, r := range results {
		status := "✗ error"
		if r.Healthy {
			status = "✓ healthy"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Kind, r.Name, r.Type, status, r.Message)
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, r := range results {
		if !r.Healthy && r.Suggestion != "" {
			_, _ = fmt.Fprintf(out, "\n%s %s:\n  • %s\n", r.Kind, r.Name, r.Suggestion)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
