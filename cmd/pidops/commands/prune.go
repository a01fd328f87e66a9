package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/pidops/internal/config"
	dserrors "github.com/systmms/pidops/internal/errors"
	"github.com/systmms/pidops/internal/metrics"
	"github.com/systmms/pidops/pkg/identifier"
	"golang.org/x/sync/errgroup"
)

// PruneSummary counts the outcomes of a prune run.
type PruneSummary struct {
	Deleted  int
	Skipped  int
	Rejected int
	Failed   int
}

func (s PruneSummary) String() string {
	return fmt.Sprintf("deleted %d, skipped %d, rejected %d, failed %d", s.Deleted, s.Skipped, s.Rejected, s.Failed)
}

func NewPruneCommand(cfg *config.Config) *cobra.Command {
	var (
		identifierName string
		entitiesFile   string
		concurrency    int
		metricsPort    int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete identifiers for a batch of entities",
		Long: `Delete the identifiers carried by every entity in a JSON Lines file, one
snapshot per line. Entities without an identifier are skipped.

Deletions run in parallel up to --concurrency. A configuration error stops
the run; registrar rejections and transport failures are counted and the
command exits non-zero at the end if any occurred.

Examples:
  pidops prune --identifier ark --entities deleted-nodes.jsonl
  pidops prune --identifier ark --entities - --concurrency 8 --metrics-port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIdentifier(identifierName); err != nil {
				return err
			}
			if concurrency < 1 {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Invalid concurrency %d", concurrency),
					Suggestion: "Use --concurrency 1 or higher",
				}
			}

			entities, err := readEntities(cmd, entitiesFile)
			if err != nil {
				return err
			}

			var m *metrics.RegistrarMetrics
			if metricsPort > 0 {
				serverCfg := metrics.DefaultServerConfig()
				serverCfg.Enabled = true
				serverCfg.Port = metricsPort
				server := metrics.NewServer(serverCfg)
				if err := server.Start(); err != nil {
					return err
				}
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = server.Stop(ctx)
				}()
				commandLogger(cfg).Info("Serving metrics on %s%s", server.Addr(), serverCfg.Path)
				m = metrics.NewRegistrarMetrics()
			}

			client, _, closeFn, err := newRegistrarClient(cfg, m)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			logger := commandLogger(cfg)
			var (
				mu        sync.Mutex
				summary   PruneSummary
				retryable int
			)

			g, ctx := errgroup.WithContext(context.Background())
			g.SetLimit(concurrency)
			for i := range entities {
				entity := entities[i]
				g.Go(func() error {
					result, skipped, err := client.DeleteEntity(ctx, identifierName, entity)

					mu.Lock()
					defer mu.Unlock()
					switch {
					case identifier.IsConfigError(err):
						return err
					case err != nil:
						summary.Failed++
						if dserrors.IsRetryable(err) {
							retryable++
						}
						logger.Warn("%v", err)
					case skipped:
						summary.Skipped++
					case result.Success:
						summary.Deleted++
					default:
						summary.Rejected++
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return dserrors.RegistrarError(identifier.OperationDelete, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Prune finished: %s\n", summary)
			if summary.Rejected > 0 || summary.Failed > 0 {
				suggestion := "Review the log above and re-run prune with the remaining entities"
				if retryable > 0 && retryable == summary.Failed && summary.Rejected == 0 {
					suggestion = "All failures were transient. Re-run prune with the same input"
				}
				return dserrors.UserError{
					Message:    fmt.Sprintf("%d of %d deletions did not succeed", summary.Rejected+summary.Failed, len(entities)),
					Suggestion: suggestion,
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&identifierName, "identifier", "", "Identifier configuration name (required)")
	cmd.Flags().StringVar(&entitiesFile, "entities", "-", "JSON Lines file of entity snapshots, or - for stdin")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum parallel registrar requests")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port while running (0 disables)")

	return cmd
}
