package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/pkg/condition"
)

func NewCheckCommand(cfg *config.Config) *cobra.Command {
	var (
		identifierName string
		entityFile     string
		negate         bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether an entity carries a persistent identifier",
		Long: `Evaluate the "entity has identifier" condition against an entity snapshot.

The snapshot is JSON with entity_type, bundle and fields. The command
prints true or false and exits non-zero when the condition is not met,
so it can gate shell pipelines.

Examples:
  pidops check --identifier ark --entity node-42.json
  drush-export 42 | pidops check --identifier ark --entity - --negate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIdentifier(identifierName); err != nil {
				return err
			}
			if err := cfg.Load(); err != nil {
				return err
			}

			entity, err := readEntity(cmd, entityFile)
			if err != nil {
				return err
			}

			configs, closeFn, err := openConfigStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			cond := condition.Condition{Identifier: identifierName, Negate: negate}
			ok, err := cond.Evaluate(context.Background(), configs, &entity)
			if err != nil {
				return err
			}
			commandLogger(cfg).Debug("%s => %t", cond.Summary(), ok)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), ok)
			if !ok {
				return ErrConditionNotMet
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&identifierName, "identifier", "", "Identifier configuration name (required)")
	cmd.Flags().StringVar(&entityFile, "entity", "-", "Entity snapshot JSON file, or - for stdin")
	cmd.Flags().BoolVar(&negate, "negate", false, "Invert the condition")

	return cmd
}
