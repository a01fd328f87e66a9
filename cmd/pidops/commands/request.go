package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/systmms/pidops/internal/config"
	dserrors "github.com/systmms/pidops/internal/errors"
	"github.com/systmms/pidops/internal/registrar"
	"github.com/systmms/pidops/pkg/identifier"
)

// NewCreateCommand registers an identifier with the registrar.
func NewCreateCommand(cfg *config.Config) *cobra.Command {
	return newMetadataCommand(cfg, identifier.OperationCreate,
		"Create an identifier with metadata",
		`Register an identifier with the registrar (HTTP PUT).

Examples:
  pidops create --identifier ark --target ark:/99999/fk4abc \
    --meta _target=https://repo.example.org/node/42 --meta erc.what="Field notes"`)
}

// NewUpdateCommand replaces metadata on an existing identifier.
func NewUpdateCommand(cfg *config.Config) *cobra.Command {
	return newMetadataCommand(cfg, identifier.OperationUpdate,
		"Update identifier metadata",
		`Modify the metadata of an existing identifier (HTTP POST).

Examples:
  pidops update --identifier ark --target ark:/99999/fk4abc \
    --meta _target=https://repo.example.org/node/43`)
}

func newMetadataCommand(cfg *config.Config, op identifier.Operation, short, long string) *cobra.Command {
	var (
		identifierName string
		target         string
		meta           []string
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   string(op),
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIdentifier(identifierName); err != nil {
				return err
			}
			if target == "" {
				return dserrors.UserError{
					Message:    "Target identifier is required",
					Suggestion: "Use --target <identifier>, e.g. --target ark:/99999/fk4abc",
				}
			}
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			client, _, closeFn, err := newRegistrarClient(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			ctx := context.Background()
			var result identifier.Result
			if op == identifier.OperationCreate {
				result, err = client.Create(ctx, identifierName, target, metadata)
			} else {
				result, err = client.Update(ctx, identifierName, target, metadata)
			}
			if err != nil {
				return dserrors.RegistrarError(op, err)
			}
			return reportResult(cmd, op, result, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&identifierName, "identifier", "", "Identifier configuration name (required)")
	cmd.Flags().StringVar(&target, "target", "", "Identifier to act on, e.g. ark:/99999/fk4abc (required)")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "Metadata element as key=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}

// NewMintCommand mints a new identifier under the configured shoulder.
func NewMintCommand(cfg *config.Config) *cobra.Command {
	var (
		identifierName string
		shoulder       string
		meta           []string
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a new identifier",
		Long: `Ask the registrar for a new identifier under the shoulder configured for
the identifier type, or under --shoulder. The minted identifier is
printed on stdout.

Examples:
  pidops mint --identifier ark --meta _target=https://repo.example.org/node/42
  ARK=$(pidops mint --identifier ark --shoulder ark:/99999/fk4)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIdentifier(identifierName); err != nil {
				return err
			}
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			client, _, closeFn, err := newRegistrarClient(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			result, err := client.PerformRequest(context.Background(), identifierName, registrar.Request{
				Operation: identifier.OperationMint,
				Target:    shoulder,
				Metadata:  metadata,
			})
			if err != nil {
				return dserrors.RegistrarError(identifier.OperationMint, err)
			}
			return reportResult(cmd, identifier.OperationMint, result, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&identifierName, "identifier", "", "Identifier configuration name (required)")
	cmd.Flags().StringVar(&shoulder, "shoulder", "", "Shoulder to mint under (default: the configured shoulder)")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "Metadata element as key=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}

// NewDeleteCommand deletes an identifier, given directly or read from an
// entity snapshot.
func NewDeleteCommand(cfg *config.Config) *cobra.Command {
	var (
		identifierName string
		target         string
		entityFile     string
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an identifier",
		Long: `Delete an identifier from the registrar (HTTP DELETE).

With --entity the identifier is read from the configured field of the
entity snapshot, and nothing is sent when the entity carries none.

Examples:
  pidops delete --identifier ark --target ark:/99999/fk4abc
  pidops delete --identifier ark --entity node-42.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireIdentifier(identifierName); err != nil {
				return err
			}
			if (target == "") == (entityFile == "") {
				return dserrors.UserError{
					Message:    "Exactly one of --target or --entity is required",
					Suggestion: "Use --target <identifier> or --entity <snapshot.json>",
				}
			}

			client, _, closeFn, err := newRegistrarClient(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			ctx := context.Background()
			if target != "" {
				result, err := client.Delete(ctx, identifierName, target)
				if err != nil {
					return dserrors.RegistrarError(identifier.OperationDelete, err)
				}
				return reportResult(cmd, identifier.OperationDelete, result, jsonOutput)
			}

			entity, err := readEntity(cmd, entityFile)
			if err != nil {
				return err
			}
			result, skipped, err := client.DeleteEntity(ctx, identifierName, entity)
			if err != nil {
				return dserrors.RegistrarError(identifier.OperationDelete, err)
			}
			if skipped {
				commandLogger(cfg).Warn("Entity has no %s identifier, nothing to delete", identifierName)
				return nil
			}
			return reportResult(cmd, identifier.OperationDelete, result, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&identifierName, "identifier", "", "Identifier configuration name (required)")
	cmd.Flags().StringVar(&target, "target", "", "Identifier to delete")
	cmd.Flags().StringVar(&entityFile, "entity", "", "Entity snapshot JSON file holding the identifier, or - for stdin")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}
