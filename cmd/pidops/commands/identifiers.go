package commands

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/internal/sqlstore"
	"github.com/systmms/pidops/pkg/identifier"
)

func NewIdentifiersCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identifiers",
		Short: "List configured identifier types",
		Long: `List the identifier configurations pidops can act on, with the entity
type, bundle and field each one reads and the credentials it uses.

When identifierSource is configured the list comes from that table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			configs, closeFn, err := openConfigStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			ctx := context.Background()
			names := cfg.Definition.IdentifierNames()
			if store, ok := configs.(*sqlstore.Store); ok {
				if names, err = store.Names(ctx); err != nil {
					return err
				}
			}

			if len(names) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No identifier configurations found.")
				return nil
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "NAME\tENTITY\tBUNDLE\tFIELD\tSTATE KEY\tSTORE\tSHOULDER\n")
			_, _ = fmt.Fprintf(w, "----\t------\t------\t-----\t---------\t-----\t--------\n")
			for _, name := range names {
				idc, err := configs.Get(ctx, name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					name, idc.EntityType, idc.Bundle, idc.Field, idc.StateKey,
					idc.CredentialStoreName(), shoulderOrDash(idc))
			}
			return w.Flush()
		},
	}

	return cmd
}

func shoulderOrDash(idc identifier.Config) string {
	if idc.Shoulder == "" {
		return "-"
	}
	return idc.Shoulder
}
