package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"chronicle/internal/config"
	"chronicle/internal/sources"
	"chronicle/internal/store"
)

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge <source> <id>",
		Short: "Delete one entry and everything derived from it",
		Long: "Purge removes an entry, its media references, enrichment records, and " +
			"import cursor. The entry returns on the next import unless it is also " +
			"removed from the archive. Export artifacts update on the next export.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, ok := sources.Parse(args[0])
			if !ok {
				return fmt.Errorf("unknown source type %q", args[0])
			}
			key := store.NaturalKey{Source: source, SourceID: args[1]}

			if !yes {
				return fmt.Errorf("purge is destructive; re-run with --yes to remove %s/%s", key.Source, key.SourceID)
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				records, err := st.ListEnrichment(cmd.Context(), key)
				if err != nil {
					return err
				}
				removed, err := st.PurgeEntry(cmd.Context(), key)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no entry %s/%s in the store", key.Source, key.SourceID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %s/%s with %d enrichment record(s); run `chronicle export` to refresh artifacts\n",
					key.Source, key.SourceID, len(records))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}
