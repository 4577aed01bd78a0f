package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"chronicle/internal/config"
	"chronicle/internal/store"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var noIngest bool

	cmd := &cobra.Command{
		Use:   "import <archive-root>",
		Short: "Import archive entries without enriching or exporting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archiveRoot, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				if noIngest {
					cfg.Import.IngestNewData = false
				}
				pipeline := buildPipeline(cfg, st, logger)
				manager := buildManager(cfg, st, logger, pipeline)

				results, err := manager.Import(cmd.Context(), archiveRoot, force)
				if err != nil {
					return err
				}
				printImportResults(cmd.OutOrStdout(), results)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reimport entries already recorded in the import cursor")
	cmd.Flags().BoolVar(&noIngest, "no-ingest", false, "Skip ingestion entirely, leaving the store untouched")
	return cmd
}

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich stored entries that still need it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				pipeline := buildPipeline(cfg, st, logger)
				attachProgress(cmd.OutOrStdout(), pipeline)
				manager := buildManager(cfg, st, logger, pipeline)

				summary, err := manager.Enrich(cmd.Context(), force)
				if err != nil {
					return err
				}
				printEnrichmentSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-run enrichment even for items already enriched or parked")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Regenerate the category artifacts from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				pipeline := buildPipeline(cfg, st, logger)
				manager := buildManager(cfg, st, logger, pipeline)

				summary, err := manager.Export(cmd.Context())
				if err != nil {
					return err
				}
				printExportSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
}
