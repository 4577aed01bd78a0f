package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"chronicle/internal/config"
	"chronicle/internal/enrich"
	"chronicle/internal/export"
	"chronicle/internal/importer"
	"chronicle/internal/store"
	"chronicle/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var noIngest bool

	cmd := &cobra.Command{
		Use:   "run <archive-root>",
		Short: "Import, enrich, and export an extracted archive",
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
				attachProgress(cmd.OutOrStdout(), pipeline)
				manager := buildManager(cfg, st, logger, pipeline)

				summary, err := manager.Run(cmd.Context(), archiveRoot, force)
				if err != nil {
					return err
				}
				printRunSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reimport entries already recorded in the import cursor")
	cmd.Flags().BoolVar(&noIngest, "no-ingest", false, "Skip ingestion and only re-enrich and re-export stored entries")
	return cmd
}

func printRunSummary(out io.Writer, summary workflow.RunSummary) {
	fmt.Fprintf(out, "Run %s finished in %s\n\n",
		summary.RunID, summary.Duration.Round(time.Millisecond))

	printImportResults(out, summary.Imports)
	printEnrichmentSummary(out, summary.Enrichment)
	printExportSummary(out, summary.Export)
}

func printImportResults(out io.Writer, results []importer.SourceResult) {
	if len(results) == 0 {
		return
	}
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		status := "ok"
		switch {
		case result.IngestDisabled:
			status = "ingest disabled"
		case !result.LayoutFound:
			status = "layout not found"
		}
		rows = append(rows, []string{
			string(result.Source),
			status,
			strconv.Itoa(result.Imported),
			strconv.Itoa(result.SkippedExisting + result.SkippedDuplicate),
			strconv.Itoa(result.ParseStats.ParseErrors),
			strconv.Itoa(result.ParseStats.MediaUnresolved),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Source", "Status", "Imported", "Skipped", "Parse Errors", "Unresolved Media"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
}

func printEnrichmentSummary(out io.Writer, summary enrich.Summary) {
	if len(summary.Kinds) == 0 {
		return
	}
	kinds := make([]string, 0, len(summary.Kinds))
	for kind := range summary.Kinds {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		counts := summary.Kinds[store.EnrichmentKind(kind)]
		rows = append(rows, []string{
			kind,
			strconv.Itoa(counts.Enriched),
			strconv.Itoa(counts.Skipped),
			strconv.Itoa(counts.Failed),
			strconv.Itoa(counts.Exhausted),
			strconv.Itoa(counts.UpToDate),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Enrichment", "Enriched", "Skipped", "Failed", "Exhausted", "Up To Date"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}

func printExportSummary(out io.Writer, summary export.Summary) {
	if len(summary.Artifacts) == 0 {
		return
	}
	rows := make([][]string, 0, len(export.AllCategories()))
	for _, category := range export.AllCategories() {
		rows = append(rows, []string{
			string(category),
			strconv.Itoa(summary.Categories[category]),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Category", "Entries"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
	fmt.Fprintf(out, "Exported %d entries across %d artifacts\n", summary.Total, len(summary.Artifacts))
}
