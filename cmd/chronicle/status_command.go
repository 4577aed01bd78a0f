package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"chronicle/internal/config"
	"chronicle/internal/sources"
	"chronicle/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store contents and enrichment progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				counts, err := st.Counts(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				sourceNames := make([]string, 0, len(counts.Entries))
				total := 0
				for source, n := range counts.Entries {
					sourceNames = append(sourceNames, string(source))
					total += n
				}
				sort.Strings(sourceNames)

				rows := make([][]string, 0, len(sourceNames)+1)
				for _, source := range sourceNames {
					rows = append(rows, []string{
						source,
						humanize.Comma(int64(counts.Entries[sources.Type(source)])),
					})
				}
				rows = append(rows, []string{"total", humanize.Comma(int64(total))})
				fmt.Fprintln(out, renderTable(
					[]string{"Source", "Entries"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))

				fmt.Fprintf(out, "Media references: %s (%s unresolved)\n",
					humanize.Comma(int64(counts.Media)),
					humanize.Comma(int64(counts.Unresolved)))

				if len(counts.Enrichment) > 0 {
					var enrichRows [][]string
					for _, kind := range store.AllKinds() {
						statuses := counts.Enrichment[kind]
						if len(statuses) == 0 {
							continue
						}
						for _, status := range []store.EnrichmentStatus{
							store.EnrichmentPending,
							store.EnrichmentEnriching,
							store.EnrichmentEnriched,
							store.EnrichmentSkipped,
							store.EnrichmentFailed,
						} {
							if n := statuses[status]; n > 0 {
								enrichRows = append(enrichRows, []string{
									string(kind), string(status), strconv.Itoa(n),
								})
							}
						}
					}
					if len(enrichRows) > 0 {
						fmt.Fprintln(out, renderTable(
							[]string{"Enrichment", "Status", "Count"},
							enrichRows,
							[]columnAlignment{alignLeft, alignLeft, alignRight},
						))
					}
				}

				if info, err := os.Stat(st.Path()); err == nil {
					fmt.Fprintf(out, "Store: %s (%s)\n", st.Path(), humanize.Bytes(uint64(info.Size())))
				}
				return nil
			})
		},
	}
}
