package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/siherrmann/hypergrapher/model"
	"github.com/spf13/cobra"
)

func newQueryCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a local search",
		Long: `Find the chunks most similar to the query, collect the facts their
entities take part in and expand to chunks of entities within max-hops.`,
		Example: `  hypergrapher query "Where does Alice work?" --top-n 3 --max-hops 2`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			config := c.options(nil).Query
			result, err := h.QueryLocalWithConfig(cmd.Context(), strings.Join(args, " "), &config)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(c, result)
			}
			printResult(c.out, result)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int("top-n", 0, "number of seed chunks")
	flags.Int("max-hops", 0, "hyperedge hops to expand over")
	flags.Bool("entity-seeds", false, "also seed the expansion with entity vector search")
	flags.BoolVar(&asJSON, "json", false, "write the result as JSON")

	_ = c.v.BindPFlag("query.top_n", flags.Lookup("top-n"))
	_ = c.v.BindPFlag("query.max_hops", flags.Lookup("max-hops"))
	_ = c.v.BindPFlag("query.include_entity_seeds", flags.Lookup("entity-seeds"))
	return cmd
}

func printResult(w io.Writer, result *model.QueryResult) {
	heading := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	score := color.New(color.FgGreen)

	heading.Fprintf(w, "Top chunks (%d)\n", result.TotalChunksFound)
	for i, hit := range result.TopChunks {
		fmt.Fprintf(w, "%2d. ", i+1)
		score.Fprintf(w, "%.3f", hit.Score)
		dim.Fprintf(w, " %s", hit.ID)
		fmt.Fprintf(w, "\n    %s\n", oneLine(hit.Content))
		if len(hit.Entities) > 0 {
			dim.Fprintf(w, "    entities: %s\n", strings.Join(hit.Entities, ", "))
		}
	}

	heading.Fprintf(w, "\nFacts (%d)\n", result.TotalHyperedgesFound)
	for _, edge := range result.Hyperedges {
		fmt.Fprintf(w, "  - %s", oneLine(edge.Content))
		dim.Fprintf(w, " [%s]\n", strings.Join(edge.Entities, ", "))
	}

	heading.Fprintf(w, "\nExpanded chunks (%d)\n", result.TotalExpandedChunks)
	for _, chunk := range result.ExpandedChunks {
		dim.Fprintf(w, "  via %s (distance %d) %s\n", chunk.Via, chunk.Distance, chunk.ID)
		fmt.Fprintf(w, "    %s\n", oneLine(chunk.Content))
	}

	if len(result.EntitiesFound) > 0 {
		heading.Fprintf(w, "\nEntities\n")
		fmt.Fprintf(w, "  %s\n", strings.Join(result.EntitiesFound, ", "))
	}

	warn := color.New(color.FgYellow)
	if result.Degraded {
		warn.Fprintln(w, "\nGraph expansion failed, only similarity results are shown")
	}
	for _, warning := range result.Warnings {
		warn.Fprintf(w, "warning: %s\n", warning)
	}
}

func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
