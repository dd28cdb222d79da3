package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCountCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of registered documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.SearchUC.Count(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]int64{"count": n})
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newSearchTitleCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "search-title TERM",
		Short: "List documents whose title contains TERM",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.SearchUC.SearchByTitle(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

func newSimilarCommand(opts *options) *cobra.Command {
	return newSemanticCommand(opts, "similar", "Find the segments closest in meaning to TERM", false)
}

func newHybridCommand(opts *options) *cobra.Command {
	return newSemanticCommand(opts, "hybrid", "Semantic search re-ranked with keyword overlap", true)
}

func newSemanticCommand(opts *options, name, short string, hybrid bool) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   name + " TERM",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			term := strings.Join(args, " ")
			search := app.SearchUC.FindSimilar
			if hybrid {
				search = app.SearchUC.Hybrid
			}
			results, err := search(cmd.Context(), term, k)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "maximum number of results (default from SEARCH_DEFAULT_K)")
	return cmd
}
