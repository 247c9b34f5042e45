package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
	"github.com/persistorai/screener/internal/risk"
)

func newAnalyzeCmd() *cobra.Command {
	var cutoff int
	cmd := &cobra.Command{
		Use:   "analyze <graph-file>... <client> <sanctioned>",
		Short: "Summarize exposure between two addresses of saved graphs",
		Long: `Loads one or more graphs written by 'screen --save-graph' (or checkpoint
files), composes them into one undirected graph, and reports the shortest chain
between the two addresses, the all-paths pair weight and its risk band.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args[:len(args)-2]
			a := models.Address(strings.TrimSpace(args[len(args)-2]))
			b := models.Address(strings.TrimSpace(args[len(args)-1]))

			g, err := composeGraphs(files)
			if err != nil {
				return err
			}

			result, err := risk.Analyze(g, a, b, cutoff)
			if err != nil {
				return err
			}

			if flagFmt == "json" {
				return formatJSON(cmd.OutOrStdout(), result)
			}
			printAnalysis(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().IntVar(&cutoff, "cutoff", 4, "Longest path, in hops, counted in the pair weight")
	return cmd
}

// composeGraphs unions the files' edges into one undirected graph. Merge
// drops self-transfers, so composed graphs carry no self-loops.
func composeGraphs(files []string) (*graph.Graph, error) {
	out := graph.New(graph.Options{Direction: graph.Undirected})

	for _, f := range files {
		g, err := persist.LoadGraph(f)
		if err != nil {
			return nil, err
		}

		out.Compose(g)
	}

	return out, nil
}
