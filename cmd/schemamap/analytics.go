package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"schemamap/internal/readiness"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "List registered analytics and their required columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ANALYTIC\tREQUIRES\tDESCRIPTION")

		for _, a := range readiness.DefaultRegistry().Analytics() {
			reqs := make([]string, len(a.Requirements))
			for i, atom := range a.Requirements {
				reqs[i] = atom.String()
			}

			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name, strings.Join(reqs, "; "), a.Description)
		}

		return tw.Flush()
	},
}
