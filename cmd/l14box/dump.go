package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"l14box/pkg/layout"
)

func newDumpCmd(a *app) *cobra.Command {
	var markup, stats bool
	cmd := &cobra.Command{
		Use:   "dump <file|url|->",
		Short: "Print the box tree",
		Long: `Dump settles the document and prints its box tree, one box per line.
With --markup the markup tree is printed first, including the anonymous
wrappers and pseudo-elements construction inserted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if markup {
				fmt.Fprint(out, layout.DumpMarkup(s.Document().Root))
				fmt.Fprintln(out)
			}
			fmt.Fprint(out, layout.Dump(s.Tree()))
			if stats {
				st := s.Driver().Stats()
				fmt.Fprintf(out, "\npasses=%d elements=%d allocated=%d reused=%d repairs=%d generated=%d retries=%d yields=%d dropped-cells=%d\n",
					s.Passes(), st.Elements, st.BoxesAllocated, st.BoxesReused, st.Repairs, st.Generated, st.Retries, st.Yields, st.CellsDropped)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&markup, "markup", false, "print the markup tree before the box tree")
	cmd.Flags().BoolVar(&stats, "stats", false, "print statistics of the last pass")
	return cmd
}
