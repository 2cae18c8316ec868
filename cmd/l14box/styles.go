package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"l14box/pkg/css"
	"l14box/pkg/layout"
)

func newStylesCmd(a *app) *cobra.Command {
	var inherited bool
	cmd := &cobra.Command{
		Use:   "styles <file|url|-> <selector>",
		Short: "Print the computed style and box of the first matching element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := css.NewQuery(s.Document().Root).First(args[1])
			if err != nil {
				return err
			}
			if n == nil {
				return fmt.Errorf("no element matches %q", args[1])
			}

			out := cmd.OutOrStdout()
			tree := s.Tree()
			switch box := tree.BoxFor(n); {
			case box != nil:
				fmt.Fprintf(out, "box: %s\n", layout.BoxLabel(box))
				if rc, ok := box.Content.(*layout.ReplacedElementContent); ok && rc.Source() != "" {
					if w, h, ok := s.Loader().Dimensions(rc.Source()); ok {
						fmt.Fprintf(out, "image: %dx%d\n", w, h)
					}
				}
			default:
				if reason, ok := tree.NoBoxReason(n); ok {
					fmt.Fprintf(out, "box: none (%s)\n", reason)
				} else {
					fmt.Fprintln(out, "box: none (not visited)")
				}
			}

			style := tree.StyleFor(n)
			if style == nil {
				return nil
			}
			var names []string
			if inherited {
				names = css.InheritedProperties()
			} else {
				for name := range style.Values {
					names = append(names, name)
				}
				sort.Strings(names)
			}
			for _, name := range names {
				fmt.Fprintf(out, "%s: %s\n", name, style.Value(name))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&inherited, "inherited", false, "print inherited properties only")
	return cmd
}
