package main

import (
	"fmt"
	"image"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"l14box/pkg/render"
)

func newOutlineCmd(a *app) *cobra.Command {
	var output string
	var rowHeight float64
	cmd := &cobra.Command{
		Use:   "outline <file|url|->",
		Short: "Draw the box tree as a PNG outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, cmd, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			r := render.Outline(s.Tree(), render.Options{
				Width:     int(a.cfg.Engine.Viewport.Width),
				RowHeight: rowHeight,
				Image: func(url string) (image.Image, bool) {
					img, err := s.Loader().Image(ctx, url)
					if err != nil {
						a.logger.Debug("no thumbnail", zap.String("url", url), zap.Error(err))
						return nil, false
					}
					return img, true
				},
			})
			if err := r.SavePNG(output); err != nil {
				return fmt.Errorf("saving %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d boxes)\n", output, s.Tree().Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "outline.png", "output PNG file")
	cmd.Flags().Float64Var(&rowHeight, "row-height", 18, "height of one box row in pixels")
	return cmd
}
