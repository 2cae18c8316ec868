package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"l14box/internal/config"
	"l14box/pkg/css"
	"l14box/pkg/layout"
	"l14box/pkg/render"
	"l14box/pkg/resource"
	stdnet "l14box/std/net"
)

// view is everything the window shows for one document.
type view struct {
	Markup  string
	Boxes   string
	Outline image.Image
	Summary string
}

type inspector struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newInspector(cfg *config.Config, logger *zap.Logger) *inspector {
	return &inspector{cfg: cfg, logger: logger}
}

// inspect loads target, a path or an http(s) URL, settles it and builds
// the view.
func (in *inspector) inspect(ctx context.Context, target string) (*view, error) {
	var body []byte
	var base string
	var err error
	if stdnet.IsNetworkURL(target) {
		body, _, err = stdnet.Fetch(ctx, target)
		base = target
	} else {
		body, err = os.ReadFile(target)
		base = filepath.Dir(target)
	}
	if err != nil {
		return nil, err
	}

	s, err := resource.Open(ctx, string(body), resource.NewFetcher(base), resource.Options{
		Viewport:      css.MediaContext{Width: in.cfg.Engine.Viewport.Width, Height: in.cfg.Engine.Viewport.Height},
		Engine:        []layout.Option{layout.WithMaxDepth(in.cfg.Engine.MaxDepth), layout.WithMaxColumns(in.cfg.Engine.MaxColumns)},
		RatePerSecond: in.cfg.Reflow.RatePerSecond,
		Burst:         in.cfg.Reflow.Burst,
		MaxPasses:     in.cfg.Reflow.MaxPasses,
		Scripts:       in.cfg.Engine.Scripts,
		Logger:        in.logger,
		LoaderWorkers: in.cfg.Loader.Workers,
		LoaderTimeout: in.cfg.Loader.Timeout,
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	settled := true
	if err := s.Settle(ctx); err != nil {
		if !errors.Is(err, resource.ErrUnsettled) {
			return nil, err
		}
		settled = false
	}

	tree := s.Tree()
	r := render.Outline(tree, render.Options{
		Width: int(in.cfg.Engine.Viewport.Width),
		Image: func(url string) (image.Image, bool) {
			img, err := s.Loader().Image(ctx, url)
			return img, err == nil
		},
	})
	stats := s.Driver().Stats()
	summary := fmt.Sprintf("%d boxes, %d elements, %d passes", tree.Len(), stats.Elements, s.Passes())
	if !settled {
		summary += " (not settled)"
	}
	return &view{
		Markup:  layout.DumpMarkup(s.Document().Root),
		Boxes:   layout.Dump(tree),
		Outline: r.Image(),
		Summary: summary,
	}, nil
}
