package render

import (
	"image"
	"image/color"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/colornames"

	"l14box/pkg/layout"
)

// Options controls the outline drawing.
type Options struct {
	Width     int
	RowHeight float64
	Indent    float64
	// Image returns decoded images for ready replaced elements. Optional.
	Image func(url string) (image.Image, bool)
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.RowHeight <= 0 {
		o.RowHeight = 18
	}
	if o.Indent <= 0 {
		o.Indent = 14
	}
}

// Renderer draws a box tree as nested outlines: one labelled row per box,
// each box framing the rows of its descendants. Boxes are painted in
// stacking order, so a positive z-index context is drawn over its
// siblings.
type Renderer struct {
	context *gg.Context
	opts    Options
}

type placed struct {
	box         *layout.Box
	depth       int
	first, last int // row span
}

// Outline renders tree and returns the renderer holding the image.
func Outline(tree *layout.BoxTree, opts Options) *Renderer {
	opts.defaults()
	rows := layoutRows(tree)
	height := int(float64(len(rows)+1) * opts.RowHeight)
	r := &Renderer{context: gg.NewContext(opts.Width, height), opts: opts}

	r.context.SetRGB(1, 1, 1)
	r.context.Clear()
	if tree.Root == nil {
		return r
	}

	root := layout.BuildStackingContextTree(tree.Root)
	rank := make(map[*layout.StackingContext]int)
	for i, c := range root.PaintOrder() {
		rank[c] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rank[layout.ContextFor(rows[i].box, root)] < rank[layout.ContextFor(rows[j].box, root)]
	})
	for _, p := range rows {
		r.drawBox(p)
	}
	return r
}

// layoutRows assigns each box the row range it spans.
func layoutRows(tree *layout.BoxTree) []*placed {
	var out []*placed
	var stack []*placed
	tree.Walk(func(b *layout.Box, depth int) bool {
		for len(stack) > depth {
			stack = stack[:len(stack)-1]
		}
		p := &placed{box: b, depth: depth, first: len(out), last: len(out)}
		for _, s := range stack {
			s.last = p.first
		}
		out = append(out, p)
		stack = append(stack, p)
		return true
	})
	return out
}

func (r *Renderer) drawBox(p *placed) {
	dc := r.context
	x := float64(p.depth)*r.opts.Indent + 2
	y := float64(p.first)*r.opts.RowHeight + 2
	w := float64(r.opts.Width) - x - 2 - float64(p.depth)*2
	h := float64(p.last-p.first+1)*r.opts.RowHeight - 2

	if bg, ok := backgroundOf(p.box); ok {
		dc.SetColor(bg)
		dc.DrawRectangle(x, y, w, h)
		dc.Fill()
	}

	c := kindColor(p.box.Content.Kind())
	dc.SetColor(c)
	dc.SetLineWidth(1)
	if p.box.Stacking != 0 {
		dc.SetLineWidth(2)
	}
	if p.box.Anonymous {
		dc.SetDash(4, 3)
	}
	dc.DrawRectangle(x, y, w, h)
	dc.Stroke()
	dc.SetDash()

	if img, ok := r.replacedImage(p.box); ok {
		b := img.Bounds()
		side := r.opts.RowHeight - 4
		scale := side / float64(max(b.Dx(), b.Dy(), 1))
		dc.Push()
		dc.Translate(x+w-side-4, y+2)
		dc.Scale(scale, scale)
		dc.DrawImage(img, 0, 0)
		dc.Pop()
	}

	dc.SetRGB(0.1, 0.1, 0.1)
	dc.DrawStringAnchored(layout.BoxLabel(p.box), x+4, y+r.opts.RowHeight/2, 0, 0.35)
}

func (r *Renderer) replacedImage(b *layout.Box) (image.Image, bool) {
	rc, ok := b.Content.(*layout.ReplacedElementContent)
	if !ok || !rc.Ready() || r.opts.Image == nil || rc.Resource() != layout.ResourceImage {
		return nil, false
	}
	return r.opts.Image(rc.Source())
}

func kindColor(k layout.ContentKind) color.Color {
	switch {
	case k == layout.ContentText:
		return colornames.Gray
	case k == layout.ContentMarker:
		return colornames.Darkorange
	case k.IsFlex():
		return colornames.Mediumpurple
	case k >= layout.ContentTable && k <= layout.ContentTableColumn:
		return colornames.Seagreen
	case k == layout.ContentReplaced || k == layout.ContentFormControl:
		return colornames.Crimson
	case k == layout.ContentInline || k == layout.ContentLineBreak:
		return colornames.Steelblue
	}
	return colornames.Royalblue
}

// backgroundOf reads a solid background-color the outline can show.
func backgroundOf(b *layout.Box) (color.Color, bool) {
	style := b.Style
	if b.FirstLine != nil {
		style = b.FirstLine
	}
	if style == nil {
		return nil, false
	}
	v := strings.ToLower(strings.TrimSpace(style.Value("background-color")))
	if v == "" || v == "transparent" {
		return nil, false
	}
	if c, ok := colornames.Map[v]; ok {
		return faded(c), true
	}
	if c, ok := parseHex(v); ok {
		return faded(c), true
	}
	return nil, false
}

// faded keeps backgrounds light enough for labels to stay readable.
func faded(c color.RGBA) color.Color {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 64}
}

func parseHex(v string) (color.RGBA, bool) {
	if !strings.HasPrefix(v, "#") {
		return color.RGBA{}, false
	}
	h := v[1:]
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, false
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}, true
}

// Image returns the rendered outline.
func (r *Renderer) Image() image.Image { return r.context.Image() }

func (r *Renderer) SavePNG(filename string) error {
	return r.context.SavePNG(filename)
}

func (r *Renderer) EncodePNG(w io.Writer) error {
	return r.context.EncodePNG(w)
}
