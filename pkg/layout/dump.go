package layout

import (
	"fmt"
	"strconv"
	"strings"

	tp "github.com/xlab/treeprint"

	"l14box/pkg/html"
)

// Dump renders the box tree as an indented outline, one box per line.
func Dump(t *BoxTree) string {
	if t.Root == nil {
		return "(empty)\n"
	}
	p := tp.NewWithRoot(BoxLabel(t.Root))
	dumpBoxes(p, t.Root)
	return p.String()
}

func dumpBoxes(p tp.Tree, b *Box) {
	for _, c := range b.Children {
		if len(c.Children) == 0 {
			p.AddNode(BoxLabel(c))
			continue
		}
		dumpBoxes(p.AddBranch(BoxLabel(c)), c)
	}
}

// BoxLabel is the one-line description of a box used in dumps.
func BoxLabel(b *Box) string {
	var sb strings.Builder
	sb.WriteString(b.Content.Kind().String())
	sb.WriteString(" ")
	sb.WriteString(nodeLabel(b.Element))
	if b.Anonymous {
		sb.WriteString(" anon")
	}
	if b.Positioning != PositionStatic {
		sb.WriteString(" " + b.Positioning.String())
	}
	if b.CreatesStackingContext() {
		sb.WriteString(" z=" + strconv.Itoa(b.ZIndex))
	}
	if b.FirstLine != nil {
		sb.WriteString(" first-line")
	}
	switch c := b.Content.(type) {
	case *TextContent:
		sb.WriteString(" " + strconv.Quote(c.Rendered()))
	case *ReplacedElementContent:
		if c.Source() != "" {
			fmt.Fprintf(&sb, " src=%q ready=%t", c.Source(), c.Ready())
		}
		if c.Control != "" {
			sb.WriteString(" control=" + c.Control)
		}
	case *MarkerContent:
		sb.WriteString(" marker=" + c.Marker.String())
	case *TableContent:
		sb.WriteString(" columns=" + strconv.Itoa(c.Columns))
	}
	return sb.String()
}

func nodeLabel(n *html.Node) string {
	if n == nil {
		return "<nil>"
	}
	if n.Type == html.TextNode {
		return "#text"
	}
	return "<" + n.TagName + ">"
}

// DumpMarkup renders the markup tree, flagging nodes inserted by layout.
func DumpMarkup(root *html.Node) string {
	p := tp.NewWithRoot(markupLabel(root))
	dumpMarkup(p, root)
	return p.String()
}

func dumpMarkup(p tp.Tree, n *html.Node) {
	for _, c := range n.Children {
		if len(c.Children) == 0 {
			p.AddNode(markupLabel(c))
			continue
		}
		dumpMarkup(p.AddBranch(markupLabel(c)), c)
	}
}

func markupLabel(n *html.Node) string {
	label := nodeLabel(n)
	if n.Type == html.TextNode {
		label += " " + strconv.Quote(n.Text)
	}
	if n.Flags != 0 {
		label += " [" + n.Flags.String() + "]"
	}
	return label
}
