package js

import (
	"strings"

	"l14box/pkg/html"
)

// Scripts never see what layout put in the tree. Anonymous wrappers are
// transparent, so their children appear as children of the nearest author
// ancestor, and pseudo-element subtrees are absent.

func hiddenFromScripts(n *html.Node) bool {
	return n.IsPseudoElement() || n.IsGeneratedContent()
}

// authorChildren returns n's children as the author sees them.
func authorChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for _, c := range n.Children {
		switch {
		case hiddenFromScripts(c):
		case c.IsInsertedByLayout():
			out = append(out, authorChildren(c)...)
		default:
			out = append(out, c)
		}
	}
	return out
}

func authorElementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for _, c := range authorChildren(n) {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// authorParent skips anonymous ancestors.
func authorParent(n *html.Node) *html.Node {
	p := n.Parent
	for p != nil && p.IsInsertedByLayout() {
		p = p.Parent
	}
	return p
}

// authorSibling returns the sibling offset positions away, or nil.
func authorSibling(n *html.Node, offset int, elementsOnly bool) *html.Node {
	p := authorParent(n)
	if p == nil {
		return nil
	}
	sibs := authorChildren(p)
	if elementsOnly {
		sibs = authorElementChildren(p)
	}
	for i, s := range sibs {
		if s == n {
			if j := i + offset; j >= 0 && j < len(sibs) {
				return sibs[j]
			}
			return nil
		}
	}
	return nil
}

// walkAuthor visits author elements under n in document order, n excluded.
// fn returns true to stop.
func walkAuthor(n *html.Node, fn func(*html.Node) bool) bool {
	for _, c := range authorChildren(n) {
		if c.Type != html.ElementNode {
			continue
		}
		if fn(c) || walkAuthor(c, fn) {
			return true
		}
	}
	return false
}

func authorText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Text
	}
	var sb strings.Builder
	for _, c := range authorChildren(n) {
		sb.WriteString(authorText(c))
	}
	return sb.String()
}

func findByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	walkAuthor(root, func(n *html.Node) bool {
		if v, ok := n.GetAttribute("id"); ok && v == id {
			found = n
			return true
		}
		return false
	})
	return found
}

// findTag returns the first author element named tag.
func findTag(root *html.Node, tag string) *html.Node {
	var found *html.Node
	walkAuthor(root, func(n *html.Node) bool {
		if n.TagName == tag {
			found = n
			return true
		}
		return false
	})
	return found
}
