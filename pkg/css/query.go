package css

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	xhtml "golang.org/x/net/html"

	"l14box/pkg/html"
)

// Query answers selector questions about a markup tree as its author sees
// it: nodes inserted by layout are transparent and pseudo-elements are not
// there at all. A Query is a snapshot; build a new one after mutating.
type Query struct {
	r    *Resolver
	back map[*xhtml.Node]*html.Node
}

// NewQuery snapshots the tree under root.
func NewQuery(root *html.Node) *Query {
	r := &Resolver{}
	r.Bind(root)
	back := make(map[*xhtml.Node]*html.Node, len(r.mirror))
	for n, m := range r.mirror {
		back[m] = n
	}
	return &Query{r: r, back: back}
}

func compile(selector string) (cascadia.SelectorGroup, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return sel, nil
}

// All returns the elements under the root matching selector, in document
// order. The root itself is never included.
func (q *Query) All(selector string) ([]*html.Node, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	top := q.r.mirror[q.r.root]
	var out []*html.Node
	for _, m := range cascadia.QueryAll(top, sel) {
		if n := q.back[m]; n != nil && n != q.r.root {
			out = append(out, n)
		}
	}
	return out, nil
}

// First returns the first match or nil.
func (q *Query) First(selector string) (*html.Node, error) {
	all, err := q.All(selector)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

// Matches reports whether n matches selector.
func (q *Query) Matches(n *html.Node, selector string) (bool, error) {
	sel, err := compile(selector)
	if err != nil {
		return false, err
	}
	m := q.r.mirror[n]
	return m != nil && m.Type == xhtml.ElementNode && sel.Match(m), nil
}

// Closest returns n or its nearest author ancestor matching selector.
func (q *Query) Closest(n *html.Node, selector string) (*html.Node, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	for m := q.r.mirror[n]; m != nil; m = m.Parent {
		if m.Type == xhtml.ElementNode && sel.Match(m) {
			return q.back[m], nil
		}
	}
	return nil, nil
}
