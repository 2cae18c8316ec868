package css

import (
	"errors"
	"sort"

	"github.com/andybalholm/cascadia"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"l14box/pkg/html"
)

// Resolver produces the specified declarations for nodes of a markup tree.
// Selectors are matched against a mirror of the author tree in which nodes
// the layout engine inserted are transparent, so wrapping an element in an
// anonymous row or flex item never changes what matches it.
type Resolver struct {
	sheets []*Stylesheet
	media  MediaContext

	root   *html.Node
	mirror map[*html.Node]*xhtml.Node
}

// NewResolver returns a resolver for the user agent sheet followed by the
// given author sheets, in order.
func NewResolver(media MediaContext, author ...*Stylesheet) *Resolver {
	sheets := make([]*Stylesheet, 0, len(author)+1)
	sheets = append(sheets, userAgentSheet)
	sheets = append(sheets, author...)
	return &Resolver{sheets: sheets, media: media}
}

// NewDocumentResolver parses the stylesheets collected by the HTML parser.
// A sheet that fails to parse is skipped; the resolver is usable either way
// and the parse errors are returned joined.
func NewDocumentResolver(doc *html.Document, media MediaContext) (*Resolver, error) {
	var errs []error
	author := make([]*Stylesheet, 0, len(doc.Stylesheets))
	for _, text := range doc.Stylesheets {
		sheet, err := ParseStylesheet(text)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		author = append(author, sheet)
	}
	r := NewResolver(media, author...)
	r.Bind(doc.Root)
	return r, errors.Join(errs...)
}

// Bind rebuilds the selector-matching mirror for the tree under root. It
// must be called after author-visible mutations, such as at the start of a
// reflow pass.
func (r *Resolver) Bind(root *html.Node) {
	r.root = root
	r.mirror = make(map[*html.Node]*xhtml.Node)
	r.build(root, nil)
}

func (r *Resolver) build(n *html.Node, parent *xhtml.Node) {
	switch {
	case n.IsPseudoElement() || n.IsGeneratedContent():
		return
	case n.Type == html.TextNode:
		if parent != nil {
			parent.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: n.Text})
		}
		return
	case n.IsInsertedByLayout():
		for _, c := range n.Children {
			r.build(c, parent)
		}
		return
	}

	var m *xhtml.Node
	if n.Parent == nil && n.TagName == html.TagDocument {
		m = &xhtml.Node{Type: xhtml.DocumentNode}
	} else {
		m = &xhtml.Node{
			Type:     xhtml.ElementNode,
			Data:     n.TagName,
			DataAtom: atom.Lookup([]byte(n.TagName)),
			Attr:     mirrorAttrs(n.Attributes),
		}
	}
	if parent != nil {
		parent.AppendChild(m)
	}
	r.mirror[n] = m
	for _, c := range n.Children {
		r.build(c, m)
	}
}

func mirrorAttrs(attrs map[string]string) []xhtml.Attribute {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]xhtml.Attribute, len(keys))
	for i, k := range keys {
		out[i] = xhtml.Attribute{Key: k, Val: attrs[k]}
	}
	return out
}

// mirrorOf returns the mirror node for n, rebinding when n was added after
// the last Bind.
func (r *Resolver) mirrorOf(n *html.Node) *xhtml.Node {
	if m, ok := r.mirror[n]; ok {
		return m
	}
	top := n
	for top.Parent != nil {
		top = top.Parent
	}
	r.Bind(top)
	return r.mirror[n]
}

// Specified returns the cascaded declarations for n. Text nodes and
// generated children have none. Anonymous nodes get only their structural
// display, and pseudo-element nodes get their owner's pseudo rules.
func (r *Resolver) Specified(n *html.Node) *Style {
	switch {
	case n == nil || n.Type == html.TextNode:
		return NewStyle()
	case n.IsPseudoElement():
		return r.pseudoSpecified(n)
	case n.IsGeneratedContent():
		return NewStyle()
	case n.IsInsertedByLayout():
		return anonymousStyle(n)
	case n.Parent == nil && n.TagName == html.TagDocument:
		s := NewStyle()
		s.Set("display", string(DisplayBlock))
		return s
	}
	var inline []Declaration
	if attr, ok := n.GetAttribute("style"); ok {
		inline = parseInlineDeclarations(attr)
	}
	return r.cascade(r.mirrorOf(n), "", inline)
}

func anonymousStyle(n *html.Node) *Style {
	s := NewStyle()
	if n.TagName == html.TagAnonFlexItem {
		s.Set("display", string(DisplayBlock))
		return s
	}
	if d, ok := anonymousDisplay[n.TagName]; ok {
		s.Set("display", string(d))
	}
	return s
}

func (r *Resolver) pseudoSpecified(n *html.Node) *Style {
	name := n.PseudoName()
	owner := n.Parent
	if name == "first-letter" {
		owner = r.FirstLetterOwner(n.Parent)
	}
	if owner == nil {
		return NewStyle()
	}
	return r.PseudoSpecified(owner, name)
}

// PseudoSpecified returns the declarations of owner::pseudo.
func (r *Resolver) PseudoSpecified(owner *html.Node, pseudo string) *Style {
	owner = owner.AuthorElement()
	if owner == nil || owner.Type != html.ElementNode {
		return NewStyle()
	}
	return r.cascade(r.mirrorOf(owner), pseudo, nil)
}

// HasPseudoRules reports whether any rule targets owner::pseudo.
func (r *Resolver) HasPseudoRules(owner *html.Node, pseudo string) bool {
	owner = owner.AuthorElement()
	if owner == nil || owner.Type != html.ElementNode {
		return false
	}
	m := r.mirrorOf(owner)
	if m == nil {
		return false
	}
	for _, sheet := range r.sheets {
		for i := range sheet.Rules {
			rule := &sheet.Rules[i]
			if rule.PseudoElement == pseudo && r.media.Matches(rule.Media) && rule.Selector.Match(m) {
				return true
			}
		}
	}
	return false
}

// FirstLetterOwner returns the nearest element at or above n that has
// ::first-letter rules, or nil.
func (r *Resolver) FirstLetterOwner(n *html.Node) *html.Node {
	for e := n; e != nil; e = e.Parent {
		if e.Type != html.ElementNode || e.IsInsertedByLayout() || e.IsPseudoElement() {
			continue
		}
		if r.HasPseudoRules(e, "first-letter") {
			return e
		}
	}
	return nil
}

// Cascade levels, lowest first.
const (
	levelUserAgent = iota
	levelAuthor
	levelInline
	levelAuthorImportant
	levelInlineImportant
	levelUserAgentImportant
)

type weightedDecl struct {
	Declaration
	level int
	spec  cascadia.Specificity
	sheet int
	order int
}

func (r *Resolver) cascade(m *xhtml.Node, pseudo string, inline []Declaration) *Style {
	var decls []weightedDecl
	if m != nil && m.Type == xhtml.ElementNode {
		for si, sheet := range r.sheets {
			for i := range sheet.Rules {
				rule := &sheet.Rules[i]
				if rule.PseudoElement != pseudo || !r.media.Matches(rule.Media) || !rule.Selector.Match(m) {
					continue
				}
				for _, d := range rule.Declarations {
					decls = append(decls, weightedDecl{
						Declaration: d,
						level:       ruleLevel(sheet.Origin, d.Important),
						spec:        rule.Specificity,
						sheet:       si,
						order:       rule.Order,
					})
				}
			}
		}
	}
	for i, d := range inline {
		level := levelInline
		if d.Important {
			level = levelInlineImportant
		}
		decls = append(decls, weightedDecl{Declaration: d, level: level, sheet: len(r.sheets), order: i})
	}

	sort.SliceStable(decls, func(i, j int) bool {
		a, b := decls[i], decls[j]
		if a.level != b.level {
			return a.level < b.level
		}
		if a.spec != b.spec {
			return a.spec.Less(b.spec)
		}
		if a.sheet != b.sheet {
			return a.sheet < b.sheet
		}
		return a.order < b.order
	})

	style := NewStyle()
	for _, d := range decls {
		style.Set(d.Property, d.Value)
	}
	return style
}

func ruleLevel(origin Origin, important bool) int {
	switch {
	case origin == OriginUserAgent && important:
		return levelUserAgentImportant
	case origin == OriginUserAgent:
		return levelUserAgent
	case important:
		return levelAuthorImportant
	}
	return levelAuthor
}

func parseInlineDeclarations(attr string) []Declaration {
	decls, err := ParseDeclarations(attr)
	if err != nil || len(decls) == 0 {
		return nil
	}
	return expandDeclarations(decls)
}

// ComputeTree resolves computed styles for every element under root in
// document order. It is a convenience for tools; the layout engine builds
// its own chain incrementally.
func (r *Resolver) ComputeTree(root *html.Node) map[*html.Node]*ComputedStyle {
	r.Bind(root)
	styles := make(map[*html.Node]*ComputedStyle)
	var walk func(n *html.Node, parent *ComputedStyle)
	walk = func(n *html.Node, parent *ComputedStyle) {
		if n.Type != html.ElementNode {
			return
		}
		cs := Compute(parent, r.Specified(n))
		styles[n] = cs
		for _, c := range n.Children {
			walk(c, cs)
		}
	}
	walk(root, nil)
	return styles
}
