package layout

import (
	"l14box/pkg/css"
	"l14box/pkg/html"
)

// ContentKind is the formatting role of a box's content.
type ContentKind int

const (
	ContentBlock ContentKind = iota
	ContentShrinkToFit
	ContentScrollable
	ContentMultiColumn
	ContentInline
	ContentText
	ContentTable
	ContentTableRowGroup
	ContentTableRow
	ContentTableCell
	ContentTableCaption
	ContentTableColumnGroup
	ContentTableColumn
	ContentFlex
	ContentScrollableFlex
	ContentReplaced
	ContentFormControl
	ContentLineBreak
	ContentMarker
)

var contentKindNames = [...]string{
	ContentBlock:            "block",
	ContentShrinkToFit:      "shrink-to-fit",
	ContentScrollable:       "scrollable",
	ContentMultiColumn:      "multi-column",
	ContentInline:           "inline",
	ContentText:             "text",
	ContentTable:            "table",
	ContentTableRowGroup:    "row-group",
	ContentTableRow:         "row",
	ContentTableCell:        "cell",
	ContentTableCaption:     "caption",
	ContentTableColumnGroup: "column-group",
	ContentTableColumn:      "column",
	ContentFlex:             "flex",
	ContentScrollableFlex:   "scrollable-flex",
	ContentReplaced:         "replaced",
	ContentFormControl:      "form-control",
	ContentLineBreak:        "line-break",
	ContentMarker:           "marker",
}

func (k ContentKind) String() string {
	if int(k) < len(contentKindNames) {
		return contentKindNames[k]
	}
	return "unknown"
}

func (k ContentKind) IsFlex() bool { return k == ContentFlex || k == ContentScrollableFlex }

// IsTableStructure is true for the table kinds whose children are
// restricted: table, row group, row and column group.
func (k ContentKind) IsTableStructure() bool {
	switch k {
	case ContentTable, ContentTableRowGroup, ContentTableRow, ContentTableColumnGroup:
		return true
	}
	return false
}

// Content is the payload of a Box. Every Content is owned by exactly one
// Box and points back at it.
type Content interface {
	Kind() ContentKind
	Owner() *Box
}

// Container is content that lays out child boxes.
type Container interface {
	Content
	// EstablishesBlockContext is true for containers whose children form
	// a new block formatting context.
	EstablishesBlockContext() bool
}

// ReplacedContent is content drawn from an external resource or widget
// rather than from child boxes.
type ReplacedContent interface {
	Content
	Source() string
	Resource() ResourceKind
	Ready() bool
}

// IsContainer reports whether c lays out children.
func IsContainer(c Content) bool {
	_, ok := c.(Container)
	return ok
}

type contentBase struct {
	owner *Box
	kind  ContentKind
}

func (c *contentBase) Kind() ContentKind { return c.kind }
func (c *contentBase) Owner() *Box       { return c.owner }

// ContainerContent covers every kind that holds child boxes.
type ContainerContent struct {
	contentBase
}

func (c *ContainerContent) EstablishesBlockContext() bool {
	return c.kind != ContentInline
}

// TableContent tracks the widest row seen so far.
type TableContent struct {
	ContainerContent
	Columns int
}

// RowContent tracks the next free column while cells are added. Each cell
// is charged once however often it is visited.
type RowContent struct {
	ContainerContent
	nextColumn int
	spans      map[*html.Node]int
}

// place charges span columns to cell, replacing any earlier charge for
// the same cell. It reports false, charging nothing, when the row would
// grow past limit.
func (r *RowContent) place(cell *html.Node, span, limit int) bool {
	if prev, ok := r.spans[cell]; ok {
		r.nextColumn -= prev
		delete(r.spans, cell)
	}
	if r.nextColumn+span > limit {
		return false
	}
	if r.spans == nil {
		r.spans = make(map[*html.Node]int)
	}
	r.spans[cell] = span
	r.nextColumn += span
	return true
}

// settle releases the columns of cells that are no longer in the row.
func (r *RowContent) settle() {
	in := make(map[*html.Node]bool, len(r.owner.Children))
	for _, c := range r.owner.Children {
		in[c.Element] = true
	}
	for cell, span := range r.spans {
		if !in[cell] {
			r.nextColumn -= span
			delete(r.spans, cell)
		}
	}
}

func (r *RowContent) reset() {
	r.nextColumn = 0
	clear(r.spans)
}

// TextContent is a run of text. Skip is the number of leading bytes that
// belong to a ::first-letter sibling.
type TextContent struct {
	contentBase
	Text string
	Skip int
}

// Rendered returns the text the box shows.
func (t *TextContent) Rendered() string {
	if t.Skip >= len(t.Text) {
		return ""
	}
	return t.Text[t.Skip:]
}

// ReplacedElementContent is media, an embedded document, a widget or a
// form control.
type ReplacedElementContent struct {
	contentBase
	source   string
	resource ResourceKind
	ready    bool
	Control  string // form control type, e.g. "checkbox" or "select"
}

func (r *ReplacedElementContent) Source() string         { return r.source }
func (r *ReplacedElementContent) Resource() ResourceKind { return r.resource }
func (r *ReplacedElementContent) Ready() bool            { return r.ready }

// LineBreakContent is a forced (br) or optional (wbr) break.
type LineBreakContent struct {
	contentBase
	Optional bool
}

// MarkerContent is a list-item marker.
type MarkerContent struct {
	ContainerContent
	Marker MarkerKind
}

// TableRole is the position an element takes in table structure.
type TableRole int

const (
	RoleNone TableRole = iota
	RoleTable
	RoleRowGroup
	RoleRow
	RoleCell
	RoleColumnGroup
	RoleColumn
	RoleCaption
)

func (r TableRole) String() string {
	switch r {
	case RoleTable:
		return "table"
	case RoleRowGroup:
		return "row-group"
	case RoleRow:
		return "row"
	case RoleCell:
		return "cell"
	case RoleColumnGroup:
		return "column-group"
	case RoleColumn:
		return "column"
	case RoleCaption:
		return "caption"
	}
	return "none"
}

// RoleOf maps a display value to its table role.
func RoleOf(d css.DisplayType) TableRole {
	switch {
	case d.IsTable():
		return RoleTable
	case d.IsRowGroup():
		return RoleRowGroup
	case d == css.DisplayTableRow:
		return RoleRow
	case d == css.DisplayTableCell:
		return RoleCell
	case d == css.DisplayTableColumnGroup:
		return RoleColumnGroup
	case d == css.DisplayTableColumn:
		return RoleColumn
	case d == css.DisplayTableCaption:
		return RoleCaption
	}
	return RoleNone
}

// Positioning is the box's positioning scheme.
type Positioning int

const (
	PositionStatic Positioning = iota
	PositionRelative
	PositionAbsolute
	PositionFixed
)

func (p Positioning) String() string {
	switch p {
	case PositionRelative:
		return "relative"
	case PositionAbsolute:
		return "absolute"
	case PositionFixed:
		return "fixed"
	}
	return "static"
}

// StackingNeed records why a box establishes a stacking context.
type StackingNeed uint8

const (
	StackZIndex StackingNeed = 1 << iota
	StackOpacity
	StackTransform
)

// Box is one node of the box tree. A box always has content; the factory
// never publishes one without the other.
type Box struct {
	Element  *html.Node
	Style    *css.ComputedStyle
	Parent   *Box
	Children []*Box
	Content  Content

	Role        TableRole
	Positioning Positioning
	Stacking    StackingNeed
	Float       css.FloatType
	ZIndex      int
	// Anonymous is true when the element was inserted by layout.
	Anonymous bool
	// FirstLine is the style of the box's part on the first line of its
	// block when ::first-line rules apply there, or nil.
	FirstLine *css.ComputedStyle
}

// CreatesStackingContext reports whether any stacking need is set.
func (b *Box) CreatesStackingContext() bool { return b.Stacking != 0 }

func (b *Box) appendChild(c *Box) {
	c.Parent = b
	b.Children = append(b.Children, c)
}

func (b *Box) removeChild(c *Box) {
	for i, x := range b.Children {
		if x == c {
			b.Children = append(b.Children[:i], b.Children[i+1:]...)
			c.Parent = nil
			return
		}
	}
}

// NoBoxReason says why an element that was visited has no box.
type NoBoxReason string

const (
	NoBoxDisplayNone       NoBoxReason = "display-none"
	NoBoxHiddenReduced     NoBoxReason = "hidden-in-reduced-mode"
	NoBoxContentBlocked    NoBoxReason = "content-blocked"
	NoBoxEmptyPseudo       NoBoxReason = "empty-pseudo"
	NoBoxEmptyText         NoBoxReason = "empty-text"
	NoBoxTableWhitespace   NoBoxReason = "table-whitespace"
	NoBoxFlexWhitespace    NoBoxReason = "flex-whitespace"
	NoBoxColumnGroupChild  NoBoxReason = "column-group-child"
	NoBoxColumnCapExceeded NoBoxReason = "column-cap-exceeded"
)

// BoxTree is the output of the engine: boxes keyed by element, plus the
// computed style snapshot of every element visited.
type BoxTree struct {
	Root *Box

	byNode map[*html.Node]*Box
	styles map[*html.Node]*css.ComputedStyle
	noBox  map[*html.Node]NoBoxReason
}

func NewBoxTree() *BoxTree {
	return &BoxTree{
		byNode: make(map[*html.Node]*Box),
		styles: make(map[*html.Node]*css.ComputedStyle),
		noBox:  make(map[*html.Node]NoBoxReason),
	}
}

// BoxFor returns the box of n, or nil.
func (t *BoxTree) BoxFor(n *html.Node) *Box { return t.byNode[n] }

// StyleFor returns the computed style n had when last visited.
func (t *BoxTree) StyleFor(n *html.Node) *css.ComputedStyle { return t.styles[n] }

// NoBoxReason returns why n has no box, if it was visited and skipped.
func (t *BoxTree) NoBoxReason(n *html.Node) (NoBoxReason, bool) {
	r, ok := t.noBox[n]
	return r, ok
}

// Len is the number of boxes.
func (t *BoxTree) Len() int { return len(t.byNode) }

// Walk visits boxes depth-first in tree order. Returning false from fn
// skips the box's children.
func (t *BoxTree) Walk(fn func(b *Box, depth int) bool) {
	if t.Root == nil {
		return
	}
	var walk func(b *Box, depth int)
	walk = func(b *Box, depth int) {
		if !fn(b, depth) {
			return
		}
		for _, c := range b.Children {
			walk(c, depth+1)
		}
	}
	walk(t.Root, 0)
}

func (t *BoxTree) rememberStyle(n *html.Node, cs *css.ComputedStyle) {
	t.styles[n] = cs
}

func (t *BoxTree) markNoBox(n *html.Node, reason NoBoxReason) {
	t.noBox[n] = reason
	t.discard(n)
}

// discard unlinks and forgets the box of n, if any.
func (t *BoxTree) discard(n *html.Node) {
	b := t.byNode[n]
	if b == nil {
		return
	}
	if b.Parent != nil {
		b.Parent.removeChild(b)
	}
	if t.Root == b {
		t.Root = nil
	}
	delete(t.byNode, n)
}

// forget drops everything known about n, after n left the tree.
func (t *BoxTree) forget(n *html.Node) {
	t.discard(n)
	delete(t.styles, n)
	delete(t.noBox, n)
}

// sweep drops entries for nodes not visited by the pass that just
// completed.
func (t *BoxTree) sweep(visited map[*html.Node]bool) {
	for n := range t.byNode {
		if !visited[n] {
			t.discard(n)
		}
	}
	for n := range t.styles {
		if !visited[n] {
			delete(t.styles, n)
		}
	}
	for n := range t.noBox {
		if !visited[n] {
			delete(t.noBox, n)
		}
	}
}
