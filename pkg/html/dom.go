package html

import (
	"sort"
	"strings"
)

type Node struct {
	Type       NodeType
	TagName    string
	Attributes map[string]string
	Text       string
	Children   []*Node
	Parent     *Node
	Flags      NodeFlags
}

type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

// NodeFlags records how a node came to be in the tree and whether it
// needs to be revisited by the next reflow pass.
type NodeFlags uint16

const (
	// FlagInsertedByLayout marks nodes the layout engine created. They are
	// never matched by selectors and may be dissolved at any time.
	FlagInsertedByLayout NodeFlags = 1 << iota
	FlagBeforePseudo
	FlagAfterPseudo
	FlagMarkerPseudo
	FlagFirstLetterPseudo
	// FlagGeneratedContent marks children produced from a `content` value.
	FlagGeneratedContent
	// FlagDirty means the node's own box must be rebuilt.
	FlagDirty
	// FlagChildDirty means some descendant is dirty.
	FlagChildDirty
)

const pseudoFlags = FlagBeforePseudo | FlagAfterPseudo | FlagMarkerPseudo | FlagFirstLetterPseudo

// Tag names used for nodes the layout engine inserts.
const (
	TagAnonFlexItem = "-l14-anon-flex-item"
	TagBefore       = "::before"
	TagAfter        = "::after"
	TagMarker       = "::marker"
	TagFirstLetter  = "::first-letter"
	TagDocument     = "document"
)

type Document struct {
	Root        *Node
	Stylesheets []string // CSS from <style> and <link rel="stylesheet">
	Scripts     []string // JavaScript from <script> tags
}

func NewDocument() *Document {
	return &Document{
		Root: &Node{
			Type:     ElementNode,
			TagName:  TagDocument,
			Children: make([]*Node, 0),
		},
		Stylesheets: make([]string, 0),
		Scripts:     make([]string, 0),
	}
}

// NewElement returns a detached element node.
func NewElement(tag string) *Node {
	return &Node{
		Type:       ElementNode,
		TagName:    tag,
		Attributes: make(map[string]string),
		Children:   make([]*Node, 0),
	}
}

// NewText returns a detached text node.
func NewText(text string) *Node {
	return &Node{Type: TextNode, Text: text}
}

func (n *Node) GetAttribute(name string) (string, bool) {
	if n.Attributes == nil {
		return "", false
	}
	val, ok := n.Attributes[name]
	return val, ok
}

// SetAttribute sets an attribute and marks the node dirty.
func (n *Node) SetAttribute(name, value string) {
	if n.Attributes == nil {
		n.Attributes = make(map[string]string)
	}
	n.Attributes[name] = value
	n.MarkDirty()
}

func (n *Node) HasFlag(f NodeFlags) bool { return n.Flags&f != 0 }
func (n *Node) SetFlag(f NodeFlags)      { n.Flags |= f }
func (n *Node) ClearFlag(f NodeFlags)    { n.Flags &^= f }

func (n *Node) IsElement() bool          { return n.Type == ElementNode }
func (n *Node) IsInsertedByLayout() bool { return n.HasFlag(FlagInsertedByLayout) }
func (n *Node) IsPseudoElement() bool    { return n.HasFlag(pseudoFlags) }
func (n *Node) IsBeforePseudo() bool     { return n.HasFlag(FlagBeforePseudo) }
func (n *Node) IsAfterPseudo() bool      { return n.HasFlag(FlagAfterPseudo) }
func (n *Node) IsMarkerPseudo() bool     { return n.HasFlag(FlagMarkerPseudo) }
func (n *Node) IsFirstLetterPseudo() bool {
	return n.HasFlag(FlagFirstLetterPseudo)
}
func (n *Node) IsGeneratedContent() bool { return n.HasFlag(FlagGeneratedContent) }
func (n *Node) IsDirty() bool            { return n.HasFlag(FlagDirty) }

// PseudoName returns "before", "after", "marker" or "first-letter" for
// pseudo-element nodes and "" otherwise.
func (n *Node) PseudoName() string {
	switch {
	case n.IsBeforePseudo():
		return "before"
	case n.IsAfterPseudo():
		return "after"
	case n.IsMarkerPseudo():
		return "marker"
	case n.IsFirstLetterPseudo():
		return "first-letter"
	}
	return ""
}

// AuthorElement walks up past nodes inserted by layout and returns the
// nearest node that came from the document itself.
func (n *Node) AuthorElement() *Node {
	e := n
	for e != nil && e.IsInsertedByLayout() {
		e = e.Parent
	}
	return e
}

// MarkDirty flags the node for rebuild and its ancestors as having a
// dirty descendant.
func (n *Node) MarkDirty() {
	n.SetFlag(FlagDirty)
	for p := n.Parent; p != nil && !p.HasFlag(FlagChildDirty); p = p.Parent {
		p.SetFlag(FlagChildDirty)
	}
}

// ClearDirty drops both dirty bits on this node only.
func (n *Node) ClearDirty() {
	n.ClearFlag(FlagDirty | FlagChildDirty)
}

// AddChild adds a child node and sets up the parent relationship
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// AppendText creates a text node and adds it as a child
func (n *Node) AppendText(text string) {
	if text == "" {
		return
	}
	textNode := &Node{
		Type:   TextNode,
		Text:   text,
		Parent: n,
	}
	n.Children = append(n.Children, textNode)
}

// RemoveChild removes the given child from this node's children list,
// clears its parent pointer, and returns the removed child.
// Returns nil if child is not found.
func (n *Node) RemoveChild(child *Node) *Node {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.Parent = nil
			return child
		}
	}
	return nil
}

// Detach removes n from its parent, if any.
func (n *Node) Detach() {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// InsertBefore inserts newChild before refChild in this node's children.
// If refChild is nil, appends newChild at the end.
// If newChild already has a parent, it is removed from that parent first.
func (n *Node) InsertBefore(newChild, refChild *Node) *Node {
	if newChild.Parent != nil {
		newChild.Parent.RemoveChild(newChild)
	}

	if refChild == nil {
		n.AddChild(newChild)
		return newChild
	}

	for i, c := range n.Children {
		if c == refChild {
			n.Children = append(n.Children, nil)
			copy(n.Children[i+1:], n.Children[i:])
			n.Children[i] = newChild
			newChild.Parent = n
			return newChild
		}
	}

	// refChild not found, append
	n.AddChild(newChild)
	return newChild
}

// InsertAfter places newChild directly after refChild.
func (n *Node) InsertAfter(newChild, refChild *Node) *Node {
	return n.InsertBefore(newChild, refChild.NextSibling())
}

// FirstChild returns the first child or nil.
func (n *Node) FirstChild() *Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// LastChild returns the last child or nil.
func (n *Node) LastChild() *Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// NextSibling returns the following sibling or nil.
func (n *Node) NextSibling() *Node {
	i := n.IndexInParent()
	if i < 0 || i+1 >= len(n.Parent.Children) {
		return nil
	}
	return n.Parent.Children[i+1]
}

// PrevSibling returns the preceding sibling or nil.
func (n *Node) PrevSibling() *Node {
	i := n.IndexInParent()
	if i <= 0 {
		return nil
	}
	return n.Parent.Children[i-1]
}

// NextSkipChildren returns the next node in document order that is not a
// descendant of n.
func (n *Node) NextSkipChildren() *Node {
	for e := n; e != nil; e = e.Parent {
		if s := e.NextSibling(); s != nil {
			return s
		}
	}
	return nil
}

// Next returns the next node in document order.
func (n *Node) Next() *Node {
	if c := n.FirstChild(); c != nil {
		return c
	}
	return n.NextSkipChildren()
}

// CloneNode returns a copy of the node. If deep is true, all descendants
// are cloned recursively. The clone has no parent.
func (n *Node) CloneNode(deep bool) *Node {
	clone := &Node{
		Type:    n.Type,
		TagName: n.TagName,
		Text:    n.Text,
		Flags:   n.Flags,
	}
	if n.Attributes != nil {
		clone.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			clone.Attributes[k] = v
		}
	}
	if deep {
		clone.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			childClone := child.CloneNode(true)
			childClone.Parent = clone
			clone.Children[i] = childClone
		}
	} else {
		clone.Children = make([]*Node, 0)
	}
	return clone
}

// Contains returns true if other is a descendant of n (or n itself).
func (n *Node) Contains(other *Node) bool {
	for e := other; e != nil; e = e.Parent {
		if e == n {
			return true
		}
	}
	return false
}

// IndexInParent returns the index of this node among its parent's children,
// or -1 if it has no parent.
func (n *Node) IndexInParent() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// TextContent concatenates the text of all descendant text nodes.
func (n *Node) TextContent() string {
	if n.Type == TextNode {
		return n.Text
	}
	var sb strings.Builder
	for _, c := range n.Children {
		sb.WriteString(c.TextContent())
	}
	return sb.String()
}

// Serialize returns the innerHTML of this node: the serialized HTML of
// all child nodes, but not the node's own tags.
func (n *Node) Serialize() string {
	var sb strings.Builder
	for _, child := range n.Children {
		serializeNode(&sb, child, false)
	}
	return sb.String()
}

// SerializeOuter returns the outerHTML of this node: the node's own tags
// plus all descendants.
func (n *Node) SerializeOuter() string {
	var sb strings.Builder
	serializeNode(&sb, n, false)
	return sb.String()
}

// SerializeWithFlags is SerializeOuter plus a data-l14-flags attribute on
// every node whose flags are set. Tests use it to compare trees exactly.
func (n *Node) SerializeWithFlags() string {
	var sb strings.Builder
	serializeNode(&sb, n, true)
	return sb.String()
}

func serializeNode(sb *strings.Builder, n *Node, withFlags bool) {
	if n.Type == TextNode {
		if withFlags && n.Flags != 0 {
			sb.WriteString("<!--flags:")
			sb.WriteString(n.Flags.String())
			sb.WriteString("-->")
		}
		sb.WriteString(escapeHTML(n.Text))
		return
	}

	sb.WriteByte('<')
	sb.WriteString(n.TagName)

	// Sort attributes for deterministic output
	if len(n.Attributes) > 0 {
		keys := make([]string, 0, len(n.Attributes))
		for k := range n.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteByte(' ')
			sb.WriteString(k)
			sb.WriteString(`="`)
			sb.WriteString(escapeAttr(n.Attributes[k]))
			sb.WriteByte('"')
		}
	}
	if withFlags && n.Flags != 0 {
		sb.WriteString(` data-l14-flags="`)
		sb.WriteString(n.Flags.String())
		sb.WriteByte('"')
	}

	if isVoidElement(n.TagName) && len(n.Children) == 0 {
		sb.WriteString(">")
		return
	}

	sb.WriteByte('>')
	for _, child := range n.Children {
		serializeNode(sb, child, withFlags)
	}
	sb.WriteString("</")
	sb.WriteString(n.TagName)
	sb.WriteByte('>')
}

var flagNames = []struct {
	flag NodeFlags
	name string
}{
	{FlagInsertedByLayout, "layout"},
	{FlagBeforePseudo, "before"},
	{FlagAfterPseudo, "after"},
	{FlagMarkerPseudo, "marker"},
	{FlagFirstLetterPseudo, "first-letter"},
	{FlagGeneratedContent, "generated"},
	{FlagDirty, "dirty"},
	{FlagChildDirty, "child-dirty"},
}

func (f NodeFlags) String() string {
	parts := make([]string, 0, 2)
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func isVoidElement(tag string) bool {
	switch tag {
	case "br", "hr", "img", "input", "meta", "link", "area", "base",
		"col", "embed", "param", "source", "track", "wbr":
		return true
	}
	return false
}
