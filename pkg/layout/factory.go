package layout

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

// MaxColumns is the number of table columns a table can hold. Cells that
// would start or extend past it get no box.
const MaxColumns = 0x1fff

// ResourceKind says what an external load is for.
type ResourceKind int

const (
	ResourceNone ResourceKind = iota
	ResourceImage
	ResourceEmbed
	ResourceVideo
	ResourceAudio
	ResourceDocument
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceImage:
		return "image"
	case ResourceEmbed:
		return "embed"
	case ResourceVideo:
		return "video"
	case ResourceAudio:
		return "audio"
	case ResourceDocument:
		return "document"
	}
	return "none"
}

// Loader fetches external resources. Load must not block; completion is
// reported out of band, typically through Driver.RequestReflow.
type Loader interface {
	Load(url string, kind ResourceKind, owner *html.Node)
	Ready(url string) bool
}

type nopLoader struct{}

func (nopLoader) Load(string, ResourceKind, *html.Node) {}
func (nopLoader) Ready(string) bool                     { return false }

// BlockList reports whether loading url is forbidden.
type BlockList func(url string) bool

// Outcome is the control-flow result of a construction step.
type Outcome int

const (
	Continue Outcome = iota
	InsertedParent
	ElementMovedUp
)

func (o Outcome) String() string {
	switch o {
	case InsertedParent:
		return "inserted-parent"
	case ElementMovedUp:
		return "element-moved-up"
	}
	return "continue"
}

// boxSpec is everything the factory decides before allocating.
type boxSpec struct {
	kind        ContentKind
	role        TableRole
	positioning Positioning
	stacking    StackingNeed
	source      string
	resource    ResourceKind
	ready       bool
	control     string
	optional    bool
	text        string
	skip        int
	marker      MarkerKind
}

// Factory turns cascade records into boxes.
type Factory struct {
	alloc      Allocator
	tree       *BoxTree
	styles     StyleSource
	loader     Loader
	maxColumns int
	logger     *zap.Logger

	allocated int
	reused    int
	dropped   int
}

func NewFactory(alloc Allocator, tree *BoxTree, styles StyleSource, loader Loader, maxColumns int, logger *zap.Logger) *Factory {
	if loader == nil {
		loader = nopLoader{}
	}
	if maxColumns <= 0 {
		maxColumns = MaxColumns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{alloc: alloc, tree: tree, styles: styles, loader: loader, maxColumns: maxColumns, logger: logger}
}

// AllocateBoxAndContent gives rec.Element exactly one box. An existing
// box is reused when the element is clean, its style did not change and
// the same content would be chosen. A table cell past the column capacity
// is dropped: rec.Box stays nil and the outcome is still Continue.
func (f *Factory) AllocateBoxAndContent(rec *Record) (Outcome, error) {
	elem := rec.Element
	spec := f.decide(rec)

	if spec.role == RoleCell && !f.placeCell(rec) {
		f.dropped++
		f.logger.Debug("table cell past column capacity dropped",
			zap.String("tag", elem.TagName), zap.Int("max_columns", f.maxColumns))
		f.tree.markNoBox(elem, NoBoxColumnCapExceeded)
		return Continue, nil
	}

	if old := f.tree.BoxFor(elem); old != nil && rec.Change == StyleUnchanged &&
		!elem.IsDirty() && sameSpec(old, spec) {
		f.reuse(rec, old)
		return Continue, nil
	}

	if err := f.alloc.Reserve(AllocBox, 1); err != nil {
		return Continue, err
	}
	if err := f.alloc.Reserve(AllocContent, 1); err != nil {
		f.alloc.Release(AllocBox, 1)
		return Continue, err
	}

	box := &Box{
		Element:     elem,
		Style:       rec.Style,
		Role:        spec.role,
		Positioning: spec.positioning,
		Stacking:    spec.stacking,
		Float:       rec.Style.Float,
		Anonymous:   elem.IsInsertedByLayout(),
	}
	if spec.stacking&StackZIndex != 0 {
		box.ZIndex = rec.Style.ZIndex
	}
	box.Content = newContent(box, spec)
	f.allocated++

	// Only now does the pair become reachable.
	f.tree.discard(elem)
	f.publish(rec, box)

	if spec.resource != ResourceNone && !spec.ready {
		f.loader.Load(spec.source, spec.resource, elem)
	}
	return Continue, nil
}

func (f *Factory) reuse(rec *Record, b *Box) {
	f.reused++
	b.Children = b.Children[:0]
	b.FirstLine = nil
	if row, ok := b.Content.(*RowContent); ok {
		row.reset()
	}
	if t, ok := b.Content.(*TableContent); ok {
		t.Columns = 0
	}
	if b.Parent != nil {
		b.Parent.removeChild(b)
	}
	f.publish(rec, b)
}

func (f *Factory) publish(rec *Record, b *Box) {
	f.tree.byNode[rec.Element] = b
	delete(f.tree.noBox, rec.Element)
	if rec.ParentBox != nil {
		rec.ParentBox.appendChild(b)
	} else {
		b.Parent = nil
		f.tree.Root = b
	}
	rec.Box = b
}

func sameSpec(b *Box, s boxSpec) bool {
	if b.Content.Kind() != s.kind || b.Role != s.role || b.Positioning != s.positioning || b.Stacking != s.stacking {
		return false
	}
	switch c := b.Content.(type) {
	case *TextContent:
		return c.Text == s.text && c.Skip == s.skip
	case *ReplacedElementContent:
		return c.source == s.source && c.Control == s.control && c.ready == s.ready
	case *MarkerContent:
		return c.Marker == s.marker
	}
	return true
}

func newContent(b *Box, s boxSpec) Content {
	base := contentBase{owner: b, kind: s.kind}
	switch s.kind {
	case ContentText:
		return &TextContent{contentBase: base, Text: s.text, Skip: s.skip}
	case ContentReplaced, ContentFormControl:
		return &ReplacedElementContent{contentBase: base, source: s.source, resource: s.resource, ready: s.ready, Control: s.control}
	case ContentLineBreak:
		return &LineBreakContent{contentBase: base, Optional: s.optional}
	case ContentMarker:
		return &MarkerContent{ContainerContent: ContainerContent{base}, Marker: s.marker}
	case ContentTable:
		return &TableContent{ContainerContent: ContainerContent{base}}
	case ContentTableRow:
		return &RowContent{ContainerContent: ContainerContent{base}}
	}
	return &ContainerContent{base}
}

// decide picks the content kind. Replaced content is decided first, then
// table structure, then the positioning scheme, then stacking needs, then
// the plain block or inline container.
func (f *Factory) decide(rec *Record) boxSpec {
	elem, cs := rec.Element, rec.Style
	var s boxSpec

	if elem.Type == html.TextNode {
		s.kind = ContentText
		s.text = elem.Text
		if prev := elem.PrevSibling(); prev != nil && prev.IsFirstLetterPseudo() {
			s.skip = firstLetterSkip(elem.Text, prev.TextContent())
		}
		return s
	}

	if f.decideReplaced(elem, &s) {
		s.positioning, s.stacking = positioningOf(cs), stackingOf(cs)
		if s.resource != ResourceNone {
			s.ready = f.loader.Ready(s.source)
		}
		if altTextChild(elem) != nil {
			// The alt text stands in for the image; the load still goes out.
			s.kind, s.control = plainKind(cs, s.positioning), ""
		}
		return s
	}

	if elem.IsMarkerPseudo() {
		s.kind = ContentMarker
		s.marker = markerKindOf(elem)
		return s
	}

	s.role = RoleOf(cs.Display)
	switch s.role {
	case RoleTable:
		s.kind = ContentTable
	case RoleRowGroup:
		s.kind = ContentTableRowGroup
	case RoleRow:
		s.kind = ContentTableRow
	case RoleCell:
		s.kind = ContentTableCell
	case RoleCaption:
		s.kind = ContentTableCaption
	case RoleColumnGroup:
		s.kind = ContentTableColumnGroup
	case RoleColumn:
		s.kind = ContentTableColumn
	}

	s.positioning = positioningOf(cs)
	s.stacking = stackingOf(cs)

	if s.role == RoleNone {
		s.kind = plainKind(cs, s.positioning)
	}
	return s
}

// decideReplaced fills s and reports true for replaced elements.
func (f *Factory) decideReplaced(elem *html.Node, s *boxSpec) bool {
	attr := func(name string) string {
		v, _ := elem.GetAttribute(name)
		return strings.TrimSpace(v)
	}
	switch elem.TagName {
	case "img":
		s.kind, s.resource, s.source = ContentReplaced, ResourceImage, attr("src")
	case "embed":
		s.kind, s.resource, s.source = ContentReplaced, ResourceEmbed, attr("src")
	case "object":
		s.kind, s.resource, s.source = ContentReplaced, ResourceEmbed, attr("data")
	case "video":
		s.kind, s.resource, s.source = ContentReplaced, ResourceVideo, attr("src")
		if s.source == "" {
			s.resource, s.source = ResourceImage, attr("poster")
		}
	case "audio":
		s.kind, s.resource, s.source = ContentReplaced, ResourceAudio, attr("src")
	case "iframe":
		s.kind, s.resource, s.source = ContentReplaced, ResourceDocument, attr("src")
	case "canvas", "meter", "progress":
		s.kind = ContentReplaced
		s.control = elem.TagName
	case "input":
		t := strings.ToLower(attr("type"))
		if t == "hidden" {
			return false
		}
		if t == "" {
			t = "text"
		}
		s.kind, s.control = ContentFormControl, t
		if t == "image" {
			s.resource, s.source = ResourceImage, attr("src")
		}
	case "select", "textarea", "button":
		s.kind, s.control = ContentFormControl, elem.TagName
	case "br":
		if f.brCarriesBreak(elem) {
			return false
		}
		s.kind = ContentLineBreak
	case "wbr":
		s.kind, s.optional = ContentLineBreak, true
	default:
		return false
	}
	if s.source == "" {
		s.resource = ResourceNone
	}
	return true
}

// altTextSource returns the image an element shows in place of its alt
// text, for the elements that have alt text at all.
func altTextSource(elem *html.Node) (string, bool) {
	if elem.Type != html.ElementNode || elem.IsGeneratedContent() {
		return "", false
	}
	attr := func(name string) string {
		v, _ := elem.GetAttribute(name)
		return strings.TrimSpace(v)
	}
	switch elem.TagName {
	case "img":
		return attr("src"), true
	case "object":
		return attr("data"), true
	case "input":
		if strings.EqualFold(attr("type"), "image") {
			return attr("src"), true
		}
	}
	return "", false
}

// altTextChild returns the text node layout put into elem in place of its
// missing image, or nil.
func altTextChild(elem *html.Node) *html.Node {
	if c := elem.FirstChild(); c != nil && c.Type == html.TextNode && c.IsGeneratedContent() {
		return c
	}
	return nil
}

// brCarriesBreak reports whether a br has ::before or ::after content. Its
// pseudo-elements then carry the line break and the br itself becomes a
// plain inline container.
func (f *Factory) brCarriesBreak(br *html.Node) bool {
	if f.styles == nil || br.IsGeneratedContent() {
		return false
	}
	for _, p := range []string{"before", "after"} {
		if f.styles.HasPseudoRules(br, p) && hasRealContent(css.ParseContent(f.styles.PseudoSpecified(br, p).Properties["content"])) {
			return true
		}
	}
	return false
}

// markerKindOf reads back what the synthesizer put in a ::marker node.
func markerKindOf(marker *html.Node) MarkerKind {
	c := marker.FirstChild()
	switch {
	case c == nil:
		return MarkerNone
	case c.Type == html.ElementNode && c.TagName == "img":
		return MarkerImage
	case c.Type == html.TextNode && css.IsBulletGlyph(c.Text):
		return MarkerBullet
	}
	return MarkerText
}

func positioningOf(cs *css.ComputedStyle) Positioning {
	switch cs.Position {
	case css.PositionRelative:
		return PositionRelative
	case css.PositionAbsolute:
		return PositionAbsolute
	case css.PositionFixed:
		return PositionFixed
	}
	return PositionStatic
}

func stackingOf(cs *css.ComputedStyle) StackingNeed {
	var need StackingNeed
	if cs.IsPositioned() && !cs.ZIndexAuto {
		need |= StackZIndex
	}
	if cs.Opacity < 1 {
		need |= StackOpacity
	}
	if cs.HasTransform {
		need |= StackTransform
	}
	return need
}

func plainKind(cs *css.ComputedStyle, pos Positioning) ContentKind {
	scrolls := cs.OverflowX != css.OverflowVisible && cs.OverflowX != ""
	if cs.Display.IsFlex() {
		if scrolls {
			return ContentScrollableFlex
		}
		return ContentFlex
	}
	blockish := cs.Display.IsBlockLevel() || cs.Display.IsAtomicInline() ||
		cs.IsFloating() || pos == PositionAbsolute || pos == PositionFixed
	if !blockish {
		return ContentInline
	}
	switch {
	case scrolls:
		return ContentScrollable
	case cs.MultiColumn:
		return ContentMultiColumn
	case cs.IsFloating() || pos == PositionAbsolute || pos == PositionFixed || cs.Display.IsAtomicInline():
		return ContentShrinkToFit
	}
	return ContentBlock
}

// placeCell reserves the cell's columns in its row. A cell visited again
// is not charged twice. It reports false when the cell would not fit
// under the column capacity.
func (f *Factory) placeCell(rec *Record) bool {
	row := rec.ParentBox
	if row == nil {
		return true
	}
	rc, ok := row.Content.(*RowContent)
	if !ok {
		return true
	}
	span := 1
	if v, ok := rec.Element.GetAttribute("colspan"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 1 {
			span = min(n, 1000)
		}
	}
	if !rc.place(rec.Element, span, f.maxColumns) {
		return false
	}
	if rec.Table != nil {
		if tc, ok := rec.Table.Content.(*TableContent); ok && rc.nextColumn > tc.Columns {
			tc.Columns = rc.nextColumn
		}
	}
	return true
}
