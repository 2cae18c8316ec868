package layout

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

// MarkerKind is what a list marker shows.
type MarkerKind int

const (
	MarkerNone MarkerKind = iota
	MarkerImage
	MarkerBullet
	MarkerText
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerImage:
		return "image"
	case MarkerBullet:
		return "bullet"
	case MarkerText:
		return "text"
	}
	return "none"
}

// hasRealContent reports whether a content value produces anything other
// than quote depth changes.
func hasRealContent(items []css.ContentItem) bool {
	for _, it := range items {
		if it.Kind != css.ContentNoOpenQuote && it.Kind != css.ContentNoCloseQuote {
			return true
		}
	}
	return false
}

// Elements that never get ::before, ::after or ::marker children. br is
// handled specially and may have them.
var noPseudoTags = map[string]bool{
	"img": true, "input": true, "select": true, "textarea": true,
	"video": true, "audio": true, "iframe": true, "embed": true,
	"object": true, "canvas": true, "meter": true, "progress": true,
	"wbr": true,
}

func canOwnPseudo(n *html.Node) bool {
	return n.Type == html.ElementNode && !n.IsInsertedByLayout() &&
		n.TagName != html.TagDocument && !noPseudoTags[n.TagName]
}

// findPseudo returns owner's pseudo-element node with flag. The node may
// sit inside anonymous wrappers repair put around it.
func findPseudo(owner *html.Node, flag html.NodeFlags) *html.Node {
	for _, c := range owner.Children {
		if c.HasFlag(flag) {
			return c
		}
		if isAnonWrapper(c) {
			if p := findPseudo(c, flag); p != nil {
				return p
			}
		}
	}
	return nil
}

func isAnonWrapper(n *html.Node) bool {
	return n.Type == html.ElementNode && n.IsInsertedByLayout() && !n.IsPseudoElement() && !n.IsGeneratedContent()
}

// detachPseudo removes a pseudo node along with the anonymous wrappers it
// leaves empty.
func (s *Synthesizer) detachPseudo(n *html.Node) {
	parent := n.Parent
	n.Detach()
	s.forgetSubtree(n)
	for parent != nil && isAnonWrapper(parent) && len(parent.Children) == 0 {
		next := parent.Parent
		parent.Detach()
		s.removed(parent)
		parent = next
	}
}

// Synthesizer creates the pseudo-element and generated-content nodes the
// style of an element calls for, and removes the ones it no longer does.
type Synthesizer struct {
	arena    *Arena
	styles   StyleSource
	alloc    Allocator
	loader   Loader
	counters *Counters
	logger   *zap.Logger
	removed  func(*html.Node)

	generated int
}

func NewSynthesizer(arena *Arena, styles StyleSource, alloc Allocator, loader Loader, counters *Counters, logger *zap.Logger) *Synthesizer {
	if loader == nil {
		loader = nopLoader{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		arena:    arena,
		styles:   styles,
		alloc:    alloc,
		loader:   loader,
		counters: counters,
		logger:   logger,
		removed:  func(*html.Node) {},
	}
}

// OnRemove installs the callback told about deleted nodes.
func (s *Synthesizer) OnRemove(fn func(*html.Node)) { s.removed = fn }

func (s *Synthesizer) pseudoStyle(rec *Record, name string) *css.ComputedStyle {
	if !s.styles.HasPseudoRules(rec.Element, name) {
		return nil
	}
	return css.Compute(rec.Style, s.styles.PseudoSpecified(rec.Element, name))
}

// SynthesizePseudoElements makes the ::marker, ::before and ::after
// children of rec's element match its style and returns how many nodes it
// created. Nodes that still apply are kept as they are.
func (s *Synthesizer) SynthesizePseudoElements(rec *Record) (int, error) {
	if !canOwnPseudo(rec.Element) {
		return 0, nil
	}
	created := 0
	steps := []func() (bool, error){
		func() (bool, error) { return s.SynthesizeListMarker(rec) },
		func() (bool, error) { return s.SynthesizePseudoElement(rec, true) },
		func() (bool, error) { return s.SynthesizePseudoElement(rec, false) },
	}
	for _, step := range steps {
		ok, err := step()
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// SynthesizeListMarker gives a list item its ::marker child, or removes a
// marker that no longer applies. It reports whether a node was created.
func (s *Synthesizer) SynthesizeListMarker(rec *Record) (bool, error) {
	want := false
	if canOwnPseudo(rec.Element) && rec.Style.Display == css.DisplayListItem {
		ms := s.pseudoStyle(rec, "marker")
		switch {
		case ms != nil && ms.Display == css.DisplayNone:
		case ms != nil && hasRealContent(ms.Content):
			want = true
		default:
			want = s.ListMarkerContentType(rec) != MarkerNone
		}
	}
	return s.reconcile(rec.Element, html.FlagMarkerPseudo, html.TagMarker, want)
}

// SynthesizePseudoElement does the same for ::before or ::after. Content
// made only of no-open-quote and no-close-quote gets no node; its quote
// depth change is applied directly, for ::after once the element is
// finished.
func (s *Synthesizer) SynthesizePseudoElement(rec *Record, isBefore bool) (bool, error) {
	name, flag, tag := "after", html.FlagAfterPseudo, html.TagAfter
	if isBefore {
		name, flag, tag = "before", html.FlagBeforePseudo, html.TagBefore
	}
	if !canOwnPseudo(rec.Element) {
		return false, nil
	}
	ps := s.pseudoStyle(rec, name)
	want := ps != nil && ps.Display != css.DisplayNone && hasRealContent(ps.Content)
	if ps != nil && ps.Display != css.DisplayNone && !want && len(ps.Content) > 0 {
		if isBefore {
			s.applyQuotes(s.quoteScope(rec.handle), ps.Quotes, ps.Content)
		} else {
			rec.afterQuotes = ps.Content
		}
	}
	return s.reconcile(rec.Element, flag, tag, want)
}

// Finish runs when rec's element and all its children are done.
func (s *Synthesizer) Finish(rec *Record) {
	if len(rec.afterQuotes) > 0 {
		s.applyQuotes(s.quoteScope(rec.handle), rec.Style.Quotes, rec.afterQuotes)
		rec.afterQuotes = nil
	}
}

func (s *Synthesizer) reconcile(owner *html.Node, flag html.NodeFlags, tag string, want bool) (bool, error) {
	existing := findPseudo(owner, flag)
	switch {
	case want && existing == nil:
		if err := s.alloc.Reserve(AllocPseudo, 1); err != nil {
			return false, err
		}
		n := html.NewElement(tag)
		n.SetFlag(html.FlagInsertedByLayout | flag)
		owner.InsertBefore(n, pseudoAnchor(owner, flag))
		s.logger.Debug("pseudo-element created", zap.String("owner", owner.TagName), zap.String("pseudo", tag))
		return true, nil
	case !want && existing != nil:
		s.detachPseudo(existing)
		s.logger.Debug("pseudo-element removed", zap.String("owner", owner.TagName), zap.String("pseudo", tag))
	}
	return false, nil
}

// pseudoAnchor is the child a new pseudo node goes in front of: the marker
// is first, ::before follows it and ::after is last.
func pseudoAnchor(owner *html.Node, flag html.NodeFlags) *html.Node {
	switch flag {
	case html.FlagMarkerPseudo:
		return owner.FirstChild()
	case html.FlagBeforePseudo:
		for _, c := range owner.Children {
			if !c.IsMarkerPseudo() {
				return c
			}
		}
	}
	return nil
}

type genKind int

const (
	genText genKind = iota
	genImage
	genBreak
)

type genItem struct {
	kind genKind
	text string // text, or image URL
}

// SynthesizeGeneratedContent rebuilds the generated children of the
// ::before, ::after or ::marker node in rec from its content value. Nothing
// changes when the children already match.
func (s *Synthesizer) SynthesizeGeneratedContent(rec *Record) error {
	pseudo := rec.Element
	var out []genItem
	if pseudo.IsMarkerPseudo() && !hasRealContent(rec.Style.Content) {
		owner, err := s.arena.Get(rec.Parent)
		if err != nil {
			return err
		}
		out = s.markerOutputs(owner)
	} else {
		out = s.contentOutputs(rec)
	}

	if owner := pseudo.Parent; owner != nil && owner.TagName == "br" && !owner.IsInsertedByLayout() {
		switch {
		case pseudo.IsBeforePseudo():
			out = append(out, genItem{kind: genBreak})
		case pseudo.IsAfterPseudo() && pseudo.PrevSibling() == nil:
			out = append([]genItem{{kind: genBreak}}, out...)
		}
	}

	if sameGenerated(pseudo.Children, out) {
		return nil
	}
	if err := s.alloc.Reserve(AllocGenerated, len(out)); err != nil {
		return err
	}
	for _, c := range append([]*html.Node(nil), pseudo.Children...) {
		pseudo.RemoveChild(c)
		s.forgetSubtree(c)
	}
	for _, it := range out {
		pseudo.AddChild(newGenerated(it))
	}
	s.generated += len(out)
	return nil
}

func newGenerated(it genItem) *html.Node {
	var n *html.Node
	switch it.kind {
	case genImage:
		n = html.NewElement("img")
		n.Attributes["src"] = it.text
	case genBreak:
		n = html.NewElement("br")
	default:
		n = html.NewText(it.text)
	}
	n.SetFlag(html.FlagInsertedByLayout | html.FlagGeneratedContent)
	return n
}

func sameGenerated(children []*html.Node, out []genItem) bool {
	if len(children) != len(out) {
		return false
	}
	for i, c := range children {
		it := out[i]
		switch it.kind {
		case genText:
			if c.Type != html.TextNode || c.Text != it.text {
				return false
			}
		case genImage:
			src, _ := c.GetAttribute("src")
			if c.Type != html.ElementNode || c.TagName != "img" || src != it.text {
				return false
			}
		case genBreak:
			if c.Type != html.ElementNode || c.TagName != "br" {
				return false
			}
		}
	}
	return true
}

// contentOutputs evaluates a content value. Every item that renders
// something becomes one generated node.
func (s *Synthesizer) contentOutputs(rec *Record) []genItem {
	var out []genItem
	text := func(t string) {
		if t != "" {
			out = append(out, genItem{kind: genText, text: t})
		}
	}
	scope := s.quoteScope(rec.Parent)
	for _, it := range rec.Style.Content {
		switch it.Kind {
		case css.ContentString:
			text(it.Value)
		case css.ContentAttr:
			if a := rec.Element.AuthorElement(); a != nil {
				v, _ := a.GetAttribute(it.Value)
				text(v)
			}
		case css.ContentURL:
			out = append(out, genItem{kind: genImage, text: it.Value})
		case css.ContentCounter:
			text(s.counters.Format(it.Value, it.Style))
		case css.ContentCounters:
			text(s.counters.FormatAll(it.Value, it.Separator, it.Style))
		default:
			text(quoteStep(scope, rec.Style.Quotes, it.Kind))
		}
	}
	return out
}

func (s *Synthesizer) markerOutputs(owner *Record) []genItem {
	cs := owner.Style
	switch s.ListMarkerContentType(owner) {
	case MarkerImage:
		return []genItem{{kind: genImage, text: cs.ListStyleImage}}
	case MarkerBullet:
		return []genItem{{kind: genText, text: css.FormatCounter(0, cs.ListStyleType)}}
	case MarkerText:
		return []genItem{{kind: genText, text: css.MarkerText(s.counters.Value(listItemCounter), cs.ListStyleType)}}
	}
	return nil
}

// ListMarkerContentType decides what the marker of the list item in rec
// shows. A list-style-image that has not loaded yet is requested and the
// marker is left out until a later pass finds it ready.
func (s *Synthesizer) ListMarkerContentType(rec *Record) MarkerKind {
	cs := rec.Style
	if img := cs.ListStyleImage; img != "" {
		if s.loader.Ready(img) {
			return MarkerImage
		}
		s.loader.Load(img, ResourceImage, rec.Element)
		return MarkerNone
	}
	switch {
	case css.IsBulletStyle(cs.ListStyleType):
		return MarkerBullet
	case css.IsTextualCounterStyle(cs.ListStyleType):
		return MarkerText
	}
	return MarkerNone
}

// quoteScope returns the nearest record at or above h whose element is
// block-level. Quote nesting is tracked there.
func (s *Synthesizer) quoteScope(h Handle) *Record {
	var last *Record
	for h.Valid() {
		r, err := s.arena.Get(h)
		if err != nil {
			break
		}
		last = r
		if r.Style.Display.IsBlockLevel() {
			return r
		}
		h = r.Parent
	}
	return last
}

func (s *Synthesizer) applyQuotes(scope *Record, quotes []string, items []css.ContentItem) {
	for _, it := range items {
		quoteStep(scope, quotes, it.Kind)
	}
}

// quoteStep applies one quote item to the depth kept on scope and returns
// the text it renders.
func quoteStep(scope *Record, quotes []string, kind css.ContentItemKind) string {
	if scope == nil {
		return ""
	}
	pair := func(depth int) int {
		pairs := len(quotes) / 2
		if depth >= pairs {
			depth = pairs - 1
		}
		return depth * 2
	}
	switch kind {
	case css.ContentOpenQuote:
		d := scope.QuoteDepth
		scope.QuoteDepth++
		if len(quotes) < 2 {
			return ""
		}
		return quotes[pair(d)]
	case css.ContentCloseQuote:
		if scope.QuoteDepth == 0 {
			return ""
		}
		scope.QuoteDepth--
		if len(quotes) < 2 {
			return ""
		}
		return quotes[pair(scope.QuoteDepth)+1]
	case css.ContentNoOpenQuote:
		scope.QuoteDepth++
	case css.ContentNoCloseQuote:
		if scope.QuoteDepth > 0 {
			scope.QuoteDepth--
		}
	}
	return ""
}

func establishesFirstLetter(d css.DisplayType) bool {
	switch d {
	case css.DisplayBlock, css.DisplayListItem, css.DisplayInlineBlock,
		css.DisplayTableCell, css.DisplayTableCaption:
		return true
	}
	return false
}

// SynthesizeFirstLetter gives rec's element a ::first-letter child when
// it has first-letter rules and starts with text. The node holds a copy of
// the leading punctuation and first letter and sits in front of the text
// node, whose box then skips those bytes.
func (s *Synthesizer) SynthesizeFirstLetter(rec *Record) (bool, error) {
	owner := rec.Element
	existing := findPseudo(owner, html.FlagFirstLetterPseudo)
	drop := func() {
		if existing != nil {
			existing.Detach()
			s.forgetSubtree(existing)
		}
	}
	if !canOwnPseudo(owner) || !establishesFirstLetter(rec.Style.Display) ||
		!s.styles.HasPseudoRules(owner, "first-letter") {
		drop()
		return false, nil
	}
	if fs := css.Compute(rec.Style, s.styles.PseudoSpecified(owner, "first-letter")); fs.Display == css.DisplayNone {
		drop()
		return false, nil
	}

	var target *html.Node
	for _, c := range owner.Children {
		if c == existing || c.IsMarkerPseudo() || isCollapsibleWhitespace(c) {
			continue
		}
		if c.Type == html.TextNode {
			target = c
		}
		break
	}
	letter := ""
	if target != nil {
		letter = firstLetter(target.Text)
	}
	if letter == "" {
		drop()
		return false, nil
	}
	if existing != nil && existing.NextSibling() == target && existing.TextContent() == letter {
		return false, nil
	}
	drop()

	if err := s.alloc.Reserve(AllocPseudo, 1); err != nil {
		return false, err
	}
	if err := s.alloc.Reserve(AllocGenerated, 1); err != nil {
		s.alloc.Release(AllocPseudo, 1)
		return false, err
	}
	fl := html.NewElement(html.TagFirstLetter)
	fl.SetFlag(html.FlagInsertedByLayout | html.FlagFirstLetterPseudo)
	fl.AddChild(newGenerated(genItem{kind: genText, text: letter}))
	owner.InsertBefore(fl, target)
	s.generated++
	return true, nil
}

// SynthesizeAltText keeps the alt text child of an img, object or image
// input in step with its resource. While the resource is absent, failed or
// still loading, a non-empty alt attribute becomes a generated text child
// and the element lays out as an ordinary container. Once the resource is
// ready the child goes away. It reports whether the child was created.
func (s *Synthesizer) SynthesizeAltText(rec *Record) (bool, error) {
	owner := rec.Element
	src, ok := altTextSource(owner)
	if !ok {
		return false, nil
	}
	existing := altTextChild(owner)
	alt, _ := owner.GetAttribute("alt")
	alt = strings.TrimSpace(alt)
	want := alt != "" && (src == "" || !s.loader.Ready(src))

	switch {
	case !want && existing == nil:
		return false, nil
	case !want:
		existing.Detach()
		s.removed(existing)
		return false, nil
	case existing != nil && existing.Text == alt:
		return false, nil
	case existing != nil:
		existing.Text = alt
		return false, nil
	}
	if err := s.alloc.Reserve(AllocGenerated, 1); err != nil {
		return false, err
	}
	owner.InsertBefore(newGenerated(genItem{kind: genText, text: alt}), owner.FirstChild())
	s.generated++
	s.logger.Debug("alt text shown", zap.String("tag", owner.TagName), zap.String("src", src))
	return true, nil
}

// firstLineProperties are the properties a ::first-line rule may set.
var firstLineProperties = map[string]bool{
	"color": true, "background-color": true,
	"font-family": true, "font-size": true, "font-style": true, "font-weight": true,
	"line-height": true, "letter-spacing": true, "word-spacing": true,
	"text-decoration": true, "text-transform": true, "vertical-align": true,
}

// ApplyFirstLine gives the boxes on the first line of rec's block their
// ::first-line style and returns how many it styled. Line breaking happens
// downstream, so the first line runs up to the first forced break or
// block-level child. A block that starts with a block child hands the
// line on to that child.
func (s *Synthesizer) ApplyFirstLine(rec *Record) int {
	owner := rec.Element
	if rec.Box == nil || !canOwnPseudo(owner) || !establishesFirstLetter(rec.Style.Display) ||
		!s.styles.HasPseudoRules(owner, "first-line") {
		return 0
	}
	spec := css.NewStyle()
	for k, v := range s.styles.PseudoSpecified(owner, "first-line").Properties {
		if firstLineProperties[k] {
			spec.Set(k, v)
		}
	}
	n := 0
	s.firstLine(rec.Box, css.Compute(rec.Style, spec), &n)
	return n
}

// firstLine styles the leading inline content of parent and reports
// whether the line continues after it.
func (s *Synthesizer) firstLine(parent *Box, line *css.ComputedStyle, n *int) bool {
	for _, c := range parent.Children {
		k := c.Content.Kind()
		switch {
		case k == ContentMarker, c.Float == css.FloatLeft, c.Float == css.FloatRight,
			c.Positioning == PositionAbsolute, c.Positioning == PositionFixed:
			continue
		case k == ContentLineBreak:
			return false
		case k == ContentText:
			if *n == 0 && isCollapsibleWhitespace(c.Element) {
				continue
			}
			c.FirstLine = line
			*n++
		case c.Style != nil && c.Style.Display.IsBlockLevel():
			if *n == 0 && k == ContentBlock && !s.styles.HasPseudoRules(c.Element, "first-line") {
				s.firstLine(c, css.Compute(line, s.styles.Specified(c.Element)), n)
			}
			return false
		default:
			fs := css.Compute(line, s.styles.Specified(c.Element))
			c.FirstLine = fs
			*n++
			if k == ContentInline && !s.firstLine(c, fs, n) {
				return false
			}
		}
	}
	return true
}

// firstLetter returns the leading punctuation, first letter and directly
// following punctuation of text, ignoring leading white space.
func firstLetter(text string) string {
	t := strings.TrimLeftFunc(text, unicode.IsSpace)
	i := 0
	for i < len(t) {
		r, n := utf8.DecodeRuneInString(t[i:])
		if !unicode.IsPunct(r) {
			break
		}
		i += n
	}
	if i >= len(t) {
		return ""
	}
	r, n := utf8.DecodeRuneInString(t[i:])
	if unicode.IsSpace(r) {
		return ""
	}
	i += n
	for i < len(t) {
		r, n := utf8.DecodeRuneInString(t[i:])
		if !unicode.IsPunct(r) {
			break
		}
		i += n
	}
	return t[:i]
}

// firstLetterSkip is how many bytes of text a ::first-letter sibling
// holding letter takes over.
func firstLetterSkip(text, letter string) int {
	lead := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	if letter == "" || !strings.HasPrefix(text[lead:], letter) {
		return 0
	}
	return lead + len(letter)
}

func (s *Synthesizer) forgetSubtree(n *html.Node) {
	s.removed(n)
	for _, c := range n.Children {
		s.forgetSubtree(c)
	}
}
