package layout

import (
	"strings"

	"go.uber.org/zap"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

// anonTags are the tag names of anonymous structural elements per role.
var anonTags = map[TableRole]string{
	RoleTable:    "table",
	RoleRowGroup: "tbody",
	RoleRow:      "tr",
	RoleCell:     "td",
}

// Repairer restores structural legality of the markup tree: table parts
// get their required ancestors and flex container children get wrapped
// in anonymous flex items.
type Repairer struct {
	arena  *Arena
	styles StyleSource
	alloc  Allocator
	logger *zap.Logger
	// removed is told about every node the repairer deletes.
	removed func(*html.Node)

	repairs int
}

func NewRepairer(arena *Arena, styles StyleSource, alloc Allocator, logger *zap.Logger) *Repairer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repairer{arena: arena, styles: styles, alloc: alloc, logger: logger, removed: func(*html.Node) {}}
}

// OnRemove installs the callback told about deleted nodes.
func (r *Repairer) OnRemove(fn func(*html.Node)) { r.removed = fn }

func (r *Repairer) parentRecord(rec *Record) *Record {
	prec, err := r.arena.Get(rec.Parent)
	if err != nil {
		return nil
	}
	return prec
}

// styleUnder computes n's style as a child of parent, whose style is ps.
func (r *Repairer) styleUnder(n *html.Node, parent *html.Node, ps *css.ComputedStyle) *css.ComputedStyle {
	return css.Compute(effectiveParentStyle(parent, ps), r.styles.Specified(n))
}

// effectiveParentStyle is the style children are computed against.
// Children of an anonymous flex item are the real flex items and are
// blockified as if their parent were the flex container.
func effectiveParentStyle(parent *html.Node, ps *css.ComputedStyle) *css.ComputedStyle {
	if ps == nil || parent == nil || !isAnonFlexItem(parent) {
		return ps
	}
	flex := *ps
	flex.Display = css.DisplayFlex
	return &flex
}

func isAnonFlexItem(n *html.Node) bool {
	return n.IsInsertedByLayout() && n.TagName == html.TagAnonFlexItem
}

// isCollapsibleWhitespace is true for text that is only white space.
func isCollapsibleWhitespace(n *html.Node) bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Text) == ""
}

func isHiddenInput(n *html.Node) bool {
	if n.Type != html.ElementNode || n.TagName != "input" {
		return false
	}
	t, _ := n.GetAttribute("type")
	return strings.EqualFold(strings.TrimSpace(t), "hidden")
}

// requiredFor returns the outermost anonymous ancestor n needs directly
// under a parent of role parentRole, or RoleNone. Anonymous ancestors are
// inserted outermost first, so siblings that end up under the same
// wrapper share it even when their inner wrappers differ.
func requiredFor(n *html.Node, cs *css.ComputedStyle, parentRole TableRole) TableRole {
	role := RoleOf(cs.Display)
	if role == RoleNone && (isCollapsibleWhitespace(n) || isHiddenInput(n)) {
		return RoleNone
	}
	need := roleRequires(role, parentRole)
	for i := 0; need != RoleNone && i < 4; i++ {
		outer := roleRequires(need, parentRole)
		if outer == RoleNone {
			break
		}
		need = outer
	}
	return need
}

// roleRequires is the anonymous parent a child of the given role needs
// under parent, or RoleNone if it may sit there directly.
func roleRequires(child, parent TableRole) TableRole {
	switch child {
	case RoleCell:
		if parent != RoleRow {
			return RoleRow
		}
	case RoleRow:
		if parent != RoleRowGroup {
			return RoleRowGroup
		}
	case RoleRowGroup, RoleColumnGroup, RoleCaption:
		if parent != RoleTable {
			return RoleTable
		}
	case RoleColumn:
		if parent != RoleColumnGroup && parent != RoleTable {
			return RoleTable
		}
	default:
		switch parent {
		case RoleTable, RoleRowGroup, RoleRow:
			return RoleCell
		}
	}
	return RoleNone
}

// RequiredAncestor returns the structural ancestor rec's element is
// missing, or RoleNone when its parent is already legal.
func (r *Repairer) RequiredAncestor(rec *Record) TableRole {
	prec := r.parentRecord(rec)
	if prec == nil {
		return RoleNone
	}
	return requiredFor(rec.Element, rec.Style, RoleOf(prec.Style.Display))
}

// roleOfAnon gives the role of a layout-inserted element from its tag.
func roleOfAnon(n *html.Node) TableRole {
	for role, tag := range anonTags {
		if n.TagName == tag {
			return role
		}
	}
	return RoleNone
}

// illegalNesting reports child/parent role pairs that can never be fixed
// by inserting more ancestors in between.
func illegalNesting(child, parent TableRole) bool {
	switch child {
	case RoleRowGroup, RoleColumnGroup, RoleCaption:
		return parent == RoleRowGroup || parent == RoleRow || parent == RoleCell
	case RoleRow:
		return parent == RoleRow || parent == RoleCell
	case RoleCell:
		return parent == RoleCell
	}
	return false
}

// EnsureStructuralAncestor gives rec's element the required ancestor. It
// either inserts an anonymous ancestor around the maximal run of siblings
// that need it (InsertedParent, returning the new element) or, when the
// current parent is an anonymous element the child cannot live in, moves
// the element and its following siblings up (ElementMovedUp, returning the
// element). Either way rec is stale afterwards. On ErrOutOfMemory the tree
// is untouched.
func (r *Repairer) EnsureStructuralAncestor(rec *Record, required TableRole) (Outcome, *html.Node, error) {
	elem := rec.Element
	parent := elem.Parent
	if parent == nil || required == RoleNone {
		return Continue, nil, nil
	}
	if parent.IsInsertedByLayout() && !parent.IsPseudoElement() && !r.insertedFor(rec) &&
		!r.legalUnderAnonymous(elem, RoleOf(rec.Style.Display), parent) {
		r.promote(elem, func(from *html.Node) bool {
			return illegalNesting(RoleOf(rec.Style.Display), roleOfAnon(from))
		})
		r.repairs++
		r.logger.Debug("element moved out of anonymous ancestor",
			zap.String("tag", elem.TagName), zap.String("from", parent.TagName))
		return ElementMovedUp, elem, nil
	}
	prec := r.parentRecord(rec)
	if prec == nil {
		return Continue, nil, nil
	}
	anon, err := r.insert(elem, required, prec.Style)
	if err != nil {
		return Continue, nil, err
	}
	r.repairs++
	r.logger.Debug("anonymous ancestor inserted",
		zap.String("tag", anon.TagName), zap.Int("members", len(anon.Children)))
	return InsertedParent, anon, nil
}

// insertedFor reports whether the run of anonymous ancestors between
// rec's element and its nearest real ancestor is exactly the chain the
// element itself needs there. Moving the element up would only bring the
// same wrappers back, so it stays and the rest of the chain is inserted
// inside its parent.
func (r *Repairer) insertedFor(rec *Record) bool {
	var chain []TableRole
	p := r.parentRecord(rec)
	for p != nil && p.Element.IsInsertedByLayout() && !p.Element.IsPseudoElement() {
		chain = append(chain, roleOfAnon(p.Element))
		p = r.parentRecord(p)
	}
	if p == nil || p.Style == nil || len(chain) == 0 {
		return false
	}
	parentRole := RoleOf(p.Style.Display)
	for i := len(chain) - 1; i >= 0; i-- {
		need := requiredFor(rec.Element, rec.Style, parentRole)
		if need == RoleNone || need != chain[i] {
			return false
		}
		parentRole = need
	}
	return true
}

// legalUnderAnonymous decides whether a child may stay inside the
// layout-inserted parent. Impossible role pairs are never legal. Otherwise
// the run of layout-inserted ancestors is walked up to the first real
// ancestor; the child may stay if that ancestor is table structure, or if
// an anonymous table on the way starts a new table context.
func (r *Repairer) legalUnderAnonymous(elem *html.Node, childRole TableRole, parent *html.Node) bool {
	if illegalNesting(childRole, roleOfAnon(parent)) {
		return false
	}
	a := parent
	for ; a != nil && a.IsInsertedByLayout() && !a.IsPseudoElement(); a = a.Parent {
		if roleOfAnon(a) == RoleTable {
			return true
		}
		if isAnonFlexItem(a) {
			return true
		}
	}
	if a == nil {
		return true
	}
	d := css.ParseDisplay(r.styles.Specified(a).Properties["display"])
	switch RoleOf(d) {
	case RoleTable, RoleRowGroup, RoleRow:
		return true
	}
	return false
}

// promote moves elem and its following siblings out of their
// layout-inserted parent, continuing upward while climb reports the next
// anonymous ancestor as unfit. Ancestors left empty are removed.
func (r *Repairer) promote(elem *html.Node, climb func(from *html.Node) bool) {
	from := elem.Parent
	for from.Parent != nil && from.Parent.IsInsertedByLayout() && !from.Parent.IsPseudoElement() && climb(from.Parent) {
		from = from.Parent
	}
	oldParent := elem.Parent
	var moving []*html.Node
	for s := elem; s != nil; s = s.NextSibling() {
		moving = append(moving, s)
	}
	dest := from.Parent
	ref := from.NextSibling()
	for _, m := range moving {
		dest.InsertBefore(m, ref)
	}
	// Drop anonymous ancestors that are now empty.
	for p := oldParent; p != dest && p.IsInsertedByLayout() && len(p.Children) == 0; {
		next := p.Parent
		p.Detach()
		r.removed(p)
		p = next
	}
}

// collectRun returns elem followed by the maximal run of following
// siblings that need the same anonymous ancestor. White space and
// display:none siblings between members join the run; trailing ones do
// not. The run stops at an ::after pseudo-element. A ::before
// pseudo-element starts a run like any other child, so it shares its
// wrapper with the content after it.
func (r *Repairer) collectRun(elem *html.Node, required TableRole, ps *css.ComputedStyle) []*html.Node {
	members := []*html.Node{elem}
	parent := elem.Parent
	parentRole := RoleOf(ps.Display)
	var pending []*html.Node
	for s := elem.NextSibling(); s != nil; s = s.NextSibling() {
		if s.IsAfterPseudo() {
			break
		}
		if isCollapsibleWhitespace(s) {
			pending = append(pending, s)
			continue
		}
		cs := r.styleUnder(s, parent, ps)
		if cs.Display == css.DisplayNone {
			pending = append(pending, s)
			continue
		}
		if requiredFor(s, cs, parentRole) != required {
			break
		}
		members = append(members, pending...)
		members = append(members, s)
		pending = nil
	}
	return members
}

func (r *Repairer) insert(elem *html.Node, required TableRole, ps *css.ComputedStyle) (*html.Node, error) {
	parent := elem.Parent
	members := r.collectRun(elem, required, ps)

	if err := r.alloc.Reserve(AllocElement, 1); err != nil {
		return nil, err
	}
	anon := html.NewElement(anonTags[required])
	anon.SetFlag(html.FlagInsertedByLayout)
	if parent.TagName == "table" && !parent.IsInsertedByLayout() {
		for _, a := range []string{"cellspacing", "cellpadding"} {
			if v, ok := parent.GetAttribute(a); ok {
				anon.Attributes[a] = v
			}
		}
	}
	parent.InsertBefore(anon, elem)
	for _, m := range members {
		anon.InsertBefore(m, nil)
	}
	return anon, nil
}

// RequiresFlexItemWrapper reports whether a flex container child must be
// wrapped in a shared anonymous flex item: it is in flow and needs visual
// representation.
func RequiresFlexItemWrapper(cs *css.ComputedStyle, n *html.Node) bool {
	if cs.Position.IsOutOfFlow() {
		return false
	}
	return needsRepresentation(cs, n)
}

func needsRepresentation(cs *css.ComputedStyle, n *html.Node) bool {
	if n.Type == html.TextNode {
		return !isCollapsibleWhitespace(n) || cs.WhiteSpace.PreservesSpaces()
	}
	return cs.Display != css.DisplayNone
}

// flexGroups plans the wrappers for the children of a flex container,
// starting at from. Existing anonymous flex items are already legal. When
// firstOnly is set only the group starting at from is returned.
func (r *Repairer) flexGroups(container *html.Node, cs *css.ComputedStyle, from *html.Node, firstOnly bool) [][]*html.Node {
	var groups [][]*html.Node
	var run, pending []*html.Node
	closeRun := func() {
		if len(run) > 0 {
			groups = append(groups, run)
		}
		run, pending = nil, nil
	}
	for c := from; c != nil; c = c.NextSibling() {
		if firstOnly && len(groups) > 0 {
			break
		}
		if isAnonFlexItem(c) {
			closeRun()
			continue
		}
		ccs := r.styleUnder(c, container, cs)
		switch {
		case !needsRepresentation(ccs, c):
			if len(run) > 0 {
				pending = append(pending, c)
			}
		case ccs.Position.IsOutOfFlow():
			closeRun()
			groups = append(groups, []*html.Node{c})
		default:
			run = append(run, pending...)
			run = append(run, c)
			pending = nil
		}
	}
	closeRun()
	if firstOnly && len(groups) > 1 {
		groups = groups[:1]
	}
	return groups
}

// WrapFlexItems wraps the children of the flex container in rec: every
// run of in-flow children that need representation shares one anonymous
// flex item and every absolutely or fixed positioned child gets one of its
// own. All wrappers are reserved up front, so ErrOutOfMemory leaves the
// tree unchanged. It returns the number of wrappers inserted.
func (r *Repairer) WrapFlexItems(rec *Record) (int, error) {
	container := rec.Element
	groups := r.flexGroups(container, rec.Style, container.FirstChild(), false)
	if len(groups) == 0 {
		return 0, nil
	}
	if err := r.alloc.Reserve(AllocElement, len(groups)); err != nil {
		return 0, err
	}
	for _, g := range groups {
		wrapFlexGroup(container, g)
	}
	r.repairs += len(groups)
	r.logger.Debug("flex items wrapped", zap.String("tag", container.TagName), zap.Int("wrappers", len(groups)))
	return len(groups), nil
}

func wrapFlexGroup(container *html.Node, group []*html.Node) *html.Node {
	w := html.NewElement(html.TagAnonFlexItem)
	w.SetFlag(html.FlagInsertedByLayout)
	container.InsertBefore(w, group[0])
	for _, m := range group {
		w.InsertBefore(m, nil)
	}
	return w
}

// EnsureFlexItem checks rec's element against flex item structure. A
// child of a flex container that is not yet wrapped gets a wrapper
// (InsertedParent). A child of an anonymous flex item that does not belong
// there is moved out of it (ElementMovedUp): an out-of-flow child that is
// not the wrapper's first, or any later child of a wrapper that holds an
// out-of-flow element.
func (r *Repairer) EnsureFlexItem(rec *Record) (Outcome, *html.Node, error) {
	elem := rec.Element
	parent := elem.Parent
	prec := r.parentRecord(rec)
	if parent == nil || prec == nil {
		return Continue, nil, nil
	}

	if isAnonFlexItem(parent) && !parent.IsPseudoElement() {
		first := parent.FirstChild()
		if elem == first {
			return Continue, nil, nil
		}
		firstOutOfFlow := r.styleUnder(first, parent, prec.Style).Position.IsOutOfFlow()
		if rec.Style.Position.IsOutOfFlow() || firstOutOfFlow {
			r.promote(elem, func(*html.Node) bool { return false })
			r.repairs++
			return ElementMovedUp, elem, nil
		}
		return Continue, nil, nil
	}

	if prec.Box == nil || !prec.Box.Content.Kind().IsFlex() || isAnonFlexItem(elem) {
		return Continue, nil, nil
	}
	groups := r.flexGroups(parent, prec.Style, elem, true)
	if len(groups) == 0 || groups[0][0] != elem {
		return Continue, nil, nil
	}
	if err := r.alloc.Reserve(AllocElement, 1); err != nil {
		return Continue, nil, err
	}
	w := wrapFlexGroup(parent, groups[0])
	r.repairs++
	return InsertedParent, w, nil
}

// RemoveElementsInsertedByLayout undoes earlier repairs under elem before
// it is rebuilt: anonymous structural children are dissolved with their
// children put back in place, and pseudo-element and generated nodes are
// deleted. It returns the number of nodes removed.
func (r *Repairer) RemoveElementsInsertedByLayout(elem *html.Node) int {
	removed := 0
	for i := 0; i < len(elem.Children); {
		c := elem.Children[i]
		switch {
		case c.IsPseudoElement() || c.IsGeneratedContent():
			elem.RemoveChild(c)
			r.forgetSubtree(c)
			removed++
		case c.IsInsertedByLayout():
			removed += r.RemoveElementsInsertedByLayout(c)
			kids := append([]*html.Node(nil), c.Children...)
			ref := c.NextSibling()
			elem.RemoveChild(c)
			r.removed(c)
			for _, k := range kids {
				elem.InsertBefore(k, ref)
			}
			i += len(kids)
			removed++
		default:
			i++
		}
	}
	return removed
}

func (r *Repairer) forgetSubtree(n *html.Node) {
	r.removed(n)
	for _, c := range n.Children {
		r.forgetSubtree(c)
	}
}
