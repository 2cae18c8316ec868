package layout

import "sort"

// StackingContext groups the boxes painted together. A context is created
// by a box with a stacking need: a z-index on a positioned box, opacity
// below one or a transform.
type StackingContext struct {
	Box    *Box // nil for the root context
	ZIndex int

	// Child contexts by z-index: negative and positive ones are sorted
	// ascending, zero ones stay in tree order.
	NegativeZ []*StackingContext
	ZeroZ     []*StackingContext
	PositiveZ []*StackingContext
}

func (sc *StackingContext) add(child *StackingContext) {
	switch {
	case child.ZIndex < 0:
		sc.NegativeZ = append(sc.NegativeZ, child)
	case child.ZIndex > 0:
		sc.PositiveZ = append(sc.PositiveZ, child)
	default:
		sc.ZeroZ = append(sc.ZeroZ, child)
	}
}

// PaintOrder returns the contexts under sc in the order they are painted:
// negative z-index, sc itself, zero, then positive.
func (sc *StackingContext) PaintOrder() []*StackingContext {
	var out []*StackingContext
	for _, c := range sc.NegativeZ {
		out = append(out, c.PaintOrder()...)
	}
	out = append(out, sc)
	for _, c := range sc.ZeroZ {
		out = append(out, c.PaintOrder()...)
	}
	for _, c := range sc.PositiveZ {
		out = append(out, c.PaintOrder()...)
	}
	return out
}

// BuildStackingContextTree collects the stacking contexts of the tree
// below root.
func BuildStackingContextTree(root *Box) *StackingContext {
	rootCtx := &StackingContext{}
	if root != nil {
		collectContexts(root, rootCtx)
	}
	sortContexts(rootCtx)
	return rootCtx
}

func collectContexts(b *Box, parent *StackingContext) {
	if b.CreatesStackingContext() {
		ctx := &StackingContext{Box: b, ZIndex: b.ZIndex}
		parent.add(ctx)
		for _, c := range b.Children {
			collectContexts(c, ctx)
		}
		sortContexts(ctx)
		return
	}
	for _, c := range b.Children {
		collectContexts(c, parent)
	}
}

func sortContexts(sc *StackingContext) {
	byZ := func(s []*StackingContext) func(i, j int) bool {
		return func(i, j int) bool { return s[i].ZIndex < s[j].ZIndex }
	}
	sort.SliceStable(sc.NegativeZ, byZ(sc.NegativeZ))
	sort.SliceStable(sc.PositiveZ, byZ(sc.PositiveZ))
}

// ContextFor returns the context b is painted in: that of its nearest
// ancestor creating one, or the root.
func ContextFor(b *Box, root *StackingContext) *StackingContext {
	for p := b.Parent; p != nil; p = p.Parent {
		if p.CreatesStackingContext() {
			if ctx := findContext(p, root); ctx != nil {
				return ctx
			}
		}
	}
	return root
}

func findContext(b *Box, ctx *StackingContext) *StackingContext {
	if ctx.Box == b {
		return ctx
	}
	for _, group := range [][]*StackingContext{ctx.NegativeZ, ctx.ZeroZ, ctx.PositiveZ} {
		for _, c := range group {
			if found := findContext(b, c); found != nil {
				return found
			}
		}
	}
	return nil
}
