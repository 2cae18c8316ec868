package layout

import (
	"go.uber.org/zap"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

// StyleSource supplies specified declarations. *css.Resolver implements it.
type StyleSource interface {
	Specified(n *html.Node) *css.Style
	PseudoSpecified(owner *html.Node, pseudo string) *css.Style
	HasPseudoRules(owner *html.Node, pseudo string) bool
}

// binder is implemented by style sources that mirror the tree and need to
// see it again after mutations.
type binder interface {
	Bind(root *html.Node)
}

// StyleChange compares a freshly computed style with the one from the
// previous pass.
type StyleChange int

const (
	StyleUnchanged StyleChange = iota
	StyleChanged
	StyleNew
)

func (c StyleChange) String() string {
	switch c {
	case StyleUnchanged:
		return "unchanged"
	case StyleChanged:
		return "changed"
	}
	return "new"
}

// ChainBuilder extends the cascade chain one element at a time.
type ChainBuilder struct {
	arena  *Arena
	styles StyleSource
	tree   *BoxTree
	// finalize runs on a record just before it is retired because a
	// different element needs its depth.
	finalize func(*Record)
	logger   *zap.Logger
}

func NewChainBuilder(arena *Arena, styles StyleSource, tree *BoxTree, logger *zap.Logger) *ChainBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainBuilder{arena: arena, styles: styles, tree: tree, logger: logger}
}

// Root starts a chain at root, which gets no inherited values.
func (cb *ChainBuilder) Root(root *html.Node) (Handle, StyleChange, error) {
	return cb.extend(nil, 0, root)
}

// ExtendCascadeChain computes child's style from the record at parent and
// stores it in the record one level deeper. A live record at that depth
// for a different element is finalized and retired first. The only error
// is ErrOutOfMemory (or a stale parent handle, which is a caller bug).
func (cb *ChainBuilder) ExtendCascadeChain(parent Handle, child *html.Node) (Handle, StyleChange, error) {
	prec, err := cb.arena.Get(parent)
	if err != nil {
		cb.logger.Debug("cascade chain extended from a stale record",
			zap.Int("depth", parent.Depth()), zap.Error(err))
		return Handle{}, StyleNew, err
	}
	return cb.extend(prec, parent.Depth()+1, child)
}

func (cb *ChainBuilder) extend(prec *Record, depth int, child *html.Node) (Handle, StyleChange, error) {
	rec, ok := cb.arena.at(depth)
	if ok && rec.Element != child {
		cb.logger.Debug("cascade record reused for another element",
			zap.Int("depth", depth), zap.String("was", nodeLabel(rec.Element)), zap.String("now", nodeLabel(child)))
		if cb.finalize != nil {
			cb.finalize(rec)
		}
		cb.arena.Retire(rec.handle)
		ok = false
	}
	if !ok {
		var err error
		if rec, err = cb.arena.acquire(depth); err != nil {
			cb.logger.Debug("no cascade record available", zap.Int("depth", depth), zap.Error(err))
			return Handle{}, StyleNew, err
		}
	} else {
		// Revisit of the same element: deeper records belong to its old
		// children and are stale now.
		if deeper, live := cb.arena.at(depth + 1); live {
			cb.arena.Retire(deeper.handle)
		}
	}

	var parentStyle *css.ComputedStyle
	if prec != nil {
		parentStyle = effectiveParentStyle(prec.Element, prec.Style)
	}
	cs := css.Compute(parentStyle, cb.styles.Specified(child))

	change := StyleNew
	if prev := cb.tree.StyleFor(child); prev != nil {
		if prev.Equal(cs) {
			change = StyleUnchanged
			cs = prev
		} else {
			change = StyleChanged
		}
	}

	h := rec.handle
	*rec = Record{
		Element: child,
		Style:   cs,
		Change:  change,
		Parent:  NoHandle,
		handle:  h,
	}
	if prec != nil {
		rec.Parent = prec.handle
		rec.ParentBox = prec.ParentBox
		rec.Container, rec.Table, rec.Flex = prec.Container, prec.Table, prec.Flex
		if b := prec.Box; b != nil {
			rec.ParentBox = b
			switch {
			case b.Content.Kind() == ContentTable:
				rec.Table = b
			case b.Content.Kind().IsFlex():
				rec.Flex = b
			}
			if IsContainer(b.Content) {
				rec.Container = b
			}
		}
	}
	cb.tree.rememberStyle(child, cs)
	return h, change, nil
}
