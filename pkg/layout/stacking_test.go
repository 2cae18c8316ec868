package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stackBox(parent *Box, z int, need StackingNeed) *Box {
	b := &Box{ZIndex: z, Stacking: need}
	if parent != nil {
		parent.appendChild(b)
	}
	return b
}

func TestStackingContexts_PaintOrder(t *testing.T) {
	root := &Box{}
	pos2 := stackBox(root, 2, StackZIndex)
	neg := stackBox(root, -1, StackZIndex)
	plain := stackBox(root, 0, 0)
	faded := stackBox(plain, 0, StackOpacity)
	pos1 := stackBox(root, 1, StackZIndex)
	inner := stackBox(pos1, -5, StackZIndex)

	ctx := BuildStackingContextTree(root)
	var order []*Box
	for _, c := range ctx.PaintOrder() {
		order = append(order, c.Box)
	}
	assert.Equal(t, []*Box{neg, nil, faded, inner, pos1, pos2}, order)

	assert.Same(t, ctx, ContextFor(faded, ctx))
	assert.Same(t, inner, ContextFor(stackBox(inner, 0, 0), ctx).Box)
}

func TestStackingContexts_FromStyles(t *testing.T) {
	root := fragment(t, `<div style="position:relative; z-index:3"><span style="opacity:0.5">a</span></div>`+
		`<div style="position:absolute; z-index:-2">b</div><div style="transform: rotate(3deg)">c</div>`)
	d := newDriver(t, "", root)
	runPass(t, d, root)

	ctx := BuildStackingContextTree(d.Tree().Root)
	require.Len(t, ctx.NegativeZ, 1)
	require.Len(t, ctx.PositiveZ, 1)
	require.Len(t, ctx.ZeroZ, 1)
	assert.Equal(t, 3, ctx.PositiveZ[0].ZIndex)
	assert.Len(t, ctx.PositiveZ[0].ZeroZ, 1, "the opacity span stacks inside its z-index parent")
	assert.Equal(t, StackTransform, ctx.ZeroZ[0].Box.Stacking)
}

func TestDump(t *testing.T) {
	table := el("table", nil, styled("div", "display:table-cell", txt("X")))
	root := document(table, el("p", nil, txt("hi")))
	d := newDriver(t, "", root)
	runPass(t, d, root)

	out := Dump(d.Tree())
	for _, want := range []string{"table <table>", "row-group <tbody> anon", "row <tr> anon", "cell <div>", `text #text "X"`, "block <p>"} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, "(empty)\n", Dump(NewBoxTree()))

	markup := DumpMarkup(root)
	assert.Contains(t, markup, "<tbody> [layout]")
	assert.True(t, strings.HasPrefix(markup, "<document>"))
}
