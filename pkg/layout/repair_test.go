package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

func TestRoleRequires(t *testing.T) {
	tests := []struct {
		child, parent, want TableRole
	}{
		{RoleCell, RoleRow, RoleNone},
		{RoleCell, RoleRowGroup, RoleRow},
		{RoleCell, RoleNone, RoleRow},
		{RoleRow, RoleRowGroup, RoleNone},
		{RoleRow, RoleTable, RoleRowGroup},
		{RoleRowGroup, RoleTable, RoleNone},
		{RoleRowGroup, RoleNone, RoleTable},
		{RoleCaption, RoleNone, RoleTable},
		{RoleColumn, RoleColumnGroup, RoleNone},
		{RoleColumn, RoleTable, RoleNone},
		{RoleColumn, RoleNone, RoleTable},
		{RoleNone, RoleTable, RoleCell},
		{RoleNone, RoleRow, RoleCell},
		{RoleNone, RoleCell, RoleNone},
		{RoleNone, RoleNone, RoleNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roleRequires(tt.child, tt.parent), "%s under %s", tt.child, tt.parent)
	}
}

func TestRequiredForIsOutermost(t *testing.T) {
	cell := &css.ComputedStyle{Display: css.DisplayTableCell}
	block := &css.ComputedStyle{Display: css.DisplayBlock}
	n := html.NewElement("div")

	assert.Equal(t, RoleRowGroup, requiredFor(n, cell, RoleTable))
	assert.Equal(t, RoleRow, requiredFor(n, cell, RoleRowGroup))
	assert.Equal(t, RoleTable, requiredFor(n, cell, RoleNone))
	assert.Equal(t, RoleRowGroup, requiredFor(n, block, RoleTable))
	assert.Equal(t, RoleCell, requiredFor(n, block, RoleRow))

	assert.Equal(t, RoleNone, requiredFor(html.NewText("  \n"), block, RoleTable))
	hidden := el("input", map[string]string{"type": "hidden"})
	assert.Equal(t, RoleNone, requiredFor(hidden, &css.ComputedStyle{Display: css.DisplayInline}, RoleRow))
}

func TestIllegalNesting(t *testing.T) {
	assert.True(t, illegalNesting(RoleCell, RoleCell))
	assert.True(t, illegalNesting(RoleRow, RoleRow))
	assert.True(t, illegalNesting(RoleRowGroup, RoleRow))
	assert.True(t, illegalNesting(RoleCaption, RoleCell))
	assert.False(t, illegalNesting(RoleCell, RoleRow))
	assert.False(t, illegalNesting(RoleRow, RoleTable))
	assert.False(t, illegalNesting(RoleNone, RoleCell))
}

func TestRepair_CellOutsideTableGetsWholeTable(t *testing.T) {
	cell := styled("span", "display:table-cell", txt("x"))
	div := el("div", nil, cell)
	root := document(div)
	d := newDriver(t, "", root)
	runPass(t, d, root)

	require.Len(t, div.Children, 1)
	table := div.Children[0]
	assert.Equal(t, "table", table.TagName)
	assert.True(t, table.IsInsertedByLayout())
	tr := table.Children[0].Children[0]
	assert.Equal(t, "tr", tr.TagName)
	assert.Equal(t, []*html.Node{cell}, tr.Children)
	assertTableAncestry(t, d.Tree())
}

func TestRepair_RunStopsAtDifferentNeed(t *testing.T) {
	row := styled("div", "display:table-row", styled("div", "display:table-cell", txt("r")))
	cap := styled("div", "display:table-caption", txt("c"))
	table := el("table", nil, row, cap)
	root := document(table)
	runPass(t, newDriver(t, "", root), root)

	require.Len(t, table.Children, 2)
	assert.Equal(t, "tbody", table.Children[0].TagName)
	assert.Equal(t, []*html.Node{row}, table.Children[0].Children)
	assert.Equal(t, cap, table.Children[1])
}

func TestRepair_TrailingWhitespaceStaysOutsideRun(t *testing.T) {
	c1 := styled("div", "display:table-cell", txt("1"))
	ws := txt(" ")
	table := el("table", nil, styled("div", "display:table-row", c1, ws))
	root := document(table)
	runPass(t, newDriver(t, "", root), root)

	row := table.Children[0].Children[0]
	assert.Equal(t, []*html.Node{c1, ws}, row.Children)
}

func TestRepair_HiddenInputNeedsNoCell(t *testing.T) {
	input := el("input", map[string]string{"type": "hidden"})
	tr := el("tr", nil, el("td", nil, txt("a")), input)
	root := document(el("table", nil, el("tbody", nil, tr)))
	d := newDriver(t, "", root)
	runPass(t, d, root)

	assert.Equal(t, tr, input.Parent)
	reason, ok := d.Tree().NoBoxReason(input)
	assert.True(t, ok)
	assert.Equal(t, NoBoxDisplayNone, reason)
}

func TestRepair_RemoveElementsInsertedByLayout(t *testing.T) {
	c1 := styled("div", "display:table-cell", txt("1"))
	block := el("div", nil, txt("b"))
	c2 := styled("div", "display:table-cell", txt("2"))
	table := el("table", nil, c1, block, c2)
	root := document(table)
	d := newDriver(t, "", root)
	runPass(t, d, root)

	removed := d.Repairer().RemoveElementsInsertedByLayout(table)
	assert.Equal(t, 3, removed)
	assert.Equal(t, []*html.Node{c1, block, c2}, table.Children)
	for _, n := range table.Children {
		assert.Equal(t, table, n.Parent)
	}

	table.MarkDirty()
	runPass(t, d, root)
	assertTableAncestry(t, d.Tree())
	assertNoAdjacentAnonymous(t, root)
}

func TestRepair_RemoveDeletesPseudoElements(t *testing.T) {
	p := el("p", nil, txt("x"))
	root := document(p)
	d := newDriver(t, `p::before { content: "a" } p::after { content: "b" }`, root)
	runPass(t, d, root)
	require.Len(t, p.Children, 3)
	before := p.Children[0]

	assert.Equal(t, 2, d.Repairer().RemoveElementsInsertedByLayout(p))
	require.Len(t, p.Children, 1)
	assert.Equal(t, html.TextNode, p.Children[0].Type)
	assert.Nil(t, d.Tree().BoxFor(before))
}

func TestRepair_OutOfFlowMovedOutOfSharedWrapper(t *testing.T) {
	a := el("span", nil, txt("a"))
	abs := styled("span", "position:absolute", txt("abs"))
	w := el(html.TagAnonFlexItem, nil, a, abs)
	w.SetFlag(html.FlagInsertedByLayout)
	flex := styled("div", "display:flex", w)
	root := document(flex)
	d := newDriver(t, "", root)
	runPass(t, d, root)

	require.Len(t, flex.Children, 2)
	assert.Equal(t, []*html.Node{a}, flex.Children[0].Children)
	w2 := flex.Children[1]
	assert.True(t, isAnonFlexItem(w2))
	assert.Equal(t, []*html.Node{abs}, w2.Children)
	assert.Equal(t, PositionAbsolute, d.Tree().BoxFor(abs).Positioning)
}

func TestRepair_FlexWrapperReservesUpFront(t *testing.T) {
	flex := styled("div", "display:flex", el("span", nil, txt("a")), styled("b", "position:fixed", txt("b")))
	root := document(flex)
	before := root.SerializeWithFlags()

	calls := 0
	alloc := AllocatorFunc(func(k AllocKind, n int) error {
		if k == AllocElement {
			calls++
			assert.Equal(t, 2, n)
			return ErrOutOfMemory
		}
		return nil
	})
	d := newDriver(t, "", root, WithAllocator(alloc))
	require.Error(t, d.Run(t.Context(), root))
	assert.Equal(t, 1, calls)
	assert.Equal(t, before, root.SerializeWithFlags())
}

func TestRepair_ChildrenOfAnonFlexItemAreBlockified(t *testing.T) {
	row := styled("span", "display:table-row", txt("r"))
	flex := styled("div", "display:flex", row)
	root := document(flex)
	d := newDriver(t, "", root)
	runPass(t, d, root)

	cs := d.Tree().StyleFor(row)
	require.NotNil(t, cs)
	assert.Equal(t, css.DisplayBlock, cs.Display)
	assert.Equal(t, flex.Children[0], row.Parent)
}

func TestRepair_BeforeSharesWrapperWithFollowingRows(t *testing.T) {
	tr := el("tr", nil, el("td", nil, txt("a")))
	table := el("table", nil, tr)
	root := document(table)
	d := newDriver(t, `table::before { content: "x" }`, root)
	runPass(t, d, root)

	require.Len(t, table.Children, 1)
	tbody := table.Children[0]
	assert.True(t, tbody.IsInsertedByLayout())
	require.Len(t, tbody.Children, 2)
	assert.True(t, tbody.Children[0].IsInsertedByLayout(), "the ::before gets its own anonymous row")
	assert.Equal(t, tr, tbody.Children[1])
	assert.NotNil(t, findPseudo(table, html.FlagBeforePseudo))

	markup := root.SerializeWithFlags()
	runPass(t, d, root)
	assert.Equal(t, markup, root.SerializeWithFlags(), "the wrapped ::before is found again, not duplicated")
}

func TestRepair_RemovedBeforeTakesEmptyWrappers(t *testing.T) {
	table := el("table", map[string]string{"class": "x"}, el("tr", nil, el("td", nil, txt("a"))))
	root := document(table)
	d := newDriver(t, `.x::before { content: "x" } .x::after { content: "y" }`, root)
	runPass(t, d, root)
	require.NotNil(t, findPseudo(table, html.FlagAfterPseudo))

	// Only the style changes; the table itself is not rebuilt.
	table.Attributes["class"] = ""
	runPass(t, d, root)
	assert.Nil(t, findPseudo(table, html.FlagBeforePseudo))
	assert.Nil(t, findPseudo(table, html.FlagAfterPseudo))
	walkNodes(table, func(n *html.Node) {
		if n != table && n.IsInsertedByLayout() {
			assert.NotEmpty(t, n.Children, "empty %s left behind", n.TagName)
		}
	})
}
