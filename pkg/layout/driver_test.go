package layout

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

func TestDriver_TableCellGetsRowAndRowGroup(t *testing.T) {
	cell := styled("div", "display:table-cell", txt("X"))
	table := el("table", nil, cell)
	root := document(table)
	d := newDriver(t, "", root)
	runPass(t, d, root)

	require.Len(t, table.Children, 1)
	tbody := table.Children[0]
	assert.Equal(t, "tbody", tbody.TagName)
	assert.True(t, tbody.IsInsertedByLayout())
	require.Len(t, tbody.Children, 1)
	tr := tbody.Children[0]
	assert.Equal(t, "tr", tr.TagName)
	assert.True(t, tr.IsInsertedByLayout())
	assert.Equal(t, []*html.Node{cell}, tr.Children)

	b := d.Tree().BoxFor(cell)
	require.NotNil(t, b)
	assert.Equal(t, ContentTableCell, b.Content.Kind())
	assert.Equal(t, ContentTableRow, b.Parent.Content.Kind())
	assert.Equal(t, ContentTableRowGroup, b.Parent.Parent.Content.Kind())
	assert.Equal(t, ContentTable, b.Parent.Parent.Parent.Content.Kind())
	assert.True(t, b.Parent.Anonymous)
	assert.True(t, b.Parent.Parent.Anonymous)
	assert.False(t, b.Parent.Parent.Parent.Anonymous)
}

func TestDriver_GeneratedContentWithCounter(t *testing.T) {
	sheet := `div { counter-reset: c 2 } p { counter-increment: c } p::before { content: "A" counter(c) "B" }`
	p := el("p", nil, txt("body"))
	root := document(el("div", nil, p))
	d := newDriver(t, sheet, root)
	runPass(t, d, root)

	before := p.FirstChild()
	require.NotNil(t, before)
	require.True(t, before.IsBeforePseudo())
	assert.Equal(t, []string{"A", "3", "B"}, generatedTexts(before))

	b := d.Tree().BoxFor(before)
	require.NotNil(t, b)
	require.Len(t, b.Children, 3)
	for _, c := range b.Children {
		assert.Equal(t, ContentText, c.Content.Kind())
	}
}

func TestDriver_FlexItemWrappers(t *testing.T) {
	abs := styled("span", "position:absolute", txt("a"))
	div := el("div", nil, txt("b"))
	span := el("span", nil, txt("c"))
	flex := styled("div", "display:flex", abs, div, span)
	root := document(flex)
	d := newDriver(t, "", root)
	runPass(t, d, root)

	require.Len(t, flex.Children, 2)
	w1, w2 := flex.Children[0], flex.Children[1]
	for _, w := range []*html.Node{w1, w2} {
		assert.Equal(t, html.TagAnonFlexItem, w.TagName)
		assert.True(t, w.IsInsertedByLayout())
	}
	assert.Equal(t, []*html.Node{abs}, w1.Children)
	assert.Equal(t, []*html.Node{div, span}, w2.Children)

	fb := d.Tree().BoxFor(flex)
	require.NotNil(t, fb)
	assert.Equal(t, ContentFlex, fb.Content.Kind())
	require.Len(t, fb.Children, 2)
	assert.Equal(t, PositionAbsolute, d.Tree().BoxFor(abs).Positioning)
}

func TestDriver_OutOfMemoryLeavesTreeUntouched(t *testing.T) {
	table := el("table", nil, styled("div", "display:table-cell", txt("X")))
	root := document(table)
	before := root.SerializeWithFlags()

	d := newDriver(t, "", root, WithAllocator(FailOn(AllocElement, 0)))
	err := d.Run(context.Background(), root)
	require.ErrorIs(t, err, ErrOutOfMemory)

	assert.Empty(t, cmp.Diff(before, root.SerializeWithFlags()))
	assert.True(t, d.NeedsReflow())
	assert.Zero(t, d.arena.Live())
	assert.NoError(t, d.AllowMutation())
}

func TestDriver_RetriesAfterOutOfMemory(t *testing.T) {
	table := el("table", nil, styled("div", "display:table-cell", txt("X")))
	root := document(table)

	fail := true
	alloc := AllocatorFunc(func(k AllocKind, _ int) error {
		if fail && k == AllocElement {
			return ErrOutOfMemory
		}
		return nil
	})
	d := newDriver(t, "", root, WithAllocator(alloc))
	require.ErrorIs(t, d.Run(context.Background(), root), ErrOutOfMemory)

	fail = false
	runPass(t, d, root)
	assert.False(t, d.NeedsReflow())
	require.Len(t, table.Children, 1)
	assert.Equal(t, "tbody", table.Children[0].TagName)
}

func TestDriver_OutOfMemoryOnDeepTree(t *testing.T) {
	inner := el("div", nil, txt("deep"))
	root := document(el("div", nil, el("div", nil, inner)))
	d := newDriver(t, "", root, WithMaxDepth(3))
	err := d.Run(context.Background(), root)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Zero(t, d.arena.Live())
}

// styleSnapshot lists computed values in document order.
func styleSnapshot(tree *BoxTree, root *html.Node) []map[string]string {
	var out []map[string]string
	walkNodes(root, func(n *html.Node) {
		if cs := tree.StyleFor(n); cs != nil {
			out = append(out, cs.Values)
		}
	})
	return out
}

const richMarkup = `<ul><li>one</li><li>two</li></ul>` +
	`<p>Hello <q>world</q></p>` +
	`<div class="f"><span>a</span> <b>b</b></div>` +
	`<ol start="4"><li>x</li></ol>`

const richSheet = `li::before { content: "-" } p::first-letter { color: red } .f { display: flex }`

func TestDriver_Idempotent(t *testing.T) {
	root := fragment(t, richMarkup)
	root.AddChild(el("table", nil, styled("div", "display:table-cell", txt("X"))))
	d := newDriver(t, richSheet, root)
	runPass(t, d, root)
	first := d.Stats()
	assert.NotZero(t, first.BoxesAllocated)

	markup := root.SerializeWithFlags()
	styles := styleSnapshot(d.Tree(), root)
	dump := Dump(d.Tree())

	runPass(t, d, root)
	second := d.Stats()
	assert.Zero(t, second.BoxesAllocated)
	assert.Equal(t, first.BoxesAllocated, second.BoxesReused)
	assert.Empty(t, cmp.Diff(markup, root.SerializeWithFlags()))
	assert.Empty(t, cmp.Diff(styles, styleSnapshot(d.Tree(), root)))
	assert.Equal(t, dump, Dump(d.Tree()))
}

func TestDriver_InheritedValuesRoundTrip(t *testing.T) {
	root := fragment(t, richMarkup+`<div style="color: green; font-size: inherit"><em>t</em></div>`)
	r := resolver(t, richSheet+` em { color: blue }`, root)
	d := NewDriver(r)
	runPass(t, d, root)

	tree := d.Tree()
	checked := 0
	walkNodes(root, func(n *html.Node) {
		cs := tree.StyleFor(n)
		if cs == nil || n.Parent == nil {
			return
		}
		ps := tree.StyleFor(n.Parent)
		if ps == nil {
			return
		}
		spec := r.Specified(n)
		for _, prop := range css.InheritedProperties() {
			v := cs.Value(prop)
			own, ok := spec.Get(prop)
			assert.Truef(t, v == ps.Value(prop) || (ok && v == own),
				"%s of %s: %q is neither own %q nor parent %q", prop, nodeLabel(n), v, own, ps.Value(prop))
		}
		checked++
	})
	assert.Greater(t, checked, 10)
}

func assertTableAncestry(t *testing.T, tree *BoxTree) {
	t.Helper()
	tree.Walk(func(b *Box, _ int) bool {
		if b.Content.Kind() != ContentTableCell {
			return true
		}
		want := []ContentKind{ContentTableRow, ContentTableRowGroup, ContentTable}
		p := b.Parent
		for _, k := range want {
			require.NotNil(t, p, "cell %s lacks %s ancestor", nodeLabel(b.Element), k)
			assert.Equal(t, k, p.Content.Kind())
			p = p.Parent
		}
		return true
	})
}

func assertNoAdjacentAnonymous(t *testing.T, root *html.Node) {
	t.Helper()
	walkNodes(root, func(n *html.Node) {
		for i := 1; i < len(n.Children); i++ {
			a, b := n.Children[i-1], n.Children[i]
			if a.IsInsertedByLayout() && b.IsInsertedByLayout() && !a.IsPseudoElement() &&
				!b.IsPseudoElement() && a.TagName == b.TagName && a.TagName != html.TagAnonFlexItem {
				t.Errorf("adjacent anonymous %s under %s", a.TagName, nodeLabel(n))
			}
		}
	})
}

func TestDriver_AnonymousRunsAreMaximal(t *testing.T) {
	cell := func(s string) *html.Node { return styled("div", "display:table-cell", txt(s)) }
	table := el("table", nil, cell("1"), txt(" "), cell("2"), txt(" "), cell("3"))
	root := document(table)
	d := newDriver(t, "", root)
	runPass(t, d, root)

	require.Len(t, table.Children, 1)
	tbody := table.Children[0]
	require.Len(t, tbody.Children, 1)
	tr := tbody.Children[0]
	assert.Len(t, tr.Children, 5)
	assertTableAncestry(t, d.Tree())
	assertNoAdjacentAnonymous(t, root)

	ws := tr.Children[1]
	reason, ok := d.Tree().NoBoxReason(ws)
	assert.True(t, ok)
	assert.Equal(t, NoBoxTableWhitespace, reason)
}

func TestDriver_MixedTableContent(t *testing.T) {
	c1 := styled("div", "display:table-cell", txt("1"))
	block := el("div", nil, txt("block"))
	c2 := styled("div", "display:table-cell", txt("2"))
	table := el("table", nil, c1, block, c2)
	root := document(table)
	d := newDriver(t, "", root)
	runPass(t, d, root)

	require.Len(t, table.Children, 1)
	tr := table.Children[0].Children[0]
	require.Len(t, tr.Children, 3)
	assert.Equal(t, c1, tr.Children[0])
	assert.Equal(t, "td", tr.Children[1].TagName)
	assert.True(t, tr.Children[1].IsInsertedByLayout())
	assert.Equal(t, []*html.Node{block}, tr.Children[1].Children)
	assert.Equal(t, c2, tr.Children[2])
	assertTableAncestry(t, d.Tree())
	assertNoAdjacentAnonymous(t, root)
}

func TestDriver_AnonymousChildOfTableCopiesSpacing(t *testing.T) {
	table := el("table", map[string]string{"cellspacing": "4", "cellpadding": "2"},
		styled("div", "display:table-row", styled("div", "display:table-cell", txt("x"))))
	root := document(table)
	runPass(t, newDriver(t, "", root), root)

	tbody := table.Children[0]
	v, _ := tbody.GetAttribute("cellspacing")
	assert.Equal(t, "4", v)
	v, _ = tbody.GetAttribute("cellpadding")
	assert.Equal(t, "2", v)
}

func TestDriver_ColumnCapDropsCells(t *testing.T) {
	tr := el("tr", nil, el("td", nil, txt("a")), el("td", nil, txt("b")), el("td", nil, txt("c")))
	table := el("table", nil, el("tbody", nil, tr))
	root := document(table)
	d := newDriver(t, "", root, WithMaxColumns(2))
	runPass(t, d, root)

	assert.NotNil(t, d.Tree().BoxFor(tr.Children[0]))
	assert.NotNil(t, d.Tree().BoxFor(tr.Children[1]))
	assert.Nil(t, d.Tree().BoxFor(tr.Children[2]))
	reason, ok := d.Tree().NoBoxReason(tr.Children[2])
	assert.True(t, ok)
	assert.Equal(t, NoBoxColumnCapExceeded, reason)
	assert.Equal(t, 1, d.Stats().CellsDropped)

	tc, ok := d.Tree().BoxFor(table).Content.(*TableContent)
	require.True(t, ok)
	assert.Equal(t, 2, tc.Columns)
}

func TestDriver_ColumnCapCountsColspan(t *testing.T) {
	tr := el("tr", nil, el("td", map[string]string{"colspan": "2"}, txt("a")), el("td", nil, txt("b")))
	root := document(el("table", nil, el("tbody", nil, tr)))
	d := newDriver(t, "", root, WithMaxColumns(2))
	runPass(t, d, root)

	assert.NotNil(t, d.Tree().BoxFor(tr.Children[0]))
	assert.Nil(t, d.Tree().BoxFor(tr.Children[1]))
}

func TestDriver_YieldAndResume(t *testing.T) {
	build := func() *html.Node { return fragment(t, richMarkup) }

	ref := build()
	rd := newDriver(t, richSheet, ref)
	runPass(t, rd, ref)

	root := build()
	d := newDriver(t, richSheet, root, WithYieldEvery(1))
	require.NoError(t, d.Begin(root))
	assert.ErrorIs(t, d.Begin(root), ErrPassInProgress)

	suspensions := 0
	for {
		status, err := d.Resume(context.Background())
		require.NoError(t, err)
		if status == Done {
			break
		}
		suspensions++
		assert.ErrorIs(t, d.AllowMutation(), ErrPassInProgress)
	}
	assert.Greater(t, suspensions, 5)
	assert.Equal(t, suspensions, d.Stats().Yields)
	assert.Equal(t, Dump(rd.Tree()), Dump(d.Tree()))
	assert.Equal(t, ref.SerializeWithFlags(), root.SerializeWithFlags())
	assert.NoError(t, d.AllowMutation())
}

func TestDriver_ResumeWithoutPass(t *testing.T) {
	d := NewDriver(resolver(t, "", document()))
	_, err := d.Resume(context.Background())
	assert.ErrorIs(t, err, ErrNoPass)
}

func TestDriver_CancelledContextSuspends(t *testing.T) {
	root := fragment(t, richMarkup)
	d := newDriver(t, richSheet, root)
	require.NoError(t, d.Begin(root))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	status, err := d.Resume(ctx)
	assert.Equal(t, Suspended, status)
	assert.ErrorIs(t, err, context.Canceled)

	status, err = d.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, status)
}

func TestDriver_ReentrantResumeRefused(t *testing.T) {
	root := fragment(t, `<p><img src="a.png"></p>`)
	loader := newFakeLoader()
	d := newDriver(t, "", root, WithLoader(loader))
	var inner error
	loader.onLoad = func(string) { _, inner = d.Resume(context.Background()) }
	runPass(t, d, root)

	assert.ErrorIs(t, inner, ErrReentrant)
	assert.Equal(t, []string{"a.png"}, loader.loads)
}

func TestDriver_StopBefore(t *testing.T) {
	p1, p2, p3 := el("p", nil, txt("1")), el("p", nil, txt("2")), el("p", nil, txt("3"))
	root := document(p1, p2, p3)
	d := newDriver(t, "", root)
	runPass(t, d, root, StopBefore(p2))

	assert.NotNil(t, d.Tree().BoxFor(p1))
	assert.Nil(t, d.Tree().BoxFor(p2))
	assert.Nil(t, d.Tree().BoxFor(p3))
	assert.False(t, d.Stats().Complete)

	runPass(t, d, root)
	assert.NotNil(t, d.Tree().BoxFor(p3))
	assert.True(t, d.Stats().Complete)
}

func TestDriver_PromotesCellOutOfAnonymousCell(t *testing.T) {
	inner := el("td", map[string]string{"id": "real"}, txt("x"))
	anon := el("td", nil, inner)
	anon.SetFlag(html.FlagInsertedByLayout)
	tr := el("tr", nil, anon)
	root := document(el("table", nil, el("tbody", nil, tr)))
	d := newDriver(t, "", root)
	runPass(t, d, root)

	assert.Equal(t, []*html.Node{inner}, tr.Children)
	assert.Nil(t, d.Tree().BoxFor(anon))
	assert.NotNil(t, d.Tree().BoxFor(inner))
	assert.GreaterOrEqual(t, d.Stats().Retries, 1)
	assertTableAncestry(t, d.Tree())
}

func TestDriver_DirtyElementIsRebuilt(t *testing.T) {
	cell := func(s string) *html.Node { return styled("div", "display:table-cell", txt(s)) }
	table := el("table", nil, cell("1"))
	root := document(table)
	d := newDriver(t, "", root)
	runPass(t, d, root)
	require.Len(t, table.Children, 1)

	added := cell("2")
	table.AddChild(added)
	table.MarkDirty()
	runPass(t, d, root)

	require.Len(t, table.Children, 1)
	tr := table.Children[0].Children[0]
	assert.Len(t, tr.Children, 2)
	assert.False(t, table.IsDirty())
	assertNoAdjacentAnonymous(t, root)
	assertTableAncestry(t, d.Tree())
}

func TestDriver_RequestReflowMarksDirty(t *testing.T) {
	root := fragment(t, `<ul><li style="list-style-image: url(dot.png)">a</li></ul>`)
	loader := newFakeLoader()
	d := newDriver(t, "", root, WithLoader(loader))
	runPass(t, d, root)

	li := find(root, byTag("li"))
	assert.False(t, li.FirstChild().IsMarkerPseudo())
	assert.Contains(t, loader.loads, "dot.png")

	loader.ready["dot.png"] = true
	d.RequestReflow(li)
	assert.True(t, d.NeedsReflow())
	runPass(t, d, root)
	assert.False(t, d.NeedsReflow())

	marker := li.FirstChild()
	require.True(t, marker.IsMarkerPseudo())
	mc, ok := d.Tree().BoxFor(marker).Content.(*MarkerContent)
	require.True(t, ok)
	assert.Equal(t, MarkerImage, mc.Marker)
}

func TestDriver_NoBoxReasons(t *testing.T) {
	hidden := el("div", map[string]string{"style": "display:none"}, txt("h"))
	invisible := styled("div", "visibility:hidden", txt("i"))
	blocked := el("img", map[string]string{"src": "https://ads.example/x.png"})
	empty := txt("")
	flexWS := txt(" ")
	flex := styled("div", "display:flex", flexWS, el("span", nil, txt("s")))
	colChild := el("div", nil, txt("c"))
	table := el("table", nil, el("colgroup", nil, colChild, el("col", nil)))
	root := document(hidden, invisible, el("p", nil, blocked, empty), flex, table)

	d := newDriver(t, "", root,
		WithReducedMode(true),
		WithBlockList(func(u string) bool { return strings.Contains(u, "ads.") }))
	runPass(t, d, root)

	for n, want := range map[*html.Node]NoBoxReason{
		hidden:    NoBoxDisplayNone,
		invisible: NoBoxHiddenReduced,
		blocked:   NoBoxContentBlocked,
		empty:     NoBoxEmptyText,
		flexWS:    NoBoxFlexWhitespace,
		colChild:  NoBoxColumnGroupChild,
	} {
		got, ok := d.Tree().NoBoxReason(n)
		assert.True(t, ok, nodeLabel(n))
		assert.Equal(t, want, got, nodeLabel(n))
		assert.Nil(t, d.Tree().BoxFor(n))
	}
	assert.Nil(t, d.Tree().BoxFor(hidden.FirstChild()), "children of display:none are not visited")
}

func TestDriver_EveryVisibleElementHasBoxOrReason(t *testing.T) {
	root := fragment(t, richMarkup+`<table><tr><td>a</td> <td>b</td></tr></table>`)
	d := newDriver(t, richSheet, root)
	runPass(t, d, root)

	walkNodes(root, func(n *html.Node) {
		cs := d.Tree().StyleFor(n)
		if cs == nil || cs.Display == css.DisplayNone {
			return
		}
		if d.Tree().BoxFor(n) == nil {
			_, ok := d.Tree().NoBoxReason(n)
			assert.True(t, ok, "%s has neither box nor reason", nodeLabel(n))
		}
	})
}

func TestDriver_NestedTableRolesSettle(t *testing.T) {
	displays := []string{
		"table", "table-row-group", "table-row", "table-cell",
		"table-column-group", "table-column", "table-caption",
	}
	for _, outer := range displays {
		for _, inner := range displays {
			t.Run(inner+" in "+outer, func(t *testing.T) {
				child := styled("div", "display:"+inner, txt("x"))
				root := document(styled("div", "display:"+outer, child))
				d := newDriver(t, "", root)
				runPass(t, d, root)

				first := d.Stats()
				assert.LessOrEqual(t, first.Retries, 8)
				assert.Zero(t, first.CellsDropped)
				_, hasReason := d.Tree().NoBoxReason(child)
				assert.True(t, d.Tree().BoxFor(child) != nil || hasReason, "child has neither a box nor a reason")

				markup := root.SerializeWithFlags()
				dump := Dump(d.Tree())
				runPass(t, d, root)
				assert.Zero(t, d.Stats().Retries)
				assert.Equal(t, markup, root.SerializeWithFlags())
				assert.Equal(t, dump, Dump(d.Tree()))
			})
		}
	}
}

func TestDriver_CaptionMovedOutOfStaleWrappers(t *testing.T) {
	caption := styled("div", "display:table-caption", txt("c"))
	tr := el("tr", nil, caption)
	tr.SetFlag(html.FlagInsertedByLayout)
	tbody := el("tbody", nil, tr)
	tbody.SetFlag(html.FlagInsertedByLayout)
	table := el("table", nil, tbody)
	root := document(table)
	d := newDriver(t, "", root)
	runPass(t, d, root)

	assert.Equal(t, []*html.Node{caption}, table.Children)
	b := d.Tree().BoxFor(caption)
	require.NotNil(t, b)
	assert.Equal(t, ContentTableCaption, b.Content.Kind())
	assert.Equal(t, ContentTable, b.Parent.Content.Kind())
}

func TestDriver_CellsDroppedCountsRealCells(t *testing.T) {
	tests := []struct {
		name       string
		root       func() *html.Node
		maxColumns int
		want       int
	}{
		{
			name: "column group in author row",
			root: func() *html.Node {
				return document(styled("div", "display:table-row;",
					styled("div", "display:table-column-group;", txt("x"))))
			},
			want: 0,
		},
		{
			name: "caption in author row under one column",
			root: func() *html.Node {
				return document(styled("div", "display:table-row", styled("div", "display:table-caption", txt("x"))))
			},
			maxColumns: 1,
			want:       0,
		},
		{
			name: "author cells past the cap",
			root: func() *html.Node {
				return document(el("table", nil, el("tbody", nil, el("tr", nil,
					el("td", nil, txt("a")), el("td", nil, txt("b")), el("td", nil, txt("c"))))))
			},
			maxColumns: 2,
			want:       1,
		},
		{
			name: "text beside cells takes one anonymous cell",
			root: func() *html.Node {
				return document(el("table", nil, el("tbody", nil, el("tr", nil,
					txt("a"), el("td", nil, txt("b")), el("td", nil, txt("c"))))))
			},
			maxColumns: 2,
			want:       1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := tt.root()
			var opts []Option
			if tt.maxColumns > 0 {
				opts = append(opts, WithMaxColumns(tt.maxColumns))
			}
			d := newDriver(t, "", root, opts...)
			runPass(t, d, root)
			assert.Equal(t, tt.want, d.Stats().CellsDropped)
			assert.LessOrEqual(t, d.Stats().Retries, 4)
		})
	}
}

func TestDriver_AltTextForMissingImages(t *testing.T) {
	tests := []struct {
		name     string
		markup   string
		ready    bool
		wantText string
		wantKind ContentKind
	}{
		{name: "img loading", markup: `<p><img id="e" src="a.png" alt="A cat"></p>`, wantText: "A cat", wantKind: ContentInline},
		{name: "img without src", markup: `<p><img id="e" alt="Nothing"></p>`, wantText: "Nothing", wantKind: ContentInline},
		{name: "img ready", markup: `<p><img id="e" src="a.png" alt="A cat"></p>`, ready: true, wantKind: ContentReplaced},
		{name: "img empty alt", markup: `<p><img id="e" src="a.png" alt=" "></p>`, wantKind: ContentReplaced},
		{name: "object loading", markup: `<p><object id="e" data="a.png" alt="Movie"></object></p>`, wantText: "Movie", wantKind: ContentInline},
		{name: "image input loading", markup: `<form><input id="e" type="image" src="a.png" alt="Go"></form>`, wantText: "Go", wantKind: ContentShrinkToFit},
		{name: "text input keeps control", markup: `<form><input id="e" alt="Go"></form>`, wantKind: ContentFormControl},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := fragment(t, tt.markup)
			loader := newFakeLoader()
			loader.ready["a.png"] = tt.ready
			d := newDriver(t, "", root, WithLoader(loader))
			runPass(t, d, root)

			e := find(root, byID("e"))
			b := d.Tree().BoxFor(e)
			require.NotNil(t, b)
			assert.Equal(t, tt.wantKind, b.Content.Kind())
			alt := altTextChild(e)
			if tt.wantText == "" {
				assert.Nil(t, alt)
				return
			}
			require.NotNil(t, alt)
			assert.Equal(t, tt.wantText, alt.Text)
			tb := d.Tree().BoxFor(alt)
			require.NotNil(t, tb)
			assert.Equal(t, b, tb.Parent)
		})
	}
}

func TestDriver_AltTextGoesWhenImageArrives(t *testing.T) {
	root := fragment(t, `<p><img src="a.png" alt="A cat"></p>`)
	loader := newFakeLoader()
	d := newDriver(t, "", root, WithLoader(loader))
	runPass(t, d, root)

	img := find(root, byTag("img"))
	require.NotNil(t, altTextChild(img))
	assert.Contains(t, loader.loads, "a.png", "the image is still requested")

	loader.ready["a.png"] = true
	d.RequestReflow(img)
	runPass(t, d, root)
	assert.Empty(t, img.Children)
	assert.Equal(t, ContentReplaced, d.Tree().BoxFor(img).Content.Kind())
}
