package js

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"l14box/pkg/css"
	"l14box/pkg/html"
	"l14box/pkg/layout"
)

func TestCreateAndAppend(t *testing.T) {
	doc := run(t, `<div id="root"></div>`, `
		var root = document.getElementById("root");
		var el = document.createElement("SPAN");
		if (el.tagName !== "SPAN") throw new Error("tagName: " + el.tagName);
		var text = document.createTextNode("hello");
		if (text.nodeType !== 3 || text.nodeValue !== "hello") throw new Error("text node");
		el.appendChild(text);
		if (root.appendChild(el) !== el) throw new Error("appendChild returns the child");
		if (root.children.length !== 1) throw new Error("children.length: " + root.children.length);
		var threw = false;
		try { el.appendChild(root) } catch (e) { threw = e.name === "HierarchyRequestError" }
		if (!threw) throw new Error("cycles must be refused");
	`)
	root := findByID(doc.Root, "root")
	require.Len(t, root.Children, 1)
	assert.Equal(t, "span", root.Children[0].TagName)
	assert.Equal(t, "hello", root.TextContent())
}

func TestReparentMarksBothParents(t *testing.T) {
	var reported []*html.Node
	doc := run(t, `<div id="a"><span id="child">text</span></div><div id="b"></div>`, `
		document.getElementById("b").appendChild(document.getElementById("child"));
	`, WithMutationHook(func(n *html.Node) { reported = append(reported, n) }))

	a, b := findByID(doc.Root, "a"), findByID(doc.Root, "b")
	assert.Empty(t, a.Children)
	require.Len(t, b.Children, 1)
	assert.True(t, a.IsDirty())
	assert.True(t, b.IsDirty())
	assert.Equal(t, []*html.Node{a, b}, reported)
	assert.True(t, b.Parent.HasFlag(html.FlagChildDirty))
}

func TestInsertRemoveReplace(t *testing.T) {
	doc := run(t, `<ul id="l"><li id="one">1</li><li id="three">3</li></ul>`, `
		var l = document.getElementById("l");
		var two = document.createElement("li");
		two.textContent = "2";
		l.insertBefore(two, document.getElementById("three"));
		var zero = document.createElement("li");
		zero.textContent = "0";
		l.prepend(zero);
		l.append("tail");
		document.getElementById("one").after("after-one");
		var gone = l.removeChild(document.getElementById("three"));
		if (gone.id !== "three" || gone.parentNode !== null) throw new Error("removeChild");
		var threw = false;
		try { l.removeChild(gone) } catch (e) { threw = e.name === "NotFoundError" }
		if (!threw) throw new Error("removing a non-child must throw");
		var x = document.createElement("li");
		x.id = "x";
		l.replaceChild(x, zero);
		document.getElementById("one").replaceWith("one!");
	`)
	l := findByID(doc.Root, "l")
	assert.Equal(t, "one!after-one2tail", l.TextContent())
	assert.Equal(t, "x", l.Children[0].Attributes["id"])
}

func TestInnerHTML(t *testing.T) {
	doc := run(t, `<div id="d"><p>old</p></div>`, `
		var d = document.getElementById("d");
		if (d.innerHTML !== "<p>old</p>") throw new Error("innerHTML: " + d.innerHTML);
		d.innerHTML = "<em>new</em> text";
		if (d.firstChild.tagName !== "EM") throw new Error("parsed child");
		if (d.outerHTML !== '<div id="d"><em>new</em> text</div>') throw new Error("outerHTML: " + d.outerHTML);
		var c = d.cloneNode(true);
		if (c.parentNode !== null || c.childNodes.length !== 2) throw new Error("cloneNode");
		d.replaceChildren();
		if (d.hasChildNodes()) throw new Error("replaceChildren");
	`)
	assert.Empty(t, findByID(doc.Root, "d").Children)
}

// laidOut parses markup and runs one construction pass over it.
func laidOut(t *testing.T, markup string) (*html.Document, *layout.Driver) {
	t.Helper()
	doc := parseHTML(t, markup)
	styles, err := css.NewDocumentResolver(doc, css.MediaContext{Width: 800, Height: 600})
	require.NoError(t, err)
	d := layout.NewDriver(styles)
	require.NoError(t, d.Run(context.Background(), doc.Root))
	return doc, d
}

func TestScriptsSeeTheAuthorTree(t *testing.T) {
	doc, d := laidOut(t, `<style>#q::before { content: "pre" }</style>
		<div id="t" style="display:table"><div id="c1" style="display:table-cell">a</div></div>
		<p id="q">text</p>`)
	t1 := findByID(doc.Root, "t")
	require.True(t, t1.Children[0].IsInsertedByLayout(), "the pass wrapped the cell")

	doc.Scripts = []string{`
		var t = document.getElementById("t");
		var c1 = document.getElementById("c1");
		if (t.children.length !== 1 || t.firstElementChild !== c1) throw new Error("wrappers must be transparent");
		if (c1.parentNode !== t) throw new Error("parentNode skips wrappers");
		if (t.innerHTML.indexOf("tbody") >= 0) throw new Error("innerHTML shows a wrapper: " + t.innerHTML);
		if (document.querySelector("#t > #c1") !== c1) throw new Error("selectors skip wrappers");
		var q = document.getElementById("q");
		if (q.childNodes.length !== 1 || q.textContent !== "text") throw new Error("pseudo-elements are hidden");
	`}
	require.NoError(t, New(WithGuard(d.AllowMutation)).Execute(doc))
}

func TestMutationsInsideAnonymousWrappersReflow(t *testing.T) {
	doc, d := laidOut(t, `<div id="t" style="display:table"><div id="c1" style="display:table-cell">a</div></div>`)
	doc.Scripts = []string{`
		var t = document.getElementById("t");
		var c0 = document.createElement("div");
		c0.id = "c0";
		c0.style.display = "table-cell";
		t.insertBefore(c0, document.getElementById("c1"));
		var c2 = c0.cloneNode(false);
		c2.id = "c2";
		t.appendChild(c2);
	`}
	require.NoError(t, New(WithGuard(d.AllowMutation), WithMutationHook(d.RequestReflow)).Execute(doc))
	require.True(t, d.NeedsReflow())

	require.NoError(t, d.Run(context.Background(), doc.Root))
	tree := d.Tree()
	var rows []*layout.Box
	for _, id := range []string{"c0", "c1", "c2"} {
		box := tree.BoxFor(findByID(doc.Root, id))
		require.NotNil(t, box, id)
		require.NotNil(t, box.Parent, id)
		rows = append(rows, box.Parent)
	}
	assert.Same(t, rows[0], rows[1], "one anonymous row holds all three cells")
	assert.Same(t, rows[1], rows[2])
	assert.Equal(t, layout.ContentTableRow, rows[0].Content.Kind())
	assert.False(t, findByID(doc.Root, "t").IsDirty())
}

func TestMutationRefusedDuringSuspendedPass(t *testing.T) {
	doc := parseHTML(t, `<p id="p">a</p>`)
	styles, err := css.NewDocumentResolver(doc, css.MediaContext{Width: 800, Height: 600})
	require.NoError(t, err)
	d := layout.NewDriver(styles, layout.WithYieldEvery(1))
	require.NoError(t, d.Begin(doc.Root))

	doc.Scripts = []string{`document.getElementById("p").textContent = "b"`}
	err = New(WithGuard(d.AllowMutation)).Execute(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass in progress")
	assert.Equal(t, "a", findByID(doc.Root, "p").TextContent())

	for {
		status, err := d.Resume(context.Background())
		require.NoError(t, err)
		if status == layout.Done {
			break
		}
	}
	require.NoError(t, New(WithGuard(d.AllowMutation)).Execute(doc))
	assert.Equal(t, "b", findByID(doc.Root, "p").TextContent())
}
