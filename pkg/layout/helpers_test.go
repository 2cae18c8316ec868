package layout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

func el(tag string, attrs map[string]string, kids ...*html.Node) *html.Node {
	n := html.NewElement(tag)
	for k, v := range attrs {
		n.Attributes[k] = v
	}
	for _, k := range kids {
		n.AddChild(k)
	}
	return n
}

func txt(s string) *html.Node { return html.NewText(s) }

func styled(tag, style string, kids ...*html.Node) *html.Node {
	return el(tag, map[string]string{"style": style}, kids...)
}

func document(kids ...*html.Node) *html.Node {
	doc := html.NewDocument()
	for _, k := range kids {
		doc.Root.AddChild(k)
	}
	return doc.Root
}

// fragment parses markup in body context and returns the document root.
func fragment(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := html.ParseFragment(markup)
	require.NoError(t, err)
	return doc.Root
}

func resolver(t *testing.T, sheet string, root *html.Node) *css.Resolver {
	t.Helper()
	var author []*css.Stylesheet
	if sheet != "" {
		s, err := css.ParseStylesheet(sheet)
		require.NoError(t, err)
		author = append(author, s)
	}
	r := css.NewResolver(css.MediaContext{Width: 800, Height: 600}, author...)
	r.Bind(root)
	return r
}

func newDriver(t *testing.T, sheet string, root *html.Node, opts ...Option) *Driver {
	t.Helper()
	return NewDriver(resolver(t, sheet, root), opts...)
}

func runPass(t *testing.T, d *Driver, root *html.Node, opts ...PassOption) {
	t.Helper()
	require.NoError(t, d.Run(context.Background(), root, opts...))
}

// find returns the first node under n, in document order, that matches.
func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for _, c := range n.Children {
		if f := find(c, match); f != nil {
			return f
		}
	}
	return nil
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Type == html.ElementNode && n.TagName == tag }
}

func byID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		v, ok := n.GetAttribute("id")
		return ok && v == id
	}
}

func walkNodes(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for _, c := range n.Children {
		walkNodes(c, fn)
	}
}

// generatedTexts returns the text of the generated children of n.
func generatedTexts(n *html.Node) []string {
	var out []string
	for _, c := range n.Children {
		if c.IsGeneratedContent() && c.Type == html.TextNode {
			out = append(out, c.Text)
		}
	}
	return out
}

// fakeLoader records loads and answers Ready from a set.
type fakeLoader struct {
	ready  map[string]bool
	loads  []string
	onLoad func(url string)
}

func newFakeLoader() *fakeLoader { return &fakeLoader{ready: make(map[string]bool)} }

func (l *fakeLoader) Load(url string, _ ResourceKind, _ *html.Node) {
	l.loads = append(l.loads, url)
	if l.onLoad != nil {
		l.onLoad(url)
	}
}

func (l *fakeLoader) Ready(url string) bool { return l.ready[url] }
