package html

import (
	"fmt"
	"net/url"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CSSFetcher loads the text of an external stylesheet.
type CSSFetcher func(uri string) (string, error)

type Parser struct {
	src        string
	doc        *Document
	fetchCSS   CSSFetcher
	isFragment bool
}

func NewParser(html string) *Parser {
	return &Parser{
		src: html,
		doc: NewDocument(),
	}
}

// SetCSSFetcher installs a loader for <link rel="stylesheet"> hrefs that
// are not data URIs.
func (p *Parser) SetCSSFetcher(f CSSFetcher) { p.fetchCSS = f }

// Parse runs the HTML5 tree construction algorithm over the whole input and
// converts the result into a Document. <style>, <script> and stylesheet
// <link> elements are lifted out of the tree.
func (p *Parser) Parse() (*Document, error) {
	var roots []*xhtml.Node
	if p.isFragment {
		body := &xhtml.Node{Type: xhtml.ElementNode, Data: "body", DataAtom: atom.Body}
		nodes, err := xhtml.ParseFragment(strings.NewReader(p.src), body)
		if err != nil {
			return nil, fmt.Errorf("parsing fragment: %w", err)
		}
		roots = nodes
	} else {
		top, err := xhtml.Parse(strings.NewReader(p.src))
		if err != nil {
			return nil, fmt.Errorf("parsing document: %w", err)
		}
		for c := top.FirstChild; c != nil; c = c.NextSibling {
			roots = append(roots, c)
		}
	}

	for _, r := range roots {
		p.convert(r, p.doc.Root)
	}
	return p.doc, nil
}

func (p *Parser) convert(src *xhtml.Node, parent *Node) {
	switch src.Type {
	case xhtml.TextNode:
		parent.AppendText(src.Data)
	case xhtml.ElementNode:
		switch src.DataAtom {
		case atom.Style:
			p.doc.Stylesheets = append(p.doc.Stylesheets, collectText(src))
			return
		case atom.Script:
			p.doc.Scripts = append(p.doc.Scripts, collectText(src))
			return
		case atom.Link:
			p.handleLink(src)
		}

		node := NewElement(src.Data)
		for _, a := range src.Attr {
			node.Attributes[a.Key] = a.Val
		}
		parent.AddChild(node)
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			p.convert(c, node)
		}
	}
	// Comments and doctypes do not take part in layout.
}

func (p *Parser) handleLink(src *xhtml.Node) {
	var rel, href string
	for _, a := range src.Attr {
		switch a.Key {
		case "rel":
			rel = a.Val
		case "href":
			href = a.Val
		}
	}
	if !strings.Contains(rel, "stylesheet") || href == "" {
		return
	}
	if css := p.loadLinkStylesheet(href); css != "" {
		p.doc.Stylesheets = append(p.doc.Stylesheets, css)
	}
}

func collectText(n *xhtml.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// loadLinkStylesheet loads CSS from a data URI href, or through the
// installed fetcher for anything else.
func (p *Parser) loadLinkStylesheet(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "data:text/css,") {
		encoded := href[len("data:text/css,"):]
		decoded, err := url.PathUnescape(encoded)
		if err != nil {
			return encoded
		}
		return decoded
	}
	if p.fetchCSS == nil {
		return ""
	}
	css, err := p.fetchCSS(href)
	if err != nil {
		return ""
	}
	return css
}

// Parse parses a complete HTML document. The tree under Document.Root has
// the usual html/head/body structure.
func Parse(html string) (*Document, error) {
	parser := NewParser(html)
	return parser.Parse()
}

// ParseWithFetcher is Parse with an external stylesheet loader.
func ParseWithFetcher(html string, fetch CSSFetcher) (*Document, error) {
	parser := NewParser(html)
	parser.SetCSSFetcher(fetch)
	return parser.Parse()
}

// ParseFragment parses markup in a <body> context and places the resulting
// nodes directly under Document.Root.
func ParseFragment(html string) (*Document, error) {
	parser := NewParser(html)
	parser.isFragment = true
	return parser.Parse()
}

// Body returns the <body> element, or the root for fragments.
func (d *Document) Body() *Node {
	if b := findTag(d.Root, "body"); b != nil {
		return b
	}
	return d.Root
}

func findTag(n *Node, tag string) *Node {
	if n.Type == ElementNode && n.TagName == tag {
		return n
	}
	for _, c := range n.Children {
		if f := findTag(c, tag); f != nil {
			return f
		}
	}
	return nil
}
