package html

import "testing"

func TestParser_SingleElement(t *testing.T) {
	doc, err := ParseFragment("<div></div>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Root.Children) != 1 {
		t.Errorf("expected 1 child, got %d", len(doc.Root.Children))
	}
	if doc.Root.Children[0].TagName != "div" {
		t.Errorf("expected tag 'div', got '%s'", doc.Root.Children[0].TagName)
	}
}

func TestParser_MultipleElements(t *testing.T) {
	doc, err := ParseFragment("<div></div><p></p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Root.Children) != 2 {
		t.Errorf("expected 2 children, got %d", len(doc.Root.Children))
	}
}

func TestParser_WithAttributes(t *testing.T) {
	doc, err := ParseFragment(`<div style="color: red"></div>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	style, ok := doc.Root.Children[0].GetAttribute("style")
	if !ok || style != "color: red" {
		t.Error("expected style attribute 'color: red'")
	}
}

func TestParser_NestedElements(t *testing.T) {
	doc, err := ParseFragment(`<div><p>Hello</p></div>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Root.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(doc.Root.Children))
	}
	div := doc.Root.Children[0]
	if len(div.Children) != 1 || div.Children[0].TagName != "p" {
		t.Fatalf("expected div > p, got %s", div.SerializeOuter())
	}
	if div.Children[0].Parent != div {
		t.Error("p should point back at div")
	}
	if got := div.TextContent(); got != "Hello" {
		t.Errorf("expected text 'Hello', got %q", got)
	}
}

func TestParser_FullDocumentHasBody(t *testing.T) {
	doc, err := Parse(`<!DOCTYPE html><title>x</title><p>one</p>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := doc.Body()
	if body == doc.Root || body.TagName != "body" {
		t.Fatalf("expected a body element, got %q", body.TagName)
	}
	if len(body.Children) != 1 || body.Children[0].TagName != "p" {
		t.Errorf("expected body > p, got %s", body.SerializeOuter())
	}
}

func TestParser_TableGetsImplicitTbody(t *testing.T) {
	doc, err := ParseFragment(`<table><tr><td>a</td></tr></table>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table := doc.Root.Children[0]
	if table.Children[0].TagName != "tbody" {
		t.Errorf("expected parser-inserted tbody, got %s", table.SerializeOuter())
	}
	if table.Children[0].IsInsertedByLayout() {
		t.Error("parser-inserted elements are author elements, not layout-inserted")
	}
}

func TestParser_StyleTag(t *testing.T) {
	doc, err := ParseFragment(`<style>div { color: red; }</style><div></div>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Root.Children) != 1 {
		t.Fatalf("expected 1 child (div), got %d", len(doc.Root.Children))
	}
	if len(doc.Stylesheets) != 1 {
		t.Fatalf("expected 1 stylesheet, got %d", len(doc.Stylesheets))
	}
	if doc.Stylesheets[0] != "div { color: red; }" {
		t.Errorf("expected CSS 'div { color: red; }', got '%s'", doc.Stylesheets[0])
	}
}

func TestParser_ScriptsAreLifted(t *testing.T) {
	doc, err := ParseFragment(`<div></div><script>var x = 1;</script>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Scripts) != 1 || doc.Scripts[0] != "var x = 1;" {
		t.Errorf("unexpected scripts: %q", doc.Scripts)
	}
	if len(doc.Root.Children) != 1 {
		t.Errorf("script should not stay in the tree, got %s", doc.Root.Serialize())
	}
}

func TestParser_LinkStylesheet(t *testing.T) {
	src := `<link rel="stylesheet" href="data:text/css,p%20%7B%20color%3A%20blue%20%7D">` +
		`<link rel="stylesheet" href="site.css"><p></p>`
	doc, err := ParseWithFetcher(src, func(uri string) (string, error) {
		return "/* " + uri + " */", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Stylesheets) != 2 {
		t.Fatalf("expected 2 stylesheets, got %d", len(doc.Stylesheets))
	}
	if doc.Stylesheets[0] != "p { color: blue }" {
		t.Errorf("data URI not decoded: %q", doc.Stylesheets[0])
	}
	if doc.Stylesheets[1] != "/* site.css */" {
		t.Errorf("fetcher not used: %q", doc.Stylesheets[1])
	}
}
