package js

import (
	"strings"

	"github.com/dop251/goja"

	"l14box/pkg/html"
)

// domContext holds shared state for DOM bindings within a single execution.
// It maintains a node-to-proxy cache so the same JS object is returned for
// the same underlying *html.Node (needed for === identity checks).
type domContext struct {
	vm    *goja.Runtime
	eng   *Engine
	doc   *html.Document
	cache map[*html.Node]*goja.Object
	nodes map[*goja.Object]*html.Node
}

// registerDocument sets up the global `document` object.
func registerDocument(e *Engine, doc *html.Document) *domContext {
	ctx := &domContext{
		vm:    e.vm,
		eng:   e,
		doc:   doc,
		cache: make(map[*html.Node]*goja.Object),
		nodes: make(map[*goja.Object]*html.Node),
	}
	e.vm.Set("document", e.vm.NewDynamicObject(&documentAccessor{ctx: ctx}))
	return ctx
}

// elementProxy creates (or retrieves from cache) a JS object wrapping node.
func (ctx *domContext) elementProxy(node *html.Node) goja.Value {
	if node == nil {
		return goja.Null()
	}
	if v, ok := ctx.cache[node]; ok {
		return v
	}
	v := ctx.vm.NewDynamicObject(&elementAccessor{ctx: ctx, node: node})
	ctx.cache[node] = v
	ctx.nodes[v] = node
	return v
}

func (ctx *domContext) elementArray(nodes []*html.Node) goja.Value {
	vals := make([]any, len(nodes))
	for i, n := range nodes {
		vals[i] = ctx.elementProxy(n)
	}
	return ctx.vm.NewArray(vals...)
}

// unwrapNode returns the node behind a proxy, or nil for anything else.
func (ctx *domContext) unwrapNode(val goja.Value) *html.Node {
	obj, ok := val.(*goja.Object)
	if !ok {
		return nil
	}
	return ctx.nodes[obj]
}

func (ctx *domContext) arg(call goja.FunctionCall, method string, i int) goja.Value {
	if len(call.Arguments) <= i {
		panic(ctx.vm.NewTypeError("Failed to execute '%s': %d argument(s) required", method, i+1))
	}
	return call.Arguments[i]
}

func (ctx *domContext) nodeArg(call goja.FunctionCall, method string, i int) *html.Node {
	n := ctx.unwrapNode(ctx.arg(call, method, i))
	if n == nil {
		panic(ctx.vm.NewTypeError("Failed to execute '%s': parameter %d is not of type 'Node'", method, i+1))
	}
	return n
}

// nodeOrText turns a node proxy or any other value into a node, as the
// variadic insertion methods do.
func (ctx *domContext) nodeOrText(v goja.Value) *html.Node {
	if n := ctx.unwrapNode(v); n != nil {
		return n
	}
	return html.NewText(v.String())
}

type documentAccessor struct {
	ctx *domContext
}

var documentKeys = []string{
	"getElementById", "getElementsByTagName", "getElementsByClassName",
	"createElement", "createTextNode", "querySelector", "querySelectorAll",
	"body", "head", "documentElement",
}

func (d *documentAccessor) Get(key string) goja.Value {
	ctx := d.ctx
	vm := ctx.vm
	root := ctx.doc.Root
	switch key {
	case "getElementById":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return ctx.elementProxy(findByID(root, ctx.arg(call, "getElementById", 0).String()))
		})
	case "getElementsByTagName":
		return vm.ToValue(getElementsByTagNameFn(ctx, root))
	case "getElementsByClassName":
		return vm.ToValue(getElementsByClassNameFn(ctx, root))
	case "createElement":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			tag := strings.ToLower(ctx.arg(call, "createElement", 0).String())
			return ctx.elementProxy(html.NewElement(tag))
		})
	case "createTextNode":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return ctx.elementProxy(html.NewText(ctx.arg(call, "createTextNode", 0).String()))
		})
	case "querySelector":
		return vm.ToValue(querySelectorFn(ctx, root))
	case "querySelectorAll":
		return vm.ToValue(querySelectorAllFn(ctx, root))
	case "body":
		return ctx.elementProxy(findTag(root, "body"))
	case "head":
		return ctx.elementProxy(findTag(root, "head"))
	case "documentElement":
		return ctx.elementProxy(findTag(root, "html"))
	}
	return goja.Undefined()
}

func (d *documentAccessor) Set(string, goja.Value) bool { return false }
func (d *documentAccessor) Has(key string) bool        { return containsToken(documentKeys, key) }
func (d *documentAccessor) Delete(string) bool         { return false }
func (d *documentAccessor) Keys() []string             { return documentKeys }

func getElementsByTagNameFn(ctx *domContext, under *html.Node) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		tag := strings.ToLower(ctx.arg(call, "getElementsByTagName", 0).String())
		var out []*html.Node
		walkAuthor(under, func(n *html.Node) bool {
			if tag == "*" || n.TagName == tag {
				out = append(out, n)
			}
			return false
		})
		return ctx.elementArray(out)
	}
}

func getElementsByClassNameFn(ctx *domContext, under *html.Node) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		want := strings.Fields(ctx.arg(call, "getElementsByClassName", 0).String())
		var out []*html.Node
		walkAuthor(under, func(n *html.Node) bool {
			cls, _ := n.GetAttribute("class")
			have := strings.Fields(cls)
			for _, w := range want {
				if !containsToken(have, w) {
					return false
				}
			}
			if len(want) > 0 {
				out = append(out, n)
			}
			return false
		})
		return ctx.elementArray(out)
	}
}

// elementAccessor implements goja.DynamicObject to intercept property access
// on DOM node proxies.
type elementAccessor struct {
	ctx  *domContext
	node *html.Node
}

var elementKeys = []string{
	"tagName", "nodeName", "nodeType", "nodeValue", "id", "className",
	"textContent", "innerHTML", "outerHTML",
	"getAttribute", "setAttribute", "hasAttribute", "removeAttribute",
	"children", "childNodes", "parentElement", "parentNode", "style",
	"appendChild", "removeChild", "insertBefore", "replaceChild",
	"firstChild", "lastChild", "firstElementChild", "lastElementChild",
	"nextSibling", "previousSibling", "nextElementSibling", "previousElementSibling",
	"childElementCount",
	"querySelector", "querySelectorAll", "matches", "closest",
	"classList",
	"remove", "append", "prepend", "before", "after", "replaceWith", "replaceChildren",
	"cloneNode", "contains", "hasChildNodes",
	"getElementsByTagName", "getElementsByClassName",
}

func (e *elementAccessor) isText() bool { return e.node.Type == html.TextNode }

func (e *elementAccessor) Get(key string) goja.Value {
	ctx := e.ctx
	vm := ctx.vm
	n := e.node

	switch key {
	case "nodeType":
		if e.isText() {
			return vm.ToValue(3)
		}
		return vm.ToValue(1)
	case "nodeName":
		if e.isText() {
			return vm.ToValue("#text")
		}
		return vm.ToValue(strings.ToUpper(n.TagName))
	case "nodeValue":
		if e.isText() {
			return vm.ToValue(n.Text)
		}
		return goja.Null()
	case "tagName":
		if e.isText() {
			return goja.Undefined()
		}
		return vm.ToValue(strings.ToUpper(n.TagName))
	case "id":
		id, _ := n.GetAttribute("id")
		return vm.ToValue(id)
	case "className":
		cls, _ := n.GetAttribute("class")
		return vm.ToValue(cls)
	case "textContent":
		return vm.ToValue(authorText(n))
	case "innerHTML":
		return vm.ToValue(serializeAuthor(n, false))
	case "outerHTML":
		return vm.ToValue(serializeAuthor(n, true))

	case "getAttribute":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			val, ok := n.GetAttribute(ctx.arg(call, "getAttribute", 0).String())
			if !ok {
				return goja.Null()
			}
			return vm.ToValue(val)
		})
	case "hasAttribute":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			_, ok := n.GetAttribute(ctx.arg(call, "hasAttribute", 0).String())
			return vm.ToValue(ok)
		})
	case "setAttribute":
		return vm.ToValue(e.setAttributeFn())
	case "removeAttribute":
		return vm.ToValue(e.removeAttributeFn())

	case "children":
		return ctx.elementArray(authorElementChildren(n))
	case "childNodes":
		return ctx.elementArray(authorChildren(n))
	case "childElementCount":
		return vm.ToValue(len(authorElementChildren(n)))
	case "parentNode", "parentElement":
		p := authorParent(n)
		if p == nil || p.TagName == html.TagDocument {
			return goja.Null()
		}
		return ctx.elementProxy(p)
	case "firstChild":
		return ctx.elementProxy(first(authorChildren(n)))
	case "lastChild":
		return ctx.elementProxy(last(authorChildren(n)))
	case "firstElementChild":
		return ctx.elementProxy(first(authorElementChildren(n)))
	case "lastElementChild":
		return ctx.elementProxy(last(authorElementChildren(n)))
	case "nextSibling":
		return ctx.elementProxy(authorSibling(n, 1, false))
	case "previousSibling":
		return ctx.elementProxy(authorSibling(n, -1, false))
	case "nextElementSibling":
		return ctx.elementProxy(authorSibling(n, 1, true))
	case "previousElementSibling":
		return ctx.elementProxy(authorSibling(n, -1, true))

	case "style":
		return newStyleProxy(ctx, n)
	case "classList":
		return newClassListProxy(ctx, n)

	case "appendChild":
		return vm.ToValue(e.appendChildFn())
	case "removeChild":
		return vm.ToValue(e.removeChildFn())
	case "insertBefore":
		return vm.ToValue(e.insertBeforeFn())
	case "replaceChild":
		return vm.ToValue(e.replaceChildFn())
	case "remove":
		return vm.ToValue(e.removeFn())
	case "append":
		return vm.ToValue(e.appendFn())
	case "prepend":
		return vm.ToValue(e.prependFn())
	case "before":
		return vm.ToValue(e.beforeFn())
	case "after":
		return vm.ToValue(e.afterFn())
	case "replaceWith":
		return vm.ToValue(e.replaceWithFn())
	case "replaceChildren":
		return vm.ToValue(e.replaceChildrenFn())

	case "querySelector":
		return vm.ToValue(querySelectorFn(ctx, n))
	case "querySelectorAll":
		return vm.ToValue(querySelectorAllFn(ctx, n))
	case "matches":
		return vm.ToValue(matchesFn(ctx, n))
	case "closest":
		return vm.ToValue(closestFn(ctx, n))
	case "getElementsByTagName":
		return vm.ToValue(getElementsByTagNameFn(ctx, n))
	case "getElementsByClassName":
		return vm.ToValue(getElementsByClassNameFn(ctx, n))

	case "cloneNode":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			deep := len(call.Arguments) > 0 && call.Arguments[0].ToBoolean()
			return ctx.elementProxy(cloneAuthor(n, deep))
		})
	case "contains":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			other := ctx.unwrapNode(ctx.arg(call, "contains", 0))
			return vm.ToValue(other != nil && n.Contains(other))
		})
	case "hasChildNodes":
		return vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(len(authorChildren(n)) > 0)
		})
	}
	return goja.Undefined()
}

func (e *elementAccessor) Set(key string, val goja.Value) bool {
	switch key {
	case "textContent":
		e.setTextContent(val.String())
	case "className":
		e.ctx.setAttribute(e.node, "class", val.String())
	case "id":
		e.ctx.setAttribute(e.node, "id", val.String())
	case "innerHTML":
		e.setInnerHTML(val.String())
	case "nodeValue":
		if !e.isText() {
			return true
		}
		e.ctx.mutable("nodeValue")
		e.node.Text = val.String()
		e.ctx.touched(e.node.Parent)
	default:
		return false
	}
	return true
}

func (e *elementAccessor) Has(key string) bool { return containsToken(elementKeys, key) }
func (e *elementAccessor) Delete(string) bool  { return false }
func (e *elementAccessor) Keys() []string      { return elementKeys }

func first(ns []*html.Node) *html.Node {
	if len(ns) == 0 {
		return nil
	}
	return ns[0]
}

func last(ns []*html.Node) *html.Node {
	if len(ns) == 0 {
		return nil
	}
	return ns[len(ns)-1]
}

// cloneAuthor copies n without anything layout added.
func cloneAuthor(n *html.Node, deep bool) *html.Node {
	c := n.CloneNode(false)
	c.Flags = 0
	if deep {
		for _, k := range authorChildren(n) {
			c.AddChild(cloneAuthor(k, true))
		}
	}
	return c
}

// serializeAuthor renders the author view of n.
func serializeAuthor(n *html.Node, outer bool) string {
	c := cloneAuthor(n, true)
	if outer {
		return c.SerializeOuter()
	}
	return c.Serialize()
}

func containsToken(tokens []string, t string) bool {
	for _, s := range tokens {
		if s == t {
			return true
		}
	}
	return false
}
