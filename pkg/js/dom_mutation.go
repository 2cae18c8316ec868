package js

import (
	"fmt"

	"github.com/dop251/goja"

	"l14box/pkg/html"
)

// Every mutation asks the engine's guard first and afterwards marks the
// nearest author element it touched dirty, so a pass that runs later
// dissolves whatever layout inserted there and rebuilds it.

func (ctx *domContext) throw(name, format string, args ...any) {
	obj := ctx.vm.NewGoError(fmt.Errorf(format, args...))
	_ = obj.Set("name", name)
	panic(obj)
}

// mutable throws into the script when the tree may not change right now.
func (ctx *domContext) mutable(method string) {
	if err := ctx.eng.guard(); err != nil {
		ctx.throw("InvalidStateError", "Failed to execute '%s': %v", method, err)
	}
}

func (ctx *domContext) touched(n *html.Node) {
	if n == nil {
		return
	}
	a := n.AuthorElement()
	if a == nil || a.Type != html.ElementNode {
		return
	}
	a.MarkDirty()
	ctx.eng.onMutate(a)
}

func (ctx *domContext) detach(n *html.Node) {
	if n.Parent == nil {
		return
	}
	ctx.touched(n.Parent)
	n.Detach()
}

// insert places child under parent before ref, an author child of parent,
// or at the end when ref is nil. Inside an anonymous wrapper the child
// goes next to ref in the wrapper.
func (ctx *domContext) insert(method string, parent, child, ref *html.Node) {
	if child.Contains(parent) {
		ctx.throw("HierarchyRequestError", "Failed to execute '%s': the new child contains the parent", method)
	}
	if ref != nil && authorParent(ref) != parent {
		ctx.throw("NotFoundError", "Failed to execute '%s': the reference node is not a child of this node", method)
	}
	if ref == child {
		ref = authorSibling(child, 1, false)
	}
	ctx.detach(child)
	if ref == nil {
		parent.AddChild(child)
	} else {
		ref.Parent.InsertBefore(child, ref)
	}
	ctx.touched(parent)
}

func (ctx *domContext) setAttribute(n *html.Node, name, value string) {
	if n.Type != html.ElementNode {
		return
	}
	ctx.mutable("setAttribute")
	n.SetAttribute(name, value)
	ctx.touched(n)
}

func (e *elementAccessor) setAttributeFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := e.ctx.arg(call, "setAttribute", 0).String()
		val := e.ctx.arg(call, "setAttribute", 1).String()
		e.ctx.setAttribute(e.node, name, val)
		return goja.Undefined()
	}
}

func (e *elementAccessor) removeAttributeFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := e.ctx.arg(call, "removeAttribute", 0).String()
		if _, ok := e.node.GetAttribute(name); !ok {
			return goja.Undefined()
		}
		e.ctx.mutable("removeAttribute")
		delete(e.node.Attributes, name)
		e.ctx.touched(e.node)
		return goja.Undefined()
	}
}

// appendChildFn returns a JS function that implements node.appendChild(child).
func (e *elementAccessor) appendChildFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		child := e.ctx.nodeArg(call, "appendChild", 0)
		e.ctx.mutable("appendChild")
		e.ctx.insert("appendChild", e.node, child, nil)
		return e.ctx.elementProxy(child)
	}
}

// removeChildFn returns a JS function that implements node.removeChild(child).
func (e *elementAccessor) removeChildFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		child := e.ctx.nodeArg(call, "removeChild", 0)
		if authorParent(child) != e.node {
			e.ctx.throw("NotFoundError", "Failed to execute 'removeChild': the node to be removed is not a child of this node")
		}
		e.ctx.mutable("removeChild")
		e.ctx.detach(child)
		return e.ctx.elementProxy(child)
	}
}

// insertBeforeFn returns a JS function that implements node.insertBefore(newNode, refNode).
func (e *elementAccessor) insertBeforeFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		child := e.ctx.nodeArg(call, "insertBefore", 0)
		var ref *html.Node
		if len(call.Arguments) > 1 && !goja.IsNull(call.Arguments[1]) && !goja.IsUndefined(call.Arguments[1]) {
			ref = e.ctx.nodeArg(call, "insertBefore", 1)
		}
		e.ctx.mutable("insertBefore")
		e.ctx.insert("insertBefore", e.node, child, ref)
		return e.ctx.elementProxy(child)
	}
}

func (e *elementAccessor) replaceChildFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		child := e.ctx.nodeArg(call, "replaceChild", 0)
		old := e.ctx.nodeArg(call, "replaceChild", 1)
		e.ctx.mutable("replaceChild")
		if child != old {
			e.ctx.insert("replaceChild", e.node, child, old)
			e.ctx.detach(old)
		}
		return e.ctx.elementProxy(old)
	}
}

func (e *elementAccessor) removeFn() func(goja.FunctionCall) goja.Value {
	return func(goja.FunctionCall) goja.Value {
		if e.node.Parent != nil {
			e.ctx.mutable("remove")
			e.ctx.detach(e.node)
		}
		return goja.Undefined()
	}
}

func (e *elementAccessor) args(call goja.FunctionCall) []*html.Node {
	nodes := make([]*html.Node, len(call.Arguments))
	for i, a := range call.Arguments {
		nodes[i] = e.ctx.nodeOrText(a)
	}
	return nodes
}

// viableSibling is the first sibling after n that is not itself being
// moved.
func viableSibling(n *html.Node, moving []*html.Node) *html.Node {
	s := authorSibling(n, 1, false)
	for s != nil && containsNode(moving, s) {
		s = authorSibling(s, 1, false)
	}
	return s
}

func containsNode(ns []*html.Node, n *html.Node) bool {
	for _, m := range ns {
		if m == n {
			return true
		}
	}
	return false
}

// appendFn returns a JS function for element.append(...nodes).
// Strings become text nodes.
func (e *elementAccessor) appendFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		e.ctx.mutable("append")
		for _, n := range e.args(call) {
			e.ctx.insert("append", e.node, n, nil)
		}
		return goja.Undefined()
	}
}

func (e *elementAccessor) prependFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		e.ctx.mutable("prepend")
		nodes := e.args(call)
		ref := first(authorChildren(e.node))
		if containsNode(nodes, ref) {
			ref = viableSibling(ref, nodes)
		}
		for _, n := range nodes {
			e.ctx.insert("prepend", e.node, n, ref)
		}
		return goja.Undefined()
	}
}

func (e *elementAccessor) beforeFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parent := authorParent(e.node)
		if parent == nil {
			return goja.Undefined()
		}
		e.ctx.mutable("before")
		for _, n := range e.args(call) {
			if n != e.node {
				e.ctx.insert("before", parent, n, e.node)
			}
		}
		return goja.Undefined()
	}
}

func (e *elementAccessor) afterFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parent := authorParent(e.node)
		if parent == nil {
			return goja.Undefined()
		}
		e.ctx.mutable("after")
		nodes := e.args(call)
		ref := viableSibling(e.node, nodes)
		for _, n := range nodes {
			if n != e.node {
				e.ctx.insert("after", parent, n, ref)
			}
		}
		return goja.Undefined()
	}
}

func (e *elementAccessor) replaceWithFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parent := authorParent(e.node)
		if parent == nil {
			return goja.Undefined()
		}
		e.ctx.mutable("replaceWith")
		nodes := e.args(call)
		for _, n := range nodes {
			if n != e.node {
				e.ctx.insert("replaceWith", parent, n, e.node)
			}
		}
		if !containsNode(nodes, e.node) {
			e.ctx.detach(e.node)
		}
		return goja.Undefined()
	}
}

func (e *elementAccessor) replaceChildrenFn() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		e.ctx.mutable("replaceChildren")
		nodes := e.args(call)
		e.clearChildren()
		for _, n := range nodes {
			e.ctx.insert("replaceChildren", e.node, n, nil)
		}
		e.ctx.touched(e.node)
		return goja.Undefined()
	}
}

// clearChildren drops every child, including what layout put there.
func (e *elementAccessor) clearChildren() {
	for _, c := range e.node.Children {
		c.Parent = nil
	}
	e.node.Children = nil
}

func (e *elementAccessor) setTextContent(text string) {
	e.ctx.mutable("textContent")
	if e.isText() {
		e.node.Text = text
		e.ctx.touched(e.node.Parent)
		return
	}
	e.clearChildren()
	if text != "" {
		e.node.AddChild(html.NewText(text))
	}
	e.ctx.touched(e.node)
}

// setInnerHTML parses markup in a body context and replaces the node's
// children with the result.
func (e *elementAccessor) setInnerHTML(markup string) {
	if e.isText() {
		return
	}
	e.ctx.mutable("innerHTML")
	frag, err := html.ParseFragment(markup)
	if err != nil {
		e.ctx.throw("SyntaxError", "Failed to set 'innerHTML': %v", err)
	}
	e.clearChildren()
	for _, c := range append([]*html.Node(nil), frag.Root.Children...) {
		e.node.AddChild(c)
	}
	e.ctx.touched(e.node)
}
