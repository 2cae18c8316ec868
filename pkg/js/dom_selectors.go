package js

import (
	"github.com/dop251/goja"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

// Selectors are matched against a fresh snapshot of the author tree, so
// they see every mutation made so far and never what layout inserted.

func (ctx *domContext) query() *css.Query {
	return css.NewQuery(ctx.doc.Root)
}

func (ctx *domContext) selectorErr(method string, err error) {
	ctx.throw("SyntaxError", "Failed to execute '%s': %v", method, err)
}

// within keeps the nodes that are strict descendants of root.
func within(root *html.Node, nodes []*html.Node) []*html.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n != root && root.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

func querySelectorAllFn(ctx *domContext, root *html.Node) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		all, err := ctx.query().All(ctx.arg(call, "querySelectorAll", 0).String())
		if err != nil {
			ctx.selectorErr("querySelectorAll", err)
		}
		return ctx.elementArray(within(root, all))
	}
}

func querySelectorFn(ctx *domContext, root *html.Node) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		all, err := ctx.query().All(ctx.arg(call, "querySelector", 0).String())
		if err != nil {
			ctx.selectorErr("querySelector", err)
		}
		return ctx.elementProxy(first(within(root, all)))
	}
}

// matchesFn returns a JS function implementing element.matches(selector).
func matchesFn(ctx *domContext, node *html.Node) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		ok, err := ctx.queryFor(node).Matches(node, ctx.arg(call, "matches", 0).String())
		if err != nil {
			ctx.selectorErr("matches", err)
		}
		return ctx.vm.ToValue(ok)
	}
}

// closestFn returns a JS function implementing element.closest(selector).
func closestFn(ctx *domContext, node *html.Node) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		n, err := ctx.queryFor(node).Closest(node, ctx.arg(call, "closest", 0).String())
		if err != nil {
			ctx.selectorErr("closest", err)
		}
		return ctx.elementProxy(n)
	}
}

// queryFor snapshots the tree node lives in, which for a node the script
// has not attached yet is its own detached subtree.
func (ctx *domContext) queryFor(node *html.Node) *css.Query {
	top := node
	for top.Parent != nil {
		top = top.Parent
	}
	if top == ctx.doc.Root {
		return ctx.query()
	}
	holder := html.NewElement(html.TagDocument)
	holder.Children = []*html.Node{top}
	q := css.NewQuery(holder)
	holder.Children = nil
	return q
}
