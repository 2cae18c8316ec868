package js

import (
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"l14box/pkg/html"
)

// newClassListProxy creates a JS DynamicObject implementing the DOMTokenList
// interface for element.classList. Changes go through setAttribute, so a
// class change restyles the element on the next pass.
func newClassListProxy(ctx *domContext, node *html.Node) goja.Value {
	return ctx.vm.NewDynamicObject(&classListAccessor{ctx: ctx, node: node})
}

type classListAccessor struct {
	ctx  *domContext
	node *html.Node
}

var classListKeys = []string{"length", "value", "add", "remove", "toggle", "contains", "replace", "item", "toString"}

func (cl *classListAccessor) classes() []string {
	attr, _ := cl.node.GetAttribute("class")
	return strings.Fields(attr)
}

func (cl *classListAccessor) setClasses(classes []string) {
	cl.ctx.setAttribute(cl.node, "class", strings.Join(classes, " "))
}

func (cl *classListAccessor) Get(key string) goja.Value {
	vm := cl.ctx.vm
	classes := cl.classes()

	switch key {
	case "length":
		return vm.ToValue(len(classes))
	case "value":
		return vm.ToValue(strings.Join(classes, " "))
	case "add":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			cls := cl.classes()
			before := len(cls)
			for _, arg := range call.Arguments {
				if t := arg.String(); !containsToken(cls, t) {
					cls = append(cls, t)
				}
			}
			if len(cls) != before {
				cl.setClasses(cls)
			}
			return goja.Undefined()
		})
	case "remove":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			cls := cl.classes()
			before := len(cls)
			for _, arg := range call.Arguments {
				cls = removeToken(cls, arg.String())
			}
			if len(cls) != before {
				cl.setClasses(cls)
			}
			return goja.Undefined()
		})
	case "toggle":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			token := cl.ctx.arg(call, "toggle", 0).String()
			cls := cl.classes()
			has := containsToken(cls, token)
			want := !has
			if len(call.Arguments) > 1 {
				want = call.Arguments[1].ToBoolean()
			}
			switch {
			case want && !has:
				cl.setClasses(append(cls, token))
			case !want && has:
				cl.setClasses(removeToken(cls, token))
			}
			return vm.ToValue(want)
		})
	case "contains":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(containsToken(classes, cl.ctx.arg(call, "contains", 0).String()))
		})
	case "replace":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			oldToken := cl.ctx.arg(call, "replace", 0).String()
			newToken := cl.ctx.arg(call, "replace", 1).String()
			cls := cl.classes()
			for i, c := range cls {
				if c == oldToken {
					cls[i] = newToken
					cl.setClasses(cls)
					return vm.ToValue(true)
				}
			}
			return vm.ToValue(false)
		})
	case "item":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			idx := int(cl.ctx.arg(call, "item", 0).ToInteger())
			if idx < 0 || idx >= len(classes) {
				return goja.Null()
			}
			return vm.ToValue(classes[idx])
		})
	case "toString":
		return vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(strings.Join(classes, " "))
		})
	}
	if idx, err := strconv.Atoi(key); err == nil && idx >= 0 && idx < len(classes) {
		return vm.ToValue(classes[idx])
	}
	return goja.Undefined()
}

func (cl *classListAccessor) Set(key string, val goja.Value) bool {
	if key != "value" {
		return false
	}
	cl.ctx.setAttribute(cl.node, "class", val.String())
	return true
}

func (cl *classListAccessor) Has(key string) bool {
	if containsToken(classListKeys, key) {
		return true
	}
	idx, err := strconv.Atoi(key)
	return err == nil && idx >= 0 && idx < len(cl.classes())
}

func (cl *classListAccessor) Delete(string) bool { return false }
func (cl *classListAccessor) Keys() []string     { return classListKeys }

func removeToken(tokens []string, token string) []string {
	result := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != token {
			result = append(result, t)
		}
	}
	return result
}
