package js

import (
	"strings"
	"unicode"

	dcss "github.com/aymerick/douceur/css"
	"github.com/dop251/goja"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

// newStyleProxy maps JS camelCase property access to CSS kebab-case on the
// node's inline style attribute. Declaration order is preserved.
func newStyleProxy(ctx *domContext, node *html.Node) goja.Value {
	return ctx.vm.NewDynamicObject(&styleAccessor{ctx: ctx, node: node})
}

type styleAccessor struct {
	ctx  *domContext
	node *html.Node
}

func (s *styleAccessor) decls() []*dcss.Declaration {
	attr, _ := s.node.GetAttribute("style")
	decls, err := css.ParseDeclarations(attr)
	if err != nil {
		return nil
	}
	return decls
}

func (s *styleAccessor) store(decls []*dcss.Declaration) {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		v := d.Value
		if d.Important {
			v += " !important"
		}
		parts = append(parts, d.Property+": "+v)
	}
	s.ctx.setAttribute(s.node, "style", strings.Join(parts, "; "))
}

func (s *styleAccessor) lookup(prop string) string {
	for _, d := range s.decls() {
		if d.Property == prop {
			return d.Value
		}
	}
	return ""
}

func (s *styleAccessor) put(prop, value string) {
	decls := s.decls()
	out := decls[:0]
	found := false
	for _, d := range decls {
		if d.Property != prop {
			out = append(out, d)
			continue
		}
		if !found && value != "" {
			d.Value, d.Important = value, false
			out = append(out, d)
		}
		found = true
	}
	if !found && value != "" {
		out = append(out, &dcss.Declaration{Property: prop, Value: value})
	}
	s.store(out)
}

func (s *styleAccessor) Get(key string) goja.Value {
	vm := s.ctx.vm
	switch key {
	case "cssText":
		attr, _ := s.node.GetAttribute("style")
		return vm.ToValue(attr)
	case "getPropertyValue":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(s.lookup(s.ctx.arg(call, "getPropertyValue", 0).String()))
		})
	case "setProperty":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			prop := s.ctx.arg(call, "setProperty", 0).String()
			s.put(prop, s.ctx.arg(call, "setProperty", 1).String())
			return goja.Undefined()
		})
	case "removeProperty":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			prop := s.ctx.arg(call, "removeProperty", 0).String()
			old := s.lookup(prop)
			if old != "" {
				s.put(prop, "")
			}
			return vm.ToValue(old)
		})
	}
	return vm.ToValue(s.lookup(camelToKebab(key)))
}

func (s *styleAccessor) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		s.ctx.setAttribute(s.node, "style", val.String())
		return true
	}
	s.put(camelToKebab(key), val.String())
	return true
}

func (s *styleAccessor) Has(string) bool { return true }

func (s *styleAccessor) Delete(key string) bool {
	s.put(camelToKebab(key), "")
	return true
}

func (s *styleAccessor) Keys() []string {
	decls := s.decls()
	keys := make([]string, len(decls))
	for i, d := range decls {
		keys[i] = d.Property
	}
	return keys
}

// camelToKebab converts a JS camelCase property name to CSS kebab-case.
func camelToKebab(s string) string {
	if s == "cssFloat" {
		return "float"
	}
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
