package layout

import (
	"strconv"
	"strings"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

// listItemCounter is the counter list items increment implicitly.
const listItemCounter = "list-item"

// Counters holds the CSS counter scopes visible at the current point of a
// traversal. Each name maps to a stack of nested instances; the innermost
// is last.
type Counters struct {
	stacks map[string][]int
}

func NewCounters() *Counters {
	return &Counters{stacks: make(map[string][]int)}
}

// Value returns the innermost value of name, or 0 if no scope is open.
func (c *Counters) Value(name string) int {
	stack := c.stacks[name]
	if len(stack) == 0 {
		return 0
	}
	return stack[len(stack)-1]
}

// Values returns every open instance of name, outermost first.
func (c *Counters) Values(name string) []int {
	return append([]int(nil), c.stacks[name]...)
}

// Format renders counter(name, style).
func (c *Counters) Format(name, style string) string {
	return css.FormatCounter(c.Value(name), style)
}

// FormatAll renders counters(name, separator, style).
func (c *Counters) FormatAll(name, separator, style string) string {
	vals := c.stacks[name]
	if len(vals) == 0 {
		return css.FormatCounter(0, style)
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = css.FormatCounter(v, style)
	}
	return strings.Join(parts, separator)
}

// Enter applies the counter-reset and counter-increment of rec, plus the
// implicit list-item handling of lists and list items. New instances are
// recorded on scope, whose Leave closes them again; scope is normally the
// parent record so that an instance stays visible to following siblings.
func (c *Counters) Enter(rec, scope *Record) {
	cs := rec.Style
	if cs == nil || rec.Element.Type == html.TextNode {
		return
	}
	explicitReset := false
	for _, op := range cs.CounterReset {
		c.reset(scope, op.Name, op.Value)
		explicitReset = explicitReset || op.Name == listItemCounter
	}
	if !explicitReset {
		if start, ok := listStart(rec.Element); ok {
			c.reset(scope, listItemCounter, start)
		}
	}

	explicitIncrement := false
	for _, op := range cs.CounterIncrement {
		c.increment(scope, op.Name, op.Value)
		explicitIncrement = explicitIncrement || op.Name == listItemCounter
	}
	if cs.Display == css.DisplayListItem && !explicitIncrement && !rec.Element.IsPseudoElement() {
		if v, ok := intAttr(rec.Element, "value"); ok {
			c.set(scope, listItemCounter, v)
		} else {
			c.increment(scope, listItemCounter, 1)
		}
	}
}

// Leave closes the instances recorded on rec.
func (c *Counters) Leave(rec *Record) {
	for _, name := range rec.counters {
		stack := c.stacks[name]
		if len(stack) > 0 {
			c.stacks[name] = stack[:len(stack)-1]
		}
	}
	rec.counters = nil
}

// Clear drops every scope.
func (c *Counters) Clear() {
	clear(c.stacks)
}

func (c *Counters) owns(scope *Record, name string) bool {
	for _, n := range scope.counters {
		if n == name {
			return true
		}
	}
	return false
}

// reset opens a new instance of name, unless a preceding sibling already
// opened one in the same scope, in which case that instance is reused.
func (c *Counters) reset(scope *Record, name string, value int) {
	if c.owns(scope, name) {
		c.stacks[name][len(c.stacks[name])-1] = value
		return
	}
	c.stacks[name] = append(c.stacks[name], value)
	scope.counters = append(scope.counters, name)
}

// increment bumps the innermost instance, opening one at 0 first if the
// counter is not in scope.
func (c *Counters) increment(scope *Record, name string, by int) {
	stack := c.stacks[name]
	if len(stack) == 0 {
		c.reset(scope, name, by)
		return
	}
	stack[len(stack)-1] += by
}

func (c *Counters) set(scope *Record, name string, value int) {
	stack := c.stacks[name]
	if len(stack) == 0 {
		c.reset(scope, name, value)
		return
	}
	stack[len(stack)-1] = value
}

// listStart returns the list-item reset value for list elements: the item
// before the first, so that the first item's increment lands on start.
func listStart(n *html.Node) (int, bool) {
	if n.Type != html.ElementNode || n.IsInsertedByLayout() {
		return 0, false
	}
	switch n.TagName {
	case "ol":
		if start, ok := intAttr(n, "start"); ok {
			return start - 1, true
		}
		return 0, true
	case "ul", "menu", "dir":
		return 0, true
	}
	return 0, false
}

func intAttr(n *html.Node, name string) (int, bool) {
	v, ok := n.GetAttribute(name)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}
