package css

import (
	"sort"
	"strconv"
	"strings"
)

type propertyInfo struct {
	inherited bool
	initial   string
}

// properties is the table of properties the engine knows about. Properties
// not listed here are carried through as non-inherited values.
var properties = map[string]propertyInfo{
	"display":             {false, "inline"},
	"position":            {false, "static"},
	"float":               {false, "none"},
	"clear":               {false, "none"},
	"z-index":             {false, "auto"},
	"opacity":             {false, "1"},
	"transform":           {false, "none"},
	"overflow":            {false, "visible"},
	"overflow-x":          {false, "visible"},
	"overflow-y":          {false, "visible"},
	"column-count":        {false, "auto"},
	"column-width":        {false, "auto"},
	"content":             {false, "normal"},
	"counter-reset":       {false, "none"},
	"counter-increment":   {false, "none"},
	"width":               {false, "auto"},
	"height":              {false, "auto"},
	"top":                 {false, "auto"},
	"right":               {false, "auto"},
	"bottom":              {false, "auto"},
	"left":                {false, "auto"},
	"margin-top":          {false, "0"},
	"margin-right":        {false, "0"},
	"margin-bottom":       {false, "0"},
	"margin-left":         {false, "0"},
	"padding-top":         {false, "0"},
	"padding-right":       {false, "0"},
	"padding-bottom":      {false, "0"},
	"padding-left":        {false, "0"},
	"background-color":    {false, "transparent"},
	"vertical-align":      {false, "baseline"},
	"flex-direction":      {false, "row"},
	"flex-wrap":           {false, "nowrap"},
	"visibility":          {true, "visible"},
	"white-space":         {true, "normal"},
	"list-style-type":     {true, "disc"},
	"list-style-image":    {true, "none"},
	"list-style-position": {true, "outside"},
	"quotes":              {true, `"\"" "\"" "'" "'"`},
	"color":               {true, "black"},
	"font-family":         {true, "serif"},
	"font-size":           {true, "16px"},
	"font-style":          {true, "normal"},
	"font-weight":         {true, "normal"},
	"line-height":         {true, "normal"},
	"letter-spacing":      {true, "normal"},
	"text-align":          {true, "left"},
	"text-transform":      {true, "none"},
	"direction":           {true, "ltr"},
	"border-collapse":     {true, "separate"},
	"caption-side":        {true, "top"},
	"cursor":              {true, "auto"},
}

// IsInherited reports whether property inherits by default.
func IsInherited(property string) bool {
	return properties[property].inherited
}

// InheritedProperties returns the inherited property names, sorted.
func InheritedProperties() []string {
	names := make([]string, 0, len(properties))
	for name, info := range properties {
		if info.inherited {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// InitialValue returns the initial value of a known property.
func InitialValue(property string) string {
	return properties[property].initial
}

// DefaultFontSize is the font size of the initial containing block.
const DefaultFontSize = 16.0

// ComputedStyle is the resolved style snapshot of one element. Values holds
// every property verbatim as either the element's own specified value, the
// parent's computed value (inheritance) or the initial value. The typed
// fields are derived from Values and are what the engine branches on.
type ComputedStyle struct {
	Values map[string]string

	Display        DisplayType
	Position       PositionType
	Float          FloatType
	ZIndex         int
	ZIndexAuto     bool
	Opacity        float64
	HasTransform   bool
	Visibility     Visibility
	WhiteSpace     WhiteSpace
	OverflowX      Overflow
	MultiColumn    bool
	ListStyleType  string
	ListStyleImage string

	Content          []ContentItem
	CounterReset     []CounterOp
	CounterIncrement []CounterOp
	Quotes           []string

	// Derived metrics, resolved against the parent.
	FontSize   float64
	LineHeight float64
}

// Value returns the computed value of property.
func (c *ComputedStyle) Value(property string) string {
	if v, ok := c.Values[property]; ok {
		return v
	}
	return properties[property].initial
}

// IsPositioned is true for anything but static positioning.
func (c *ComputedStyle) IsPositioned() bool { return c.Position != PositionStatic }

// IsFloating is true for left and right floats.
func (c *ComputedStyle) IsFloating() bool { return c.Float != FloatNone }

// HasContent reports whether `content` produces anything.
func (c *ComputedStyle) HasContent() bool { return len(c.Content) > 0 }

// Equal compares two snapshots by their resolved values.
func (c *ComputedStyle) Equal(other *ComputedStyle) bool {
	if c == nil || other == nil {
		return c == other
	}
	if len(c.Values) != len(other.Values) {
		return false
	}
	for k, v := range c.Values {
		if ov, ok := other.Values[k]; !ok || ov != v {
			return false
		}
	}
	return c.Display == other.Display && c.FontSize == other.FontSize
}

// Compute resolves specified declarations against the parent's computed
// style. parent is nil for the root. Floats, out-of-flow elements and
// children of flex containers get a blockified Display.
func Compute(parent *ComputedStyle, specified *Style) *ComputedStyle {
	cs := &ComputedStyle{Values: make(map[string]string, len(properties))}

	for name, info := range properties {
		var v string
		sv, ok := "", false
		if specified != nil {
			sv, ok = specified.Get(name)
		}
		switch {
		case ok && sv == "inherit":
			v = inheritFrom(parent, name)
		case ok && sv == "initial":
			v = info.initial
		case ok:
			v = sv
		case info.inherited && parent != nil:
			v = parent.Value(name)
		default:
			v = info.initial
		}
		cs.Values[name] = v
	}
	if specified != nil {
		for name, sv := range specified.Properties {
			if _, known := properties[name]; known {
				continue
			}
			if sv == "inherit" {
				sv = inheritFrom(parent, name)
			}
			cs.Values[name] = sv
		}
	}

	cs.derive(parent, specified)
	return cs
}

func inheritFrom(parent *ComputedStyle, name string) string {
	if parent == nil {
		return properties[name].initial
	}
	return parent.Value(name)
}

func (cs *ComputedStyle) derive(parent *ComputedStyle, specified *Style) {
	cs.Display = ParseDisplay(cs.Values["display"])
	cs.Position = ParsePosition(cs.Values["position"])
	cs.Float = ParseFloat(cs.Values["float"])
	if cs.Position.IsOutOfFlow() {
		// Absolute positioning wins over float.
		cs.Float = FloatNone
	}
	if cs.Display != DisplayNone && (cs.Position.IsOutOfFlow() || cs.Float != FloatNone ||
		(parent != nil && parent.Display.IsFlex())) {
		cs.Display = cs.Display.blockify()
	}

	cs.ZIndexAuto = true
	if z, err := strconv.Atoi(strings.TrimSpace(cs.Values["z-index"])); err == nil && cs.Position != PositionStatic {
		cs.ZIndex = z
		cs.ZIndexAuto = false
	}

	cs.Opacity = 1
	if o, err := strconv.ParseFloat(strings.TrimSpace(cs.Values["opacity"]), 64); err == nil {
		cs.Opacity = clamp01(o)
	}
	cs.HasTransform = strings.TrimSpace(cs.Values["transform"]) != "none" && cs.Values["transform"] != ""

	cs.Visibility = Visibility(cs.Values["visibility"])
	cs.WhiteSpace = WhiteSpace(cs.Values["white-space"])
	cs.OverflowX = Overflow(cs.Values["overflow-x"])
	cs.MultiColumn = cs.Values["column-count"] != "auto" || cs.Values["column-width"] != "auto"
	cs.ListStyleType = cs.Values["list-style-type"]
	cs.ListStyleImage = ParseURL(cs.Values["list-style-image"])

	cs.Content = ParseContent(cs.Values["content"])
	cs.CounterReset = ParseCounterOps(cs.Values["counter-reset"], 0)
	cs.CounterIncrement = ParseCounterOps(cs.Values["counter-increment"], 1)
	cs.Quotes = ParseQuotes(cs.Values["quotes"])

	parentSize := DefaultFontSize
	if parent != nil {
		parentSize = parent.FontSize
	}
	cs.FontSize = parentSize
	if specified != nil {
		if fs, ok := specified.Get("font-size"); ok && fs != "inherit" {
			cs.FontSize = resolveFontSize(fs, parentSize)
		}
	}
	if parent == nil {
		cs.FontSize = resolveFontSize(cs.Values["font-size"], DefaultFontSize)
	}
	cs.LineHeight = resolveLineHeight(cs.Values["line-height"], cs.FontSize)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var fontSizeKeywords = map[string]float64{
	"xx-small": 9, "x-small": 10, "small": 13, "medium": 16,
	"large": 18, "x-large": 24, "xx-large": 32,
}

func resolveFontSize(v string, parentSize float64) float64 {
	v = strings.TrimSpace(v)
	if px, ok := fontSizeKeywords[v]; ok {
		return px
	}
	switch {
	case v == "larger":
		return parentSize * 1.2
	case v == "smaller":
		return parentSize / 1.2
	case strings.HasSuffix(v, "rem"):
		if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "rem"), 64); err == nil {
			return f * DefaultFontSize
		}
	case strings.HasSuffix(v, "em"):
		if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "em"), 64); err == nil {
			return f * parentSize
		}
	case strings.HasSuffix(v, "%"):
		if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64); err == nil {
			return f * parentSize / 100
		}
	case strings.HasSuffix(v, "pt"):
		if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "pt"), 64); err == nil {
			return f * 4 / 3
		}
	}
	if px, ok := ParseLength(v); ok {
		return px
	}
	return parentSize
}

func resolveLineHeight(v string, fontSize float64) float64 {
	v = strings.TrimSpace(v)
	if v == "normal" || v == "" {
		return fontSize * 1.2
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f * fontSize
	}
	if strings.HasSuffix(v, "em") {
		if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "em"), 64); err == nil {
			return f * fontSize
		}
	}
	if strings.HasSuffix(v, "%") {
		if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64); err == nil {
			return f * fontSize / 100
		}
	}
	if px, ok := ParseLength(v); ok {
		return px
	}
	return fontSize * 1.2
}
