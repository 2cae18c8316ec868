package css

import (
	"strconv"
	"strings"

	dcss "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// Style is a set of specified declarations: what the cascade selected for
// one element, before inheritance and defaulting.
type Style struct {
	Properties map[string]string
}

func NewStyle() *Style {
	return &Style{Properties: make(map[string]string)}
}

func (s *Style) Get(property string) (string, bool) {
	val, ok := s.Properties[property]
	return val, ok
}

func (s *Style) Set(property, value string) {
	s.Properties[property] = value
}

// Merge copies every declaration of other over s.
func (s *Style) Merge(other *Style) {
	if other == nil {
		return
	}
	for k, v := range other.Properties {
		s.Properties[k] = v
	}
}

func (s *Style) GetLength(property string) (float64, bool) {
	val, ok := s.Get(property)
	if !ok {
		return 0, false
	}
	return ParseLength(val)
}

// ParseLength parses a length value (e.g., "100px" or "100")
func ParseLength(val string) (float64, bool) {
	val = strings.TrimSpace(val)
	val = strings.TrimSuffix(val, "px")
	num, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return num, true
}

// ParseDeclarations parses a declaration block body such as the value of
// a style="" attribute. douceur drops the value of a final declaration
// that has no terminating semicolon, so one is supplied.
func ParseDeclarations(text string) ([]*dcss.Declaration, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if !strings.HasSuffix(text, ";") {
		text += ";"
	}
	return parser.ParseDeclarations(text)
}

// ParseInlineStyle parses the body of a style="" attribute. Shorthands are
// expanded into their longhands.
func ParseInlineStyle(styleAttr string) *Style {
	style := NewStyle()
	decls, err := ParseDeclarations(styleAttr)
	if err != nil {
		return style
	}
	for _, d := range decls {
		expandShorthand(style, strings.ToLower(strings.TrimSpace(d.Property)), strings.TrimSpace(d.Value))
	}
	return style
}

// expandShorthand expands shorthand CSS properties into individual properties
func expandShorthand(style *Style, property, value string) {
	switch property {
	case "margin":
		expandBoxProperty(style, "margin", value)
	case "padding":
		expandBoxProperty(style, "padding", value)
	case "border":
		expandBorderProperty(style, value)
	case "overflow":
		parts := strings.Fields(value)
		if len(parts) == 0 {
			return
		}
		style.Set("overflow", value)
		style.Set("overflow-x", parts[0])
		if len(parts) > 1 {
			style.Set("overflow-y", parts[1])
		} else {
			style.Set("overflow-y", parts[0])
		}
	case "list-style":
		expandListStyle(style, value)
	case "columns":
		for _, part := range strings.Fields(value) {
			if _, err := strconv.Atoi(part); err == nil {
				style.Set("column-count", part)
			} else if part != "auto" {
				style.Set("column-width", part)
			}
		}
	default:
		style.Set(property, value)
	}
}

// expandBoxProperty expands margin/padding shorthand
// Supports: "10px" (all), "10px 20px" (vertical horizontal),
// "10px 20px 30px" (top h bottom), "10px 20px 30px 40px" (t r b l)
func expandBoxProperty(style *Style, prefix, value string) {
	parts := strings.Fields(value)

	switch len(parts) {
	case 1:
		style.Set(prefix+"-top", parts[0])
		style.Set(prefix+"-right", parts[0])
		style.Set(prefix+"-bottom", parts[0])
		style.Set(prefix+"-left", parts[0])
	case 2:
		style.Set(prefix+"-top", parts[0])
		style.Set(prefix+"-bottom", parts[0])
		style.Set(prefix+"-right", parts[1])
		style.Set(prefix+"-left", parts[1])
	case 3:
		style.Set(prefix+"-top", parts[0])
		style.Set(prefix+"-right", parts[1])
		style.Set(prefix+"-left", parts[1])
		style.Set(prefix+"-bottom", parts[2])
	case 4:
		style.Set(prefix+"-top", parts[0])
		style.Set(prefix+"-right", parts[1])
		style.Set(prefix+"-bottom", parts[2])
		style.Set(prefix+"-left", parts[3])
	}
}

// expandBorderProperty expands border shorthand
// Format: "1px solid black" or "2px dotted #FF0000"
func expandBorderProperty(style *Style, value string) {
	for _, part := range strings.Fields(value) {
		if strings.HasSuffix(part, "px") {
			style.Set("border-top-width", part)
			style.Set("border-right-width", part)
			style.Set("border-bottom-width", part)
			style.Set("border-left-width", part)
		} else if part == "solid" || part == "dotted" || part == "dashed" || part == "double" || part == "none" {
			style.Set("border-style", part)
		} else {
			style.Set("border-color", part)
		}
	}
}

// expandListStyle splits list-style into type, image and position.
func expandListStyle(style *Style, value string) {
	for _, part := range splitTopLevel(value, ' ') {
		switch {
		case part == "inside" || part == "outside":
			style.Set("list-style-position", part)
		case strings.HasPrefix(part, "url("):
			style.Set("list-style-image", part)
		case part == "none":
			style.Set("list-style-type", "none")
		case part != "":
			style.Set("list-style-type", part)
		}
	}
}
