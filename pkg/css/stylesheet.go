package css

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	dcss "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// Origin orders stylesheets in the cascade.
type Origin int

const (
	OriginUserAgent Origin = iota
	OriginAuthor
)

// Declaration is one property: value pair after shorthand expansion.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// Rule is a single selector with its declarations. A CSS rule with a
// selector list becomes one Rule per selector.
type Rule struct {
	Selector      cascadia.Sel
	SelectorText  string
	PseudoElement string // "before", "after", "marker", "first-letter", "first-line" or ""
	Specificity   cascadia.Specificity
	Declarations  []Declaration
	Media         string // media query prelude of an enclosing @media, if any
	Order         int    // source order within the sheet
}

// Stylesheet represents a parsed CSS stylesheet
type Stylesheet struct {
	Origin Origin
	Rules  []Rule
}

// ParseStylesheet parses author CSS. Rules whose selectors cascadia cannot
// compile are skipped, as browsers do.
func ParseStylesheet(text string) (*Stylesheet, error) {
	return parseSheet(text, OriginAuthor)
}

func parseSheet(text string, origin Origin) (*Stylesheet, error) {
	sheet := &Stylesheet{Origin: origin, Rules: make([]Rule, 0)}
	if strings.TrimSpace(text) == "" {
		return sheet, nil
	}
	parsed, err := parser.Parse(text)
	if err != nil {
		return sheet, fmt.Errorf("parsing stylesheet: %w", err)
	}
	sheet.addRules(parsed.Rules, "")
	return sheet, nil
}

func (s *Stylesheet) addRules(rules []*dcss.Rule, media string) {
	for _, r := range rules {
		if r.Kind == dcss.AtRule {
			if r.Name == "@media" {
				s.addRules(r.Rules, strings.TrimSpace(r.Prelude))
			}
			continue
		}
		decls := expandDeclarations(r.Declarations)
		for _, selText := range r.Selectors {
			base, pseudo := splitPseudoElement(strings.TrimSpace(selText))
			sel, err := cascadia.Parse(base)
			if err != nil {
				continue
			}
			spec := sel.Specificity()
			if pseudo != "" {
				spec = spec.Add(cascadia.Specificity{0, 0, 1})
			}
			s.Rules = append(s.Rules, Rule{
				Selector:      sel,
				SelectorText:  selText,
				PseudoElement: pseudo,
				Specificity:   spec,
				Declarations:  decls,
				Media:         media,
				Order:         len(s.Rules),
			})
		}
	}
}

func expandDeclarations(decls []*dcss.Declaration) []Declaration {
	out := make([]Declaration, 0, len(decls))
	for _, d := range decls {
		expanded := NewStyle()
		expandShorthand(expanded, strings.ToLower(strings.TrimSpace(d.Property)), strings.TrimSpace(d.Value))
		for k, v := range expanded.Properties {
			out = append(out, Declaration{Property: k, Value: v, Important: d.Important})
		}
	}
	return out
}

var legacyPseudoElements = []string{"before", "after", "first-letter", "first-line", "marker"}

// splitPseudoElement separates a trailing pseudo-element from a selector.
// The single-colon forms of the CSS2 pseudo-elements are accepted too.
func splitPseudoElement(sel string) (base, pseudo string) {
	if i := strings.LastIndex(sel, "::"); i >= 0 {
		base, pseudo = sel[:i], strings.ToLower(sel[i+2:])
	} else {
		base = sel
		for _, name := range legacyPseudoElements {
			if strings.HasSuffix(strings.ToLower(sel), ":"+name) {
				base, pseudo = sel[:len(sel)-len(name)-1], name
				break
			}
		}
	}
	trimmed := strings.TrimSpace(base)
	switch {
	case trimmed == "":
		return "*", pseudo
	case strings.HasSuffix(base, " ") || strings.ContainsAny(trimmed[len(trimmed)-1:], ">+~"):
		// "div > ::after" means "div > *::after".
		return trimmed + " *", pseudo
	}
	return trimmed, pseudo
}

// MediaContext describes the output device for @media evaluation.
type MediaContext struct {
	Width  float64
	Height float64
}

// Matches evaluates a media prelude such as "screen and (min-width: 600px)".
// Unknown features are treated as not matching.
func (m MediaContext) Matches(prelude string) bool {
	if prelude == "" {
		return true
	}
	for _, query := range strings.Split(prelude, ",") {
		if m.matchesQuery(strings.TrimSpace(strings.ToLower(query))) {
			return true
		}
	}
	return false
}

func (m MediaContext) matchesQuery(q string) bool {
	negate := false
	if strings.HasPrefix(q, "not ") {
		negate = true
		q = strings.TrimPrefix(q, "not ")
	}
	q = strings.TrimPrefix(q, "only ")
	result := true
	for _, part := range strings.Split(q, " and ") {
		part = strings.TrimSpace(part)
		switch {
		case part == "all" || part == "screen" || part == "":
		case part == "print":
			result = false
		case strings.HasPrefix(part, "(") && strings.HasSuffix(part, ")"):
			if !m.matchesFeature(part[1 : len(part)-1]) {
				result = false
			}
		default:
			result = false
		}
	}
	return result != negate
}

func (m MediaContext) matchesFeature(f string) bool {
	name, value, ok := strings.Cut(f, ":")
	if !ok {
		return false
	}
	px, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "px"), 64)
	if err != nil {
		return false
	}
	switch strings.TrimSpace(name) {
	case "min-width":
		return m.Width >= px
	case "max-width":
		return m.Width <= px
	case "min-height":
		return m.Height >= px
	case "max-height":
		return m.Height <= px
	}
	return false
}
