package css

import (
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func declMap(r Rule) map[string]string {
	m := make(map[string]string)
	for _, d := range r.Declarations {
		m[d.Property] = d.Value
	}
	return m
}

func TestParseStylesheet_SingleRule(t *testing.T) {
	css := `div { color: red; }`
	stylesheet, err := ParseStylesheet(css)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stylesheet.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(stylesheet.Rules))
	}

	rule := stylesheet.Rules[0]
	if rule.SelectorText != "div" {
		t.Errorf("expected selector 'div', got '%s'", rule.SelectorText)
	}
	if color := declMap(rule)["color"]; color != "red" {
		t.Errorf("expected color='red', got '%s'", color)
	}
}

func TestParseStylesheet_MultipleRules(t *testing.T) {
	stylesheet, err := ParseStylesheet(`
		div { color: red; }
		p { color: blue; }
		span { color: green; }
	`)
	require.NoError(t, err)
	require.Len(t, stylesheet.Rules, 3)

	expected := []string{"div", "p", "span"}
	for i, rule := range stylesheet.Rules {
		assert.Equal(t, expected[i], rule.SelectorText)
		assert.Equal(t, i, rule.Order)
	}
}

func TestParseStylesheet_SelectorListSplits(t *testing.T) {
	stylesheet, err := ParseStylesheet(`h1, h2 { margin: 0 }`)
	require.NoError(t, err)
	require.Len(t, stylesheet.Rules, 2)
	assert.Equal(t, "0", declMap(stylesheet.Rules[1])["margin-left"])
}

func TestParseStylesheet_Specificity(t *testing.T) {
	stylesheet, err := ParseStylesheet(`
		div { color: red; }
		.highlight { color: blue; }
		#header { color: green; }
	`)
	require.NoError(t, err)
	require.Len(t, stylesheet.Rules, 3)

	assert.Equal(t, cascadia.Specificity{0, 0, 1}, stylesheet.Rules[0].Specificity)
	assert.Equal(t, cascadia.Specificity{0, 1, 0}, stylesheet.Rules[1].Specificity)
	assert.Equal(t, cascadia.Specificity{1, 0, 0}, stylesheet.Rules[2].Specificity)
}

func TestParseStylesheet_PseudoElements(t *testing.T) {
	stylesheet, err := ParseStylesheet(`
		p::before { content: "x" }
		p:after { content: "y" }
		::marker { color: red }
		li::first-letter { font-weight: bold }
	`)
	require.NoError(t, err)
	require.Len(t, stylesheet.Rules, 4)

	want := []string{"before", "after", "marker", "first-letter"}
	for i, rule := range stylesheet.Rules {
		assert.Equal(t, want[i], rule.PseudoElement, rule.SelectorText)
	}
	// The pseudo-element counts as a type selector.
	assert.Equal(t, cascadia.Specificity{0, 0, 2}, stylesheet.Rules[0].Specificity)
}

func TestParseStylesheet_Important(t *testing.T) {
	stylesheet, err := ParseStylesheet(`div { color: red !important; width: 1px }`)
	require.NoError(t, err)
	require.Len(t, stylesheet.Rules, 1)
	for _, d := range stylesheet.Rules[0].Declarations {
		assert.Equal(t, d.Property == "color", d.Important, d.Property)
	}
}

func TestParseStylesheet_MediaRules(t *testing.T) {
	stylesheet, err := ParseStylesheet(`
		@media screen and (min-width: 600px) { div { color: red } }
		p { color: blue }
	`)
	require.NoError(t, err)
	require.Len(t, stylesheet.Rules, 2)
	assert.Equal(t, "screen and (min-width: 600px)", stylesheet.Rules[0].Media)
	assert.Empty(t, stylesheet.Rules[1].Media)
}

func TestParseStylesheet_InvalidSelectorSkipped(t *testing.T) {
	stylesheet, err := ParseStylesheet(`div[ { color: red } p { color: blue }`)
	if err != nil {
		return
	}
	for _, r := range stylesheet.Rules {
		assert.NotEqual(t, "div[", r.SelectorText)
	}
}

func TestMediaContext_Matches(t *testing.T) {
	m := MediaContext{Width: 800, Height: 600}
	tests := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"screen", true},
		{"print", false},
		{"(min-width: 600px)", true},
		{"(max-width: 600px)", false},
		{"screen and (max-height: 700px)", true},
		{"print, (min-width: 100px)", true},
		{"not print", true},
		{"(orientation: landscape)", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Matches(tt.query), tt.query)
	}
}

func TestSplitPseudoElement(t *testing.T) {
	tests := []struct {
		in, base, pseudo string
	}{
		{"p::before", "p", "before"},
		{"a:hover", "a:hover", ""},
		{"div > ::after", "div > *", "after"},
		{"::marker", "*", "marker"},
		{"q:before", "q", "before"},
	}
	for _, tt := range tests {
		base, pseudo := splitPseudoElement(tt.in)
		assert.Equal(t, tt.base, base, tt.in)
		assert.Equal(t, tt.pseudo, pseudo, tt.in)
	}
}
