package css

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// Bullet glyphs for the symbolic list styles.
var bulletGlyphs = map[string]string{
	"disc":   "•",
	"circle": "◦",
	"square": "▪",
	"box":    "▪",
}

// IsBulletStyle reports whether a list-style-type renders as a glyph
// rather than a number.
func IsBulletStyle(style string) bool {
	_, ok := bulletGlyphs[style]
	return ok
}

// IsBulletGlyph reports whether s is one of the glyphs bullet styles
// render as.
func IsBulletGlyph(s string) bool {
	for _, g := range bulletGlyphs {
		if g == s {
			return true
		}
	}
	return false
}

// IsTextualCounterStyle reports whether a list-style-type renders the
// counter value as text.
func IsTextualCounterStyle(style string) bool {
	switch strings.TrimPrefix(strings.TrimPrefix(style, "lower-"), "upper-") {
	case "decimal", "decimal-leading-zero", "roman", "alpha", "latin", "greek",
		"armenian", "georgian", "hebrew", "cjk-ideographic", "hiragana",
		"katakana", "hiragana-iroha", "katakana-iroha":
		return true
	}
	return false
}

// FormatCounter renders value in the given counter style. Styles this
// package cannot render fall back to decimal.
func FormatCounter(value int, style string) string {
	style = strings.TrimSpace(style)
	if g, ok := bulletGlyphs[style]; ok {
		return g
	}
	switch style {
	case "", "decimal":
		return strconv.Itoa(value)
	case "none":
		return ""
	case "decimal-leading-zero":
		if value >= 0 && value < 10 {
			return "0" + strconv.Itoa(value)
		}
		return strconv.Itoa(value)
	case "lower-roman":
		return toRoman(value)
	case "upper-roman":
		return upper.String(toRoman(value))
	case "lower-alpha", "lower-latin":
		return toAlphabetic(value, "abcdefghijklmnopqrstuvwxyz")
	case "upper-alpha", "upper-latin":
		return upper.String(toAlphabetic(value, "abcdefghijklmnopqrstuvwxyz"))
	case "lower-greek":
		return toAlphabetic(value, "αβγδεζηθικλμνξοπρστυφχψω")
	case "upper-greek":
		return upper.String(toAlphabetic(value, "αβγδεζηθικλμνξοπρστυφχψω"))
	}
	return strconv.Itoa(value)
}

// MarkerText is FormatCounter plus the suffix a list marker carries.
func MarkerText(value int, style string) string {
	if IsBulletStyle(style) {
		return FormatCounter(value, style)
	}
	return FormatCounter(value, style) + ". "
}

var romanTable = []struct {
	value  int
	symbol string
}{
	{1000, "m"}, {900, "cm"}, {500, "d"}, {400, "cd"},
	{100, "c"}, {90, "xc"}, {50, "l"}, {40, "xl"},
	{10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
}

// toRoman covers 1..3999; anything else is written in decimal.
func toRoman(n int) string {
	if n <= 0 || n >= 4000 {
		return strconv.Itoa(n)
	}
	var sb strings.Builder
	for _, r := range romanTable {
		for n >= r.value {
			sb.WriteString(r.symbol)
			n -= r.value
		}
	}
	return sb.String()
}

// toAlphabetic implements the bijective base-N numbering used by the
// alphabetic styles: a..z, aa, ab, ...
func toAlphabetic(n int, alphabet string) string {
	if n <= 0 {
		return strconv.Itoa(n)
	}
	letters := []rune(alphabet)
	base := len(letters)
	var out []rune
	for n > 0 {
		n--
		out = append([]rune{letters[n%base]}, out...)
		n /= base
	}
	return string(out)
}
