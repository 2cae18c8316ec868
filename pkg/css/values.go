package css

import (
	"strconv"
	"strings"
)

// DisplayType represents the display property value
type DisplayType string

const (
	DisplayBlock            DisplayType = "block"
	DisplayInline           DisplayType = "inline"
	DisplayInlineBlock      DisplayType = "inline-block"
	DisplayNone             DisplayType = "none"
	DisplayListItem         DisplayType = "list-item"
	DisplayRunIn            DisplayType = "run-in"
	DisplayTable            DisplayType = "table"
	DisplayInlineTable      DisplayType = "inline-table"
	DisplayTableRowGroup    DisplayType = "table-row-group"
	DisplayTableHeaderGroup DisplayType = "table-header-group"
	DisplayTableFooterGroup DisplayType = "table-footer-group"
	DisplayTableRow         DisplayType = "table-row"
	DisplayTableCell        DisplayType = "table-cell"
	DisplayTableColumn      DisplayType = "table-column"
	DisplayTableColumnGroup DisplayType = "table-column-group"
	DisplayTableCaption     DisplayType = "table-caption"
	DisplayFlex             DisplayType = "flex"
	DisplayInlineFlex       DisplayType = "inline-flex"
)

// ParseDisplay maps a display keyword to its DisplayType. Unknown keywords
// fall back to inline, the initial value.
func ParseDisplay(v string) DisplayType {
	d := DisplayType(strings.TrimSpace(strings.ToLower(v)))
	switch d {
	case DisplayBlock, DisplayInline, DisplayInlineBlock, DisplayNone, DisplayListItem,
		DisplayRunIn, DisplayTable, DisplayInlineTable, DisplayTableRowGroup,
		DisplayTableHeaderGroup, DisplayTableFooterGroup, DisplayTableRow,
		DisplayTableCell, DisplayTableColumn, DisplayTableColumnGroup,
		DisplayTableCaption, DisplayFlex, DisplayInlineFlex:
		return d
	}
	return DisplayInline
}

// IsRowGroup is true for the three row-group flavours.
func (d DisplayType) IsRowGroup() bool {
	return d == DisplayTableRowGroup || d == DisplayTableHeaderGroup || d == DisplayTableFooterGroup
}

// IsTableInternal is true for every display that needs a table ancestor.
func (d DisplayType) IsTableInternal() bool {
	switch d {
	case DisplayTableRowGroup, DisplayTableHeaderGroup, DisplayTableFooterGroup,
		DisplayTableRow, DisplayTableCell, DisplayTableColumn,
		DisplayTableColumnGroup, DisplayTableCaption:
		return true
	}
	return false
}

func (d DisplayType) IsTable() bool { return d == DisplayTable || d == DisplayInlineTable }
func (d DisplayType) IsFlex() bool  { return d == DisplayFlex || d == DisplayInlineFlex }

// IsBlockLevel reports whether the element participates in a block
// formatting context as a block.
func (d DisplayType) IsBlockLevel() bool {
	switch d {
	case DisplayBlock, DisplayListItem, DisplayTable, DisplayFlex, DisplayRunIn:
		return true
	}
	return false
}

// IsAtomicInline is true for inline-level boxes that establish their own
// formatting context.
func (d DisplayType) IsAtomicInline() bool {
	return d == DisplayInlineBlock || d == DisplayInlineTable || d == DisplayInlineFlex
}

// blockify returns the block-level equivalent used for floats, absolutely
// positioned elements and flex items.
func (d DisplayType) blockify() DisplayType {
	switch d {
	case DisplayInline, DisplayInlineBlock, DisplayRunIn:
		return DisplayBlock
	case DisplayInlineTable:
		return DisplayTable
	case DisplayInlineFlex:
		return DisplayFlex
	}
	if d.IsTableInternal() {
		return DisplayBlock
	}
	return d
}

// Position type constants
type PositionType string

const (
	PositionStatic   PositionType = "static"
	PositionRelative PositionType = "relative"
	PositionAbsolute PositionType = "absolute"
	PositionFixed    PositionType = "fixed"
)

func ParsePosition(v string) PositionType {
	switch PositionType(strings.TrimSpace(v)) {
	case PositionRelative:
		return PositionRelative
	case PositionAbsolute:
		return PositionAbsolute
	case PositionFixed:
		return PositionFixed
	}
	return PositionStatic
}

// IsOutOfFlow is true for absolute and fixed positioning.
func (p PositionType) IsOutOfFlow() bool {
	return p == PositionAbsolute || p == PositionFixed
}

// FloatType represents the float property value
type FloatType string

const (
	FloatNone  FloatType = "none"
	FloatLeft  FloatType = "left"
	FloatRight FloatType = "right"
)

func ParseFloat(v string) FloatType {
	switch FloatType(strings.TrimSpace(v)) {
	case FloatLeft:
		return FloatLeft
	case FloatRight:
		return FloatRight
	}
	return FloatNone
}

type Visibility string

const (
	VisibilityVisible  Visibility = "visible"
	VisibilityHidden   Visibility = "hidden"
	VisibilityCollapse Visibility = "collapse"
)

type WhiteSpace string

const (
	WhiteSpaceNormal  WhiteSpace = "normal"
	WhiteSpacePre     WhiteSpace = "pre"
	WhiteSpaceNowrap  WhiteSpace = "nowrap"
	WhiteSpacePreWrap WhiteSpace = "pre-wrap"
	WhiteSpacePreLine WhiteSpace = "pre-line"
)

// PreservesSpaces is true when runs of white space are significant.
func (w WhiteSpace) PreservesSpaces() bool {
	return w == WhiteSpacePre || w == WhiteSpacePreWrap
}

// PreservesNewlines is true when line feeds are significant.
func (w WhiteSpace) PreservesNewlines() bool {
	return w == WhiteSpacePre || w == WhiteSpacePreWrap || w == WhiteSpacePreLine
}

type Overflow string

const (
	OverflowVisible Overflow = "visible"
	OverflowHidden  Overflow = "hidden"
	OverflowScroll  Overflow = "scroll"
	OverflowAuto    Overflow = "auto"
)

// ContentItemKind is the type of one entry of a `content` value.
type ContentItemKind int

const (
	ContentString ContentItemKind = iota
	ContentAttr
	ContentURL
	ContentCounter
	ContentCounters
	ContentOpenQuote
	ContentCloseQuote
	ContentNoOpenQuote
	ContentNoCloseQuote
)

// ContentItem is one parsed entry of the `content` property.
type ContentItem struct {
	Kind      ContentItemKind
	Value     string // literal text, attribute name, URL or counter name
	Separator string // counters() only
	Style     string // counter style, "" means decimal
}

// ParseContent parses a `content` value. It returns nil for "normal" and
// "none", which produce no generated content.
func ParseContent(value string) []ContentItem {
	value = strings.TrimSpace(value)
	if value == "" || value == "normal" || value == "none" {
		return nil
	}
	var items []ContentItem
	for _, tok := range splitTopLevel(value, ' ') {
		switch {
		case isQuoted(tok):
			items = append(items, ContentItem{Kind: ContentString, Value: unquote(tok)})
		case strings.HasPrefix(tok, "attr("):
			items = append(items, ContentItem{Kind: ContentAttr, Value: strings.TrimSpace(funcArgs(tok))})
		case strings.HasPrefix(tok, "url("):
			items = append(items, ContentItem{Kind: ContentURL, Value: ParseURL(tok)})
		case strings.HasPrefix(tok, "counters("):
			args := splitTopLevel(funcArgs(tok), ',')
			item := ContentItem{Kind: ContentCounters}
			if len(args) > 0 {
				item.Value = args[0]
			}
			if len(args) > 1 {
				item.Separator = unquote(args[1])
			}
			if len(args) > 2 {
				item.Style = args[2]
			}
			items = append(items, item)
		case strings.HasPrefix(tok, "counter("):
			args := splitTopLevel(funcArgs(tok), ',')
			item := ContentItem{Kind: ContentCounter}
			if len(args) > 0 {
				item.Value = args[0]
			}
			if len(args) > 1 {
				item.Style = args[1]
			}
			items = append(items, item)
		case tok == "open-quote":
			items = append(items, ContentItem{Kind: ContentOpenQuote})
		case tok == "close-quote":
			items = append(items, ContentItem{Kind: ContentCloseQuote})
		case tok == "no-open-quote":
			items = append(items, ContentItem{Kind: ContentNoOpenQuote})
		case tok == "no-close-quote":
			items = append(items, ContentItem{Kind: ContentNoCloseQuote})
		}
	}
	return items
}

// CounterOp is one name/value pair of counter-reset or counter-increment.
type CounterOp struct {
	Name  string
	Value int
}

// ParseCounterOps parses "name [int] name [int] ..." using def for names
// that have no explicit value.
func ParseCounterOps(value string, def int) []CounterOp {
	value = strings.TrimSpace(value)
	if value == "" || value == "none" {
		return nil
	}
	parts := strings.Fields(value)
	var ops []CounterOp
	for i := 0; i < len(parts); i++ {
		op := CounterOp{Name: parts[i], Value: def}
		if i+1 < len(parts) {
			if v, err := strconv.Atoi(parts[i+1]); err == nil {
				op.Value = v
				i++
			}
		}
		ops = append(ops, op)
	}
	return ops
}

// ParseQuotes parses the quotes property into open/close pairs, flattened.
func ParseQuotes(value string) []string {
	value = strings.TrimSpace(value)
	if value == "none" {
		return []string{}
	}
	var out []string
	for _, tok := range splitTopLevel(value, ' ') {
		if isQuoted(tok) {
			out = append(out, unquote(tok))
		}
	}
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}
	return out
}

// ParseURL extracts the address from url(...), or returns "" if the value
// is not a url() token.
func ParseURL(value string) string {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "url(") {
		return ""
	}
	arg := strings.TrimSpace(funcArgs(value))
	if isQuoted(arg) {
		return unquote(arg)
	}
	return arg
}

func funcArgs(tok string) string {
	open := strings.IndexByte(tok, '(')
	end := strings.LastIndexByte(tok, ')')
	if open < 0 || end < open {
		return ""
	}
	return tok[open+1 : end]
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if !isQuoted(s) {
		return s
	}
	return unescapeCSS(s[1 : len(s)-1])
}

// unescapeCSS resolves backslash escapes: hex code points such as \201C and
// escaped literal characters.
func unescapeCSS(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(s) && j-i <= 6 && isHex(s[j]) {
			j++
		}
		if j == i+1 {
			sb.WriteByte(s[j])
			i = j
			continue
		}
		if cp, err := strconv.ParseUint(s[i+1:j], 16, 32); err == nil {
			sb.WriteRune(rune(cp))
		}
		if j < len(s) && s[j] == ' ' {
			j++
		}
		i = j - 1
	}
	return sb.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// splitTopLevel splits on sep outside quotes and parentheses. Empty pieces
// are dropped and pieces are trimmed.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	var quote byte
	start := 0
	flush := func(end int) {
		if p := strings.TrimSpace(s[start:end]); p != "" {
			out = append(out, p)
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (c == sep || (sep == ' ' && (c == '\t' || c == '\n'))):
			flush(i)
			start = i + 1
		}
	}
	flush(len(s))
	return out
}
