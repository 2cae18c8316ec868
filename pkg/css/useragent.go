package css

// userAgentCSS is the default stylesheet applied beneath author styles.
const userAgentCSS = `
html, body, div, p, ul, ol, dl, dt, dd, pre, blockquote, address, center,
h1, h2, h3, h4, h5, h6, section, article, aside, nav, header, footer, main,
figure, figcaption, form, fieldset, legend, hr, details, summary, menu, dir {
	display: block;
}
li { display: list-item; }
head, script, style, title, meta, link, base, noscript, template, [hidden],
input[type=hidden] {
	display: none;
}
table { display: table; border-collapse: separate; }
thead { display: table-header-group; }
tbody { display: table-row-group; }
tfoot { display: table-footer-group; }
tr { display: table-row; }
td, th { display: table-cell; }
col { display: table-column; }
colgroup { display: table-column-group; }
caption { display: table-caption; }
input, select, textarea, button, meter, progress { display: inline-block; }
ol { list-style-type: decimal; }
ul { list-style-type: disc; }
ul ul, ol ul { list-style-type: circle; }
ul ul ul, ul ol ul, ol ul ul, ol ol ul { list-style-type: square; }
pre { white-space: pre; }
b, strong, th { font-weight: bold; }
i, em { font-style: italic; }
h1 { font-size: 2em; font-weight: bold; }
h2 { font-size: 1.5em; font-weight: bold; }
h3 { font-size: 1.17em; font-weight: bold; }
a { color: #0645ad; text-decoration: underline; }
q::before { content: open-quote; }
q::after { content: close-quote; }
`

var userAgentSheet = mustParseSheet(userAgentCSS, OriginUserAgent)

func mustParseSheet(text string, origin Origin) *Stylesheet {
	s, err := parseSheet(text, origin)
	if err != nil {
		panic(err)
	}
	return s
}

// UserAgentStylesheet returns the built-in default stylesheet.
func UserAgentStylesheet() *Stylesheet { return userAgentSheet }

// anonymousDisplay gives the display of nodes the layout engine inserts.
// They are invisible to selectors and only carry their structural role.
var anonymousDisplay = map[string]DisplayType{
	"table": DisplayTable,
	"tbody": DisplayTableRowGroup,
	"tr":    DisplayTableRow,
	"td":    DisplayTableCell,
}
