package report

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// htmlPage wraps body HTML in the shared page scaffold.
func htmlPage(title, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n<style>\n")
	b.WriteString(pageCSS)
	b.WriteString("</style>\n</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

const pageCSS = `body { font-family: sans-serif; margin: 1em 2em; }
pre { background: #f6f6f6; padding: 0.5em; overflow-x: auto; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.25em 0.75em; text-align: left; }
.status-ok { color: #2a7d2a; }
.status-error { color: #c0392b; }
.status-empty { color: #888; }
.status-break { color: #b8860b; }
.status-missing { color: #888; font-style: italic; }
.line { display: block; }
.line:target { background-color: #ffffcc; }
.lineno { color: #999; width: 4em; display: inline-block; text-align: right; margin-right: 1em; }
`

// anchorSource renders source text as HTML with one target anchor per line,
// so other pages can deep-link to #L<n>.
func anchorSource(source string) string {
	var b strings.Builder
	b.WriteString("<pre>")
	for i, line := range strings.Split(strings.TrimRight(source, "\n"), "\n") {
		n := i + 1
		fmt.Fprintf(&b, "<span class=\"line\" id=\"L%d\"><span class=\"lineno\">%d</span>%s</span>\n",
			n, n, html.EscapeString(line))
	}
	b.WriteString("</pre>")
	return b.String()
}

// prettyJSON reformats a JSON payload for display. Invalid JSON comes back
// unchanged; the raw text is still more useful than an error page.
func prettyJSON(payload string) string {
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return payload
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return payload
	}
	return string(out)
}

// preBlock renders text inside an escaped <pre>.
func preBlock(text string) string {
	return "<pre>" + html.EscapeString(text) + "</pre>"
}

// esc is shorthand for HTML text escaping.
func esc(s string) string {
	return html.EscapeString(s)
}
