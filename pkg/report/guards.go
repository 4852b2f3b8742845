package report

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/tracenav/tracenav/pkg/intermediate"
)

// GuardsModule renders the guard tables accumulated for each compilation:
// the structured guard list as a filterable HTML table, and the generated
// C++ guard source as plain text.
type GuardsModule struct {
	plainText bool
}

// NewGuardsModule creates the guards module.
func NewGuardsModule(plainText bool) *GuardsModule {
	return &GuardsModule{plainText: plainText}
}

func (m *GuardsModule) ID() string   { return "guards" }
func (m *GuardsModule) Name() string { return "Dynamo Guards" }

func (m *GuardsModule) Subscriptions() []intermediate.Category {
	// The C++ guard string is classified as codegen; the structured guard
	// list lives in the guards stream.
	return []intermediate.Category{
		intermediate.CategoryGuards,
		intermediate.CategoryCodegen,
	}
}

// dynamoGuard is one entry of the structured guard list payload.
type dynamoGuard struct {
	Code       *string  `json:"code"`
	GuardType  *string  `json:"type"`
	GuardTypes []string `json:"guard_types"`
}

func (m *GuardsModule) Render(ctx *Context) (*Output, error) {
	out := NewOutput()

	guards, err := ctx.EntriesByKind(intermediate.CategoryGuards, "dynamo_guards")
	if err != nil {
		return nil, err
	}
	for _, rec := range guards {
		compileID := rec.CompileIDOr("unknown")

		payload := rec.PayloadString()
		if payload == "" {
			payload = "[]"
		}
		var list []dynamoGuard
		// A malformed guard payload degrades to an empty table.
		_ = json.Unmarshal([]byte(payload), &list)

		filePath := path.Join(compileID, "dynamo_guards.html")
		out.AddFile(filePath, m.renderGuardTable(list))
		out.AddEntry(compileID, DirectoryEntry{Name: "dynamo_guards.html", URL: filePath})
	}

	cppGuards, err := ctx.EntriesByKind(intermediate.CategoryCodegen, "dynamo_cpp_guards_str")
	if err != nil {
		return nil, err
	}
	for _, rec := range cppGuards {
		compileID := rec.CompileIDOr("unknown")
		filePath := path.Join(compileID, "dynamo_cpp_guards_str.txt")
		out.AddFile(filePath, rec.PayloadString())
		out.AddEntry(compileID, DirectoryEntry{Name: "dynamo_cpp_guards_str.txt", URL: filePath})
	}

	return out, nil
}

func (m *GuardsModule) renderGuardTable(guards []dynamoGuard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Dynamo Guards</h1>\n<p>%d guards</p>\n", len(guards))
	b.WriteString("<table>\n<thead>\n<tr><th>Code</th><th>Type</th><th>Guard Types</th></tr>\n</thead>\n<tbody>\n")
	for _, g := range guards {
		code := ""
		if g.Code != nil {
			code = *g.Code
		}
		guardType := ""
		if g.GuardType != nil {
			guardType = *g.GuardType
		}
		fmt.Fprintf(&b, "<tr><td><pre>%s</pre></td><td>%s</td><td>%s</td></tr>\n",
			esc(code), esc(guardType), esc(strings.Join(g.GuardTypes, ", ")))
	}
	b.WriteString("</tbody>\n</table>")
	return htmlPage("Dynamo Guards", b.String())
}
