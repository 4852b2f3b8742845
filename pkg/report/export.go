package report

import (
	"fmt"
	"strings"

	"github.com/tracenav/tracenav/pkg/intermediate"
)

// ExportModule renders the export-mode index: kernel registration failures
// plus the captured exported program. Outside export mode it stays silent
// even when export records exist.
type ExportModule struct{}

// NewExportModule creates the export module.
func NewExportModule() *ExportModule {
	return &ExportModule{}
}

func (m *ExportModule) ID() string   { return "export" }
func (m *ExportModule) Name() string { return "Export" }

func (m *ExportModule) Subscriptions() []intermediate.Category {
	return []intermediate.Category{intermediate.CategoryExport}
}

type exportFailure struct {
	failureType string
	op          string
	reason      string
}

func (m *ExportModule) Render(ctx *Context) (*Output, error) {
	if !ctx.Config.ExportMode {
		return NewOutput(), nil
	}

	records, err := ctx.ReadCategory(intermediate.CategoryExport)
	if err != nil {
		return nil, err
	}

	var failures []exportFailure
	var program *string
	for _, rec := range records {
		switch rec.Kind {
		case "missing_fake_kernel":
			failures = append(failures, exportFailure{
				failureType: rec.Kind,
				op:          rec.MetadataString("op", "unknown"),
				reason:      rec.MetadataString("reason", "No fake kernel registered"),
			})
		case "mismatched_fake_kernel":
			failures = append(failures, exportFailure{
				failureType: rec.Kind,
				op:          rec.MetadataString("op", "unknown"),
				reason:      rec.MetadataString("reason", "Output mismatch"),
			})
		case "exported_program":
			program = rec.Payload
		}
	}

	out := NewOutput()
	out.AddFile("index.html", m.renderExportIndex(failures, program))
	if len(failures) > 0 {
		out.IndexContribution = &IndexContribution{
			Section: "Export Failures",
			HTML: fmt.Sprintf(
				"<div class=\"export-failures-summary\"><span class=\"status-error\">%d export failure(s)</span></div>",
				len(failures)),
		}
	}
	return out, nil
}

func (m *ExportModule) renderExportIndex(failures []exportFailure, program *string) string {
	var b strings.Builder
	b.WriteString("<h1>Export Analysis</h1>\n")

	if len(failures) == 0 && program != nil {
		b.WriteString("<p class=\"status-ok\">✅ Export successful</p>\n")
	} else if len(failures) > 0 {
		b.WriteString("<p class=\"status-error\">❌ Export failed</p>\n")
	}

	if len(failures) > 0 {
		b.WriteString("<h2>Export Failures</h2>\n<table>\n<thead>\n<tr><th>Type</th><th>Operator</th><th>Reason</th></tr>\n</thead>\n<tbody>\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "<tr><td class=\"status-error\">%s</td><td><code>%s</code></td><td>%s</td></tr>\n",
				esc(f.failureType), esc(f.op), esc(f.reason))
		}
		b.WriteString("</tbody>\n</table>\n")
	}

	if program != nil {
		b.WriteString("<h2>Exported Program</h2>\n<details open>\n<summary>View Program</summary>\n")
		b.WriteString(preBlock(*program))
		b.WriteString("\n</details>\n")
	}

	return htmlPage("Export Analysis", b.String())
}
