package report

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/tracenav/tracenav/internal/model"
	"github.com/tracenav/tracenav/pkg/intermediate"
)

// MetricsModule renders a per-compilation metrics page for each of the three
// metrics kinds, plus a global failures page when any compilation failed.
type MetricsModule struct {
	plainText bool
}

// NewMetricsModule creates the metrics module.
func NewMetricsModule(plainText bool) *MetricsModule {
	return &MetricsModule{plainText: plainText}
}

func (m *MetricsModule) ID() string   { return "compilation_metrics" }
func (m *MetricsModule) Name() string { return "Compilation Metrics" }

func (m *MetricsModule) Subscriptions() []intermediate.Category {
	return []intermediate.Category{
		intermediate.CategoryCompilationMetrics,
		intermediate.CategoryGuards,
	}
}

// CompileMetrics is the decoded body of a compilation_metrics record. Every
// field is optional; the compiler's telemetry evolves and old logs must keep
// rendering.
type CompileMetrics struct {
	CoName                  *string  `json:"co_name"`
	CoFilename              *string  `json:"co_filename"`
	CoFirstLineNo           *int     `json:"co_firstlineno"`
	CacheSize               *uint64  `json:"cache_size"`
	AccumulatedCacheSize    *uint64  `json:"accumulated_cache_size"`
	GuardCount              *uint64  `json:"guard_count"`
	ShapeEnvGuardCount      *uint64  `json:"shape_env_guard_count"`
	GraphOpCount            *uint64  `json:"graph_op_count"`
	GraphNodeCount          *uint64  `json:"graph_node_count"`
	GraphInputCount         *uint64  `json:"graph_input_count"`
	StartTime               *float64 `json:"start_time"`
	EntireFrameCompileTimeS *float64 `json:"entire_frame_compile_time_s"`
	BackendCompileTimeS     *float64 `json:"backend_compile_time_s"`
	InductorCompileTimeS    *float64 `json:"inductor_compile_time_s"`
	CodeGenTimeS            *float64 `json:"code_gen_time_s"`
	FailType                *string  `json:"fail_type"`
	FailReason              *string  `json:"fail_reason"`
	FailUserFrameFilename   *string  `json:"fail_user_frame_filename"`
	FailUserFrameLineNo     *uint32  `json:"fail_user_frame_lineno"`
	NonCompliantOps         []string `json:"non_compliant_ops"`
	CompliantCustomOps      []string `json:"compliant_custom_ops"`
	RestartReasons          []string `json:"restart_reasons"`
	DynamoTimeBeforeRestart *float64 `json:"dynamo_time_before_restart_s"`
}

type bwdMetrics struct {
	InductorCompileTimeS *float64 `json:"inductor_compile_time_s"`
	CodeGenTimeS         *float64 `json:"code_gen_time_s"`
	FailType             *string  `json:"fail_type"`
	FailReason           *string  `json:"fail_reason"`
}

type aotBwdMetrics struct {
	StartTime   *float64 `json:"start_time"`
	ElapsedTime *float64 `json:"elapsed_time"`
	FailType    *string  `json:"fail_type"`
	FailReason  *string  `json:"fail_reason"`
}

type failureEntry struct {
	compileID  string
	failType   string
	failReason string
	function   string
}

type specialization struct {
	symbol string
	value  string
	reason string
}

func (m *MetricsModule) Render(ctx *Context) (*Output, error) {
	out := NewOutput()

	stacks, err := m.buildStackIndex(ctx)
	if err != nil {
		return nil, err
	}
	specs, err := m.buildSpecializationIndex(ctx)
	if err != nil {
		return nil, err
	}

	records, err := ctx.ReadCategory(intermediate.CategoryCompilationMetrics)
	if err != nil {
		return nil, err
	}

	var failures []failureEntry
	for _, rec := range records {
		compileID := rec.CompileIDOr("unknown")

		switch rec.Kind {
		case "compilation_metrics":
			var metrics CompileMetrics
			// Unknown or malformed fields degrade to an empty page section.
			_ = json.Unmarshal(rec.Metadata, &metrics)

			if metrics.FailType != nil {
				fn := ""
				if metrics.CoName != nil {
					fn = *metrics.CoName
					if metrics.CoFilename != nil {
						fn += " (" + *metrics.CoFilename + ")"
					}
				}
				failures = append(failures, failureEntry{
					compileID:  compileID,
					failType:   *metrics.FailType,
					failReason: strOr(metrics.FailReason, ""),
					function:   fn,
				})
			}

			filePath := path.Join(compileID, "compilation_metrics.html")
			out.AddFile(filePath, m.renderMetricsPage(compileID, &metrics, stacks[compileID], specs[compileID]))
			out.AddEntry(compileID, DirectoryEntry{Name: "compilation_metrics.html", URL: filePath})

		case "bwd_compilation_metrics":
			var metrics bwdMetrics
			_ = json.Unmarshal(rec.Metadata, &metrics)
			if metrics.FailType != nil {
				failures = append(failures, failureEntry{
					compileID:  compileID,
					failType:   *metrics.FailType,
					failReason: strOr(metrics.FailReason, ""),
				})
			}

			filePath := path.Join(compileID, "bwd_compilation_metrics.html")
			out.AddFile(filePath, m.renderBwdPage(compileID, &metrics))
			out.AddEntry(compileID, DirectoryEntry{Name: "bwd_compilation_metrics.html", URL: filePath})

		case "aot_autograd_backward_compilation_metrics":
			var metrics aotBwdMetrics
			_ = json.Unmarshal(rec.Metadata, &metrics)
			if metrics.FailType != nil {
				failures = append(failures, failureEntry{
					compileID:  compileID,
					failType:   *metrics.FailType,
					failReason: strOr(metrics.FailReason, ""),
				})
			}

			filePath := path.Join(compileID, "aot_autograd_backward_compilation_metrics.html")
			out.AddFile(filePath, m.renderAotBwdPage(compileID, &metrics))
			out.AddEntry(compileID, DirectoryEntry{Name: "aot_autograd_backward_compilation_metrics.html", URL: filePath})
		}
	}

	if len(failures) > 0 {
		out.AddFile("failures_and_restarts.html", m.renderFailuresPage(failures))
		out.IndexContribution = &IndexContribution{
			Section: "Failures and Restarts",
			HTML: fmt.Sprintf(
				"<div class=\"failures-summary\"><span class=\"status-error\">%d failure(s)</span> <a href=\"failures_and_restarts.html\">View Details</a></div>",
				len(failures)),
		}
	}

	return out, nil
}

// buildStackIndex maps compile id to the entry stack captured at
// compilation start.
func (m *MetricsModule) buildStackIndex(ctx *Context) (map[string]model.Stack, error) {
	records, err := ctx.EntriesByKind(intermediate.CategoryCompilationMetrics, "dynamo_start")
	if err != nil {
		return nil, err
	}
	index := make(map[string]model.Stack)
	for _, rec := range records {
		if rec.CompileID == nil {
			continue
		}
		raw := rec.MetadataField("stack")
		if raw == nil {
			continue
		}
		var stack model.Stack
		if err := json.Unmarshal(raw, &stack); err != nil {
			continue
		}
		index[*rec.CompileID] = stack
	}
	return index, nil
}

func (m *MetricsModule) buildSpecializationIndex(ctx *Context) (map[string][]specialization, error) {
	records, err := ctx.EntriesByKind(intermediate.CategoryGuards, "symbolic_shape_specialization")
	if err != nil {
		return nil, err
	}
	index := make(map[string][]specialization)
	for _, rec := range records {
		if rec.CompileID == nil {
			continue
		}
		index[*rec.CompileID] = append(index[*rec.CompileID], specialization{
			symbol: rec.MetadataString("symbol", ""),
			value:  rec.MetadataString("value", ""),
			reason: rec.MetadataString("reason", ""),
		})
	}
	return index, nil
}

func (m *MetricsModule) renderMetricsPage(compileID string, metrics *CompileMetrics, stack model.Stack, specs []specialization) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Compilation Metrics - %s</h1>\n", esc(compileID))

	if metrics.FailType != nil {
		b.WriteString("<p class=\"status-error\">❌ Compilation Failed</p>\n")
	} else {
		b.WriteString("<p class=\"status-ok\">✅ Compilation Successful</p>\n")
	}

	b.WriteString("<h2>Basic Information</h2>\n<table>\n")
	rowStr(&b, "Function Name", metrics.CoName)
	rowStr(&b, "Filename", metrics.CoFilename)
	if metrics.CoFirstLineNo != nil {
		fmt.Fprintf(&b, "<tr><th>First Line</th><td>%d</td></tr>\n", *metrics.CoFirstLineNo)
	}
	b.WriteString("</table>\n")

	b.WriteString("<h2>Timing</h2>\n<table>\n")
	rowSeconds(&b, "Total Compile Time", metrics.EntireFrameCompileTimeS)
	rowSeconds(&b, "Backend Compile Time", metrics.BackendCompileTimeS)
	rowSeconds(&b, "Inductor Compile Time", metrics.InductorCompileTimeS)
	rowSeconds(&b, "Code Gen Time", metrics.CodeGenTimeS)
	b.WriteString("</table>\n")

	b.WriteString("<h2>Graph Statistics</h2>\n<table>\n")
	rowCount(&b, "Graph Op Count", metrics.GraphOpCount)
	rowCount(&b, "Graph Node Count", metrics.GraphNodeCount)
	rowCount(&b, "Graph Input Count", metrics.GraphInputCount)
	rowCount(&b, "Guard Count", metrics.GuardCount)
	rowCount(&b, "Shape Env Guard Count", metrics.ShapeEnvGuardCount)
	b.WriteString("</table>\n")

	if metrics.FailType != nil {
		b.WriteString("<h2 class=\"status-error\">Failure Information</h2>\n<table>\n")
		fmt.Fprintf(&b, "<tr><th>Failure Type</th><td>%s</td></tr>\n", esc(*metrics.FailType))
		if metrics.FailReason != nil {
			fmt.Fprintf(&b, "<tr><th>Failure Reason</th><td><pre>%s</pre></td></tr>\n", esc(*metrics.FailReason))
		}
		if metrics.FailUserFrameFilename != nil {
			line := uint32(0)
			if metrics.FailUserFrameLineNo != nil {
				line = *metrics.FailUserFrameLineNo
			}
			fmt.Fprintf(&b, "<tr><th>User Frame</th><td>%s:%d</td></tr>\n", esc(*metrics.FailUserFrameFilename), line)
		}
		b.WriteString("</table>\n")
	}

	if len(metrics.RestartReasons) > 0 {
		b.WriteString("<h2 class=\"status-break\">Restart Reasons</h2>\n<ul>\n")
		for _, reason := range metrics.RestartReasons {
			fmt.Fprintf(&b, "<li>%s</li>\n", esc(reason))
		}
		b.WriteString("</ul>\n")
	}

	if len(specs) > 0 {
		b.WriteString("<h2>Symbolic Shape Specializations</h2>\n<table>\n<tr><th>Symbol</th><th>Value</th><th>Reason</th></tr>\n")
		for _, s := range specs {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>\n",
				esc(s.symbol), esc(s.value), esc(s.reason))
		}
		b.WriteString("</table>\n")
	}

	if len(stack) > 0 {
		b.WriteString("<details>\n<summary>Compilation Entry Stack</summary>\n<pre>")
		for _, f := range stack {
			fmt.Fprintf(&b, "%s:%d in %s\n", esc(model.SimplifyFilename(f.Filename)), f.Line, esc(f.Name))
		}
		b.WriteString("</pre>\n</details>\n")
	}

	return htmlPage("Compilation Metrics", b.String())
}

func (m *MetricsModule) renderBwdPage(compileID string, metrics *bwdMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Backward Compilation Metrics - %s</h1>\n<table>\n", esc(compileID))
	rowSeconds(&b, "Inductor Compile Time", metrics.InductorCompileTimeS)
	rowSeconds(&b, "Code Gen Time", metrics.CodeGenTimeS)
	rowStr(&b, "Failure Type", metrics.FailType)
	if metrics.FailReason != nil {
		fmt.Fprintf(&b, "<tr><th>Failure Reason</th><td><pre>%s</pre></td></tr>\n", esc(*metrics.FailReason))
	}
	b.WriteString("</table>")
	return htmlPage("Backward Compilation Metrics", b.String())
}

func (m *MetricsModule) renderAotBwdPage(compileID string, metrics *aotBwdMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>AOT Autograd Backward Compilation Metrics - %s</h1>\n<table>\n", esc(compileID))
	rowSeconds(&b, "Start Time", metrics.StartTime)
	rowSeconds(&b, "Elapsed Time", metrics.ElapsedTime)
	rowStr(&b, "Failure Type", metrics.FailType)
	if metrics.FailReason != nil {
		fmt.Fprintf(&b, "<tr><th>Failure Reason</th><td><pre>%s</pre></td></tr>\n", esc(*metrics.FailReason))
	}
	b.WriteString("</table>")
	return htmlPage("AOT Autograd Backward Compilation Metrics", b.String())
}

func (m *MetricsModule) renderFailuresPage(failures []failureEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Failures and Restarts</h1>\n<p>Found %d failure(s)</p>\n", len(failures))
	b.WriteString("<table>\n<thead>\n<tr><th>Compile ID</th><th>Function</th><th>Failure Type</th><th>Reason</th></tr>\n</thead>\n<tbody>\n")
	for _, f := range failures {
		function := f.function
		if function == "" {
			function = "-"
		}
		reason := f.failReason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(&b,
			"<tr><td><a href=\"%s/compilation_metrics.html\">%s</a></td><td>%s</td><td class=\"status-error\">%s</td><td><pre>%s</pre></td></tr>\n",
			esc(f.compileID), esc(model.DisplayName(f.compileID)), esc(function), esc(f.failType), esc(reason))
	}
	b.WriteString("</tbody>\n</table>")
	return htmlPage("Failures and Restarts", b.String())
}

func strOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func rowStr(b *strings.Builder, label string, value *string) {
	if value == nil {
		return
	}
	fmt.Fprintf(b, "<tr><th>%s</th><td>%s</td></tr>\n", esc(label), esc(*value))
}

func rowSeconds(b *strings.Builder, label string, value *float64) {
	if value == nil {
		return
	}
	fmt.Fprintf(b, "<tr><th>%s</th><td>%.3fs</td></tr>\n", esc(label), *value)
}

func rowCount(b *strings.Builder, label string, value *uint64) {
	if value == nil {
		return
	}
	fmt.Fprintf(b, "<tr><th>%s</th><td>%d</td></tr>\n", esc(label), *value)
}
