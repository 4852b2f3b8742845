package report

import (
	"encoding/json"

	"github.com/tracenav/tracenav/pkg/intermediate"
)

// TraceModule re-emits the buffered trace spans as a pretty-printed JSON
// file loadable in a trace viewer, and links it from the index.
type TraceModule struct{}

// NewTraceModule creates the trace module.
func NewTraceModule() *TraceModule {
	return &TraceModule{}
}

func (m *TraceModule) ID() string   { return "chromium_trace" }
func (m *TraceModule) Name() string { return "Chromium Trace" }

func (m *TraceModule) Subscriptions() []intermediate.Category {
	return []intermediate.Category{intermediate.CategoryTraceEvents}
}

func (m *TraceModule) Render(ctx *Context) (*Output, error) {
	events, err := ctx.ReadTraceEvents()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return NewOutput(), nil
	}

	content, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, err
	}

	out := NewOutput()
	out.AddFile("chromium_events.json", string(content))
	out.AddEntry(GlobalKey, DirectoryEntry{Name: "chromium_events.json", URL: "chromium_events.json"})
	out.IndexContribution = &IndexContribution{
		Section: "Chromium Trace",
		HTML:    "<div class=\"chromium-trace\"><a href=\"chromium_events.json\" target=\"_blank\">View Chromium Trace</a> <span class=\"hint\">(Open in chrome://tracing)</span></div>",
	}
	return out, nil
}
