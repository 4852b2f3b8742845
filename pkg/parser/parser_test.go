package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/tracenav/tracenav/internal/model"
)

func parseAll(t *testing.T, input string) ([]*model.Envelope, *Parser) {
	t.Helper()
	p := New(DefaultConfig())
	out := make(chan *model.Envelope, 64)
	if err := p.Parse(context.Background(), strings.NewReader(input), out); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	close(out)
	var envs []*model.Envelope
	for e := range out {
		envs = append(envs, e)
	}
	return envs, p
}

func TestParseEnvelopesAndPayloads(t *testing.T) {
	input := `{"dynamo_output_graph":{"sizes":{}},"frame_id":0,"frame_compile_id":0}
	def forward(self, x):
	    return x + 1
{"compilation_metrics":{"co_name":"forward"},"frame_id":0,"frame_compile_id":0}
`
	envs, _ := parseAll(t, input)
	if len(envs) != 2 {
		t.Fatalf("envelope count = %d, want 2", len(envs))
	}

	if got := envs[0].Kind(); got != "dynamo_output_graph" {
		t.Errorf("first kind = %q", got)
	}
	if envs[0].Payload == nil {
		t.Fatal("first envelope has no payload")
	}
	want := "def forward(self, x):\n    return x + 1\n"
	if *envs[0].Payload != want {
		t.Errorf("payload = %q, want %q", *envs[0].Payload, want)
	}

	if got := envs[1].Kind(); got != "compilation_metrics" {
		t.Errorf("second kind = %q", got)
	}
	if envs[1].Payload != nil {
		t.Errorf("second envelope has unexpected payload %q", *envs[1].Payload)
	}
}

func TestParseStringTableInterning(t *testing.T) {
	input := `{"str":["torch/_dynamo/model.py",0]}
{"dynamo_start":{},"stack":[{"filename":0,"line":10,"name":"forward"}],"frame_id":0,"frame_compile_id":0}
`
	envs, p := parseAll(t, input)

	// str envelopes are consumed, never emitted.
	if len(envs) != 1 {
		t.Fatalf("envelope count = %d, want 1", len(envs))
	}
	if got := p.StringTable()[0]; got != "torch/_dynamo/model.py" {
		t.Errorf("intern[0] = %q", got)
	}

	stack := *envs[0].Stack
	if stack[0].Filename != "torch/_dynamo/model.py" {
		t.Errorf("frame filename = %q, want resolved intern", stack[0].Filename)
	}
}

func TestParseSkipsGarbageAndPrefixes(t *testing.T) {
	input := `not json at all
V0823 12:00:00.000000 1234 torch/_dynamo/convert_frame.py:100] {"artifact":{"name":"x","encoding":"string"}}

{"this is broken json
`
	envs, p := parseAll(t, input)
	if len(envs) != 1 {
		t.Fatalf("envelope count = %d, want 1", len(envs))
	}
	if got := envs[0].Kind(); got != "artifact" {
		t.Errorf("kind = %q, want artifact", got)
	}
	if p.SkippedLines() != 2 {
		t.Errorf("skipped = %d, want 2", p.SkippedLines())
	}
}

func TestParseContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(DefaultConfig())
	out := make(chan *model.Envelope)
	err := p.Parse(ctx, strings.NewReader(`{"artifact":{"name":"x"}}`+"\n"), out)
	if err != ErrContextCanceled {
		t.Errorf("Parse = %v, want ErrContextCanceled", err)
	}
}

func TestParseUnknownKindsFlowThrough(t *testing.T) {
	envs, _ := parseAll(t, `{"some_future_event":{"x":1},"frame_id":0}`+"\n")
	if len(envs) != 1 {
		t.Fatalf("envelope count = %d, want 1", len(envs))
	}
	if got := envs[0].Kind(); got != "" {
		t.Errorf("kind = %q, want empty for unknown", got)
	}
}
