package report

import (
	"strings"
	"testing"

	"github.com/tracenav/tracenav/internal/model"
)

const stackFixture = `{"type":"dynamo_start","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"stack":[{"filename":"train.py","line":100,"name":"main"},{"filename":"model.py","line":10,"name":"forward"}]}}
{"type":"dynamo_start","compile_id":"1_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"stack":[{"filename":"train.py","line":100,"name":"main"},{"filename":"model.py","line":20,"name":"helper"}]}}
{"type":"compilation_metrics","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"co_name":"forward","graph_op_count":5}}
{"type":"compilation_metrics","compile_id":"1_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"co_name":"helper","fail_type":"graph_break"}}
`

// Two call sites compiling the same innermost frame.
const sharedFrameFixture = `{"type":"dynamo_start","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"stack":[{"filename":"train.py","line":100,"name":"main"},{"filename":"model.py","line":10,"name":"forward"}]}}
{"type":"dynamo_start","compile_id":"1_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"stack":[{"filename":"eval.py","line":50,"name":"run"},{"filename":"model.py","line":10,"name":"forward"}]}}
`

func TestStackTrieSharedPrefix(t *testing.T) {
	ctx := writeFixture(t, Config{}, map[string]string{
		"compilation_metrics.jsonl": sharedFrameFixture,
	})

	out, err := NewStackTrieModule().Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.IndexContribution == nil {
		t.Fatal("no index contribution")
	}
	html := out.IndexContribution.HTML

	// The shared compiled frame is the trie root and appears exactly once;
	// the two distinct callers hang beneath it.
	if got := strings.Count(html, "model.py:10 in forward"); got != 1 {
		t.Errorf("shared frame rendered %d times, want 1:\n%s", got, html)
	}
	if !strings.Contains(html, "train.py:100 in main") || !strings.Contains(html, "eval.py:50 in run") {
		t.Errorf("callers missing from trie:\n%s", html)
	}
	if strings.Index(html, "model.py:10 in forward") > strings.Index(html, "train.py:100 in main") {
		t.Errorf("compiled frame should render above its callers:\n%s", html)
	}
}

func TestStackTrieSharedCallerSplitsRoots(t *testing.T) {
	ctx := writeFixture(t, Config{}, map[string]string{
		"compilation_metrics.jsonl": stackFixture,
	})

	out, err := NewStackTrieModule().Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.IndexContribution == nil {
		t.Fatal("no index contribution")
	}
	html := out.IndexContribution.HTML

	// Distinct compiled frames sharing only their caller form separate
	// subtrees, each repeating the caller beneath its root.
	if got := strings.Count(html, "train.py:100 in main"); got != 2 {
		t.Errorf("shared caller rendered %d times, want 2:\n%s", got, html)
	}
	if strings.Index(html, "model.py:10 in forward") > strings.Index(html, "train.py:100 in main") {
		t.Errorf("compiled frame should render above its caller:\n%s", html)
	}
	if !strings.Contains(html, "class='status-ok'>0_0</a>") {
		t.Errorf("0_0 not classed ok:\n%s", html)
	}
	if !strings.Contains(html, "class='status-error'>1_0</a>") {
		t.Errorf("1_0 not classed error:\n%s", html)
	}
}

func TestStackTrieDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		ctx := writeFixture(t, Config{}, map[string]string{
			"compilation_metrics.jsonl": stackFixture,
		})
		out, err := NewStackTrieModule().Render(ctx)
		if err != nil {
			t.Fatal(err)
		}
		ctx2 := writeFixture(t, Config{}, map[string]string{
			"compilation_metrics.jsonl": stackFixture,
		})
		out2, err := NewStackTrieModule().Render(ctx2)
		if err != nil {
			t.Fatal(err)
		}
		if out.IndexContribution.HTML != out2.IndexContribution.HTML {
			t.Fatal("trie render is not deterministic for identical input")
		}
	}
}

func TestStackTrieEmptyContributesNothing(t *testing.T) {
	ctx := writeFixture(t, Config{}, nil)
	out, err := NewStackTrieModule().Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.IndexContribution != nil {
		t.Errorf("empty trie contributed %+v", out.IndexContribution)
	}
}

func TestStripHarnessSuffix(t *testing.T) {
	stack := model.Stack{
		{Filename: "train.py", Line: 1, Name: "main"},
		{Filename: "/pkg#link-tree/torch/_dynamo/convert_frame.py", Line: 10, Name: "catch_errors"},
		{Filename: "torch/_dynamo/convert_frame.py", Line: 20, Name: "_convert_frame"},
		{Filename: "torch/_dynamo/convert_frame.py", Line: 30, Name: "_convert_frame_assert"},
	}
	got := stripHarnessSuffix(stack)
	if len(got) != 1 || got[0].Name != "main" {
		t.Errorf("stripHarnessSuffix = %+v, want only user frame", got)
	}

	// Stacks without the suffix are untouched.
	plain := model.Stack{{Filename: "a.py", Line: 1, Name: "f"}}
	if got := stripHarnessSuffix(plain); len(got) != 1 {
		t.Errorf("plain stack modified: %+v", got)
	}
}

func TestStatusClassPriorities(t *testing.T) {
	u64 := func(v uint64) *uint64 { return &v }
	s := func(v string) *string { return &v }

	index := map[string][]CompileMetrics{
		"err":   {{FailType: s("x"), GraphOpCount: u64(0)}},
		"empty": {{GraphOpCount: u64(0)}},
		"break": {{GraphOpCount: u64(3), RestartReasons: []string{"r"}}},
		"ok":    {{GraphOpCount: u64(3)}},
	}

	tests := []struct {
		id   string
		want string
	}{
		{"err", "status-error"},
		{"empty", "status-empty"},
		{"break", "status-break"},
		{"ok", "status-ok"},
		{"absent", "status-missing"},
	}
	for _, tt := range tests {
		if got := statusClass(index, tt.id); got != tt.want {
			t.Errorf("statusClass(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestFormatFrameEvalWithKeyLink(t *testing.T) {
	key := frameKey{filename: "<eval_with_key>.3", line: 7, name: "forward"}
	got := formatFrame(key)
	if !strings.Contains(got, "dump_file/eval_with_key_3.html#L7") {
		t.Errorf("formatFrame = %q, want dump-file link", got)
	}
}
