package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/tracenav/tracenav/internal/model"
	"github.com/tracenav/tracenav/pkg/intermediate"
)

// StackTrieModule collapses the entry stacks of every compilation into one
// shared prefix tree on the index page, so a model compiled from hundreds of
// call sites reads as a handful of distinct entry points.
type StackTrieModule struct{}

// NewStackTrieModule creates the stack trie module.
func NewStackTrieModule() *StackTrieModule {
	return &StackTrieModule{}
}

func (m *StackTrieModule) ID() string   { return "stack_trie" }
func (m *StackTrieModule) Name() string { return "Stack Trie" }

func (m *StackTrieModule) Subscriptions() []intermediate.Category {
	return []intermediate.Category{intermediate.CategoryCompilationMetrics}
}

func (m *StackTrieModule) Render(ctx *Context) (*Output, error) {
	metricsIndex, err := m.buildMetricsIndex(ctx)
	if err != nil {
		return nil, err
	}

	trie := newTrieNode()
	records, err := ctx.EntriesByKind(intermediate.CategoryCompilationMetrics, "dynamo_start")
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		raw := rec.MetadataField("stack")
		if raw == nil {
			continue
		}
		var stack model.Stack
		if err := json.Unmarshal(raw, &stack); err != nil {
			continue
		}
		stack = stripHarnessSuffix(stack)
		// Insert innermost-frame-first so compilations of the same frame
		// merge at the root regardless of caller.
		slices.Reverse(stack)
		trie.insert(stack, rec.CompileID)
	}

	out := NewOutput()
	if trie.empty() {
		return out, nil
	}

	var b strings.Builder
	b.WriteString("<details open><summary>Stack Trie</summary><div class='stack-trie'><ul>")
	trie.render(&b, metricsIndex)
	b.WriteString("</ul></div></details>")

	out.IndexContribution = &IndexContribution{Section: "Stack Trie", HTML: b.String()}
	return out, nil
}

// buildMetricsIndex maps compile-id string to its metrics records, used to
// class each terminal link by outcome.
func (m *StackTrieModule) buildMetricsIndex(ctx *Context) (map[string][]CompileMetrics, error) {
	records, err := ctx.EntriesByKind(intermediate.CategoryCompilationMetrics, "compilation_metrics")
	if err != nil {
		return nil, err
	}
	index := make(map[string][]CompileMetrics)
	for _, rec := range records {
		if rec.CompileID == nil {
			continue
		}
		var metrics CompileMetrics
		if err := json.Unmarshal(rec.Metadata, &metrics); err != nil {
			continue
		}
		index[*rec.CompileID] = append(index[*rec.CompileID], metrics)
	}
	return index, nil
}

type harnessFrame struct {
	filename string
	name     string
}

// harnessSuffixSets are the compiler's own entry-point frames, always at the
// tail of a captured stack and stripped before insertion.
var harnessSuffixSets = [][]harnessFrame{
	{
		{"torch/_dynamo/convert_frame.py", "catch_errors"},
		{"torch/_dynamo/convert_frame.py", "_convert_frame"},
		{"torch/_dynamo/convert_frame.py", "_convert_frame_assert"},
	},
	{
		{"torch/_dynamo/convert_frame.py", "__call__"},
		{"torch/_dynamo/convert_frame.py", "__call__"},
		{"torch/_dynamo/convert_frame.py", "__call__"},
	},
}

// stripHarnessSuffix removes a known harness suffix from the stack tail.
// Matching is exact on (simplified filename, function name) pairs.
func stripHarnessSuffix(stack model.Stack) model.Stack {
	for _, suffix := range harnessSuffixSets {
		if len(stack) < len(suffix) {
			continue
		}
		tail := stack[len(stack)-len(suffix):]
		match := true
		for i, target := range suffix {
			if model.SimplifyFilename(tail[i].Filename) != target.filename || tail[i].Name != target.name {
				match = false
				break
			}
		}
		if match {
			stack = stack[:len(stack)-len(suffix)]
		}
	}
	return stack
}

// frameKey is the identity of a trie edge.
type frameKey struct {
	filename string
	line     int
	name     string
	loc      string
}

func keyFor(f model.Frame) frameKey {
	filename := f.Filename
	if filename == "" {
		filename = "(unknown)"
	}
	return frameKey{filename: filename, line: f.Line, name: f.Name, loc: f.Loc}
}

// trieNode preserves child insertion order so the rendered trie is
// deterministic for a given input order.
type trieNode struct {
	terminals []*string // compile-id strings; nil for an unidentified compile
	order     []frameKey
	children  map[frameKey]*trieNode
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[frameKey]*trieNode)}
}

func (n *trieNode) insert(stack model.Stack, compileID *string) {
	cur := n
	for _, frame := range stack {
		key := keyFor(frame)
		child, ok := cur.children[key]
		if !ok {
			child = newTrieNode()
			cur.children[key] = child
			cur.order = append(cur.order, key)
		}
		cur = child
	}
	cur.terminals = append(cur.terminals, compileID)
}

func (n *trieNode) empty() bool {
	return len(n.children) == 0 && len(n.terminals) == 0
}

func (n *trieNode) render(b *strings.Builder, metricsIndex map[string][]CompileMetrics) {
	for _, key := range n.order {
		child := n.children[key]

		var star strings.Builder
		for _, t := range child.terminals {
			if t == nil {
				star.WriteString("(unknown) ")
				continue
			}
			fmt.Fprintf(&star, "<a href='#%s' class='%s'>%s</a> ",
				esc(*t), statusClass(metricsIndex, *t), esc(*t))
		}

		frameHTML := formatFrame(key)

		// A node with siblings gets its own collapsible subtree; a chain of
		// single children renders flat.
		if len(n.children) > 1 {
			fmt.Fprintf(b, "<li><span onclick='toggleList(this)' class='marker'></span>%s\n%s<ul>", star.String(), frameHTML)
			child.render(b, metricsIndex)
			b.WriteString("</ul></li>")
		} else {
			fmt.Fprintf(b, "<li>%s%s</li>\n", star.String(), frameHTML)
			child.render(b, metricsIndex)
		}
	}
}

// statusClass picks the terminal link class from the compile's metrics:
// any failure wins, then an empty graph, then a restarted attempt.
func statusClass(metricsIndex map[string][]CompileMetrics, compileID string) string {
	metrics, ok := metricsIndex[compileID]
	if !ok || len(metrics) == 0 {
		return "status-missing"
	}
	for _, m := range metrics {
		if m.FailType != nil {
			return "status-error"
		}
	}
	for _, m := range metrics {
		if m.GraphOpCount != nil && *m.GraphOpCount == 0 {
			return "status-empty"
		}
	}
	for _, m := range metrics {
		if len(m.RestartReasons) > 0 {
			return "status-break"
		}
	}
	return "status-ok"
}

var evalWithKeyRe = regexp.MustCompile(`<eval_with_key>\.([0-9]+)`)

func formatFrame(key frameKey) string {
	filename := model.SimplifyFilename(key.filename)

	// Frames inside generated modules link into the dump-file viewer.
	if m := evalWithKeyRe.FindStringSubmatch(key.filename); m != nil {
		return fmt.Sprintf("<a href='dump_file/eval_with_key_%s.html#L%d'>%s:%d</a> in %s",
			m[1], key.line, esc(filename), key.line, esc(key.name))
	}

	loc := ""
	if key.loc != "" {
		loc = "<br>&nbsp;&nbsp;&nbsp;&nbsp;" + esc(key.loc)
	}
	return fmt.Sprintf("%s:%d in %s%s", esc(filename), key.line, esc(key.name), loc)
}
