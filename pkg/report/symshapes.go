package report

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/tracenav/tracenav/pkg/intermediate"
)

// SymbolicShapesModule renders the provenance of symbolic-shape guards: for
// each guard_added / propagate_real_tensors_provenance record, a page with
// the guard expression, the user and framework stacks that produced it, the
// reconstructed expression tree, and the frame locals.
type SymbolicShapesModule struct{}

// NewSymbolicShapesModule creates the symbolic shapes module.
func NewSymbolicShapesModule() *SymbolicShapesModule {
	return &SymbolicShapesModule{}
}

func (m *SymbolicShapesModule) ID() string   { return "symbolic_shapes" }
func (m *SymbolicShapesModule) Name() string { return "Symbolic Shapes" }

func (m *SymbolicShapesModule) Subscriptions() []intermediate.Category {
	return []intermediate.Category{intermediate.CategoryGuards}
}

// ExpressionInfo is one node of the flat expression table built from
// expression_created records. ArgumentIDs reference other nodes by id.
type ExpressionInfo struct {
	Result      *string  `json:"result"`
	Method      *string  `json:"method"`
	Arguments   []string `json:"arguments"`
	ArgumentIDs []uint64 `json:"argument_ids"`
}

// maxExpressionDepth bounds tree rendering; guard expressions deeper than
// this are almost always cyclic provenance data anyway.
const maxExpressionDepth = 20

func (m *SymbolicShapesModule) Render(ctx *Context) (*Output, error) {
	exprIndex, err := m.buildExpressionIndex(ctx)
	if err != nil {
		return nil, err
	}

	records, err := ctx.ReadCategory(intermediate.CategoryGuards)
	if err != nil {
		return nil, err
	}

	out := NewOutput()
	count := 0
	for _, rec := range records {
		if rec.Kind != "propagate_real_tensors_provenance" && rec.Kind != "guard_added" {
			continue
		}
		compileID := rec.CompileIDOr("unknown")

		filename := fmt.Sprintf("symbolic_guard_information_%d.html", count)
		filePath := path.Join(compileID, filename)
		out.AddFile(filePath, m.renderGuardPage(&rec, exprIndex))
		out.AddEntry(compileID, DirectoryEntry{Name: filename, URL: filePath})
		count++
	}

	return out, nil
}

func (m *SymbolicShapesModule) buildExpressionIndex(ctx *Context) (map[uint64]ExpressionInfo, error) {
	records, err := ctx.EntriesByKind(intermediate.CategoryGuards, "expression_created")
	if err != nil {
		return nil, err
	}
	index := make(map[uint64]ExpressionInfo)
	for _, rec := range records {
		var body struct {
			ID uint64 `json:"id"`
			ExpressionInfo
		}
		if err := json.Unmarshal(rec.Metadata, &body); err != nil {
			continue
		}
		index[body.ID] = body.ExpressionInfo
	}
	return index, nil
}

func (m *SymbolicShapesModule) renderGuardPage(rec *intermediate.Record, exprIndex map[uint64]ExpressionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Symbolic Guard Information - %s</h1>\n", esc(rec.Kind))

	if expr := rec.MetadataString("expr", ""); expr != "" {
		b.WriteString("<h2>Expression</h2>\n")
		b.WriteString(preBlock(expr))
		b.WriteString("\n")
	}

	writeStringStack(&b, rec.MetadataField("user_stack"), "User Stack", true)
	writeStringStack(&b, rec.MetadataField("stack"), "Framework Stack", false)

	if raw := rec.MetadataField("expr_node_id"); raw != nil {
		var nodeID uint64
		if err := json.Unmarshal(raw, &nodeID); err == nil {
			b.WriteString("<details>\n<summary>Expression Tree</summary>\n<div class=\"expr-tree\">")
			visited := make(map[uint64]bool)
			renderExpressionTree(&b, nodeID, exprIndex, visited, 0)
			b.WriteString("</div>\n</details>\n")
		}
	}

	if raw := rec.MetadataField("frame_locals"); raw != nil {
		b.WriteString("<details>\n<summary>Frame Locals</summary>\n")
		b.WriteString(preBlock(prettyJSON(string(raw))))
		b.WriteString("\n</details>\n")
	}

	return htmlPage("Symbolic Guard Information", b.String())
}

// writeStringStack renders a metadata stack given as an array of
// pre-formatted strings.
func writeStringStack(b *strings.Builder, raw json.RawMessage, title string, open bool) {
	if raw == nil {
		return
	}
	var frames []string
	if err := json.Unmarshal(raw, &frames); err != nil || len(frames) == 0 {
		return
	}
	if open {
		b.WriteString("<details open>\n")
	} else {
		b.WriteString("<details>\n")
	}
	fmt.Fprintf(b, "<summary>%s</summary>\n<pre>", esc(title))
	for _, f := range frames {
		b.WriteString(esc(f))
		b.WriteByte('\n')
	}
	b.WriteString("</pre>\n</details>\n")
}

// renderExpressionTree walks the flat expression table recursively. The
// visited set breaks cycles in malformed provenance; the depth cap bounds
// legitimately deep trees.
func renderExpressionTree(b *strings.Builder, nodeID uint64, index map[uint64]ExpressionInfo, visited map[uint64]bool, depth int) {
	if depth > maxExpressionDepth {
		b.WriteString("<div class=\"expr-node\">... (max depth)</div>")
		return
	}
	if visited[nodeID] {
		fmt.Fprintf(b, "<div class=\"expr-node\">Node %d (cycle)</div>", nodeID)
		return
	}
	visited[nodeID] = true

	info, ok := index[nodeID]
	if !ok {
		fmt.Fprintf(b, "<div class=\"expr-node\">Node %d (not found)</div>", nodeID)
		return
	}

	b.WriteString("<div class=\"expr-node\">")
	if info.Result != nil {
		fmt.Fprintf(b, "<strong>%s</strong>", esc(*info.Result))
	}
	if info.Method != nil {
		fmt.Fprintf(b, " (%s)", esc(*info.Method))
	}
	if len(info.Arguments) > 0 {
		escaped := make([]string, len(info.Arguments))
		for i, a := range info.Arguments {
			escaped[i] = esc(a)
		}
		fmt.Fprintf(b, "<br>Args: %s", strings.Join(escaped, ", "))
	}
	b.WriteString("</div>\n")

	for _, argID := range info.ArgumentIDs {
		renderExpressionTree(b, argID, index, visited, depth+1)
	}
}
