package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tracenav/tracenav/pkg/intermediate"
)

// writeFixture lays out an intermediate directory from raw stream contents
// and returns a context over it.
func writeFixture(t *testing.T, cfg Config, streams map[string]string) *Context {
	t.Helper()
	dir := t.TempDir()

	var files []string
	for name, content := range streams {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, name)
	}

	manifest := &intermediate.Manifest{
		Version:     intermediate.ManifestVersion,
		RunID:       "test-run",
		GeneratedAt: "2026-08-23T00:00:00Z",
		SourceFile:  "trace.log",
		ParseMode:   "normal",
		Files:       files,
	}
	return NewContext(dir, manifest, cfg)
}

func findFile(t *testing.T, out *Output, path string) string {
	t.Helper()
	for _, f := range out.Files {
		if f.Path == path {
			return f.Content
		}
	}
	t.Fatalf("no output file %q; have %v", path, filePaths(out))
	return ""
}

func filePaths(out *Output) []string {
	var paths []string
	for _, f := range out.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

func TestArtifactsModuleGraphNaming(t *testing.T) {
	ctx := writeFixture(t, Config{}, map[string]string{
		"graphs.jsonl": `{"type":"dynamo_output_graph","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{},"payload":"class GraphModule: ..."}
{"type":"optimize_ddp_split_child","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"name":"submod_1"},"payload":"child graph"}
`,
		"codegen.jsonl": `{"type":"inductor_output_code","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"filename":"/tmp/torchinductor/ab/cabc123.py"},"payload":"compiled code"}
`,
	})

	out, err := NewArtifactsModule(false).Render(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if got := findFile(t, out, "0_0/dynamo_output_graph.txt"); got != "class GraphModule: ..." {
		t.Errorf("graph content = %q", got)
	}
	findFile(t, out, "0_0/optimize_ddp_split_child_submod_1.txt")
	findFile(t, out, "0_0/inductor_output_code_cabc123.txt")

	if len(out.DirectoryEntries["0_0"]) != 3 {
		t.Errorf("directory entries = %d, want 3", len(out.DirectoryEntries["0_0"]))
	}
}

func TestCacheDispatchIsExclusive(t *testing.T) {
	// One generic artifact and one cache artifact: the artifacts module must
	// own only the former, the cache module only the latter.
	streams := map[string]string{
		"artifacts.jsonl": `{"type":"artifact","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"name":"fx_graph_runnable","encoding":"string"},"payload":"runnable"}
{"type":"artifact","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"name":"fx_graph_cache_miss","encoding":"json"},"payload":"{\"key\":\"abc\"}"}
`,
	}

	artOut, err := NewArtifactsModule(false).Render(writeFixture(t, Config{}, streams))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range artOut.Files {
		if strings.Contains(f.Path, "cache_miss") {
			t.Errorf("artifacts module claimed cache artifact %q", f.Path)
		}
	}
	findFile(t, artOut, "0_0/fx_graph_runnable.txt")

	cacheOut, err := NewCacheModule().Render(writeFixture(t, Config{}, streams))
	if err != nil {
		t.Fatal(err)
	}
	if len(cacheOut.Files) != 1 {
		t.Fatalf("cache module files = %v, want exactly the cache artifact", filePaths(cacheOut))
	}
	findFile(t, cacheOut, "0_0/fx_graph_cache_miss.json")

	entries := cacheOut.DirectoryEntries["0_0"]
	if len(entries) != 1 || entries[0].Suffix != "❌" {
		t.Errorf("cache entry = %+v, want miss glyph", entries)
	}
	if cacheOut.IndexContribution == nil || !strings.Contains(cacheOut.IndexContribution.HTML, "1 miss(es)") {
		t.Errorf("cache summary = %+v", cacheOut.IndexContribution)
	}
}

func TestGuardsModuleRendersTableAndCppString(t *testing.T) {
	ctx := writeFixture(t, Config{}, map[string]string{
		"guards.jsonl": `{"type":"dynamo_guards","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{},"payload":"[{\"code\":\"x.size(0) == 10\",\"type\":\"SHAPE_ENV\"}]"}
`,
		"codegen.jsonl": `{"type":"dynamo_cpp_guards_str","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{},"payload":"// guard code"}
`,
	})

	out, err := NewGuardsModule(false).Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	table := findFile(t, out, "0_0/dynamo_guards.html")
	if !strings.Contains(table, "x.size(0) == 10") {
		t.Errorf("guard table missing guard code:\n%s", table)
	}
	if got := findFile(t, out, "0_0/dynamo_cpp_guards_str.txt"); got != "// guard code" {
		t.Errorf("cpp guards = %q", got)
	}
}

func TestMetricsModuleFailurePage(t *testing.T) {
	ctx := writeFixture(t, Config{}, map[string]string{
		"compilation_metrics.jsonl": `{"type":"compilation_metrics","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"co_name":"forward","fail_type":"graph_break","fail_reason":"unsupported op"}}
{"type":"compilation_metrics","compile_id":"1_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"co_name":"helper","entire_frame_compile_time_s":1.5,"graph_op_count":12}}
`,
	})

	out, err := NewMetricsModule(false).Render(ctx)
	if err != nil {
		t.Fatal(err)
	}

	failed := findFile(t, out, "0_0/compilation_metrics.html")
	if !strings.Contains(failed, "Compilation Failed") || !strings.Contains(failed, "unsupported op") {
		t.Errorf("failed page missing failure info")
	}
	ok := findFile(t, out, "1_0/compilation_metrics.html")
	if !strings.Contains(ok, "Compilation Successful") || !strings.Contains(ok, "1.500s") {
		t.Errorf("success page missing timing")
	}

	failures := findFile(t, out, "failures_and_restarts.html")
	if !strings.Contains(failures, "graph_break") || !strings.Contains(failures, "0_0/compilation_metrics.html") {
		t.Errorf("failures page incomplete:\n%s", failures)
	}
	if out.IndexContribution == nil || !strings.Contains(out.IndexContribution.HTML, "1 failure(s)") {
		t.Errorf("index contribution = %+v", out.IndexContribution)
	}
}

func TestMetricsModuleNoFailuresNoGlobalPage(t *testing.T) {
	ctx := writeFixture(t, Config{}, map[string]string{
		"compilation_metrics.jsonl": `{"type":"compilation_metrics","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"co_name":"forward"}}
`,
	})
	out, err := NewMetricsModule(false).Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range out.Files {
		if f.Path == "failures_and_restarts.html" {
			t.Error("failures page emitted with no failures")
		}
	}
	if out.IndexContribution != nil {
		t.Errorf("unexpected index contribution %+v", out.IndexContribution)
	}
}

func TestContextMissingCategoryReadsEmpty(t *testing.T) {
	ctx := writeFixture(t, Config{}, nil)
	records, err := ctx.ReadCategory(intermediate.CategoryGuards)
	if err != nil {
		t.Fatalf("missing file should read empty, got %v", err)
	}
	if records != nil {
		t.Errorf("records = %v, want nil", records)
	}
}

func TestDirectoryModuleStatusAndArtifacts(t *testing.T) {
	ctx := writeFixture(t, Config{}, map[string]string{
		"graphs.jsonl": `{"type":"dynamo_output_graph","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{},"payload":"g"}
`,
		"compilation_metrics.jsonl": `{"type":"compilation_metrics","compile_id":"0_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"co_name":"forward"}}
{"type":"compilation_metrics","compile_id":"1_0","timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"fail_type":"graph_break"}}
`,
	})

	out, err := NewDirectoryModule().Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	content := findFile(t, out, "compile_directory.json")

	if !strings.Contains(content, `"display_name": "0/0"`) {
		t.Errorf("directory missing display name:\n%s", content)
	}
	if !strings.Contains(content, `"dynamo_output_graph.txt"`) {
		t.Errorf("directory missing graph artifact")
	}
	if !strings.Contains(content, `"status": "failure"`) || !strings.Contains(content, `"status": "success"`) {
		t.Errorf("directory statuses wrong:\n%s", content)
	}
}

func TestExportModuleGatedByMode(t *testing.T) {
	streams := map[string]string{
		"export.jsonl": `{"type":"missing_fake_kernel","compile_id":null,"timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{"op":"my_op","reason":"no kernel"}}
{"type":"exported_program","compile_id":null,"timestamp":"t","thread":1,"pathname":"p","lineno":1,"metadata":{},"payload":"class Exported: ..."}
`,
	}

	off, err := NewExportModule().Render(writeFixture(t, Config{}, streams))
	if err != nil {
		t.Fatal(err)
	}
	if len(off.Files) != 0 {
		t.Errorf("export module produced files outside export mode: %v", filePaths(off))
	}

	on, err := NewExportModule().Render(writeFixture(t, Config{ExportMode: true}, streams))
	if err != nil {
		t.Fatal(err)
	}
	index := findFile(t, on, "index.html")
	if !strings.Contains(index, "my_op") || !strings.Contains(index, "Export failed") {
		t.Errorf("export index incomplete:\n%s", index)
	}
	if on.IndexContribution == nil || !strings.Contains(on.IndexContribution.HTML, "1 export failure(s)") {
		t.Errorf("export contribution = %+v", on.IndexContribution)
	}
}

func TestGenerateIndex(t *testing.T) {
	combined := NewCombinedOutput()
	combined.DirectoryEntries["0_0"] = []DirectoryEntry{
		{Name: "compilation_metrics.html", URL: "0_0/compilation_metrics.html"},
		{Name: "fx_graph_cache_hit.json", URL: "0_0/fx_graph_cache_hit.json", Suffix: "✅"},
	}
	combined.DirectoryEntries[GlobalKey] = []DirectoryEntry{
		{Name: "chromium_events.json", URL: "chromium_events.json"},
	}
	combined.IndexContributions = []IndexContribution{
		{Section: "Stack Trie", HTML: "<div class='stack-trie'>trie</div>"},
	}

	html, err := GenerateIndex(combined, Config{CustomHeaderHTML: "<p>run 42</p>"})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`id="0_0"`,
		"Compilation 0/0",
		"fx_graph_cache_hit.json",
		"✅",
		"chromium_events.json",
		"stack-trie",
		"<p>run 42</p>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("index missing %q", want)
		}
	}
}
