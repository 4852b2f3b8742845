package run

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tracenav/tracenav/pkg/intermediate"
)

const sampleLog = `{"timestamp":"2024-01-01T00:00:00","thread":1,"pathname":"torch/_dynamo/convert_frame.py","lineno":1,"str":["train.py",0]}
{"timestamp":"2024-01-01T00:00:01","thread":1,"pathname":"torch/_dynamo/convert_frame.py","lineno":2,"frame_id":0,"frame_compile_id":0,"attempt":0,"dynamo_start":{},"stack":[{"filename":0,"line":100,"name":"main"}]}
{"timestamp":"2024-01-01T00:00:02","thread":1,"pathname":"torch/_dynamo/output_graph.py","lineno":3,"frame_id":0,"frame_compile_id":0,"attempt":0,"dynamo_output_graph":{"sizes":{}}}
	class GraphModule(torch.nn.Module):
	    pass
{"timestamp":"2024-01-01T00:00:03","thread":1,"pathname":"torch/_dynamo/utils.py","lineno":4,"rank":0,"frame_id":0,"frame_compile_id":0,"attempt":0,"compilation_metrics":{"co_name":"main","graph_op_count":3}}
{"timestamp":"2024-01-01T00:00:04","thread":1,"pathname":"torch/_dynamo/utils.py","lineno":5,"chromium_event":{"name":"dynamo","ph":"B","ts":1}}
this line is not an envelope
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunEndToEnd(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report")
	res, err := Run(context.Background(), Options{
		InputPath: writeLog(t, sampleLog),
		OutputDir: out,
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Manifest.TotalEnvelopes != 4 {
		t.Errorf("total envelopes = %d, want 4", res.Manifest.TotalEnvelopes)
	}
	if res.SkippedLines != 1 {
		t.Errorf("skipped lines = %d, want 1", res.SkippedLines)
	}
	if got := res.Manifest.CompileIDs; len(got) != 1 || got[0] != "0_0" {
		t.Errorf("compile ids = %v", got)
	}

	index, err := os.ReadFile(res.IndexPath)
	if err != nil {
		t.Fatalf("index.html not written: %v", err)
	}
	if !strings.Contains(string(index), "Compilation 0/0") {
		t.Error("index missing compile-id section")
	}

	graph, err := os.ReadFile(filepath.Join(out, "0_0", "dynamo_output_graph.txt"))
	if err != nil {
		t.Fatalf("graph artifact not written: %v", err)
	}
	if !strings.Contains(string(graph), "class GraphModule") {
		t.Errorf("graph payload = %q", graph)
	}

	// The intern table made it to disk, and the manifest round-trips.
	if _, err := os.Stat(filepath.Join(out, IntermediateDirName, intermediate.StringTableFilename)); err != nil {
		t.Errorf("string table not written: %v", err)
	}
	m, err := intermediate.ReadManifest(filepath.Join(out, IntermediateDirName))
	if err != nil {
		t.Fatal(err)
	}
	if m.StringTableEntries != 1 {
		t.Errorf("string table entries = %d, want 1", m.StringTableEntries)
	}
	if m.ParseMode != "normal" {
		t.Errorf("parse mode = %q", m.ParseMode)
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	seqOut := filepath.Join(t.TempDir(), "seq")
	if _, err := Run(context.Background(), Options{
		InputPath: writeLog(t, sampleLog),
		OutputDir: seqOut,
	}); err != nil {
		t.Fatal(err)
	}

	parOut := filepath.Join(t.TempDir(), "par")
	if _, err := Run(context.Background(), Options{
		InputPath: writeLog(t, sampleLog),
		OutputDir: parOut,
		Parallel:  true,
	}); err != nil {
		t.Fatal(err)
	}

	seqIndex, err := os.ReadFile(filepath.Join(seqOut, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	parIndex, err := os.ReadFile(filepath.Join(parOut, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(seqIndex) != string(parIndex) {
		t.Error("parallel index differs from sequential")
	}
}

func TestRunStrictFailsOnUnparseableLines(t *testing.T) {
	_, err := Run(context.Background(), Options{
		InputPath: writeLog(t, sampleLog),
		OutputDir: filepath.Join(t.TempDir(), "report"),
		Strict:    true,
	})
	if err == nil || !strings.Contains(err.Error(), "strict mode") {
		t.Errorf("strict run err = %v, want unparseable-line failure", err)
	}
}

func TestRunRefusesNonEmptyOutputDir(t *testing.T) {
	out := t.TempDir()
	if err := os.WriteFile(filepath.Join(out, "existing.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	input := writeLog(t, sampleLog)
	if _, err := Run(context.Background(), Options{InputPath: input, OutputDir: out}); err == nil {
		t.Fatal("run into non-empty dir succeeded without overwrite")
	}
	if _, err := Run(context.Background(), Options{InputPath: input, OutputDir: out, Overwrite: true}); err != nil {
		t.Fatalf("overwrite run failed: %v", err)
	}
}

func TestRunExportMode(t *testing.T) {
	log := `{"timestamp":"t","thread":1,"pathname":"torch/export.py","lineno":1,"missing_fake_kernel":{"op":"aten::custom_op"}}
{"timestamp":"t","thread":1,"pathname":"torch/export.py","lineno":2,"exported_program":{}}
	ExportedProgram()
`
	out := filepath.Join(t.TempDir(), "export")
	res, err := Run(context.Background(), Options{
		InputPath:  writeLog(t, log),
		OutputDir:  out,
		ExportMode: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Manifest.ParseMode != "export" {
		t.Errorf("parse mode = %q", res.Manifest.ParseMode)
	}

	index, err := os.ReadFile(filepath.Join(out, "index.html"))
	if err != nil {
		t.Fatalf("export index not written: %v", err)
	}
	if !strings.Contains(string(index), "aten::custom_op") {
		t.Error("export index missing failure op")
	}
}

func TestRunGzippedInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.log.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(sampleLog)); err != nil {
		t.Fatal(err)
	}
	gz.Close()
	f.Close()

	res, err := Run(context.Background(), Options{
		InputPath: path,
		OutputDir: filepath.Join(dir, "report"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Manifest.TotalEnvelopes != 4 {
		t.Errorf("total envelopes = %d, want 4", res.Manifest.TotalEnvelopes)
	}
}

func TestRunDropsUnknownKinds(t *testing.T) {
	log := `{"timestamp":"t","thread":1,"pathname":"p","lineno":1,"some_future_variant":{}}
{"timestamp":"t","thread":1,"pathname":"p","lineno":2,"frame_id":0,"frame_compile_id":0,"attempt":0,"compilation_metrics":{"co_name":"f"}}
`
	res, err := Run(context.Background(), Options{
		InputPath: writeLog(t, log),
		OutputDir: filepath.Join(t.TempDir(), "report"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.DroppedEnvelopes != 1 {
		t.Errorf("dropped = %d, want 1", res.DroppedEnvelopes)
	}
	if res.Manifest.TotalEnvelopes != 1 {
		t.Errorf("total = %d, want 1", res.Manifest.TotalEnvelopes)
	}
}
