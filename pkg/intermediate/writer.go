package intermediate

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ManifestVersion is bumped when the intermediate on-disk contract changes.
const ManifestVersion = "2.0"

// ManifestFilename is the fixed name of the manifest within an intermediate
// directory.
const ManifestFilename = "manifest.json"

// StringTableFilename is where the source log's intern table is persisted.
const StringTableFilename = "string_table.json"

// ErrFinalized is returned by writes attempted after Finalize.
var ErrFinalized = errors.New("intermediate: writer already finalized")

// Manifest describes a completed intermediate set. Counts and id-sets are
// accumulated monotonically during the write phase and frozen at Finalize.
type Manifest struct {
	Version            string            `json:"version"`
	RunID              string            `json:"run_id"`
	GeneratedAt        string            `json:"generated_at"`
	SourceFile         string            `json:"source_file"`
	SourceFileHash     *string           `json:"source_file_hash"`
	TotalEnvelopes     uint64            `json:"total_envelopes"`
	EnvelopeCounts     map[string]uint64 `json:"envelope_counts"`
	CompileIDs         []string          `json:"compile_ids"`
	StringTableEntries uint64            `json:"string_table_entries"`
	ParseMode          string            `json:"parse_mode"`
	Ranks              []uint32          `json:"ranks"`
	Files              []string          `json:"files"`
}

// HasFile reports whether the named category file produced any records.
func (m *Manifest) HasFile(name string) bool {
	for _, f := range m.Files {
		if f == name {
			return true
		}
	}
	return false
}

// ReadManifest loads a manifest from an intermediate directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

type categoryStream struct {
	file *os.File
	buf  *bufio.Writer
}

// Writer multiplexes normalized records into one append-only stream per
// category, buffers trace events for the whole-array file, and accumulates
// the summary statistics that become the manifest. All counters live on the
// writer value; Finalize freezes them.
//
// A Writer is single-goroutine. An I/O error on any stream is fatal for the
// whole ingestion: the manifest would otherwise misrepresent what exists.
type Writer struct {
	outputDir   string
	streams     map[Category]*categoryStream
	traceEvents []json.RawMessage

	totalEnvelopes uint64
	envelopeCounts map[string]uint64
	compileIDs     map[string]struct{}
	ranks          map[uint32]struct{}

	finalized bool
}

// NewWriter creates the output directory and opens one stream per non-trace
// category.
func NewWriter(outputDir string) (*Writer, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create intermediate dir: %w", err)
	}

	w := &Writer{
		outputDir:      outputDir,
		streams:        make(map[Category]*categoryStream),
		envelopeCounts: make(map[string]uint64),
		compileIDs:     make(map[string]struct{}),
		ranks:          make(map[uint32]struct{}),
	}

	for _, cat := range Categories() {
		if cat == CategoryTraceEvents {
			continue
		}
		path := filepath.Join(outputDir, cat.Filename())
		f, err := os.Create(path)
		if err != nil {
			w.closeAll()
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		w.streams[cat] = &categoryStream{file: f, buf: bufio.NewWriter(f)}
	}

	return w, nil
}

// Write appends one record to the given category's stream and updates the
// run counters. Trace-event records are buffered instead: the trace file must
// be a single JSON array.
func (w *Writer) Write(rec Record, cat Category) error {
	if w.finalized {
		return ErrFinalized
	}

	w.count(rec.Kind, rec.CompileID, rec.Rank)

	if cat == CategoryTraceEvents {
		w.traceEvents = append(w.traceEvents, rec.Metadata)
		return nil
	}

	stream, ok := w.streams[cat]
	if !ok {
		return fmt.Errorf("no stream for category %s", cat)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := stream.buf.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", cat.Filename(), err)
	}
	if err := stream.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("write %s: %w", cat.Filename(), err)
	}
	return nil
}

// WriteTraceEvent buffers a raw trace-viewer event with the same counter
// side effects as Write.
func (w *Writer) WriteTraceEvent(event json.RawMessage) error {
	if w.finalized {
		return ErrFinalized
	}
	w.count("chromium_event", nil, nil)
	w.traceEvents = append(w.traceEvents, event)
	return nil
}

// WriteStringTable persists the source log's intern table alongside the
// category streams.
func (w *Writer) WriteStringTable(table map[uint32]string) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("encode string table: %w", err)
	}
	path := filepath.Join(w.outputDir, StringTableFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write string table: %w", err)
	}
	return nil
}

func (w *Writer) count(kind string, compileID *string, rank *uint32) {
	w.totalEnvelopes++
	w.envelopeCounts[kind]++
	if compileID != nil && *compileID != "" {
		w.compileIDs[*compileID] = struct{}{}
	}
	if rank != nil {
		w.ranks[*rank] = struct{}{}
	}
}

// Finalize flushes every stream, writes the trace-event array file, computes
// the non-empty file list, and writes + returns the manifest. No record may
// be written afterwards.
func (w *Writer) Finalize(sourceFile, parseMode string, stringTableEntries uint64) (*Manifest, error) {
	if w.finalized {
		return nil, ErrFinalized
	}
	w.finalized = true
	defer w.closeAll()

	for cat, stream := range w.streams {
		if err := stream.buf.Flush(); err != nil {
			return nil, fmt.Errorf("flush %s: %w", cat.Filename(), err)
		}
	}

	if w.traceEvents == nil {
		w.traceEvents = []json.RawMessage{}
	}
	traceData, err := json.Marshal(w.traceEvents)
	if err != nil {
		return nil, fmt.Errorf("encode trace events: %w", err)
	}
	tracePath := filepath.Join(w.outputDir, CategoryTraceEvents.Filename())
	if err := os.WriteFile(tracePath, traceData, 0o644); err != nil {
		return nil, fmt.Errorf("write trace events: %w", err)
	}

	var files []string
	for _, cat := range Categories() {
		path := filepath.Join(w.outputDir, cat.Filename())
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		// The trace file is always listed: an empty array is still a
		// complete, loadable trace.
		if info.Size() > 0 || cat == CategoryTraceEvents {
			files = append(files, cat.Filename())
		}
	}

	compileIDs := make([]string, 0, len(w.compileIDs))
	for id := range w.compileIDs {
		compileIDs = append(compileIDs, id)
	}
	sort.Strings(compileIDs)

	ranks := make([]uint32, 0, len(w.ranks))
	for r := range w.ranks {
		ranks = append(ranks, r)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })

	manifest := &Manifest{
		Version:            ManifestVersion,
		RunID:              uuid.NewString(),
		GeneratedAt:        time.Now().UTC().Format(time.RFC3339),
		SourceFile:         sourceFile,
		TotalEnvelopes:     w.totalEnvelopes,
		EnvelopeCounts:     w.envelopeCounts,
		CompileIDs:         compileIDs,
		StringTableEntries: stringTableEntries,
		ParseMode:          parseMode,
		Ranks:              ranks,
		Files:              files,
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.outputDir, ManifestFilename), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return manifest, nil
}

func (w *Writer) closeAll() {
	for _, stream := range w.streams {
		stream.file.Close()
	}
}
