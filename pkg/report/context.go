package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tracenav/tracenav/pkg/intermediate"
)

// Context gives modules read-only access to a finalized intermediate set.
type Context struct {
	// IntermediateDir holds the category streams and manifest.
	IntermediateDir string

	// Manifest describes the set being rendered.
	Manifest *intermediate.Manifest

	// Config is the shared render configuration.
	Config Config
}

// NewContext builds a render context over a finalized intermediate set.
func NewContext(intermediateDir string, manifest *intermediate.Manifest, cfg Config) *Context {
	return &Context{IntermediateDir: intermediateDir, Manifest: manifest, Config: cfg}
}

// ReadCategory loads every record of a category stream. An absent file reads
// as empty: a run that produced no records of a category is a normal state,
// not an error.
func (c *Context) ReadCategory(cat intermediate.Category) ([]intermediate.Record, error) {
	path := filepath.Join(c.IntermediateDir, cat.Filename())
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", cat.Filename(), err)
	}
	defer f.Close()

	var records []intermediate.Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		var rec intermediate.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", cat.Filename(), line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", cat.Filename(), err)
	}
	return records, nil
}

// EntriesFor returns the category's records for one compile id.
func (c *Context) EntriesFor(cat intermediate.Category, compileID string) ([]intermediate.Record, error) {
	records, err := c.ReadCategory(cat)
	if err != nil {
		return nil, err
	}
	var out []intermediate.Record
	for _, r := range records {
		if r.CompileID != nil && *r.CompileID == compileID {
			out = append(out, r)
		}
	}
	return out, nil
}

// EntriesByKind returns the category's records with the given kind tag.
func (c *Context) EntriesByKind(cat intermediate.Category, kind string) ([]intermediate.Record, error) {
	records, err := c.ReadCategory(cat)
	if err != nil {
		return nil, err
	}
	var out []intermediate.Record
	for _, r := range records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

// GroupByCompileID buckets a category's records by compile-id string.
// Records without a compile id land under GlobalKey.
func (c *Context) GroupByCompileID(cat intermediate.Category) (map[string][]intermediate.Record, error) {
	records, err := c.ReadCategory(cat)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]intermediate.Record)
	for _, r := range records {
		grouped[r.CompileIDOr(GlobalKey)] = append(grouped[r.CompileIDOr(GlobalKey)], r)
	}
	return grouped, nil
}

// ReadTraceEvents loads the whole-array trace file. Absent reads as empty.
func (c *Context) ReadTraceEvents() ([]json.RawMessage, error) {
	path := filepath.Join(c.IntermediateDir, intermediate.CategoryTraceEvents.Filename())
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read trace events: %w", err)
	}
	var events []json.RawMessage
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse trace events: %w", err)
	}
	return events, nil
}

// HasEntries reports, from the manifest alone, whether a category produced
// any records.
func (c *Context) HasEntries(cat intermediate.Category) bool {
	return c.Manifest.HasFile(cat.Filename())
}

// CompileIDs returns the manifest's sorted compile-id list.
func (c *Context) CompileIDs() []string {
	return c.Manifest.CompileIDs
}
