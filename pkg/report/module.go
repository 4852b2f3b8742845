// Package report implements the rendering stage: pluggable modules that read
// category streams produced by the intermediate stage and emit report files,
// navigation entries, and index-page sections.
package report

import (
	"github.com/tracenav/tracenav/pkg/intermediate"
)

// GlobalKey groups directory entries and files not tied to a specific
// compile id.
const GlobalKey = "__global__"

// Module is a stateless transformation from category streams to output
// files. Modules subscribe to categories, read them through the Context, and
// never touch the filesystem directly.
type Module interface {
	// ID is the short identifier used in file naming and flags.
	ID() string

	// Name is the human-readable name used in logs.
	Name() string

	// Subscriptions lists the categories this module reads.
	Subscriptions() []intermediate.Category

	// Render produces the module's outputs. An error fails only this
	// module; the registry isolates it from the rest of the report.
	Render(ctx *Context) (*Output, error)
}

// File is one output file: a path relative to the report root and its
// content.
type File struct {
	Path    string
	Content string
}

// DirectoryEntry is one navigation link in a compile-id section of the
// index.
type DirectoryEntry struct {
	// Name is the link text.
	Name string

	// URL is relative to the report root, or external.
	URL string

	// Suffix is appended after the link (cache-outcome glyphs, counts).
	Suffix string
}

// IndexContribution is a standalone HTML section for the index page.
type IndexContribution struct {
	Section string
	HTML    string
}

// Output is everything one module produced in a render pass.
type Output struct {
	Files []File

	// DirectoryEntries is keyed by compile-id string, or GlobalKey for
	// entries that belong to the run as a whole.
	DirectoryEntries map[string][]DirectoryEntry

	IndexContribution *IndexContribution
}

// NewOutput returns an empty output ready for appending.
func NewOutput() *Output {
	return &Output{DirectoryEntries: make(map[string][]DirectoryEntry)}
}

// AddFile appends an output file.
func (o *Output) AddFile(path, content string) {
	o.Files = append(o.Files, File{Path: path, Content: content})
}

// AddEntry appends a directory entry under the given compile-id key.
func (o *Output) AddEntry(compileID string, entry DirectoryEntry) {
	o.DirectoryEntries[compileID] = append(o.DirectoryEntries[compileID], entry)
}

// Config is the render-time configuration shared by all modules.
type Config struct {
	// PlainText disables syntax highlighting; payloads render inside
	// <pre> blocks as-is.
	PlainText bool

	// CustomHeaderHTML is injected at the top of the index page.
	CustomHeaderHTML string

	// ExportMode selects the export-diagnostics registry.
	ExportMode bool
}

// CombinedOutput is the merge of every module's output, in registration
// order.
type CombinedOutput struct {
	Files              []File
	DirectoryEntries   map[string][]DirectoryEntry
	IndexContributions []IndexContribution
}

// NewCombinedOutput returns an empty combined output.
func NewCombinedOutput() *CombinedOutput {
	return &CombinedOutput{DirectoryEntries: make(map[string][]DirectoryEntry)}
}

// Merge folds one module's output into the combined result.
func (c *CombinedOutput) Merge(o *Output) {
	if o == nil {
		return
	}
	c.Files = append(c.Files, o.Files...)
	for id, entries := range o.DirectoryEntries {
		c.DirectoryEntries[id] = append(c.DirectoryEntries[id], entries...)
	}
	if o.IndexContribution != nil {
		c.IndexContributions = append(c.IndexContributions, *o.IndexContribution)
	}
}
