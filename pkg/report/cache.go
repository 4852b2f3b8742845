package report

import (
	"fmt"
	"path"
	"strings"

	"github.com/tracenav/tracenav/pkg/intermediate"
)

// CacheModule owns cache-outcome artifacts: it writes their payloads like
// the artifacts module would, but tags each directory entry with an outcome
// glyph and contributes a hit/miss/bypass summary to the index.
type CacheModule struct{}

// NewCacheModule creates the cache module.
func NewCacheModule() *CacheModule {
	return &CacheModule{}
}

func (m *CacheModule) ID() string   { return "cache" }
func (m *CacheModule) Name() string { return "Cache" }

func (m *CacheModule) Subscriptions() []intermediate.Category {
	return []intermediate.Category{intermediate.CategoryArtifacts}
}

type cacheSummary struct {
	hits     int
	misses   int
	bypasses int
}

func (s cacheSummary) total() int { return s.hits + s.misses + s.bypasses }

func (m *CacheModule) Render(ctx *Context) (*Output, error) {
	records, err := ctx.EntriesByKind(intermediate.CategoryArtifacts, "artifact")
	if err != nil {
		return nil, err
	}

	out := NewOutput()
	var summary cacheSummary

	for _, rec := range records {
		name := rec.MetadataString("name", "")
		if !intermediate.IsCacheArtifactName(name) {
			continue
		}
		compileID := rec.CompileIDOr("unknown")

		var suffix string
		switch {
		case strings.Contains(name, "cache_hit"):
			summary.hits++
			suffix = "✅"
		case strings.Contains(name, "cache_miss"):
			summary.misses++
			suffix = "❌"
		case strings.Contains(name, "cache_bypass"):
			summary.bypasses++
			suffix = "❓"
		}

		var filename, content string
		if rec.MetadataString("encoding", "string") == "json" {
			filename = name + ".json"
			content = prettyJSON(rec.PayloadString())
		} else {
			filename = name + ".txt"
			content = rec.PayloadString()
		}

		filePath := path.Join(compileID, filename)
		out.AddFile(filePath, content)
		out.AddEntry(compileID, DirectoryEntry{Name: filename, URL: filePath, Suffix: suffix})
	}

	if summary.total() > 0 {
		out.IndexContribution = &IndexContribution{
			Section: "Cache Status",
			HTML: fmt.Sprintf(
				"<div class=\"cache-summary\">✅ %d hit(s) ❌ %d miss(es) ❓ %d bypass(es) (%d total)</div>",
				summary.hits, summary.misses, summary.bypasses, summary.total()),
		}
	}

	return out, nil
}
