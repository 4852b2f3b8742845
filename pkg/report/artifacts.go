package report

import (
	"path"
	"strings"

	"github.com/tracenav/tracenav/pkg/intermediate"
)

// ArtifactsModule writes the per-compilation payload files: captured graphs,
// generated code, and generic named artifacts. Cache-outcome artifacts are
// excluded here; the cache module owns them.
type ArtifactsModule struct {
	plainText bool
}

// NewArtifactsModule creates the artifacts module.
func NewArtifactsModule(plainText bool) *ArtifactsModule {
	return &ArtifactsModule{plainText: plainText}
}

func (m *ArtifactsModule) ID() string   { return "compile_artifacts" }
func (m *ArtifactsModule) Name() string { return "Compile Artifacts" }

func (m *ArtifactsModule) Subscriptions() []intermediate.Category {
	return []intermediate.Category{
		intermediate.CategoryGraphs,
		intermediate.CategoryCodegen,
		intermediate.CategoryArtifacts,
	}
}

func (m *ArtifactsModule) Render(ctx *Context) (*Output, error) {
	out := NewOutput()
	if err := m.renderGraphs(ctx, out); err != nil {
		return nil, err
	}
	if err := m.renderCodegen(ctx, out); err != nil {
		return nil, err
	}
	if err := m.renderArtifacts(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *ArtifactsModule) renderGraphs(ctx *Context, out *Output) error {
	records, err := ctx.ReadCategory(intermediate.CategoryGraphs)
	if err != nil {
		return err
	}
	for _, rec := range records {
		compileID := rec.CompileIDOr("unknown")

		var filename string
		switch rec.Kind {
		case "optimize_ddp_split_child":
			filename = "optimize_ddp_split_child_" + rec.MetadataString("name", "unknown") + ".txt"
		case "graph_dump":
			filename = rec.MetadataString("name", "graph_dump") + ".txt"
		default:
			filename = rec.Kind + ".txt"
		}

		filePath := path.Join(compileID, filename)
		out.AddFile(filePath, rec.PayloadString())
		out.AddEntry(compileID, DirectoryEntry{Name: filename, URL: filePath})
	}
	return nil
}

func (m *ArtifactsModule) renderCodegen(ctx *Context, out *Output) error {
	records, err := ctx.ReadCategory(intermediate.CategoryCodegen)
	if err != nil {
		return err
	}
	for _, rec := range records {
		// dynamo_cpp_guards_str belongs to the guards module.
		if rec.Kind != "inductor_output_code" {
			continue
		}
		compileID := rec.CompileIDOr("unknown")

		base := "inductor_output_code"
		if metaName := rec.MetadataString("filename", ""); metaName != "" {
			if stem := fileStem(metaName); stem != "" {
				base = "inductor_output_code_" + stem
			}
		}

		filename := base + ".txt"
		filePath := path.Join(compileID, filename)
		out.AddFile(filePath, rec.PayloadString())
		out.AddEntry(compileID, DirectoryEntry{Name: filename, URL: filePath})
	}
	return nil
}

func (m *ArtifactsModule) renderArtifacts(ctx *Context, out *Output) error {
	records, err := ctx.ReadCategory(intermediate.CategoryArtifacts)
	if err != nil {
		return err
	}
	for _, rec := range records {
		compileID := rec.CompileIDOr("unknown")

		switch rec.Kind {
		case "artifact":
			name := rec.MetadataString("name", "artifact")
			if intermediate.IsCacheArtifactName(name) {
				continue
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
			out.AddEntry(compileID, DirectoryEntry{Name: filename, URL: filePath})

		case "dump_file":
			name := rec.MetadataString("name", "dump")
			filename := sanitizeDumpFilename(name) + ".html"
			filePath := path.Join("dump_file", filename)
			out.AddFile(filePath, htmlPage(name, anchorSource(rec.PayloadString())))
			// Dump files are run-wide, not per-compilation.
			out.AddEntry(GlobalKey, DirectoryEntry{Name: filename, URL: filePath})

		case "link":
			out.AddEntry(compileID, DirectoryEntry{
				Name: rec.MetadataString("name", "Link"),
				URL:  rec.MetadataString("url", "#"),
			})
		}
	}
	return nil
}

// fileStem returns the metadata filename's base without extension.
func fileStem(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// sanitizeDumpFilename normalizes dump names into safe file stems. The
// compiler emits pseudo-filenames like "<eval_with_key>.3" for generated
// modules; those become eval_with_key_3 so trie frames can link to them.
func sanitizeDumpFilename(name string) string {
	if strings.HasPrefix(name, "<eval_with_key>.") {
		return "eval_with_key_" + strings.TrimPrefix(name, "<eval_with_key>.")
	}
	name = strings.ReplaceAll(name, "<", "")
	name = strings.ReplaceAll(name, ">", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, ".", "_")
	return name
}
