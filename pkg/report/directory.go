package report

import (
	"encoding/json"
	"sort"

	"github.com/tracenav/tracenav/internal/model"
	"github.com/tracenav/tracenav/pkg/intermediate"
)

// DirectoryModule aggregates every category into compile_directory.json: a
// machine-readable map of compile id to its artifacts, links, and coarse
// status, for tools that navigate the report without scraping index.html.
type DirectoryModule struct{}

// NewDirectoryModule creates the directory module.
func NewDirectoryModule() *DirectoryModule {
	return &DirectoryModule{}
}

func (m *DirectoryModule) ID() string   { return "compile_directory" }
func (m *DirectoryModule) Name() string { return "Compile Directory" }

func (m *DirectoryModule) Subscriptions() []intermediate.Category {
	return []intermediate.Category{
		intermediate.CategoryGraphs,
		intermediate.CategoryCodegen,
		intermediate.CategoryGuards,
		intermediate.CategoryCompilationMetrics,
		intermediate.CategoryArtifacts,
	}
}

// directoryRecord is one compile id's slice of compile_directory.json.
type directoryRecord struct {
	DisplayName string              `json:"display_name"`
	Status      string              `json:"status"`
	Artifacts   []directoryArtifact `json:"artifacts"`
	Links       []directoryLink     `json:"links"`
}

type directoryArtifact struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type directoryLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (m *DirectoryModule) Render(ctx *Context) (*Output, error) {
	directory := make(map[string]*directoryRecord)

	get := func(compileID string) *directoryRecord {
		rec, ok := directory[compileID]
		if !ok {
			rec = &directoryRecord{
				DisplayName: model.DisplayName(compileID),
				Status:      "unknown",
			}
			directory[compileID] = rec
		}
		return rec
	}

	for _, cat := range m.Subscriptions() {
		records, err := ctx.ReadCategory(cat)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			entry := get(rec.CompileIDOr(GlobalKey))

			switch rec.Kind {
			case "dynamo_output_graph", "aot_forward_graph", "aot_backward_graph",
				"aot_joint_graph", "aot_inference_graph", "inductor_pre_grad_graph",
				"inductor_post_grad_graph", "optimize_ddp_split_graph",
				"compiled_autograd_graph", "graph_dump":
				entry.Artifacts = append(entry.Artifacts, directoryArtifact{
					Name: rec.Kind + ".txt", Type: "graph",
				})

			case "inductor_output_code":
				name := "inductor_output_code.txt"
				if metaName := rec.MetadataString("filename", ""); metaName != "" {
					if stem := fileStem(metaName); stem != "" {
						name = "inductor_output_code_" + stem + ".txt"
					}
				}
				entry.Artifacts = append(entry.Artifacts, directoryArtifact{Name: name, Type: "codegen"})

			case "dynamo_guards":
				entry.Artifacts = append(entry.Artifacts, directoryArtifact{
					Name: "dynamo_guards.html", Type: "guards",
				})

			case "dynamo_cpp_guards_str":
				entry.Artifacts = append(entry.Artifacts, directoryArtifact{
					Name: "dynamo_cpp_guards_str.txt", Type: "guards",
				})

			case "compilation_metrics":
				entry.Artifacts = append(entry.Artifacts, directoryArtifact{
					Name: "compilation_metrics.html", Type: "metrics",
				})
				if failType := rec.MetadataField("fail_type"); failType != nil && string(failType) != "null" {
					entry.Status = "failure"
				} else if entry.Status == "unknown" {
					entry.Status = "success"
				}

			case "bwd_compilation_metrics":
				entry.Artifacts = append(entry.Artifacts, directoryArtifact{
					Name: "bwd_compilation_metrics.html", Type: "metrics",
				})

			case "artifact":
				name := rec.MetadataString("name", "artifact")
				artifactType := "artifact"
				if intermediate.IsCacheArtifactName(name) {
					artifactType = "cache"
				}
				ext := ".txt"
				if rec.MetadataString("encoding", "string") == "json" {
					ext = ".json"
				}
				entry.Artifacts = append(entry.Artifacts, directoryArtifact{Name: name + ext, Type: artifactType})

			case "link":
				entry.Links = append(entry.Links, directoryLink{
					Name: rec.MetadataString("name", "Link"),
					URL:  rec.MetadataString("url", "#"),
				})
			}
		}
	}

	for _, entry := range directory {
		sort.Slice(entry.Artifacts, func(i, j int) bool {
			return entry.Artifacts[i].Name < entry.Artifacts[j].Name
		})
		entry.Artifacts = dedupArtifacts(entry.Artifacts)
		if entry.Artifacts == nil {
			entry.Artifacts = []directoryArtifact{}
		}
		if entry.Links == nil {
			entry.Links = []directoryLink{}
		}
	}

	content, err := json.MarshalIndent(directory, "", "  ")
	if err != nil {
		return nil, err
	}

	out := NewOutput()
	out.AddFile("compile_directory.json", string(content))
	return out, nil
}

func dedupArtifacts(artifacts []directoryArtifact) []directoryArtifact {
	var dedup []directoryArtifact
	for i, a := range artifacts {
		if i == 0 || a.Name != artifacts[i-1].Name {
			dedup = append(dedup, a)
		}
	}
	return dedup
}
