// Package intermediate implements the first stage of tracenav: classifying
// envelopes into category-partitioned JSONL streams and producing a manifest
// that describes the completed set.
package intermediate

import "strings"

// Category is one of the fixed output partitions of the intermediate set.
type Category int

const (
	// CategoryNone means the event kind is internal or unknown and the
	// record is dropped silently.
	CategoryNone Category = iota
	CategoryGraphs
	CategoryCodegen
	CategoryGuards
	CategoryCompilationMetrics
	CategoryTraceEvents
	CategoryArtifacts
	CategoryTensorMetadata
	CategoryExport
)

// Categories lists every real category in stable order.
func Categories() []Category {
	return []Category{
		CategoryGraphs,
		CategoryCodegen,
		CategoryGuards,
		CategoryCompilationMetrics,
		CategoryTraceEvents,
		CategoryArtifacts,
		CategoryTensorMetadata,
		CategoryExport,
	}
}

// Filename returns the on-disk name for the category's stream. Trace events
// are a whole-array JSON file (trace viewers expect an array, not JSONL);
// everything else is line-delimited.
func (c Category) Filename() string {
	switch c {
	case CategoryGraphs:
		return "graphs.jsonl"
	case CategoryCodegen:
		return "codegen.jsonl"
	case CategoryGuards:
		return "guards.jsonl"
	case CategoryCompilationMetrics:
		return "compilation_metrics.jsonl"
	case CategoryTraceEvents:
		return "trace_events.json"
	case CategoryArtifacts:
		return "artifacts.jsonl"
	case CategoryTensorMetadata:
		return "tensor_metadata.jsonl"
	case CategoryExport:
		return "export.jsonl"
	default:
		return ""
	}
}

func (c Category) String() string {
	switch c {
	case CategoryGraphs:
		return "graphs"
	case CategoryCodegen:
		return "codegen"
	case CategoryGuards:
		return "guards"
	case CategoryCompilationMetrics:
		return "compilation_metrics"
	case CategoryTraceEvents:
		return "trace_events"
	case CategoryArtifacts:
		return "artifacts"
	case CategoryTensorMetadata:
		return "tensor_metadata"
	case CategoryExport:
		return "export"
	default:
		return "none"
	}
}

// Classify maps an event-kind tag to its output category. The mapping is a
// static total function: unknown or internal tags map to CategoryNone and are
// dropped, never treated as an error, since the upstream log grows new kinds
// faster than the renderer.
func Classify(kind string) Category {
	switch kind {
	case "dynamo_output_graph",
		"optimize_ddp_split_graph",
		"optimize_ddp_split_child",
		"compiled_autograd_graph",
		"aot_forward_graph",
		"aot_backward_graph",
		"aot_inference_graph",
		"aot_joint_graph",
		"inductor_pre_grad_graph",
		"inductor_post_grad_graph",
		"graph_dump":
		return CategoryGraphs

	case "inductor_output_code", "dynamo_cpp_guards_str":
		return CategoryCodegen

	case "dynamo_guards",
		"symbolic_shape_specialization",
		"guard_added_fast",
		"propagate_real_tensors_provenance",
		"guard_added",
		"create_unbacked_symbol",
		"expression_created":
		return CategoryGuards

	case "compilation_metrics",
		"bwd_compilation_metrics",
		"aot_autograd_backward_compilation_metrics",
		"dynamo_start",
		"stack":
		return CategoryCompilationMetrics

	case "chromium_event":
		return CategoryTraceEvents

	case "artifact", "dump_file", "link":
		return CategoryArtifacts

	case "describe_tensor", "describe_storage", "describe_source":
		return CategoryTensorMetadata

	case "missing_fake_kernel", "mismatched_fake_kernel", "exported_program":
		return CategoryExport
	}

	// "str" is the string-table side channel; everything else is unknown.
	return CategoryNone
}

// IsCacheArtifactName reports whether an artifact name routes to the cache
// renderer instead of the generic-artifacts renderer. Name-substring dispatch
// is the upstream convention; both renderers must share this single check.
func IsCacheArtifactName(name string) bool {
	return strings.Contains(name, "cache_hit") ||
		strings.Contains(name, "cache_miss") ||
		strings.Contains(name, "cache_bypass")
}
