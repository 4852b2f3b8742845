package intermediate

import "testing"

func TestClassifyKnownKinds(t *testing.T) {
	tests := []struct {
		kind string
		want Category
	}{
		{"dynamo_output_graph", CategoryGraphs},
		{"aot_joint_graph", CategoryGraphs},
		{"inductor_post_grad_graph", CategoryGraphs},
		{"inductor_output_code", CategoryCodegen},
		{"dynamo_cpp_guards_str", CategoryCodegen},
		{"dynamo_guards", CategoryGuards},
		{"expression_created", CategoryGuards},
		{"symbolic_shape_specialization", CategoryGuards},
		{"compilation_metrics", CategoryCompilationMetrics},
		{"bwd_compilation_metrics", CategoryCompilationMetrics},
		{"dynamo_start", CategoryCompilationMetrics},
		{"stack", CategoryCompilationMetrics},
		{"chromium_event", CategoryTraceEvents},
		{"artifact", CategoryArtifacts},
		{"dump_file", CategoryArtifacts},
		{"link", CategoryArtifacts},
		{"describe_tensor", CategoryTensorMetadata},
		{"describe_storage", CategoryTensorMetadata},
		{"missing_fake_kernel", CategoryExport},
		{"exported_program", CategoryExport},
	}
	for _, tt := range tests {
		if got := Classify(tt.kind); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestClassifyDropsUnknownKinds(t *testing.T) {
	for _, kind := range []string{"str", "", "some_future_event"} {
		if got := Classify(kind); got != CategoryNone {
			t.Errorf("Classify(%q) = %s, want none", kind, got)
		}
	}
}

func TestCategoryFilenames(t *testing.T) {
	seen := map[string]bool{}
	for _, cat := range Categories() {
		name := cat.Filename()
		if name == "" {
			t.Errorf("category %s has no filename", cat)
		}
		if seen[name] {
			t.Errorf("duplicate filename %q", name)
		}
		seen[name] = true
	}
	if got := CategoryTraceEvents.Filename(); got != "trace_events.json" {
		t.Errorf("trace filename = %q, want trace_events.json", got)
	}
}

func TestIsCacheArtifactName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"fx_graph_cache_hit", true},
		{"fx_graph_cache_miss", true},
		{"autotuning_cache_bypass", true},
		{"fx_graph_runnable", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCacheArtifactName(tt.name); got != tt.want {
			t.Errorf("IsCacheArtifactName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
