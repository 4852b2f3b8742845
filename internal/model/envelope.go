// Package model defines the core data structures for tracenav: the envelope
// union decoded from structured compiler-trace logs, compile-id identity, and
// call-stack frames.
package model

import (
	"encoding/json"
	"fmt"
)

// Envelope is one raw structured log event. The wire format is a flat JSON
// object where exactly one of the payload-variant keys is present (or the
// event is a bare stack / unknown). Variant bodies stay as raw JSON here and
// are decoded into typed structs only at the point of category-specific
// interpretation.
type Envelope struct {
	// Shared header fields.
	Rank      *uint32 `json:"rank,omitempty"`
	Timestamp string  `json:"timestamp"`
	Thread    uint64  `json:"thread"`
	Pathname  string  `json:"pathname"`
	LineNo    uint64  `json:"lineno"`

	// Compile-id components, emitted at the top level of each record.
	CompiledAutogradID *uint64 `json:"compiled_autograd_id,omitempty"`
	FrameID            *uint64 `json:"frame_id,omitempty"`
	FrameCompileID     *uint64 `json:"frame_compile_id,omitempty"`
	Attempt            *uint64 `json:"attempt,omitempty"`

	// Stack is a sibling of the variant keys: it accompanies dynamo_start,
	// or stands alone as a bare stack event.
	Stack *Stack `json:"stack,omitempty"`

	// Payload is the large inline payload attached by the log reader from
	// the lines following the envelope. Not part of the envelope JSON.
	Payload *string `json:"-"`

	// Graph variants.
	DynamoOutputGraph     json.RawMessage `json:"dynamo_output_graph,omitempty"`
	OptimizeDdpSplitGraph json.RawMessage `json:"optimize_ddp_split_graph,omitempty"`
	OptimizeDdpSplitChild json.RawMessage `json:"optimize_ddp_split_child,omitempty"`
	CompiledAutogradGraph json.RawMessage `json:"compiled_autograd_graph,omitempty"`
	AOTForwardGraph       json.RawMessage `json:"aot_forward_graph,omitempty"`
	AOTBackwardGraph      json.RawMessage `json:"aot_backward_graph,omitempty"`
	AOTInferenceGraph     json.RawMessage `json:"aot_inference_graph,omitempty"`
	AOTJointGraph         json.RawMessage `json:"aot_joint_graph,omitempty"`
	InductorPreGradGraph  json.RawMessage `json:"inductor_pre_grad_graph,omitempty"`
	InductorPostGradGraph json.RawMessage `json:"inductor_post_grad_graph,omitempty"`
	GraphDump             json.RawMessage `json:"graph_dump,omitempty"`

	// Codegen variants.
	InductorOutputCode json.RawMessage `json:"inductor_output_code,omitempty"`
	DynamoCppGuardsStr json.RawMessage `json:"dynamo_cpp_guards_str,omitempty"`

	// Guard and symbolic-shape variants.
	DynamoGuards                   json.RawMessage `json:"dynamo_guards,omitempty"`
	SymbolicShapeSpecialization    json.RawMessage `json:"symbolic_shape_specialization,omitempty"`
	GuardAddedFast                 json.RawMessage `json:"guard_added_fast,omitempty"`
	PropagateRealTensorsProvenance json.RawMessage `json:"propagate_real_tensors_provenance,omitempty"`
	GuardAdded                     json.RawMessage `json:"guard_added,omitempty"`
	CreateUnbackedSymbol           json.RawMessage `json:"create_unbacked_symbol,omitempty"`
	ExpressionCreated              json.RawMessage `json:"expression_created,omitempty"`

	// Compilation-metrics variants.
	CompilationMetrics                     json.RawMessage `json:"compilation_metrics,omitempty"`
	BwdCompilationMetrics                  json.RawMessage `json:"bwd_compilation_metrics,omitempty"`
	AOTAutogradBackwardCompilationMetrics  json.RawMessage `json:"aot_autograd_backward_compilation_metrics,omitempty"`
	DynamoStart                            json.RawMessage `json:"dynamo_start,omitempty"`

	// Trace-span variant (chromium trace event format).
	ChromiumEvent json.RawMessage `json:"chromium_event,omitempty"`

	// Artifact variants.
	Artifact json.RawMessage `json:"artifact,omitempty"`
	DumpFile json.RawMessage `json:"dump_file,omitempty"`
	Link     json.RawMessage `json:"link,omitempty"`

	// Tensor-metadata variants.
	DescribeTensor  json.RawMessage `json:"describe_tensor,omitempty"`
	DescribeStorage json.RawMessage `json:"describe_storage,omitempty"`
	DescribeSource  json.RawMessage `json:"describe_source,omitempty"`

	// Export variants.
	MissingFakeKernel    json.RawMessage `json:"missing_fake_kernel,omitempty"`
	MismatchedFakeKernel json.RawMessage `json:"mismatched_fake_kernel,omitempty"`
	ExportedProgram      json.RawMessage `json:"exported_program,omitempty"`

	// String-table side channel, consumed by the reader and never forwarded.
	Str json.RawMessage `json:"str,omitempty"`
}

// CompileID assembles the identity fields, or nil when none are present.
func (e *Envelope) CompileID() *CompileID {
	if e.CompiledAutogradID == nil && e.FrameID == nil &&
		e.FrameCompileID == nil && e.Attempt == nil {
		return nil
	}
	return &CompileID{
		CompiledAutogradID: e.CompiledAutogradID,
		FrameID:            e.FrameID,
		FrameCompileID:     e.FrameCompileID,
		Attempt:            e.Attempt,
	}
}

// Kind reports which payload variant is populated, checked in rough order of
// frequency in real logs. Returns "" for an envelope with no recognized
// variant. A stack with no dynamo_start is the bare "stack" kind.
func (e *Envelope) Kind() string {
	switch {
	case e.DynamoOutputGraph != nil:
		return "dynamo_output_graph"
	case e.CompilationMetrics != nil:
		return "compilation_metrics"
	case e.DynamoGuards != nil:
		return "dynamo_guards"
	case e.InductorOutputCode != nil:
		return "inductor_output_code"
	case e.ChromiumEvent != nil:
		return "chromium_event"
	case e.DynamoStart != nil:
		return "dynamo_start"
	case e.AOTForwardGraph != nil:
		return "aot_forward_graph"
	case e.AOTBackwardGraph != nil:
		return "aot_backward_graph"
	case e.AOTJointGraph != nil:
		return "aot_joint_graph"
	case e.AOTInferenceGraph != nil:
		return "aot_inference_graph"
	case e.InductorPreGradGraph != nil:
		return "inductor_pre_grad_graph"
	case e.InductorPostGradGraph != nil:
		return "inductor_post_grad_graph"
	case e.OptimizeDdpSplitGraph != nil:
		return "optimize_ddp_split_graph"
	case e.OptimizeDdpSplitChild != nil:
		return "optimize_ddp_split_child"
	case e.CompiledAutogradGraph != nil:
		return "compiled_autograd_graph"
	case e.GraphDump != nil:
		return "graph_dump"
	case e.DynamoCppGuardsStr != nil:
		return "dynamo_cpp_guards_str"
	case e.BwdCompilationMetrics != nil:
		return "bwd_compilation_metrics"
	case e.AOTAutogradBackwardCompilationMetrics != nil:
		return "aot_autograd_backward_compilation_metrics"
	case e.SymbolicShapeSpecialization != nil:
		return "symbolic_shape_specialization"
	case e.GuardAddedFast != nil:
		return "guard_added_fast"
	case e.PropagateRealTensorsProvenance != nil:
		return "propagate_real_tensors_provenance"
	case e.GuardAdded != nil:
		return "guard_added"
	case e.CreateUnbackedSymbol != nil:
		return "create_unbacked_symbol"
	case e.ExpressionCreated != nil:
		return "expression_created"
	case e.Artifact != nil:
		return "artifact"
	case e.DumpFile != nil:
		return "dump_file"
	case e.Link != nil:
		return "link"
	case e.DescribeTensor != nil:
		return "describe_tensor"
	case e.DescribeStorage != nil:
		return "describe_storage"
	case e.DescribeSource != nil:
		return "describe_source"
	case e.MissingFakeKernel != nil:
		return "missing_fake_kernel"
	case e.MismatchedFakeKernel != nil:
		return "mismatched_fake_kernel"
	case e.ExportedProgram != nil:
		return "exported_program"
	case e.Str != nil:
		return "str"
	case e.Stack != nil:
		return "stack"
	}
	return ""
}

var emptyObject = json.RawMessage(`{}`)

// Metadata extracts the metadata value to store on the normalized record for
// the given kind. Variants whose body carries no information of its own
// (graph text lives in the payload) map to an empty object; dynamo_start
// embeds its sibling stack so rendering never needs the raw envelope again.
func (e *Envelope) Metadata(kind string) (json.RawMessage, error) {
	switch kind {
	case "dynamo_output_graph":
		return nonNil(e.DynamoOutputGraph), nil
	case "optimize_ddp_split_child":
		return nonNil(e.OptimizeDdpSplitChild), nil
	case "graph_dump":
		return nonNil(e.GraphDump), nil
	case "inductor_output_code":
		return nonNil(e.InductorOutputCode), nil
	case "symbolic_shape_specialization":
		return nonNil(e.SymbolicShapeSpecialization), nil
	case "guard_added_fast":
		return nonNil(e.GuardAddedFast), nil
	case "propagate_real_tensors_provenance":
		return nonNil(e.PropagateRealTensorsProvenance), nil
	case "guard_added":
		return nonNil(e.GuardAdded), nil
	case "create_unbacked_symbol":
		return nonNil(e.CreateUnbackedSymbol), nil
	case "expression_created":
		return nonNil(e.ExpressionCreated), nil
	case "compilation_metrics":
		return nonNil(e.CompilationMetrics), nil
	case "bwd_compilation_metrics":
		return nonNil(e.BwdCompilationMetrics), nil
	case "aot_autograd_backward_compilation_metrics":
		return nonNil(e.AOTAutogradBackwardCompilationMetrics), nil
	case "artifact":
		return nonNil(e.Artifact), nil
	case "dump_file":
		return nonNil(e.DumpFile), nil
	case "link":
		return nonNil(e.Link), nil
	case "describe_tensor":
		return nonNil(e.DescribeTensor), nil
	case "describe_storage":
		return nonNil(e.DescribeStorage), nil
	case "describe_source":
		return nonNil(e.DescribeSource), nil
	case "missing_fake_kernel":
		return nonNil(e.MissingFakeKernel), nil
	case "mismatched_fake_kernel":
		return nonNil(e.MismatchedFakeKernel), nil

	case "dynamo_start":
		meta := map[string]any{}
		if e.DynamoStart != nil {
			if err := json.Unmarshal(e.DynamoStart, &meta); err != nil {
				return nil, fmt.Errorf("decode dynamo_start body: %w", err)
			}
		}
		if e.Stack != nil {
			meta["stack"] = *e.Stack
		}
		return json.Marshal(meta)

	case "stack":
		if e.Stack == nil {
			return emptyObject, nil
		}
		return json.Marshal(map[string]any{"stack": *e.Stack})

	case "chromium_event":
		return nonNil(e.ChromiumEvent), nil

	default:
		// Graphs whose only content is the payload, guard dumps, and the
		// exported program all carry an empty metadata object.
		return emptyObject, nil
	}
}

func nonNil(m json.RawMessage) json.RawMessage {
	if m == nil {
		return json.RawMessage("null")
	}
	return m
}

// StrEntry is the decoded form of a string-table event: ["text", index].
type StrEntry struct {
	Text  string
	Index uint32
}

// UnmarshalJSON decodes the two-element array form.
func (s *StrEntry) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 2 {
		return fmt.Errorf("string-table entry: want [text, index], got %d elements", len(arr))
	}
	if err := json.Unmarshal(arr[0], &s.Text); err != nil {
		return err
	}
	return json.Unmarshal(arr[1], &s.Index)
}
