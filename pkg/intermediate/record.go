package intermediate

import "encoding/json"

// Record is one line of a category stream: the uniform normalized shape every
// envelope is reduced to at classification time. The field set is a stable
// on-disk contract; other tools read these files.
type Record struct {
	// Kind is the original envelope kind tag; it determines how Metadata is
	// interpreted downstream.
	Kind string `json:"type"`

	// CompileID is the canonical string form (e.g. "0_0_0"), or null.
	CompileID *string `json:"compile_id"`

	// Rank is the distributed-training rank, when present.
	Rank *uint32 `json:"rank"`

	// Timestamp is the ISO-8601 timestamp from the envelope.
	Timestamp string `json:"timestamp"`

	// Thread is the emitting thread id.
	Thread uint64 `json:"thread"`

	// Pathname and LineNo locate the source of the event in the compiler.
	Pathname string `json:"pathname"`
	LineNo   uint64 `json:"lineno"`

	// Metadata is the kind-specific body, kept opaque until a rendering
	// module decodes it into a typed struct.
	Metadata json.RawMessage `json:"metadata"`

	// Payload is the large inline payload, when one accompanied the event.
	Payload *string `json:"payload,omitempty"`
}

// MetadataString returns a string-valued field of the metadata object, with a
// fallback for absent or mistyped values. Missing fields are data-absent, not
// errors.
func (r *Record) MetadataString(key, fallback string) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(r.Metadata, &m); err != nil {
		return fallback
	}
	raw, ok := m[key]
	if !ok {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fallback
	}
	return s
}

// MetadataField returns the raw value of one metadata field, or nil when the
// field is absent or the metadata is not an object.
func (r *Record) MetadataField(key string) json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(r.Metadata, &m); err != nil {
		return nil
	}
	return m[key]
}

// PayloadString returns the payload or "".
func (r *Record) PayloadString() string {
	if r.Payload == nil {
		return ""
	}
	return *r.Payload
}

// CompileIDOr returns the record's compile id string or the given fallback.
func (r *Record) CompileIDOr(fallback string) string {
	if r.CompileID == nil || *r.CompileID == "" {
		return fallback
	}
	return *r.CompileID
}
