package model

import (
	"strconv"
	"strings"
)

// CompileID identifies one compilation attempt. Every field is optional; the
// canonical string form is "[!<autograd>_]<frame>_<frame_compile>[_<attempt>]",
// e.g. "0_1", "0_1_2", "!3_0_1".
type CompileID struct {
	CompiledAutogradID *uint64 `json:"compiled_autograd_id,omitempty"`
	FrameID            *uint64 `json:"frame_id,omitempty"`
	FrameCompileID     *uint64 `json:"frame_compile_id,omitempty"`
	Attempt            *uint64 `json:"attempt,omitempty"`
}

// String renders the canonical form. Absent frame fields render as empty
// tokens so the separator positions stay stable.
func (c CompileID) String() string {
	var sb strings.Builder
	if c.CompiledAutogradID != nil {
		sb.WriteByte('!')
		sb.WriteString(strconv.FormatUint(*c.CompiledAutogradID, 10))
		sb.WriteByte('_')
	}
	if c.FrameID != nil {
		sb.WriteString(strconv.FormatUint(*c.FrameID, 10))
	}
	sb.WriteByte('_')
	if c.FrameCompileID != nil {
		sb.WriteString(strconv.FormatUint(*c.FrameCompileID, 10))
	}
	if c.Attempt != nil {
		sb.WriteByte('_')
		sb.WriteString(strconv.FormatUint(*c.Attempt, 10))
	}
	return sb.String()
}

// IsZero reports whether no field is set.
func (c CompileID) IsZero() bool {
	return c.CompiledAutogradID == nil && c.FrameID == nil &&
		c.FrameCompileID == nil && c.Attempt == nil
}

// ParseCompileID decodes the canonical string form back into a CompileID.
// Decoding is forgiving: a token that does not parse as a number leaves the
// corresponding field nil instead of failing, so downstream rendering
// degrades to an unlabeled entry rather than aborting.
func ParseCompileID(s string) CompileID {
	s = strings.TrimSpace(s)
	hasAutograd := strings.HasPrefix(s, "!")
	if hasAutograd {
		s = s[1:]
	}

	parts := strings.Split(s, "_")
	num := func(i int) *uint64 {
		if i >= len(parts) {
			return nil
		}
		v, err := strconv.ParseUint(parts[i], 10, 64)
		if err != nil {
			return nil
		}
		return &v
	}

	if hasAutograd {
		return CompileID{
			CompiledAutogradID: num(0),
			FrameID:            num(1),
			FrameCompileID:     num(2),
			Attempt:            num(3),
		}
	}
	return CompileID{
		FrameID:        num(0),
		FrameCompileID: num(1),
		Attempt:        num(2),
	}
}

// DisplayName formats a compile-id string for human-facing listings:
// "0_1" -> "0/1", "0_1_2" -> "0/1 (attempt 2)". The global sentinel maps to
// "Global"; anything unrecognized passes through unchanged.
func DisplayName(compileID string) string {
	if compileID == GlobalKey {
		return "Global"
	}
	parts := strings.Split(compileID, "_")
	switch len(parts) {
	case 2:
		return parts[0] + "/" + parts[1]
	case 3:
		return parts[0] + "/" + parts[1] + " (attempt " + parts[2] + ")"
	default:
		return compileID
	}
}

// GlobalKey groups outputs not tied to a specific compilation.
const GlobalKey = "__global__"

// Uint64 returns a pointer to v, for building CompileID literals.
func Uint64(v uint64) *uint64 { return &v }
