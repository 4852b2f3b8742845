package model

import "testing"

func TestCompileIDString(t *testing.T) {
	tests := []struct {
		name string
		id   CompileID
		want string
	}{
		{"frame_and_compile", CompileID{FrameID: Uint64(0), FrameCompileID: Uint64(1)}, "0_1"},
		{"with_attempt", CompileID{FrameID: Uint64(0), FrameCompileID: Uint64(1), Attempt: Uint64(2)}, "0_1_2"},
		{"with_autograd", CompileID{CompiledAutogradID: Uint64(3), FrameID: Uint64(0), FrameCompileID: Uint64(1)}, "!3_0_1"},
		{"all_fields", CompileID{CompiledAutogradID: Uint64(3), FrameID: Uint64(4), FrameCompileID: Uint64(5), Attempt: Uint64(6)}, "!3_4_5_6"},
	}

	for _, tt := range tests {
		got := tt.id.String()
		if got != tt.want {
			t.Errorf("%s: String() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseCompileIDRoundTrip(t *testing.T) {
	ids := []CompileID{
		{FrameID: Uint64(0), FrameCompileID: Uint64(1)},
		{FrameID: Uint64(0), FrameCompileID: Uint64(1), Attempt: Uint64(2)},
		{CompiledAutogradID: Uint64(3), FrameID: Uint64(0), FrameCompileID: Uint64(1)},
		{CompiledAutogradID: Uint64(3), FrameID: Uint64(0), FrameCompileID: Uint64(1), Attempt: Uint64(9)},
		{FrameID: Uint64(12), FrameCompileID: Uint64(34)},
	}

	for _, id := range ids {
		got := ParseCompileID(id.String())
		if !equalID(got, id) {
			t.Errorf("ParseCompileID(%q) = %+v, want %+v", id.String(), got, id)
		}
	}
}

func TestParseCompileIDForgiving(t *testing.T) {
	// A garbage token yields nil for that field, never an error.
	got := ParseCompileID("x_1")
	if got.FrameID != nil {
		t.Errorf("FrameID = %v, want nil", *got.FrameID)
	}
	if got.FrameCompileID == nil || *got.FrameCompileID != 1 {
		t.Errorf("FrameCompileID = %v, want 1", got.FrameCompileID)
	}

	got = ParseCompileID("")
	if !got.IsZero() {
		t.Errorf("ParseCompileID(\"\") = %+v, want zero", got)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0_0", "0/0"},
		{"0_1_2", "0/1 (attempt 2)"},
		{GlobalKey, "Global"},
		{"oddball", "oddball"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func equalID(a, b CompileID) bool {
	eq := func(x, y *uint64) bool {
		if (x == nil) != (y == nil) {
			return false
		}
		return x == nil || *x == *y
	}
	return eq(a.CompiledAutogradID, b.CompiledAutogradID) &&
		eq(a.FrameID, b.FrameID) &&
		eq(a.FrameCompileID, b.FrameCompileID) &&
		eq(a.Attempt, b.Attempt)
}
