package model

import (
	"encoding/json"
	"strings"
)

// Frame is one call-stack frame. The upstream log interns filenames through a
// string table, so "filename" may arrive as an integer index; the parser
// resolves indices before records are written, after which Filename is always
// a string.
type Frame struct {
	Filename      string `json:"filename"`
	FilenameIndex *uint32
	Line          int    `json:"line"`
	Name          string `json:"name"`
	Loc           string `json:"loc,omitempty"`
}

// Stack is an ordered list of frames, innermost last as emitted by the log.
type Stack []Frame

type frameWire struct {
	Filename            json.RawMessage `json:"filename"`
	UninternedFilename  string          `json:"uninterned_filename,omitempty"`
	Line                int             `json:"line"`
	Name                string          `json:"name"`
	Loc                 string          `json:"loc,omitempty"`
}

// UnmarshalJSON accepts filename as either an intern index (number) or a
// resolved string, and prefers an explicit uninterned_filename when present.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var w frameWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.Line = w.Line
	f.Name = w.Name
	f.Loc = w.Loc
	f.Filename = w.UninternedFilename
	f.FilenameIndex = nil

	if len(w.Filename) > 0 {
		var idx uint32
		if err := json.Unmarshal(w.Filename, &idx); err == nil {
			f.FilenameIndex = &idx
		} else {
			var s string
			if err := json.Unmarshal(w.Filename, &s); err == nil && f.Filename == "" {
				f.Filename = s
			}
		}
	}
	return nil
}

// MarshalJSON always emits the resolved string filename.
func (f Frame) MarshalJSON() ([]byte, error) {
	name := f.Filename
	if name == "" {
		name = "(unknown)"
	}
	type out struct {
		Filename string `json:"filename"`
		Line     int    `json:"line"`
		Name     string `json:"name"`
		Loc      string `json:"loc,omitempty"`
	}
	return json.Marshal(out{Filename: name, Line: f.Line, Name: f.Name, Loc: f.Loc})
}

// SimplifyFilename strips a build-system prefix ending in "#link-tree/" so
// frames from packaged runs compare equal to frames from source checkouts.
func SimplifyFilename(filename string) string {
	if _, rest, ok := strings.Cut(filename, "#link-tree/"); ok {
		return rest
	}
	return filename
}
