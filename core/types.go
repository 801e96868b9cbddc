// Package core contains pure language-agnostic data structures shared by the
// quill front-end: source locations, diagnostic records and error payloads.
//
// IMPORTANT: This package must stay free of dependencies on the analyzer,
// parser or type system. Everything here is plain data.
package core

import "fmt"

// Location is a position in a source file.
type Location struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// String renders the location as file:line:col, omitting empty parts.
func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsZero reports whether the location carries no position at all.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Column == 0
}

// DiagKind classifies a diagnostic record.
type DiagKind string

const (
	DiagParse   DiagKind = "parse"
	DiagType    DiagKind = "type"
	DiagMisc    DiagKind = "misc"
	DiagWarning DiagKind = "warning"
)

// Diagnostic is a single compiler message.
type Diagnostic struct {
	Kind       DiagKind `json:"kind"`
	Code       string   `json:"code,omitempty"`
	Message    string   `json:"message"`
	Location   Location `json:"location,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"` // e.g. a deeply-immutable variant of an offending type
}

// String renders a diagnostic the way quillc prints it.
func (d Diagnostic) String() string {
	prefix := "error"
	if d.Kind == DiagWarning {
		prefix = "warning"
	}
	out := prefix
	if !d.Location.IsZero() {
		out = d.Location.String() + ": " + prefix
	}
	out += ": " + d.Message
	if d.Suggestion != "" {
		out += "\n\t" + d.Suggestion
	}
	return out
}
