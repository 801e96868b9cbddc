// Package diag accumulates compiler diagnostics in three ordered queues
// (parse, type, misc) and flushes them in recording order. The exit status
// of a compilation is non-zero iff any queue held an error.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/oxhq/quill/core"
)

// Sink collects diagnostics for one compilation run.
type Sink struct {
	parse []core.Diagnostic
	typed []core.Diagnostic
	misc  []core.Diagnostic

	warnings int
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Reset drops all recorded diagnostics so the process can run another
// compilation deterministically.
func (s *Sink) Reset() {
	s.parse = nil
	s.typed = nil
	s.misc = nil
	s.warnings = 0
}

// AddParse appends to the parse queue.
func (s *Sink) AddParse(d core.Diagnostic) {
	d.Kind = core.DiagParse
	s.parse = append(s.parse, d)
}

// AddType appends to the type queue. Warnings count separately and never
// affect the exit status.
func (s *Sink) AddType(d core.Diagnostic) {
	if d.Kind != core.DiagWarning {
		d.Kind = core.DiagType
	} else {
		s.warnings++
	}
	s.typed = append(s.typed, d)
}

// AddMisc appends to the misc queue.
func (s *Sink) AddMisc(d core.Diagnostic) {
	d.Kind = core.DiagMisc
	s.misc = append(s.misc, d)
}

// TypeErrorf records a type error at loc.
func (s *Sink) TypeErrorf(code string, loc core.Location, format string, args ...any) {
	s.AddType(core.Diagnostic{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

// Warnf records a warning at loc.
func (s *Sink) Warnf(code string, loc core.Location, format string, args ...any) {
	s.AddType(core.Diagnostic{
		Kind:     core.DiagWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

// Mismatch records a type mismatch, attaching a unified diff of the two
// canonical forms when they are too large to eyeball.
func (s *Sink) Mismatch(loc core.Location, expected, actual string) {
	d := core.Diagnostic{
		Code:     core.ErrTypeMismatch,
		Message:  fmt.Sprintf("expected %s, found %s", expected, actual),
		Location: loc,
	}
	if diff := typeDiff(expected, actual); diff != "" {
		d.Suggestion = diff
	}
	s.AddType(d)
}

// typeDiff renders a unified diff between two canonical type strings. Short
// strings read better inline, so the diff only kicks in past one line's
// worth of text.
func typeDiff(expected, actual string) string {
	if len(expected)+len(actual) < 120 {
		return ""
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expandTypeString(expected)),
		B:        difflib.SplitLines(expandTypeString(actual)),
		FromFile: "expected",
		ToFile:   "found",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return strings.TrimRight(text, "\n")
}

// expandTypeString breaks a canonical type string at slot boundaries so the
// diff lines up structurally.
func expandTypeString(s string) string {
	var sb strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		sb.WriteByte(c)
		switch c {
		case '<', '{':
			depth++
			sb.WriteByte('\n')
			sb.WriteString(strings.Repeat("  ", depth))
		case ',':
			sb.WriteByte('\n')
			sb.WriteString(strings.Repeat("  ", depth))
			if i+1 < len(s) && s[i+1] == ' ' {
				i++
			}
		case '>', '}':
			// closing markers stay inline
		}
	}
	return sb.String()
}

// HasErrors reports whether any queue holds a non-warning diagnostic.
func (s *Sink) HasErrors() bool {
	return len(s.parse)+len(s.misc) > 0 || len(s.typed) > s.warnings
}

// Count returns the number of recorded diagnostics including warnings.
func (s *Sink) Count() int {
	return len(s.parse) + len(s.typed) + len(s.misc)
}

// All returns every diagnostic in flush order: parse, then type, then misc,
// each queue in recording order.
func (s *Sink) All() []core.Diagnostic {
	out := make([]core.Diagnostic, 0, s.Count())
	out = append(out, s.parse...)
	out = append(out, s.typed...)
	out = append(out, s.misc...)
	return out
}

// Flush writes every diagnostic to w in order and returns the process exit
// status: 1 if any queue held an error, else 0.
func (s *Sink) Flush(w io.Writer) int {
	for _, d := range s.All() {
		fmt.Fprintln(w, d.String())
	}
	if s.HasErrors() {
		return 1
	}
	return 0
}
