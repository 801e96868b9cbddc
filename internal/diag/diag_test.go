package diag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/quill/core"
)

func TestFlushOrderAndExitStatus(t *testing.T) {
	s := NewSink()
	assert.Equal(t, 0, s.Flush(&strings.Builder{}))

	s.AddType(core.Diagnostic{Message: "second"})
	s.AddMisc(core.Diagnostic{Message: "third"})
	s.AddParse(core.Diagnostic{Message: "first"})

	var out strings.Builder
	status := s.Flush(&out)
	assert.Equal(t, 1, status)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "first")
	assert.Contains(t, lines[1], "second")
	assert.Contains(t, lines[2], "third")
}

func TestWarningsDoNotFail(t *testing.T) {
	s := NewSink()
	s.Warnf(core.ErrUnusedSymbol, core.Location{}, "unused symbol %s", "Point")
	assert.False(t, s.HasErrors())
	assert.Equal(t, 0, s.Flush(&strings.Builder{}))

	s.TypeErrorf(core.ErrUnusedSymbol, core.Location{}, "unused symbol %s", "x")
	assert.True(t, s.HasErrors())
}

func TestReset(t *testing.T) {
	s := NewSink()
	s.TypeErrorf(core.ErrTypeMismatch, core.Location{}, "boom")
	require.True(t, s.HasErrors())
	s.Reset()
	assert.False(t, s.HasErrors())
	assert.Equal(t, 0, s.Count())
}

func TestMismatchShortTypesStayInline(t *testing.T) {
	s := NewSink()
	s.Mismatch(core.Location{Line: 1, Column: 1}, "int", "string")
	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "expected int, found string", all[0].Message)
	assert.Empty(t, all[0].Suggestion)
}

func TestMismatchLargeTypesGetDiff(t *testing.T) {
	expected := "struct{alpha: list<int>, beta: map<string, int>, gamma: tuple<int, int, int>}"
	actual := "struct{alpha: list<int>, beta: map<string, string>, gamma: tuple<int, int, int>}"
	s := NewSink()
	s.Mismatch(core.Location{}, expected, actual)

	all := s.All()
	require.Len(t, all, 1)
	require.NotEmpty(t, all[0].Suggestion)
	assert.Contains(t, all[0].Suggestion, "--- expected")
	assert.Contains(t, all[0].Suggestion, "+++ found")
	assert.Contains(t, all[0].Suggestion, "-")
}
