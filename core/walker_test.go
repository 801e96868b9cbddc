package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x := 1;\n"), 0o644))
	return path
}

func TestWalkDiscoversSortedSources(t *testing.T) {
	root := t.TempDir()
	b := writeFixture(t, root, "pkg/b.ql")
	a := writeFixture(t, root, "a.ql")
	writeFixture(t, root, "notes.txt")
	writeFixture(t, root, ".hidden/c.ql")

	got, err := NewSourceWalker().Walk(context.Background(), SourceScope{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, got)
}

func TestWalkPatterns(t *testing.T) {
	root := t.TempDir()
	keep := writeFixture(t, root, "src/main.ql")
	writeFixture(t, root, "src/gen/out.ql")

	got, err := NewSourceWalker().Walk(context.Background(), SourceScope{
		Root:            root,
		IncludePatterns: []string{"src/**/*.ql"},
		ExcludePatterns: []string{"src/gen/**"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, got)
}

func TestWalkMissingRoot(t *testing.T) {
	_, err := NewSourceWalker().Walk(context.Background(), SourceScope{Root: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
	ce, ok := err.(CLIError)
	require.True(t, ok)
	assert.Equal(t, ErrIO, ce.Code)
}

func TestAtomicWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "mod.quillar")
	w := NewAtomicWriter(DefaultAtomicConfig())
	require.NoError(t, w.WriteFile(path, []byte("payload")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// Overwrite keeps only the new content and leaves no temp file behind.
	require.NoError(t, w.WriteFile(path, []byte("v2")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	_, err = os.Stat(path + DefaultAtomicConfig().TempSuffix)
	assert.True(t, os.IsNotExist(err))
}
