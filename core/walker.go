package core

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SourceExt is the file extension of quill source files.
const SourceExt = ".ql"

// SourceScope narrows which files a walk discovers.
type SourceScope struct {
	Root            string   // directory to walk; defaults to "."
	IncludePatterns []string // doublestar globs relative to Root; empty means "**/*.ql"
	ExcludePatterns []string // doublestar globs; matched files are skipped
	FollowSymlinks  bool
}

// SourceWalker discovers quill source files under a root directory.
type SourceWalker struct{}

// NewSourceWalker creates a walker with default behavior.
func NewSourceWalker() *SourceWalker {
	return &SourceWalker{}
}

// Walk returns the matching source paths in deterministic (sorted) order.
// Compilation order must not depend on directory iteration order.
func (w *SourceWalker) Walk(ctx context.Context, scope SourceScope) ([]string, error) {
	root := scope.Root
	if root == "" {
		root = "."
	}
	if _, err := os.Stat(root); err != nil {
		return nil, Wrap(ErrIO, "source root not accessible", err)
	}

	includes := scope.IncludePatterns
	if len(includes) == 0 {
		includes = []string{"**/*" + SourceExt}
	}

	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && !(scope.FollowSymlinks && d.Type()&fs.ModeSymlink != 0) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matchesAny(includes, rel) || matchesAny(scope.ExcludePatterns, rel) {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
