// Package walk enumerates the regular files under a directory in a stable
// order, for packing into an archive.
package walk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/pathrules"
)

// Item is a regular file found by Dir.
type Item struct {
	// Path is the slash-separated path relative to the walked root. It is
	// used as the archive entry name.
	Path string

	// FSPath is Path in the host's separator convention.
	FSPath string

	// Info is the lstat result for the file.
	Info fs.FileInfo
}

// Predicate decides whether a path is kept. Directories rejected by a
// predicate are not descended into.
type Predicate func(path string, isDir bool) bool

// Dir yields the regular files under root in lexical order. Symbolic links
// and other special files are skipped. The sequence stops after yielding
// the first error.
func Dir(ctx context.Context, root *os.Root, keep Predicate) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		stop := errors.New("stop")
		err := fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if path == "." {
				return nil
			}
			if keep != nil && !keep(path, d.IsDir()) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if !yield(Item{Path: path, FSPath: filepath.FromSlash(path), Info: info}, nil) {
				return stop
			}
			return nil
		})
		if err != nil && !errors.Is(err, stop) {
			yield(Item{}, err)
		}
	}
}

// Excluding returns a predicate that rejects paths matching any of the
// gitignore-style patterns. Empty patterns are ignored; with no patterns
// the predicate is nil and keeps everything.
func Excluding(patterns []string) (Predicate, error) {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		if p == "" {
			continue
		}
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionExclude, Pattern: p})
	}
	if len(rules) == 0 {
		return nil, nil
	}
	m, err := pathrules.NewMatcher(rules, pathrules.MatcherOptions{DefaultAction: pathrules.ActionInclude})
	if err != nil {
		return nil, fmt.Errorf("compile exclude patterns: %w", err)
	}
	return m.Included, nil
}
