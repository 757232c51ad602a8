package ikv

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/meigma/ikv/internal/platform"
	"github.com/meigma/ikv/internal/walk"
)

// KeepFunc decides whether PackDir includes a path. path is slash-separated
// and relative to the packed directory. Directories rejected by a KeepFunc
// are not descended into.
type KeepFunc func(path string, isDir bool) bool

// ExcludePatterns returns a KeepFunc rejecting paths that match any of the
// gitignore-style patterns, or nil when no pattern is given.
func ExcludePatterns(patterns ...string) (KeepFunc, error) {
	keep, err := walk.Excluding(patterns)
	if err != nil || keep == nil {
		return nil, err
	}
	return KeepFunc(keep), nil
}

// PackDir writes every regular file under dir into a new archive at target,
// in lexical order. Symbolic links are skipped and empty directories are not
// preserved. keep may be nil.
//
// On error or cancellation the writer is aborted; combine with
// CreateWithAtomicReplace to leave an existing target untouched.
func PackDir(ctx context.Context, target, dir string, keep KeepFunc, opts ...CreateOption) (err error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	w, err := Create(target, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = w.Abort() //nolint:errcheck // the original error is more useful
		}
	}()

	w.mu.Lock()
	w.reportProgress(StageEnumerating, "")
	w.mu.Unlock()

	files := 0
	for item, walkErr := range walk.Dir(ctx, root, walk.Predicate(keep)) {
		if walkErr != nil {
			return walkErr
		}
		added, err := w.addFromRoot(root, item)
		if err != nil {
			return err
		}
		if added {
			files++
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	w.log().Info("packed directory", "dir", dir, "target", target, "files", files)
	return nil
}

// addFromRoot adds one walked file. Files that turned into symlinks or
// special files since the walk are skipped.
func (w *Writer) addFromRoot(root *os.Root, item walk.Item) (bool, error) {
	f, info, err := platform.OpenSource(root, item.FSPath)
	if errors.Is(err, platform.ErrSymlink) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open %s: %w", item.Path, err)
	}
	defer f.Close()
	if !info.Mode().IsRegular() {
		return false, nil
	}
	return true, w.AddOpenFile(item.Path, f)
}
