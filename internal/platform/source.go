package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrSymlink reports that a source path names a symbolic link.
var ErrSymlink = errors.New("platform: source is a symbolic link")

// OpenSource opens name under root for reading and returns its file info.
// A final symbolic link is never followed; ErrSymlink is returned instead.
//
// os.Root resolves links that stay inside the root, so the name is checked
// with Lstat first and the opened file must be the one that was checked.
func OpenSource(root *os.Root, name string) (*os.File, fs.FileInfo, error) {
	checked, err := root.Lstat(name)
	if err != nil {
		return nil, nil, err
	}
	if checked.Mode()&fs.ModeSymlink != 0 {
		return nil, nil, symlinkError(name)
	}

	f, err := openSource(root, name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close() //nolint:errcheck // the stat error is more useful
		return nil, nil, err
	}
	if !os.SameFile(checked, info) {
		_ = f.Close() //nolint:errcheck // replaced between Lstat and open
		return nil, nil, symlinkError(name)
	}
	return f, info, nil
}

func symlinkError(name string) error {
	return fmt.Errorf("%s: %w", name, ErrSymlink)
}
