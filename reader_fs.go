package ikv

import (
	"bytes"
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/meigma/ikv/internal/pathutil"
)

// Open implements fs.FS. Directories are synthesized from entry names and
// directory entries; the payload of a file is decoded on first read.
func (a *Archive) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if e, ok := a.Lookup(name); ok {
		return &openFile{a: a, entry: e}, nil
	}
	if children, ok := a.dirTree()[name]; ok {
		return &openDir{name: name, children: children}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	if e, ok := a.Lookup(name); ok {
		return &fileInfo{entry: e}, nil
	}
	if _, ok := a.dirTree()[name]; ok {
		return newDirInfo(name), nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	children, ok := a.dirTree()[name]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	return slices.Clone(children), nil
}

// dirTree builds the directory listing for every directory once.
func (a *Archive) dirTree() map[string][]fs.DirEntry {
	a.treeOnce.Do(func() {
		kids := map[string]map[string]fs.DirEntry{".": {}}
		seen := map[string]bool{".": true}
		link := func(parent string, de fs.DirEntry) {
			m := kids[parent]
			if m == nil {
				m = make(map[string]fs.DirEntry)
				kids[parent] = m
			}
			m[de.Name()] = de
		}
		ensure := func(dir string) {
			for dir != "." && !seen[dir] {
				seen[dir] = true
				if kids[dir] == nil {
					kids[dir] = make(map[string]fs.DirEntry)
				}
				link(pathutil.Parent(dir), fs.FileInfoToDirEntry(newDirInfo(dir)))
				dir = pathutil.Parent(dir)
			}
		}

		for _, e := range a.entries {
			if !fs.ValidPath(e.Name) {
				continue
			}
			parent := pathutil.Parent(e.Name)
			ensure(parent)
			link(parent, fs.FileInfoToDirEntry(&fileInfo{entry: e}))
		}
		for _, d := range a.dirNames {
			if fs.ValidPath(d) {
				ensure(d)
			}
		}

		a.tree = make(map[string][]fs.DirEntry, len(kids))
		for dir, m := range kids {
			list := make([]fs.DirEntry, 0, len(m))
			for _, de := range m {
				list = append(list, de)
			}
			slices.SortFunc(list, func(x, y fs.DirEntry) int {
				return strings.Compare(x.Name(), y.Name())
			})
			a.tree[dir] = list
		}
	})
	return a.tree
}

// fileInfo implements fs.FileInfo for file entries.
type fileInfo struct {
	entry Entry
}

func (fi *fileInfo) Name() string       { return pathutil.Base(fi.entry.Name) }
func (fi *fileInfo) Size() int64        { return int64(fi.entry.Size) }
func (fi *fileInfo) Mode() fs.FileMode  { return 0o444 }
func (fi *fileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fileInfo) IsDir() bool        { return false }
func (fi *fileInfo) Sys() any           { return fi.entry }

// dirInfo implements fs.FileInfo for directories.
type dirInfo struct {
	name string
}

func newDirInfo(path string) *dirInfo {
	return &dirInfo{name: pathutil.Base(path)}
}

func (di *dirInfo) Name() string       { return di.name }
func (di *dirInfo) Size() int64        { return 0 }
func (di *dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (di *dirInfo) ModTime() time.Time { return time.Time{} }
func (di *dirInfo) IsDir() bool        { return true }
func (di *dirInfo) Sys() any           { return nil }

// openFile implements fs.File for a file entry.
type openFile struct {
	a      *Archive
	entry  Entry
	r      *bytes.Reader
	closed bool
}

func (f *openFile) Stat() (fs.FileInfo, error) {
	return &fileInfo{entry: f.entry}, nil
}

func (f *openFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, &fs.PathError{Op: "read", Path: f.entry.Name, Err: fs.ErrClosed}
	}
	if f.r == nil {
		data, err := f.a.Bytes(f.entry, nil)
		if err != nil {
			return 0, &fs.PathError{Op: "read", Path: f.entry.Name, Err: err}
		}
		if err := CheckCRC(f.entry, data); err != nil {
			return 0, &fs.PathError{Op: "read", Path: f.entry.Name, Err: err}
		}
		f.r = bytes.NewReader(data)
	}
	return f.r.Read(p)
}

func (f *openFile) Close() error {
	if f.closed {
		return &fs.PathError{Op: "close", Path: f.entry.Name, Err: fs.ErrClosed}
	}
	f.closed = true
	f.r = nil
	return nil
}

// openDir implements fs.ReadDirFile for synthesized directories.
type openDir struct {
	name     string
	children []fs.DirEntry
	offset   int
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return newDirInfo(d.name), nil
}

func (d *openDir) Close() error {
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.children[d.offset:]
	if n <= 0 {
		d.offset = len(d.children)
		return slices.Clone(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return slices.Clone(rest[:n]), nil
}
