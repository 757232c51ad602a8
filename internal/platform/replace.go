package platform

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Replacement is a temporary file in the destination's directory that is
// renamed over the destination on Commit.
type Replacement struct {
	file     *os.File
	root     *os.Root
	tempRel  string
	destRel  string
	destPath string
	done     bool
}

// CreateReplacement creates a read-write temporary file next to dest.
func CreateReplacement(dest string, perm os.FileMode) (*Replacement, error) {
	dir, base := filepath.Split(dest)
	if dir == "" {
		dir = "."
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open destination directory: %w", err)
	}
	f, rel, err := createTempFile(root, "."+base+".", perm)
	if err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &Replacement{
		file:     f,
		root:     root,
		tempRel:  rel,
		destRel:  base,
		destPath: dest,
	}, nil
}

// File returns the temporary file. Its owner is responsible for closing it
// before Commit.
func (r *Replacement) File() *os.File {
	return r.file
}

// TempPath returns the path of the temporary file.
func (r *Replacement) TempPath() string {
	return filepath.Join(filepath.Dir(r.destPath), r.tempRel)
}

// Commit renames the temporary file over the destination.
func (r *Replacement) Commit() error {
	if r.done {
		return nil
	}
	r.done = true
	if err := r.root.Rename(r.tempRel, r.destRel); err != nil {
		_ = r.root.Remove(r.tempRel) //nolint:errcheck // best-effort cleanup
		_ = r.root.Close()           //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", r.destPath, err)
	}
	return r.root.Close()
}

// Discard closes and removes the temporary file, leaving the destination
// untouched.
func (r *Replacement) Discard() error {
	if r.done {
		return nil
	}
	r.done = true
	_ = r.file.Close() //nolint:errcheck // may already be closed
	if err := r.root.Remove(r.tempRel); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = r.root.Close() //nolint:errcheck // best-effort cleanup
		return err
	}
	return r.root.Close()
}

func createTempFile(root *os.Root, prefix string, perm os.FileMode) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		rel := prefix + name + ".tmp"
		f, err := root.OpenFile(rel, os.O_CREATE|os.O_EXCL|os.O_RDWR, perm)
		if err == nil {
			return f, rel, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
