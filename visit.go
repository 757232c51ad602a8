package ikv

import (
	"bytes"
	"fmt"
	"io"
)

// VisitAction tells ReadArchive whether to continue.
type VisitAction int

const (
	// Continue moves on to the next entry.
	Continue VisitAction = iota

	// Stop ends the walk.
	Stop
)

// Visitor is called by ReadArchive once per file entry.
type Visitor func(name string, src *Contents) VisitAction

// Contents gives lazy access to one entry's payload during a visit.
// Nothing is decoded unless Bytes or Reader is called, and the returned
// data is only valid until the visitor returns.
type Contents struct {
	a       *Archive
	entry   Entry
	scratch *[]byte
}

// Entry returns the entry being visited.
func (c *Contents) Entry() Entry {
	return c.entry
}

// Size returns the uncompressed size.
func (c *Contents) Size() int64 {
	return int64(c.entry.Size)
}

// Bytes decodes the payload. The slice is reused by later visits.
func (c *Contents) Bytes() ([]byte, error) {
	data, err := c.a.Bytes(c.entry, *c.scratch)
	if err != nil {
		return nil, err
	}
	if c.entry.Method == Deflated {
		*c.scratch = data
	}
	return data, nil
}

// Reader returns a reader over the decoded payload.
func (c *Contents) Reader() (io.Reader, error) {
	data, err := c.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// ReadArchive opens the archive at path and calls visit for every file
// entry in central directory order until visit returns Stop. Directory
// entries and the index entry are skipped.
func ReadArchive(path string, visit Visitor, opts ...OpenOption) error {
	a, err := Open(path, opts...)
	if err != nil {
		return err
	}
	var scratch []byte
	for e := range a.Entries() {
		if visit(e.Name, &Contents{a: a, entry: e, scratch: &scratch}) == Stop {
			break
		}
	}
	if err := a.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
