//go:build !(linux || darwin)

package platform

import (
	"io"
	"os"
)

// MapFile reads the current contents of f into memory. Platforms without
// mmap support get a heap copy with the same lifetime rules.
func MapFile(f *os.File) (*Mapping, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	data := make([]byte, info.Size())
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, info.Size()), data); err != nil {
		return nil, err
	}
	return &Mapping{data: data}, nil
}
