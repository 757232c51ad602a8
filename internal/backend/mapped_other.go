//go:build !(linux || darwin)

package backend

import (
	"fmt"
	"os"
	"runtime"

	"github.com/meigma/ikv/internal/ziptype"
)

// NewMapped reports that memory-mapped output is unavailable on this platform.
func NewMapped(*os.File, ...Option) (Backend, error) {
	return nil, fmt.Errorf("mapped backend on %s: %w", runtime.GOOS, ziptype.ErrReserveUnsupported)
}
