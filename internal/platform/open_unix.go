//go:build unix

package platform

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// openSource adds O_NOFOLLOW for kernels that see the final component, and
// O_NONBLOCK so a FIFO swapped in after the walk cannot block the open.
func openSource(root *os.Root, name string) (*os.File, error) {
	f, err := root.OpenFile(name, os.O_RDONLY|unix.O_NOFOLLOW|unix.O_NONBLOCK, 0)
	if errors.Is(err, unix.ELOOP) {
		return nil, symlinkError(name)
	}
	return f, err
}
