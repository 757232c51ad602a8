// Package platform isolates operating-system specific file handling: opening
// without following symlinks, read-only memory mapping and atomic
// replacement of a destination file.
package platform
