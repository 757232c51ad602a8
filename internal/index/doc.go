// Package index builds and parses the IKV index embedded in ikv archives.
//
// The index maps 64-bit path hashes to payload locations so readers can find
// any entry without scanning the central directory. It also records which
// packages (directories) hold class files and which hold resources, plus the
// raw entry names in index order.
package index
