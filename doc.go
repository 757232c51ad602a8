// Package ikv writes and reads ZIP archives that carry an embedded IKV
// index for constant-time random access.
//
// An ikv archive is an ordinary ZIP file: every entry has a local header and
// a central directory record, and any ZIP tool can list and extract it. The
// last entry, named __index__, holds a table mapping 64-bit path hashes to
// payload offsets plus package existence sets and the entry names. The end
// of central directory comment points at that table, so a reader can find
// any entry without walking the central directory or decompressing
// anything.
//
// # Writing
//
// Create an archive and add entries:
//
//	w, err := ikv.Create("out.zip", ikv.CreateWithDirMode(ikv.DirResourceOnly))
//	if err != nil {
//	    return err
//	}
//	if err := w.AddBytes("a/b.txt", []byte("hello")); err != nil {
//	    return err
//	}
//	if err := w.AddFile("a/b.class", "build/a/b.class"); err != nil {
//	    return err
//	}
//	return w.Close()
//
// Entries are staged in memory and flushed to the output in batches. Files
// added with AddFile are copied with copy_file_range where available. The
// memory-mapped backend (CreateWithMapped) writes headers and payloads straight
// into a growable mapping of the output file.
//
// # Reading
//
// Open maps the archive read-only:
//
//	a, err := ikv.Open("out.zip")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	data, err := a.ReadFile("a/b.txt")
//
// Archive implements fs.FS, fs.ReadFileFS and fs.ReadDirFS. Stored entries
// are returned as zero-copy views of the mapping; deflated entries are
// decoded into caller-supplied scratch buffers.
package ikv
