package ziptype

// Compression identifies the ZIP compression method of an entry.
type Compression uint16

const (
	Stored   Compression = 0
	Deflated Compression = 8
)

// String returns the human-readable name of the compression method.
func (c Compression) String() string {
	switch c {
	case Stored:
		return "stored"
	case Deflated:
		return "deflated"
	default:
		return "unknown"
	}
}

// DirMode controls which directories become real ZIP directory entries.
type DirMode uint8

const (
	// DirNone emits no ZIP directory entries; directories are recorded in the
	// index only.
	DirNone DirMode = iota

	// DirResourceOnly emits directory entries for directories that contain at
	// least one non-class file, together with all of their ancestors. A pure
	// class package gets an entry only when it is such an ancestor.
	DirResourceOnly

	// DirAll emits directory entries for every registered directory, including
	// pure class packages.
	DirAll
)

// String returns the name of the directory mode.
func (m DirMode) String() string {
	switch m {
	case DirNone:
		return "none"
	case DirResourceOnly:
		return "resource"
	case DirAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseDirMode parses the names returned by DirMode.String.
func ParseDirMode(s string) (DirMode, bool) {
	switch s {
	case "none", "":
		return DirNone, true
	case "resource", "resource-only":
		return DirResourceOnly, true
	case "all":
		return DirAll, true
	default:
		return DirNone, false
	}
}
