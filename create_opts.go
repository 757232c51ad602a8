package ikv

import "log/slog"

// createConfig holds configuration for archive creation.
type createConfig struct {
	level           int
	crc             bool
	dirMode         DirMode
	overwrite       bool
	mapped          bool
	index           bool
	packageIndex    bool
	atomic          bool
	skipCompression []SkipCompressionFunc
	progress        ProgressFunc
	logger          *slog.Logger
}

func defaultCreateConfig() createConfig {
	return createConfig{
		level:        DefaultCompression,
		crc:          true,
		dirMode:      DirNone,
		overwrite:    true,
		index:        true,
		packageIndex: true,
	}
}

// CreateOption configures archive creation.
type CreateOption func(*createConfig)

// CreateWithCompression sets the deflate level. NoCompression stores every entry.
// Entries smaller than 8 KiB and PNG files are always stored.
func CreateWithCompression(level int) CreateOption {
	return func(cfg *createConfig) {
		cfg.level = level
	}
}

// CreateWithCRC controls whether a CRC-32 is computed for every entry (default
// true). Without CRCs, AddFile copies sources without reading them into
// memory and the CRC fields are left zero.
func CreateWithCRC(enabled bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.crc = enabled
	}
}

// CreateWithDirMode selects which directory entries are written on Close
// (default DirNone).
func CreateWithDirMode(mode DirMode) CreateOption {
	return func(cfg *createConfig) {
		cfg.dirMode = mode
	}
}

// CreateWithOverwrite controls whether an existing target is truncated (default)
// or Create fails with fs.ErrExist.
func CreateWithOverwrite(enabled bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.overwrite = enabled
	}
}

// CreateWithMapped selects the memory-mapped output backend. It is only available
// on Linux and Darwin.
func CreateWithMapped(enabled bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.mapped = enabled
	}
}

// CreateWithIndex controls whether the __index__ entry and its end record comment
// are written (default true). Without an index, duplicate names are not
// detected.
func CreateWithIndex(enabled bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.index = enabled
	}
}

// CreateWithPackageIndex controls whether package hashes and directories are
// collected (default true). When disabled, no directory entries are written
// regardless of the directory mode.
func CreateWithPackageIndex(enabled bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.packageIndex = enabled
	}
}

// CreateWithAtomicReplace writes the archive to a temporary file next to the
// target and renames it over the target when Close succeeds. A failed Close
// leaves the target untouched.
func CreateWithAtomicReplace(enabled bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.atomic = enabled
	}
}

// CreateWithSkipCompression adds predicates that decide to store an entry
// uncompressed. If any predicate returns true, compression is skipped.
// These checks are on the hot path, so keep them cheap.
func CreateWithSkipCompression(fns ...SkipCompressionFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// CreateWithProgress sets a callback invoked as entries are written.
func CreateWithProgress(fn ProgressFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.progress = fn
	}
}

// CreateWithLogger sets the logger for archive creation.
// If not set, logging is disabled.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}
