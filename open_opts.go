package ikv

import "log/slog"

// openConfig holds configuration for opening an archive.
type openConfig struct {
	useIndex bool
	logger   *slog.Logger
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

// OpenWithIndex controls whether lookups use the embedded index when the
// archive has one (default true). Disabling it forces lookups through the
// central directory.
func OpenWithIndex(enabled bool) OpenOption {
	return func(cfg *openConfig) {
		cfg.useIndex = enabled
	}
}

// OpenWithLogger sets the logger for the archive.
// If not set, logging is disabled.
func OpenWithLogger(logger *slog.Logger) OpenOption {
	return func(cfg *openConfig) {
		cfg.logger = logger
	}
}
