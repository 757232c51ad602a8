package ikv

// ProgressEvent reports how far archive creation has come.
type ProgressEvent struct {
	// Stage identifies the current phase.
	Stage ProgressStage

	// Path is the entry just written, if any.
	Path string

	// BytesDone is the logical archive size so far.
	BytesDone int64

	// FilesDone is the number of central directory records so far.
	FilesDone int
}

// ProgressStage identifies the current phase of archive creation.
type ProgressStage uint8

const (
	// StageEnumerating indicates PackDir started walking the directory tree.
	StageEnumerating ProgressStage = iota

	// StageWriting indicates an entry has been written.
	StageWriting

	// StageFinishing indicates Close is writing directories, the index and
	// the central directory.
	StageFinishing
)

// String returns the stage name.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageWriting:
		return "writing"
	case StageFinishing:
		return "finishing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates. It is called while the Writer's
// lock is held and must not call back into the Writer.
type ProgressFunc func(ProgressEvent)

// reportProgress sends a progress event if a callback is configured.
func (w *Writer) reportProgress(stage ProgressStage, path string) {
	if w.cfg.progress == nil {
		return
	}
	w.cfg.progress(ProgressEvent{
		Stage:     stage,
		Path:      path,
		BytesDone: w.position(),
		FilesDone: w.records,
	})
}
