// Package teardown runs an ordered list of cleanup steps to completion.
//
// Every step runs even if an earlier one failed. The first failure is
// returned; later failures are logged and otherwise dropped.
package teardown

import (
	"fmt"
	"log/slog"
)

type step struct {
	name string
	fn   func() error
}

// List is an ordered set of cleanup steps. The zero value is ready to use.
type List struct {
	steps []step
}

// Add appends a named step. Steps run in the order they were added.
func (l *List) Add(name string, fn func() error) {
	l.steps = append(l.steps, step{name: name, fn: fn})
}

// Run executes every step and returns the first error, annotated with the
// step name. A nil logger discards the suppressed errors.
func (l *List) Run(logger *slog.Logger) error {
	var first error
	for _, s := range l.steps {
		err := s.fn()
		if err == nil {
			continue
		}
		if first == nil {
			first = fmt.Errorf("%s: %w", s.name, err)
			continue
		}
		if logger != nil {
			logger.Warn("suppressed cleanup error", "step", s.name, "error", err)
		}
	}
	l.steps = nil
	return first
}
