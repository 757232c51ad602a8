package teardown

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_AllStepsRunFirstErrorWins(t *testing.T) {
	t.Parallel()

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	var order []string

	var l List
	l.Add("a", func() error { order = append(order, "a"); return errA })
	l.Add("b", func() error { order = append(order, "b"); return errB })
	l.Add("c", func() error { order = append(order, "c"); return nil })

	var logs bytes.Buffer
	err := l.Run(slog.New(slog.NewTextHandler(&logs, nil)))

	require.ErrorIs(t, err, errA)
	assert.NotErrorIs(t, err, errB)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Contains(t, logs.String(), "b failed")
}

func TestRun_NoErrors(t *testing.T) {
	t.Parallel()

	var l List
	ran := 0
	l.Add("one", func() error { ran++; return nil })
	require.NoError(t, l.Run(nil))
	assert.Equal(t, 1, ran)

	// Steps are consumed by Run.
	require.NoError(t, l.Run(nil))
	assert.Equal(t, 1, ran)
}
