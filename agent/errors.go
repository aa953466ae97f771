package agent

import (
	"errors"
)

var (
	// ErrMemoryFinished is returned when a run is asked to continue a memory
	// that already holds a final answer.
	ErrMemoryFinished = errors.New("agent: memory already holds a final answer")

	// ErrInvalidMode is returned for an unknown action mode.
	ErrInvalidMode = errors.New("agent: invalid mode")
)
