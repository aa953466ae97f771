package memory

import (
	"errors"
	"sync"
	"time"

	ai "github.com/spetersoncode/gambit"
)

var (
	// ErrAfterFinal is returned when appending to a memory that already
	// holds a FinalAnswerStep.
	ErrAfterFinal = errors.New("memory: step appended after final answer")

	// ErrRunInProgress is returned when a memory is modified in a way that
	// is only allowed between runs.
	ErrRunInProgress = errors.New("memory: run in progress")
)

// Memory is the ordered step log of a run. It is append-only while a run is
// in progress and safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	steps   []Step
	running bool
	now     func() time.Time
}

// New creates an empty memory.
func New() *Memory {
	return &Memory{now: time.Now}
}

// BeginRun marks the start of a run. Truncate is refused until EndRun.
func (m *Memory) BeginRun() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrRunInProgress
	}
	m.running = true
	return nil
}

// EndRun marks the end of a run.
func (m *Memory) EndRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
}

// Running reports whether a run is in progress.
func (m *Memory) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Append assigns the next index and a timestamp to step, stores it, and
// returns the stored copy. Timestamps are UTC and strictly increasing.
func (m *Memory) Append(step Step) (Step, error) {
	if step == nil {
		return nil, errors.New("memory: nil step")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var last time.Time
	if n := len(m.steps); n > 0 {
		prev := m.steps[n-1]
		if prev.Type() == TypeFinalAnswer {
			return nil, ErrAfterFinal
		}
		last = prev.Meta().Timestamp
	}

	ts := stamp(m.now())
	if !ts.After(last) {
		ts = last.Add(time.Microsecond)
	}

	stored := step.normalize().withMeta(StepMeta{Index: len(m.steps), Timestamp: ts})
	m.steps = append(m.steps, stored)
	return stored, nil
}

// Steps returns a copy of the step log.
func (m *Memory) Steps() []Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Step, len(m.steps))
	copy(out, m.steps)
	return out
}

// Len returns the number of steps.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.steps)
}

// Last returns the most recent step, if any.
func (m *Memory) Last() (Step, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.steps) == 0 {
		return nil, false
	}
	return m.steps[len(m.steps)-1], true
}

// ActionSteps returns the action steps in order.
func (m *Memory) ActionSteps() []ActionStep {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ActionStep
	for _, s := range m.steps {
		if a, ok := s.(ActionStep); ok {
			out = append(out, a)
		}
	}
	return out
}

// Final returns the final answer step when the memory holds one.
func (m *Memory) Final() (FinalAnswerStep, bool) {
	last, ok := m.Last()
	if !ok {
		return FinalAnswerStep{}, false
	}
	f, ok := last.(FinalAnswerStep)
	return f, ok
}

// TotalUsage sums token usage over action and planning steps.
func (m *Memory) TotalUsage() ai.Usage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total ai.Usage
	for _, s := range m.steps {
		switch v := s.(type) {
		case ActionStep:
			total = total.Add(v.Usage)
		case PlanningStep:
			total = total.Add(v.Usage)
		}
	}
	return total
}

// Truncate keeps the first n steps. It fails while a run is in progress.
func (m *Memory) Truncate(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrRunInProgress
	}
	if n < 0 {
		n = 0
	}
	if n < len(m.steps) {
		m.steps = m.steps[:n:n]
	}
	return nil
}

// Reset removes every step. It fails while a run is in progress.
func (m *Memory) Reset() error {
	return m.Truncate(0)
}
