package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spetersoncode/gambit/store"
)

type envelope struct {
	Type StepType        `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes the memory as an array of {"type", "data"} envelopes.
func (m *Memory) MarshalJSON() ([]byte, error) {
	steps := m.Steps()
	out := make([]envelope, 0, len(steps))
	for _, s := range steps {
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("memory: encode step %d: %w", s.Meta().Index, err)
		}
		out = append(out, envelope{Type: s.Type(), Data: data})
	}
	return json.Marshal(out)
}

// UnmarshalJSON replaces the memory's steps with the decoded ones.
func (m *Memory) UnmarshalJSON(data []byte) error {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return fmt.Errorf("memory: decode: %w", err)
	}

	steps := make([]Step, 0, len(envs))
	for i, env := range envs {
		s, err := decodeStep(env)
		if err != nil {
			return fmt.Errorf("memory: decode step %d: %w", i, err)
		}
		if s.Meta().Index != i {
			return fmt.Errorf("memory: decode step %d: index %d out of order", i, s.Meta().Index)
		}
		if i > 0 && steps[i-1].Type() == TypeFinalAnswer {
			return ErrAfterFinal
		}
		steps = append(steps, s)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrRunInProgress
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.steps = steps
	return nil
}

func decodeStep(env envelope) (Step, error) {
	switch env.Type {
	case TypeSystemPrompt:
		var s SystemPromptStep
		return decodeInto(env.Data, &s)
	case TypeTask:
		var s TaskStep
		return decodeInto(env.Data, &s)
	case TypePlanning:
		var s PlanningStep
		return decodeInto(env.Data, &s)
	case TypeAction:
		var s ActionStep
		return decodeInto(env.Data, &s)
	case TypeFinalAnswer:
		var s FinalAnswerStep
		return decodeInto(env.Data, &s)
	default:
		return nil, fmt.Errorf("unknown step type %q", env.Type)
	}
}

func decodeInto[T Step](data json.RawMessage, s *T) (Step, error) {
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return *s, nil
}

// Save stores the memory under key.
func Save(ctx context.Context, adapter store.Adapter, key string, m *Memory) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return adapter.Set(ctx, key, data)
}

// Load restores a memory saved under key.
func Load(ctx context.Context, adapter store.Adapter, key string) (*Memory, error) {
	data, ok, err := adapter.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("memory: no snapshot for %q", key)
	}
	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}
