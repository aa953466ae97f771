package agent

import (
	"sync"

	"github.com/spetersoncode/gambit/tool"
)

// Member is a managed agent with the description its manager sees.
type Member struct {
	Name        string
	Description string
	Agent       *Agent
	Options     []ToolOption
}

// Team is a named set of managed agents that can be exposed to a manager
// agent as tools.
//
// Example:
//
//	team := agent.NewTeam().
//	    Register("researcher", "Searches the web and summarizes findings", researcher).
//	    Register("analyst", "Runs calculations on data", analyst)
//	manager := agent.New(provider, team.Registry())
type Team struct {
	mu      sync.RWMutex
	members map[string]*Member
	order   []string
}

// NewTeam creates an empty team.
func NewTeam() *Team {
	return &Team{members: make(map[string]*Member)}
}

// Register adds a managed agent. A member with the same name is replaced.
// An empty description keeps the default tool description.
func (t *Team) Register(name, description string, a *Agent, opts ...ToolOption) *Team {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.members[name]; !exists {
		t.order = append(t.order, name)
	}
	t.members[name] = &Member{
		Name:        name,
		Description: description,
		Agent:       a,
		Options:     opts,
	}
	return t
}

// Get returns the member with the given name, or nil.
func (t *Team) Get(name string) *Member {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.members[name]
}

// Names returns member names in registration order.
func (t *Team) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.order...)
}

// Len returns the number of members.
func (t *Team) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members)
}

// Registrations converts every member to a managed agent tool.
func (t *Team) Registrations() []tool.Registration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	regs := make([]tool.Registration, 0, len(t.order))
	for _, name := range t.order {
		m := t.members[name]
		var opts []ToolOption
		if m.Description != "" {
			opts = append(opts, WithToolDescription(m.Description))
		}
		regs = append(regs, NewTool(m.Name, m.Agent, append(opts, m.Options...)...))
	}
	return regs
}

// RegisterTo adds every member to registry as a tool.
func (t *Team) RegisterTo(registry *tool.Registry) error {
	for _, reg := range t.Registrations() {
		if err := registry.Register(reg.Tool, reg.Handler); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns a new registry holding the team's tools.
func (t *Team) Registry() *tool.Registry {
	return tool.NewRegistry().Add(t.Registrations()...)
}
