// Package action binds primitive calls written in an action program to
// the pipeline's layout and shared state, and runs them.
package action

import (
	"fmt"
	"sort"

	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/primitive"
)

// Call is one bound primitive invocation.
type Call struct {
	Primitive *primitive.Primitive
	Args      []primitive.Arg
}

// Action is a named, ordered list of calls.
type Action struct {
	Name  string
	Calls []Call
}

// Execute runs the calls in order. The action always runs to completion;
// an exit only affects the actions after it.
func (a *Action) Execute(ctx *primitive.Context) {
	for i := range a.Calls {
		c := &a.Calls[i]
		c.Primitive.Invoke(ctx, c.Args)
	}
}

// Program is the set of actions a pipeline can run.
type Program struct {
	actions map[string]*Action
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{actions: make(map[string]*Action)}
}

// Add registers a bound action.
func (p *Program) Add(a *Action) error {
	if _, exists := p.actions[a.Name]; exists {
		return fmt.Errorf("%w: action '%s'", core.ErrDuplicateDefinition, a.Name)
	}
	p.actions[a.Name] = a
	return nil
}

// Get looks up an action.
func (p *Program) Get(name string) (*Action, error) {
	a, ok := p.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", core.ErrUnknownAction, name)
	}
	return a, nil
}

// Names lists the actions, sorted.
func (p *Program) Names() []string {
	names := make([]string, 0, len(p.actions))
	for name := range p.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
