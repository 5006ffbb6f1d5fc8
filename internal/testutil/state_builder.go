package testutil

import (
	"strconv"

	"github.com/hupe1980/firegraph/core"
)

// StateBuilder helps construct session states with fluent chaining for tests.
// Example:
//
//	s := NewStateBuilder("t1").History(11).Question("fire?").Build()
type StateBuilder struct {
	state *core.State
}

// NewStateBuilder creates a new builder for a state with the given thread id.
func NewStateBuilder(threadID string) *StateBuilder {
	return &StateBuilder{state: core.NewState(threadID)}
}

// History appends n alternating user/assistant messages "m0".."m<n-1>" (chainable).
func (b *StateBuilder) History(n int) *StateBuilder {
	for i := 0; i < n; i++ {
		content := "m" + strconv.Itoa(i)
		if i%2 == 0 {
			b.state.Append(core.NewUserMessage(content))
		} else {
			b.state.Append(core.NewAgentMessage(core.AuthorDecision, content))
		}
	}
	return b
}

// Messages appends explicit messages (chainable).
func (b *StateBuilder) Messages(msgs ...core.Message) *StateBuilder {
	b.state.Append(msgs...)
	return b
}

// Question starts a turn with question (chainable).
func (b *StateBuilder) Question(q string) *StateBuilder {
	b.state.BeginTurn(q, "")
	return b
}

// Location sets the resolved address (chainable).
func (b *StateBuilder) Location(address string) *StateBuilder {
	b.state.Location = core.Location{Address: address}
	return b
}

// Slot sets a partial-result slot (chainable).
func (b *StateBuilder) Slot(d core.Domain, v string) *StateBuilder {
	_ = b.state.SetSlot(d, v)
	return b
}

// Phase sets the phase (chainable).
func (b *StateBuilder) Phase(p core.Phase) *StateBuilder {
	b.state.Phase = p
	return b
}

// UseAgent sets the decision flag (chainable).
func (b *StateBuilder) UseAgent(v bool) *StateBuilder {
	b.state.UseAgent = v
	return b
}

// Build returns a copy of the built state.
func (b *StateBuilder) Build() *core.State {
	return b.state.Clone()
}
