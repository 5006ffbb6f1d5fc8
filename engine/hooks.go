package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/firegraph/core"
)

// HookType identifies when a hook runs.
type HookType string

const (
	// HookBeforeStep runs before a step is executed.
	HookBeforeStep HookType = "before_step"
	// HookAfterStep runs after a step completed and was committed.
	HookAfterStep HookType = "after_step"
	// HookOnError runs when a step fails.
	HookOnError HookType = "on_error"
	// HookOnCommit runs before a state is committed. An error vetoes the commit
	// and fails the turn.
	HookOnCommit HookType = "on_commit"
)

// Step names an engine step.
type Step string

const (
	StepDecide     Step = "decide"
	StepGather     Step = "gather"
	StepSynthesize Step = "synthesize"
)

// HookContext carries the data available to hooks. State is a copy; changes
// made by a hook are ignored.
type HookContext struct {
	ThreadID  string
	RequestID string
	Step      Step
	Route     Route
	State     *core.State
	Err       error
}

// Hook observes the engine.
type Hook interface {
	Type() HookType
	Execute(ctx context.Context, hc *HookContext) error
}

// FunctionHook adapts a function to Hook.
type FunctionHook struct {
	hookType HookType
	fn       func(ctx context.Context, hc *HookContext) error
}

// NewFunctionHook creates a hook of hookType running fn.
func NewFunctionHook(hookType HookType, fn func(ctx context.Context, hc *HookContext) error) *FunctionHook {
	return &FunctionHook{hookType: hookType, fn: fn}
}

// Type implements Hook.
func (h *FunctionHook) Type() HookType { return h.hookType }

// Execute implements Hook.
func (h *FunctionHook) Execute(ctx context.Context, hc *HookContext) error {
	return h.fn(ctx, hc)
}

// StateValidationHook rejects states failing validator before they are committed.
type StateValidationHook struct {
	validator func(s *core.State) error
}

// NewStateValidationHook creates a commit hook running validator.
func NewStateValidationHook(validator func(s *core.State) error) *StateValidationHook {
	return &StateValidationHook{validator: validator}
}

// Type implements Hook.
func (h *StateValidationHook) Type() HookType { return HookOnCommit }

// Execute implements Hook.
func (h *StateValidationHook) Execute(_ context.Context, hc *HookContext) error {
	if h.validator == nil || hc.State == nil {
		return nil
	}
	return h.validator(hc.State)
}

// HookManager runs registered hooks in registration order.
type HookManager struct {
	mu    sync.RWMutex
	hooks map[HookType][]Hook
}

// NewHookManager creates an empty manager.
func NewHookManager(hooks ...Hook) *HookManager {
	m := &HookManager{hooks: make(map[HookType][]Hook)}
	for _, h := range hooks {
		m.Register(h)
	}
	return m
}

// Register adds a hook.
func (m *HookManager) Register(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks[h.Type()] = append(m.hooks[h.Type()], h)
}

// Run executes the hooks of hookType, stopping at the first error.
func (m *HookManager) Run(ctx context.Context, hookType HookType, hc *HookContext) error {
	m.mu.RLock()
	hooks := m.hooks[hookType]
	m.mu.RUnlock()

	for _, h := range hooks {
		if err := h.Execute(ctx, hc); err != nil {
			return fmt.Errorf("%s hook: %w", hookType, err)
		}
	}

	return nil
}
