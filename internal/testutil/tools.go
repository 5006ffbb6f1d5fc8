package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/tool"
)

// ToolSource is an in-memory per-role tool table.
type ToolSource struct {
	mu    sync.Mutex
	tools map[core.Role][]tool.Tool
	err   error
}

// NewToolSource creates an empty tool table.
func NewToolSource() *ToolSource {
	return &ToolSource{tools: map[core.Role][]tool.Tool{}}
}

// Add binds tools to role (chainable).
func (s *ToolSource) Add(role core.Role, tools ...tool.Tool) *ToolSource {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools[role] = append(s.tools[role], tools...)

	return s
}

// Fail makes every lookup return err (chainable).
func (s *ToolSource) Fail(err error) *ToolSource {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err

	return s
}

// ToolsFor implements agent.ToolSource.
func (s *ToolSource) ToolsFor(_ context.Context, role core.Role) ([]tool.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	return append([]tool.Tool(nil), s.tools[role]...), nil
}

// StaticTool returns a tool that always yields result.
func StaticTool(name string, result any) tool.Tool {
	return tool.NewFunctionTool(name, name, nil, func(context.Context, map[string]any) (any, error) {
		return result, nil
	})
}

// Retriever returns fixed passages.
type Retriever struct {
	Passages []string
	Err      error

	mu      sync.Mutex
	queries []string
}

// Retrieve implements core.Retriever.
func (r *Retriever) Retrieve(_ context.Context, query string) ([]string, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}

	return r.Passages, nil
}

// Queries returns the queries received so far.
func (r *Retriever) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.queries...)
}
