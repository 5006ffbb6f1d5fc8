// Package tool implements the tool calling subsystem: the Tool contract used by
// workers, a FunctionTool adapter for plain Go functions, the static per-role
// allow-list and the Gateway that exposes a lazily connected tool catalog.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/firegraph/internal/util"
)

// Tool is a named capability a worker may invoke with structured arguments.
//
// Implementations should:
//   - Provide clear names and descriptions (they are shown to the model)
//   - Return a JSON schema from Parameters describing accepted arguments
//   - Honor ctx cancellation
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier of the tool in its catalog.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected input.
	Parameters() map[string]any

	// Call executes the tool with arguments decoded from the model's JSON.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ErrToolNotFound is returned when a model asks for a tool that is not bound.
var ErrToolNotFound = errors.New("tool not found")

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeRemote     = "REMOTE_ERROR"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
