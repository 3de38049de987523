// Package tool adapts Go functions into model-callable tools with schema
// checked arguments and uniform ToolError failures.
package tool

import (
	"fmt"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/internal/util"
)

// Tool is a capability an agent can offer the model. Implementations
// receive a ToolContext for session state and logging; state written
// through it travels on the function response event. Tools may be called
// concurrently from parallel branches.
type Tool interface {
	// Name is the function name the model calls (snake_case).
	Name() string
	// Description tells the model when to use the tool.
	Description() string
	// Parameters is the JSON schema of the arguments object.
	Parameters() map[string]any
	// Call runs the tool with decoded JSON arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes used by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
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

// Unwrap exposes an underlying error stored in Details.
func (e *ToolError) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}
