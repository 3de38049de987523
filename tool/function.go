package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/internal/util"
)

// Handler is the body of a FunctionTool. Arguments have already been
// checked against the tool's parameter schema.
type Handler func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// FunctionTool exposes a Go function to the model. It is immutable after
// construction and safe for concurrent calls from parallel branches.
//
// Errors returned by Call are always *ToolError: CodeValidation when the
// arguments do not match the schema, CodeExecution for a plain error from
// the handler, and the handler's own code when it returns a *ToolError.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	handler     Handler
}

// NewFunctionTool creates a tool from an explicit parameter schema.
//
//	validate := NewFunctionTool("validate_city_name", "Validates a city name",
//	  map[string]any{
//	    "type":       "object",
//	    "properties": map[string]any{"city": map[string]any{"type": "string"}},
//	    "required":   []string{"city"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return check(args["city"].(string)), nil
//	  })
func NewFunctionTool(name, description string, parameters map[string]any, fn Handler) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		handler:     fn,
	}
}

// NewFunctionToolFromStruct derives the schema from the json and
// description tags of structType.
func NewFunctionToolFromStruct(name, description string, structType any, fn Handler) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call implements Tool.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	started := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, t.fail(CodeValidation, fmt.Sprintf("parameter validation failed: %v", err), err)
	}

	result, err := t.handler(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if !errors.As(err, &toolErr) {
			toolErr = t.fail(CodeExecution, err.Error(), err)
		}

		logger.Error("tool.call.error", "tool", t.name, "code", toolErr.Code, "error", toolErr.Message)

		return nil, toolErr
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(started).Milliseconds())

	return result, nil
}

func (t *FunctionTool) fail(code, msg string, cause error) *ToolError {
	return &ToolError{Tool: t.name, Message: msg, Code: code, Details: cause}
}
