package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/internal/util"
)

// NewTypedTool builds a FunctionTool whose arguments are decoded into T.
// The parameter schema is derived from T's json and description tags, so
// the declaration the model sees always matches the Go signature.
//
// Example:
//
//	type cityArgs struct {
//	  City string `json:"city" description:"Name of the city"`
//	}
//
//	weatherTool := NewTypedTool("get_weather", "Retrieves the current weather report",
//	  func(tc *core.ToolContext, args cityArgs) (any, error) {
//	    return lookup(args.City), nil
//	  })
func NewTypedTool[T any](
	name, description string,
	fn func(toolCtx *core.ToolContext, args T) (any, error),
) *FunctionTool {
	var zero T

	return NewFunctionTool(name, description, util.CreateSchema(zero), func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		typed, err := decodeArgs[T](args)
		if err != nil {
			return nil, &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("decode arguments: %v", err),
				Code:    CodeValidation,
				Details: err,
			}
		}

		return fn(toolCtx, typed)
	})
}

func decodeArgs[T any](args map[string]any) (T, error) {
	var out T

	if len(args) == 0 {
		return out, nil
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}

	return out, nil
}
