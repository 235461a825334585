package tool

import (
	"fmt"

	"github.com/hupe1980/agentstate/core"
	"github.com/hupe1980/agentstate/internal/util"
)

// Tool defines the interface for extending agent capabilities with external
// functions.
//
// Tools have access to a core.ToolContext for session state, artifact,
// memory, confirmation and flow-control capabilities. Implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe: the orchestrator executes sibling calls concurrently
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case
	// recommended).
	Name() string

	// Description returns a human-readable description provided to the LLM
	// to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]interface{}

	// Call executes the tool with structured arguments and ToolContext.
	Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error)
}

// ConfirmationRequirer is an optional capability a Tool may implement to gate
// execution behind host approval. The orchestrator checks it before every
// call: when it reports true and no approved confirmation for the call id has
// been supplied, the tool is not executed and a pending confirmation is
// recorded instead.
//
// The requirement can be static (always true) or a predicate over the call's
// arguments (e.g. only destructive operations need approval). The returned
// hint is surfaced to the user alongside the request.
type ConfirmationRequirer interface {
	RequiresConfirmation(args map[string]any) (bool, string)
}

// ValidationError represents parameter validation errors with detailed
// information.
type ValidationError = util.ValidationError

// Error codes attached to ToolError for categorization.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
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
