package plugin

import (
	"github.com/hupe1980/agentstate/core"
	"github.com/hupe1980/agentstate/tool"
)

// Plugin defines lifecycle hooks around individual tool executions.
//
// Plugins provide a clean way to extend tool orchestration without modifying
// core code. They can be used for:
//   - Logging and monitoring
//   - Caching and short-circuiting expensive calls
//   - Security checks and argument redaction
//   - Error recovery with fallback results
//
// Implementations should be:
//   - Fast: hooks run synchronously on the tool call path
//   - Safe: handle errors gracefully and avoid panics
//   - Concurrent: sibling tool calls run in parallel, so hooks may be
//     invoked from multiple goroutines at once
//
// Return Semantics:
//
//	BeforeToolCallback  non-nil result -> tool is NOT executed, result is used
//	AfterToolCallback   non-nil result -> replaces the tool's result
//	OnToolErrorCallback non-nil result -> error is considered recovered and
//	                    the result is used as the call's response
//
// A nil result (with nil error) means "no opinion" and hands control to the
// next plugin in the chain. A non-nil error from any hook aborts the call.
type Plugin interface {
	// Name returns the unique plugin identifier.
	Name() string

	// BeforeToolCallback runs before a tool executes. A non-nil result
	// bypasses the tool entirely.
	BeforeToolCallback(toolCtx *core.ToolContext, t tool.Tool, args map[string]any) (any, error)

	// AfterToolCallback runs after a tool executed successfully. A non-nil
	// result replaces the tool's own result.
	AfterToolCallback(toolCtx *core.ToolContext, t tool.Tool, args map[string]any, result any) (any, error)

	// OnToolErrorCallback runs when a tool execution failed. A non-nil
	// result recovers the failure and is used as the call's response.
	OnToolErrorCallback(toolCtx *core.ToolContext, t tool.Tool, args map[string]any, toolErr error) (any, error)
}

// Base is a no-op Plugin implementation intended for embedding. Deriving
// plugins override only the hooks they care about.
type Base struct {
	PluginName string
}

// NewBase returns a Base carrying the given plugin name.
func NewBase(name string) Base { return Base{PluginName: name} }

// Name returns the plugin name.
func (b Base) Name() string { return b.PluginName }

// BeforeToolCallback returns no opinion.
func (Base) BeforeToolCallback(*core.ToolContext, tool.Tool, map[string]any) (any, error) {
	return nil, nil
}

// AfterToolCallback returns no opinion.
func (Base) AfterToolCallback(*core.ToolContext, tool.Tool, map[string]any, any) (any, error) {
	return nil, nil
}

// OnToolErrorCallback returns no opinion.
func (Base) OnToolErrorCallback(*core.ToolContext, tool.Tool, map[string]any, error) (any, error) {
	return nil, nil
}

// Chain executes an ordered list of plugins with first-non-nil-wins
// semantics.
//
// Thread Safety: the Chain is immutable after construction and safe for
// concurrent use; thread safety of the plugins themselves is their own
// responsibility.
type Chain struct {
	plugins []Plugin
}

// NewChain creates a chain over the given plugins in execution order.
func NewChain(plugins ...Plugin) *Chain {
	return &Chain{plugins: plugins}
}

// Plugins returns the plugins in execution order.
func (c *Chain) Plugins() []Plugin { return c.plugins }

// RunBeforeTool invokes BeforeToolCallback on each plugin in order. The first
// non-nil result or error stops the chain and is returned.
func (c *Chain) RunBeforeTool(toolCtx *core.ToolContext, t tool.Tool, args map[string]any) (any, error) {
	for _, p := range c.plugins {
		result, err := p.BeforeToolCallback(toolCtx, t, args)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// RunAfterTool invokes AfterToolCallback on each plugin in order. The first
// non-nil result or error stops the chain and is returned.
func (c *Chain) RunAfterTool(toolCtx *core.ToolContext, t tool.Tool, args map[string]any, result any) (any, error) {
	for _, p := range c.plugins {
		replacement, err := p.AfterToolCallback(toolCtx, t, args, result)
		if err != nil {
			return nil, err
		}
		if replacement != nil {
			return replacement, nil
		}
	}
	return nil, nil
}

// RunOnToolError invokes OnToolErrorCallback on each plugin in order. The
// first non-nil result recovers the error and stops the chain.
func (c *Chain) RunOnToolError(toolCtx *core.ToolContext, t tool.Tool, args map[string]any, toolErr error) (any, error) {
	for _, p := range c.plugins {
		result, err := p.OnToolErrorCallback(toolCtx, t, args, toolErr)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}
