package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentstate/core"
	"github.com/hupe1980/agentstate/plugin"
	"github.com/hupe1980/agentstate/tool"
)

// BeforeToolCallback runs before a tool executes. A non-nil result bypasses
// the tool and is used as the call's response.
type BeforeToolCallback func(toolCtx *core.ToolContext, t tool.Tool, args map[string]any) (any, error)

// AfterToolCallback runs after a tool executed successfully. A non-nil result
// replaces the tool's own result.
type AfterToolCallback func(toolCtx *core.ToolContext, t tool.Tool, args map[string]any, result any) (any, error)

// Options configures a FunctionExecutor.
type Options struct {
	// MaxParallel caps concurrently executing calls within one batch.
	// 0 or negative means no explicit limit (len of the batch).
	MaxParallel int

	// BeforeCallbacks run before each tool call, after the plugin chain.
	BeforeCallbacks []BeforeToolCallback

	// AfterCallbacks run after each successful tool call, after the plugin
	// chain.
	AfterCallbacks []AfterToolCallback

	// Plugins intercept every call of the batch, before per-executor
	// callbacks.
	Plugins []plugin.Plugin

	// LogStartEvents logs a start line per function call.
	LogStartEvents bool
}

// FunctionExecutor executes one assistant turn's batch of function calls.
//
// Contract:
//   - Each call runs against its own ToolContext; sibling failures never leak
//     into another call's delta or result
//   - Panics inside tools are recovered and surfaced as per-call errors
//   - The batch yields exactly ONE tool response event carrying one
//     FunctionResponse part per incoming call, in input order
//   - Calls gated on confirmation are not executed; they produce an
//     error-shaped response plus an entry on the synthetic request event
//
// A FunctionExecutor is immutable after construction and safe for concurrent
// use.
type FunctionExecutor struct {
	opts  Options
	chain *plugin.Chain
}

// New constructs a FunctionExecutor.
func New(optFns ...func(o *Options)) *FunctionExecutor {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &FunctionExecutor{
		opts:  opts,
		chain: plugin.NewChain(opts.Plugins...),
	}
}

// callOutcome is the per-call result collected before merging.
type callOutcome struct {
	response core.FunctionResponse
	toolCtx  *core.ToolContext
}

// Execute runs the batch and returns the merged tool response event plus an
// optional synthetic request event for calls awaiting host input. The request
// event, when present, must be appended to the session after the response
// event.
//
// The only error returned is context cancellation; per-call failures are
// encoded in the corresponding FunctionResponse.
func (e *FunctionExecutor) Execute(
	runCtx *core.RunContext,
	registry map[string]tool.Tool,
	fnCalls []core.FunctionCall,
) (core.Event, *core.Event, error) {
	if err := runCtx.Context.Err(); err != nil {
		return core.Event{}, nil, err
	}

	n := len(fnCalls)
	outcomes := make([]callOutcome, n)

	batchStart := time.Now()

	if n == 1 {
		outcomes[0] = e.executeOne(runCtx, registry, fnCalls[0])
	} else if n > 1 {
		maxPar := e.opts.MaxParallel
		if maxPar <= 0 || maxPar > n {
			maxPar = n
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, maxPar)

		for i := range fnCalls {
			if runCtx.Context.Err() != nil {
				break
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(idx int, fc core.FunctionCall) {
				defer wg.Done()
				defer func() { <-sem }()

				outcomes[idx] = e.executeOne(runCtx, registry, fc)
			}(i, fnCalls[i])
		}

		wg.Wait()
	}

	if err := runCtx.Context.Err(); err != nil {
		return core.Event{}, nil, err
	}

	respEv := core.NewEvent(runCtx.InvocationID, runCtx.Agent.Name)
	respEv.Content = &core.Content{Role: "tool"}

	for i := range outcomes {
		if outcomes[i].response.ID == "" { // cancelled before scheduling
			outcomes[i].response = core.FunctionResponse{
				ID:    fnCalls[i].ID,
				Name:  fnCalls[i].Name,
				Error: "tool call was not executed",
			}
		}
		respEv.Content.Parts = append(respEv.Content.Parts, core.FunctionResponsePart{
			FunctionResponse: outcomes[i].response,
		})
		if outcomes[i].toolCtx != nil {
			outcomes[i].toolCtx.InternalMergeActions(&respEv)
		}
	}

	runCtx.LogDebug(
		"tool.batch.complete",
		"agent", runCtx.Agent.Name,
		"count", n,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	reqEv := e.buildRequestEvent(runCtx, respEv, fnCalls)

	return respEv, reqEv, nil
}

// executeOne runs the full per-call pipeline: lookup, argument parsing,
// plugin/callback interception, confirmation gate, execution with panic
// recovery, and error recovery hooks. The before-chain runs ahead of the
// gate: an interception result settles the call without the tool, so only
// calls that will actually reach the tool are gated.
func (e *FunctionExecutor) executeOne(
	runCtx *core.RunContext,
	registry map[string]tool.Tool,
	fc core.FunctionCall,
) callOutcome {
	toolCtx := core.NewToolContext(runCtx, fc.ID)

	if e.opts.LogStartEvents {
		runCtx.LogInfo("tool.call.dispatch", "agent", runCtx.Agent.Name, "tool", fc.Name, "function_call_id", fc.ID)
	}

	impl, ok := registry[fc.Name]
	if !ok {
		return callOutcome{
			toolCtx:  toolCtx,
			response: errorResponse(fc, fmt.Sprintf("tool %s not found", fc.Name)),
		}
	}

	args, err := parseArguments(fc.Arguments)
	if err != nil {
		return callOutcome{
			toolCtx:  toolCtx,
			response: errorResponse(fc, fmt.Sprintf("Error in tool '%s': %v", fc.Name, err)),
		}
	}

	execStart := time.Now()
	result, err := e.runBeforeChain(toolCtx, impl, args)

	if err == nil && result == nil {
		// Confirmation gate: gated calls never reach the tool until the host
		// supplies an approved resolution for this call id.
		if cr, ok := impl.(tool.ConfirmationRequirer); ok {
			if required, hint := cr.RequiresConfirmation(args); required {
				resolution, resolved := toolCtx.Confirmation()
				switch {
				case resolved && resolution.Confirmed:
					// approved, fall through to execution
				case resolved:
					runCtx.LogInfo("tool.call.rejected", "tool", fc.Name, "function_call_id", fc.ID)
					return callOutcome{
						toolCtx:  toolCtx,
						response: errorResponse(fc, "This tool call is rejected."),
					}
				default:
					runCtx.LogInfo("tool.call.confirmation_requested", "tool", fc.Name, "function_call_id", fc.ID)
					toolCtx.RequestConfirmation(hint, map[string]any{
						"tool":      fc.Name,
						"arguments": args,
					})
					return callOutcome{
						toolCtx:  toolCtx,
						response: errorResponse(fc, fmt.Sprintf("Tool %q requires confirmation before it can run.", fc.Name)),
					}
				}
			}
		}

		result, err = e.runTool(toolCtx, impl, args)
	}

	runCtx.LogInfo(
		"tool.call.executed",
		"agent", runCtx.Agent.Name,
		"tool", fc.Name,
		"duration_ms", time.Since(execStart).Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		// Error recovery hook: a plugin may turn the failure into a result.
		if recovered, recErr := e.chain.RunOnToolError(toolCtx, impl, args, err); recErr == nil && recovered != nil {
			return callOutcome{toolCtx: toolCtx, response: successResponse(fc, recovered)}
		}
		return callOutcome{
			toolCtx:  toolCtx,
			response: errorResponse(fc, fmt.Sprintf("Error in tool '%s': %v", fc.Name, toolErrorMessage(err))),
		}
	}

	return callOutcome{toolCtx: toolCtx, response: successResponse(fc, result)}
}

// runBeforeChain applies the plugin before-chain and executor-local before
// callbacks, recovering panics into errors. A non-nil result becomes the
// call's response and the tool itself is skipped.
func (e *FunctionExecutor) runBeforeChain(toolCtx *core.ToolContext, impl tool.Tool, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			toolCtx.LogError("tool.call.panic", "tool", impl.Name(), "recover", r)
			result = nil
			err = &panicErr{val: r, stack: debug.Stack()}
		}
	}()

	// Plugins see the call before executor-local callbacks.
	if result, err = e.chain.RunBeforeTool(toolCtx, impl, args); err != nil || result != nil {
		return result, err
	}

	for _, cb := range e.opts.BeforeCallbacks {
		if result, err = cb(toolCtx, impl, args); err != nil || result != nil {
			return result, err
		}
	}

	return nil, nil
}

// runTool executes the tool and applies the after-chain, recovering panics
// into errors.
func (e *FunctionExecutor) runTool(toolCtx *core.ToolContext, impl tool.Tool, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			toolCtx.LogError("tool.call.panic", "tool", impl.Name(), "recover", r)
			result = nil
			err = &panicErr{val: r, stack: debug.Stack()}
		}
	}()

	result, err = impl.Call(toolCtx, args)
	if err != nil {
		return nil, err
	}

	if replacement, err := e.chain.RunAfterTool(toolCtx, impl, args, result); err != nil {
		return nil, err
	} else if replacement != nil {
		result = replacement
	}

	for _, cb := range e.opts.AfterCallbacks {
		replacement, err := cb(toolCtx, impl, args, result)
		if err != nil {
			return nil, err
		}
		if replacement != nil {
			result = replacement
		}
	}

	return result, nil
}

// buildRequestEvent assembles the synthetic assistant event carrying
// request_confirmation / request_credential function calls for every pending
// host interaction recorded during the batch. Requests keyed by a call id not
// in the batch are silently skipped. Returns nil when nothing is pending.
func (e *FunctionExecutor) buildRequestEvent(runCtx *core.RunContext, respEv core.Event, fnCalls []core.FunctionCall) *core.Event {
	confirmations := respEv.Actions.RequestedToolConfirmations
	authConfigs := respEv.Actions.RequestedAuthConfigs
	if len(confirmations) == 0 && len(authConfigs) == 0 {
		return nil
	}

	inBatch := make(map[string]bool, len(fnCalls))
	for _, fc := range fnCalls {
		inBatch[fc.ID] = true
	}

	reqEv := core.NewEvent(runCtx.InvocationID, runCtx.Agent.Name)
	reqEv.Content = &core.Content{Role: "assistant"}

	for _, id := range sortedKeys(confirmations) {
		if !inBatch[id] {
			runCtx.LogDebug("tool.request.unknown_call", "function_call_id", id)
			continue
		}
		c := confirmations[id]
		args, err := json.Marshal(map[string]any{"hint": c.Hint, "payload": c.Payload})
		if err != nil {
			runCtx.LogError("tool.request.encode_failed", "function_call_id", id, "error", err.Error())
			continue
		}
		reqEv.Content.Parts = append(reqEv.Content.Parts, core.FunctionCallPart{
			FunctionCall: core.FunctionCall{
				ID:        id,
				Name:      core.RequestConfirmationFunctionName,
				Arguments: string(args),
			},
		})
		reqEv.LongRunningToolIDs = append(reqEv.LongRunningToolIDs, id)
	}

	for _, id := range sortedKeys(authConfigs) {
		if !inBatch[id] {
			runCtx.LogDebug("tool.request.unknown_call", "function_call_id", id)
			continue
		}
		args, err := json.Marshal(map[string]any{"auth_config": authConfigs[id]})
		if err != nil {
			runCtx.LogError("tool.request.encode_failed", "function_call_id", id, "error", err.Error())
			continue
		}
		reqEv.Content.Parts = append(reqEv.Content.Parts, core.FunctionCallPart{
			FunctionCall: core.FunctionCall{
				ID:        id,
				Name:      core.RequestCredentialFunctionName,
				Arguments: string(args),
			},
		})
		reqEv.LongRunningToolIDs = append(reqEv.LongRunningToolIDs, id)
	}

	if len(reqEv.Content.Parts) == 0 {
		return nil
	}

	return &reqEv
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return args, nil
}

func successResponse(fc core.FunctionCall, result any) core.FunctionResponse {
	return core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
}

func errorResponse(fc core.FunctionCall, msg string) core.FunctionResponse {
	return core.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: map[string]any{"error": msg},
		Error:    msg,
	}
}

// toolErrorMessage unwraps tool.ToolError to its message so response text does
// not duplicate the tool name already in the surrounding format.
func toolErrorMessage(err error) string {
	if te, ok := err.(*tool.ToolError); ok {
		return te.Message
	}
	return err.Error()
}

// panicErr preserves the recovered value and stack for logging paths.
type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
