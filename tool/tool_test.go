package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentstate/artifact"
	"github.com/hupe1980/agentstate/core"
	"github.com/hupe1980/agentstate/internal/util"
	"github.com/hupe1980/agentstate/logging"
	"github.com/hupe1980/agentstate/memory"
	"github.com/hupe1980/agentstate/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	// Properties present
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	if req == nil { // reflection may produce []any
		ifaceReq, _ := schema["required"].([]any)
		for _, v := range ifaceReq {
			req = append(req, v.(string))
		}
	}
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	// Success
	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	// Wrong type
	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

// -------------------- Test Fixtures --------------------

func dummyRunContext(t *testing.T) *core.RunContext {
	t.Helper()

	sessStore := session.NewInMemoryStore()
	artStore := artifact.NewInMemoryStore()
	memStore := memory.NewInMemoryStore()

	sess, err := sessStore.Create("test-app", "user-1", "sess-1")
	require.NoError(t, err)

	emit := make(chan core.Event, 10)
	resume := make(chan struct{}, 1)

	return core.NewRunContext(
		context.Background(),
		sess.ID, "inv-1",
		core.AgentInfo{Name: "Agent", Type: "test"},
		core.Content{},
		0,
		emit, resume,
		sess,
		sessStore, artStore, memStore,
		logging.NoOpLogger{},
	)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	tc := core.NewToolContext(dummyRunContext(t), "fc1")
	result, err := sumTool.Call(tc, map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		// Use interface slice to match ValidateParameters implementation expectation
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	tc := core.NewToolContext(dummyRunContext(t), "fc2")
	_, err := tTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, CodeValidationError, toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	tc := core.NewToolContext(dummyRunContext(t), "fc3")
	_, err := execTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, CodeExecutionError, toolErr.Code)
}

func TestFunctionTool_CustomToolErrorForwarded(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	custom := NewToolError("custom", "special failure", "E_SPECIAL")
	customTool := NewFunctionTool("custom", "Custom", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})
	tc := core.NewToolContext(dummyRunContext(t), "fc4")
	_, err := customTool.Call(tc, map[string]any{})
	assert.Same(t, custom, err)
}

// -------------------- Confirmation Tests --------------------

func TestFunctionTool_NoConfirmationByDefault(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	plain := NewFunctionTool("plain", "No approval needed", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "ok", nil
	})

	required, _ := plain.RequiresConfirmation(map[string]any{})
	assert.False(t, required)
}

func TestFunctionTool_WithConfirmation(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	gated := NewFunctionTool("delete_all", "Deletes everything", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "deleted", nil
	}, WithConfirmation("This removes all data."))

	required, hint := gated.RequiresConfirmation(map[string]any{})
	assert.True(t, required)
	assert.Equal(t, "This removes all data.", hint)

	var _ ConfirmationRequirer = gated
}

func TestFunctionTool_WithConfirmationFunc(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"force": map[string]any{"type": "boolean"},
		},
	}
	gated := NewFunctionTool("maybe_dangerous", "Sometimes needs approval", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "ok", nil
	}, WithConfirmationFunc(func(args map[string]any) (bool, string) {
		if force, _ := args["force"].(bool); force {
			return true, "Forced execution requires approval."
		}
		return false, ""
	}))

	required, _ := gated.RequiresConfirmation(map[string]any{"force": false})
	assert.False(t, required)

	required, hint := gated.RequiresConfirmation(map[string]any{"force": true})
	assert.True(t, required)
	assert.Equal(t, "Forced execution requires approval.", hint)
}

// -------------------- StateManagerTool Tests --------------------

func TestStateManagerTool_SetAndGetState(t *testing.T) {
	sm := NewStateManagerTool()
	runCtx := dummyRunContext(t)
	tc := core.NewToolContext(runCtx, "fc-set")

	// set_state stages in the call's private delta
	res, err := sm.Call(tc, map[string]any{"operation": "set_state", "key": "foo", "value": "bar"})
	assert.NoError(t, err)

	m := res.(map[string]any)
	assert.Equal(t, "foo", m["key"])
	assert.Equal(t, "bar", m["value"])
	assert.Equal(t, "bar", tc.Actions().StateDelta["foo"])

	// Merge actions into an event and commit to the session, as the
	// orchestrator would after the batch completes
	ev := core.NewEvent(runCtx.InvocationID, "tool")
	tc.InternalMergeActions(&ev)
	require.NoError(t, runCtx.SessionStore.AppendEvent(runCtx.SessionID, ev))
	require.NoError(t, runCtx.RefreshSession())

	// get_state
	tcGet := core.NewToolContext(runCtx, "fc-get")
	res, err = sm.Call(tcGet, map[string]any{"operation": "get_state", "key": "foo"})
	assert.NoError(t, err)
	gm := res.(map[string]any)
	assert.True(t, gm["exists"].(bool))
	assert.Equal(t, "bar", gm["value"])
}

func TestStateManagerTool_DeleteState(t *testing.T) {
	sm := NewStateManagerTool()
	runCtx := dummyRunContext(t)
	tc := core.NewToolContext(runCtx, "fc-del")

	_, err := sm.Call(tc, map[string]any{"operation": "delete_state", "key": "gone"})
	assert.NoError(t, err)

	// nil delta value marks a deletion
	v, present := tc.Actions().StateDelta["gone"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestStateManagerTool_FlowControlActions(t *testing.T) {
	sm := NewStateManagerTool()
	runCtx := dummyRunContext(t)
	tc := core.NewToolContext(runCtx, "fc-flow")

	// escalate
	_, err := sm.Call(tc, map[string]any{"operation": "escalate"})
	assert.NoError(t, err)
	assert.NotNil(t, tc.Actions().Escalate)
	assert.True(t, *tc.Actions().Escalate)

	// transfer_agent
	tc2 := core.NewToolContext(runCtx, "fc-transfer")
	_, err = sm.Call(tc2, map[string]any{"operation": "transfer_agent", "agent_name": "NextAgent"})
	assert.NoError(t, err)
	assert.NotNil(t, tc2.Actions().TransferToAgent)
	assert.Equal(t, "NextAgent", *tc2.Actions().TransferToAgent)

	// skip_summarization
	tc3 := core.NewToolContext(runCtx, "fc-skip")
	_, err = sm.Call(tc3, map[string]any{"operation": "skip_summarization"})
	assert.NoError(t, err)
	assert.NotNil(t, tc3.Actions().SkipSummarization)
	assert.True(t, *tc3.Actions().SkipSummarization)
}

func TestStateManagerTool_ArtifactRoundtrip(t *testing.T) {
	sm := NewStateManagerTool()
	runCtx := dummyRunContext(t)
	tc := core.NewToolContext(runCtx, "fc-art")

	res, err := sm.Call(tc, map[string]any{
		"operation": "save_artifact",
		"filename":  "report.txt",
		"data":      "hello world",
	})
	require.NoError(t, err)
	saved := res.(map[string]any)
	assert.Equal(t, 0, saved["version"])
	assert.Equal(t, 0, tc.Actions().ArtifactDelta["report.txt"])

	res, err = sm.Call(tc, map[string]any{"operation": "load_artifact", "filename": "report.txt"})
	require.NoError(t, err)
	loaded := res.(map[string]any)
	assert.Equal(t, "hello world", loaded["data"])
	assert.Equal(t, "text/plain", loaded["mime_type"])

	res, err = sm.Call(tc, map[string]any{"operation": "list_artifacts"})
	require.NoError(t, err)
	listed := res.(map[string]any)
	assert.Equal(t, []string{"report.txt"}, listed["artifacts"])
}

func TestStateManagerTool_MemoryRoundtrip(t *testing.T) {
	sm := NewStateManagerTool()
	runCtx := dummyRunContext(t)
	tc := core.NewToolContext(runCtx, "fc-mem")

	_, err := sm.Call(tc, map[string]any{"operation": "store_memory", "content": "the sky is blue"})
	require.NoError(t, err)

	res, err := sm.Call(tc, map[string]any{"operation": "search_memory", "query": "sky"})
	require.NoError(t, err)
	found := res.(map[string]any)
	assert.Equal(t, 1, found["count"])
}

func TestStateManagerTool_UnknownOperation(t *testing.T) {
	sm := NewStateManagerTool()
	tc := core.NewToolContext(dummyRunContext(t), "fc-bad")

	_, err := sm.Call(tc, map[string]any{"operation": "frobnicate"})
	assert.Error(t, err)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
