package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentstate/artifact"
	"github.com/hupe1980/agentstate/core"
	"github.com/hupe1980/agentstate/logging"
	"github.com/hupe1980/agentstate/memory"
	"github.com/hupe1980/agentstate/session"
	"github.com/hupe1980/agentstate/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPlugin struct {
	Base
	beforeResult any
	afterResult  any
	errorResult  any
	hookErr      error
	calls        []string
}

func (p *recordingPlugin) BeforeToolCallback(_ *core.ToolContext, _ tool.Tool, _ map[string]any) (any, error) {
	p.calls = append(p.calls, "before")
	return p.beforeResult, p.hookErr
}

func (p *recordingPlugin) AfterToolCallback(_ *core.ToolContext, _ tool.Tool, _ map[string]any, _ any) (any, error) {
	p.calls = append(p.calls, "after")
	return p.afterResult, p.hookErr
}

func (p *recordingPlugin) OnToolErrorCallback(_ *core.ToolContext, _ tool.Tool, _ map[string]any, _ error) (any, error) {
	p.calls = append(p.calls, "on_error")
	return p.errorResult, p.hookErr
}

func testToolContext(t *testing.T) *core.ToolContext {
	t.Helper()

	sessStore := session.NewInMemoryStore()
	sess, err := sessStore.Create("test-app", "user-1", "sess-1")
	require.NoError(t, err)

	runCtx := core.NewRunContext(
		context.Background(),
		sess.ID, "inv-1",
		core.AgentInfo{Name: "Agent", Type: "test"},
		core.Content{},
		0,
		make(chan core.Event, 1), make(chan struct{}, 1),
		sess,
		sessStore, artifact.NewInMemoryStore(), memory.NewInMemoryStore(),
		logging.NoOpLogger{},
	)

	return core.NewToolContext(runCtx, "fc-1")
}

func noopTool() tool.Tool {
	return tool.NewFunctionTool("noop", "Does nothing",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) { return "ok", nil },
	)
}

func TestChain_BeforeToolFirstNonNilWins(t *testing.T) {
	p1 := &recordingPlugin{Base: NewBase("p1")}
	p2 := &recordingPlugin{Base: NewBase("p2"), beforeResult: "cached"}
	p3 := &recordingPlugin{Base: NewBase("p3"), beforeResult: "never"}

	chain := NewChain(p1, p2, p3)
	result, err := chain.RunBeforeTool(testToolContext(t), noopTool(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "cached", result)

	// p3 never runs once p2 answered
	assert.Equal(t, []string{"before"}, p1.calls)
	assert.Equal(t, []string{"before"}, p2.calls)
	assert.Empty(t, p3.calls)
}

func TestChain_BeforeToolAllNil(t *testing.T) {
	p1 := &recordingPlugin{Base: NewBase("p1")}
	p2 := &recordingPlugin{Base: NewBase("p2")}

	chain := NewChain(p1, p2)
	result, err := chain.RunBeforeTool(testToolContext(t), noopTool(), map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, []string{"before"}, p1.calls)
	assert.Equal(t, []string{"before"}, p2.calls)
}

func TestChain_HookErrorAborts(t *testing.T) {
	boom := errors.New("hook failed")
	p1 := &recordingPlugin{Base: NewBase("p1"), hookErr: boom}
	p2 := &recordingPlugin{Base: NewBase("p2"), beforeResult: "never"}

	chain := NewChain(p1, p2)
	_, err := chain.RunBeforeTool(testToolContext(t), noopTool(), map[string]any{})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, p2.calls)
}

func TestChain_AfterToolReplacesResult(t *testing.T) {
	p := &recordingPlugin{Base: NewBase("p"), afterResult: map[string]any{"redacted": true}}

	chain := NewChain(p)
	replacement, err := chain.RunAfterTool(testToolContext(t), noopTool(), map[string]any{}, "raw")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"redacted": true}, replacement)
}

func TestChain_OnToolErrorRecovers(t *testing.T) {
	p1 := &recordingPlugin{Base: NewBase("p1")}
	p2 := &recordingPlugin{Base: NewBase("p2"), errorResult: "fallback"}

	chain := NewChain(p1, p2)
	result, err := chain.RunOnToolError(testToolContext(t), noopTool(), map[string]any{}, errors.New("tool blew up"))
	require.NoError(t, err)
	assert.Equal(t, "fallback", result)
}

func TestChain_OnToolErrorUnrecovered(t *testing.T) {
	p := &recordingPlugin{Base: NewBase("p")}

	chain := NewChain(p)
	result, err := chain.RunOnToolError(testToolContext(t), noopTool(), map[string]any{}, errors.New("tool blew up"))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestChain_Empty(t *testing.T) {
	chain := NewChain()
	result, err := chain.RunBeforeTool(testToolContext(t), noopTool(), map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestBase_IsNoOp(t *testing.T) {
	var p Plugin = NewBase("base")
	assert.Equal(t, "base", p.Name())

	result, err := p.BeforeToolCallback(nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}
