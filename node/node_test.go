package node_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/no-ai-labs/spice-sub002/execctx"
	"github.com/no-ai-labs/spice-sub002/hitl"
	"github.com/no-ai-labs/spice-sub002/message"
	"github.com/no-ai-labs/spice-sub002/node"
)

type stubAgent struct {
	reply message.Message
	err   error
}

func (s stubAgent) ID() string                    { return "agent-1" }
func (s stubAgent) Name() string                  { return "stub" }
func (s stubAgent) Description() string           { return "stub agent" }
func (s stubAgent) Capabilities() []string         { return nil }
func (s stubAgent) CanHandle(message.Message) bool { return true }
func (s stubAgent) GetTools() []string             { return nil }
func (s stubAgent) IsReady() bool                  { return true }
func (s stubAgent) ProcessMessage(context.Context, message.Message) (message.Message, error) {
	return s.reply, s.err
}

type stubTool struct {
	result message.ToolResult
	err    error
}

func (s stubTool) Name() string        { return "search" }
func (s stubTool) Description() string { return "stub tool" }
func (s stubTool) Execute(context.Context, map[string]any, node.ToolContext) (message.ToolResult, error) {
	return s.result, s.err
}

func baseCtx(msg message.Message) node.NodeContext {
	return node.NodeContext{GraphID: "g1", RunID: "r1", State: message.NewState(), Message: msg, Exec: execctx.New()}
}

func TestAgentNode_Run_CopiesReplyAndToolCalls(t *testing.T) {
	reply := message.New("m2", "hi there", message.RoleAssistant).
		WithToolCalls([]message.ToolCall{{ID: "1", Name: "search", Arguments: map[string]any{"q": "go"}}})
	an := node.NewAgentNode("a1", stubAgent{reply: reply})

	result, err := an.Run(context.Background(), baseCtx(message.New("m1", "hello", message.RoleUser)))
	require.NoError(t, err)
	assert.Equal(t, "hi there", result.Data())
	assert.Equal(t, true, result.Metadata()["has_tool_calls"])
	assert.Equal(t, 1, result.Metadata()["tool_call_count"])
	prevMsg, ok := result.Metadata()["_previousMessage"].(message.Message)
	require.True(t, ok)
	assert.Equal(t, "hi there", prevMsg.Content)
}

func TestAgentNode_Run_NoToolCalls(t *testing.T) {
	reply := message.New("m2", "plain reply", message.RoleAssistant)
	an := node.NewAgentNode("a1", stubAgent{reply: reply})

	result, err := an.Run(context.Background(), baseCtx(message.New("m1", "hello", message.RoleUser)))
	require.NoError(t, err)
	assert.Equal(t, false, result.Metadata()["has_tool_calls"])
	assert.Equal(t, 0, result.Metadata()["tool_call_count"])
}

func TestAgentNode_Run_WrapsError(t *testing.T) {
	an := node.NewAgentNode("a1", stubAgent{err: errors.New("boom")})
	_, err := an.Run(context.Background(), baseCtx(message.New("m1", "hello", message.RoleUser)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent node failed")
}

func TestToolNode_Run_Success(t *testing.T) {
	tool := stubTool{result: message.ToolResult{Success: true, Result: "42"}}
	extractCalled := false
	tn := node.NewToolNode("t1", tool, func(node.NodeContext) map[string]any {
		extractCalled = true
		return map[string]any{"q": "go"}
	})

	result, err := tn.Run(context.Background(), baseCtx(message.New("m1", "hello", message.RoleUser)))
	require.NoError(t, err)
	assert.True(t, extractCalled)
	assert.Equal(t, "42", result.Data())
	assert.Equal(t, true, result.Metadata()["tool_success"])
}

func TestToolNode_Run_FailureMetadata(t *testing.T) {
	tool := stubTool{result: message.ToolResult{Success: false, Error: errors.New("bad args")}}
	tn := node.NewToolNode("t1", tool, nil)

	result, err := tn.Run(context.Background(), baseCtx(message.New("m1", "hello", message.RoleUser)))
	require.NoError(t, err)
	assert.Equal(t, false, result.Metadata()["tool_success"])
	assert.Equal(t, "bad args", result.Metadata()["tool_error"])
}

func TestToolNode_Run_ExecuteError(t *testing.T) {
	tn := node.NewToolNode("t1", stubTool{err: errors.New("transport down")}, nil)
	_, err := tn.Run(context.Background(), baseCtx(message.New("m1", "hello", message.RoleUser)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool node failed")
}

func TestToolCallParams_FindsMatchingCall(t *testing.T) {
	msg := message.New("m1", "", message.RoleAssistant).WithToolCalls([]message.ToolCall{
		{ID: "1", Name: "other", Arguments: map[string]any{"x": 1}},
		{ID: "2", Name: "search", Arguments: map[string]any{"q": "go"}},
	})
	extractor := node.ToolCallParams("search")
	params := extractor(baseCtx(msg))
	assert.Equal(t, map[string]any{"q": "go"}, params)
}

func TestToolCallParams_NoMatch(t *testing.T) {
	msg := message.New("m1", "", message.RoleAssistant)
	extractor := node.ToolCallParams("search")
	assert.Nil(t, extractor(baseCtx(msg)))
}

func TestOutputNode_Run_UsesSelector(t *testing.T) {
	on := node.NewOutputNode("o1", func(nctx node.NodeContext) any {
		return nctx.Message.Content
	})
	result, err := on.Run(context.Background(), baseCtx(message.New("m1", "final answer", message.RoleUser)))
	require.NoError(t, err)
	assert.Equal(t, "final answer", result.Data())
}

func TestOutputNode_Run_NilSelector(t *testing.T) {
	on := node.NewOutputNode("o1", nil)
	result, err := on.Run(context.Background(), baseCtx(message.New("m1", "x", message.RoleUser)))
	require.NoError(t, err)
	assert.Nil(t, result.Data())
}

func TestDecisionNode_Run_FirstMatchWins(t *testing.T) {
	dn := node.NewDecisionNode("d1",
		node.Branch{Name: "no", Target: "n-no", Predicate: func(message.Message) bool { return false }},
		node.Branch{Name: "yes", Target: "n-yes", Predicate: func(message.Message) bool { return true }},
		node.Branch{Name: "also-yes", Target: "n-also", Predicate: func(message.Message) bool { return true }},
	)
	result, err := dn.Run(context.Background(), baseCtx(message.New("m1", "x", message.RoleUser)))
	require.NoError(t, err)
	assert.Equal(t, "n-yes", result.Metadata()["_selectedBranch"])
	assert.Equal(t, "yes", result.Metadata()["_branchName"])
}

func TestDecisionNode_Run_FallsBackToOtherwise(t *testing.T) {
	dn := node.NewDecisionNode("d1", node.Branch{Name: "no", Target: "n-no", Predicate: func(message.Message) bool { return false }})
	dn.Otherwise = "n-fallback"

	result, err := dn.Run(context.Background(), baseCtx(message.New("m1", "x", message.RoleUser)))
	require.NoError(t, err)
	assert.Equal(t, "n-fallback", result.Metadata()["_selectedBranch"])
	assert.Equal(t, "otherwise", result.Metadata()["_branchName"])
}

func TestDecisionNode_Run_NoMatchNoOtherwiseErrors(t *testing.T) {
	dn := node.NewDecisionNode("d1", node.Branch{Name: "no", Target: "n-no", Predicate: func(message.Message) bool { return false }})
	_, err := dn.Run(context.Background(), baseCtx(message.New("m1", "x", message.RoleUser)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no branch matched")
}

func TestDecisionNode_BranchTargets(t *testing.T) {
	dn := node.NewDecisionNode("d1",
		node.Branch{Name: "a", Target: "t-a"},
		node.Branch{Name: "b", Target: "t-b"},
	)
	assert.Equal(t, []string{"t-a", "t-b"}, dn.BranchTargets())
}

func TestHumanNode_Run_SetsWaitingAndInteraction(t *testing.T) {
	hn := node.NewHumanNode("h1", "approve?", []hitl.HumanOption{{ID: "yes"}, {ID: "no"}}, time.Minute, nil)
	result, err := hn.Run(context.Background(), baseCtx(message.New("m1", "x", message.RoleUser)))
	require.NoError(t, err)
	assert.True(t, result.IsWaiting())

	interaction, ok := node.PendingInteraction(result)
	require.True(t, ok)
	assert.Equal(t, "h1", interaction.NodeID)
	assert.Equal(t, "approve?", interaction.Prompt)
	require.NotNil(t, interaction.ExpiresAt)
}

func TestHumanNode_Run_NoTimeoutMeansNoExpiry(t *testing.T) {
	hn := node.NewHumanNode("h1", "approve?", nil, 0, nil)
	result, err := hn.Run(context.Background(), baseCtx(message.New("m1", "x", message.RoleUser)))
	require.NoError(t, err)
	interaction, ok := node.PendingInteraction(result)
	require.True(t, ok)
	assert.Nil(t, interaction.ExpiresAt)
}

func TestHumanNode_EffectiveValidator_DefaultsWhenNil(t *testing.T) {
	hn := node.NewHumanNode("h1", "approve?", nil, 0, nil)
	assert.NotNil(t, hn.EffectiveValidator())
}

type stubEngine struct {
	decision node.DecisionResult
	err      error
}

func (s stubEngine) Decide(context.Context, message.Message) (node.DecisionResult, error) {
	return s.decision, s.err
}

func TestEngineDecisionNode_Run_Success(t *testing.T) {
	edn := node.NewEngineDecisionNode("e1", stubEngine{decision: node.DecisionResult{ResultID: "approve", Reason: "policy ok"}})
	result, err := edn.Run(context.Background(), baseCtx(message.New("m1", "x", message.RoleUser)))
	require.NoError(t, err)
	assert.Equal(t, "approve", result.Metadata()["_decisionResult"])
	assert.Equal(t, "policy ok", result.Metadata()["_decisionReason"])
}

func TestEngineDecisionNode_Run_WrapsError(t *testing.T) {
	edn := node.NewEngineDecisionNode("e1", stubEngine{err: errors.New("engine unavailable")})
	_, err := edn.Run(context.Background(), baseCtx(message.New("m1", "x", message.RoleUser)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine decision node failed")
}

func TestNodeContext_PreviousAndPreviousMessage(t *testing.T) {
	prevMsg := message.New("m0", "earlier", message.RoleAssistant)
	state := message.NewState().With("_previous", "prev-data").With("_previousMessage", prevMsg)
	nctx := node.NodeContext{State: state}

	prev, ok := nctx.Previous()
	require.True(t, ok)
	assert.Equal(t, "prev-data", prev)

	got, ok := nctx.PreviousMessage()
	require.True(t, ok)
	assert.Equal(t, "earlier", got.Content)
}
