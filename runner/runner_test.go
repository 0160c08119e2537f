package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/no-ai-labs/spice-sub002/checkpoint"
	"github.com/no-ai-labs/spice-sub002/checkpoint/inmemstore"
	"github.com/no-ai-labs/spice-sub002/execctx"
	"github.com/no-ai-labs/spice-sub002/graph"
	"github.com/no-ai-labs/spice-sub002/hitl"
	"github.com/no-ai-labs/spice-sub002/message"
	"github.com/no-ai-labs/spice-sub002/node"
	"github.com/no-ai-labs/spice-sub002/runner"
)

func echoOutput(id string) *node.OutputNode {
	return node.NewOutputNode(id, func(nctx node.NodeContext) any {
		return nctx.Message.Content
	})
}

// loopingAgent is a node.Agent stand-in that always echoes the message back
// unchanged, used to exercise a non-terminal node that can legally carry a
// self-edge (an OutputNode cannot per graph.Validate rule 6).
type loopingAgent struct{}

func (loopingAgent) ID() string                     { return "looping-agent" }
func (loopingAgent) Name() string                   { return "looping-agent" }
func (loopingAgent) Description() string            { return "" }
func (loopingAgent) Capabilities() []string         { return nil }
func (loopingAgent) CanHandle(message.Message) bool { return true }
func (loopingAgent) GetTools() []string             { return nil }
func (loopingAgent) IsReady() bool                  { return true }
func (loopingAgent) ProcessMessage(_ context.Context, msg message.Message) (message.Message, error) {
	return msg, nil
}

// constTool is a node.Tool stand-in that always succeeds with a fixed
// result, used for non-terminal nodes ahead of an OutputNode (an OutputNode
// cannot have outgoing edges per graph.Validate rule 6).
type constTool struct{ value any }

func (constTool) Name() string        { return "const" }
func (constTool) Description() string { return "" }
func (c constTool) Execute(context.Context, map[string]any, node.ToolContext) (message.ToolResult, error) {
	return message.ToolResult{Success: true, Result: c.value}, nil
}

func TestRun_LinearChainSucceeds(t *testing.T) {
	t.Parallel()
	g := graph.New("linear", "start")
	g.AddNode(node.NewToolNode("start", constTool{value: "step1"}, nil))
	g.AddNode(echoOutput("end"))
	g.AddEdge(graph.Edge{From: "start", To: "end"})

	r := runner.New()
	report, err := r.Run(context.Background(), g, nil, execctx.New())
	require.NoError(t, err)
	assert.Equal(t, runner.StatusSuccess, report.Status)
	assert.Len(t, report.NodeReports, 2)
}

func TestRun_DecisionNodeRoutesOnPredicate(t *testing.T) {
	t.Parallel()
	g := graph.New("decision", "check")
	g.AddNode(node.NewDecisionNode("check",
		node.Branch{Name: "go-high", Target: "high", Predicate: func(msg message.Message) bool {
			v, _ := msg.Data.Get("score")
			n, _ := v.(int)
			return n >= 10
		}},
		node.Branch{Name: "go-low", Target: "low", Predicate: func(message.Message) bool { return true }},
	))
	g.AddNode(node.NewOutputNode("high", func(node.NodeContext) any { return "high-path" }))
	g.AddNode(node.NewOutputNode("low", func(node.NodeContext) any { return "low-path" }))
	g.AddEdge(graph.Edge{From: "check", To: "high", Condition: func(result node.NodeResult) bool {
		return result.Metadata()["_selectedBranch"] == "high"
	}})
	g.AddEdge(graph.Edge{From: "check", To: "low", Condition: func(result node.NodeResult) bool {
		return result.Metadata()["_selectedBranch"] == "low"
	}})

	r := runner.New()
	report, err := r.Run(context.Background(), g, map[string]any{"score": 20}, execctx.New())
	require.NoError(t, err)
	assert.Equal(t, runner.StatusSuccess, report.Status)
	assert.Equal(t, "high-path", report.Result)
}

func TestRun_MetadataPropagatesAcrossNodes(t *testing.T) {
	t.Parallel()
	g := graph.New("meta", "first")
	g.AddNode(node.NewToolNode("first", constTool{value: "first-result"}, nil))
	g.AddNode(node.NewOutputNode("second", func(nctx node.NodeContext) any {
		prev, _ := nctx.Previous()
		return prev
	}))
	g.AddEdge(graph.Edge{From: "first", To: "second"})

	r := runner.New()
	report, err := r.Run(context.Background(), g, nil, execctx.New())
	require.NoError(t, err)
	assert.Equal(t, "first-result", report.Result, "second node must see first's output via state._previous")
}

func TestRunWithCheckpoint_HumanNodePausesAndSavesCheckpoint(t *testing.T) {
	t.Parallel()
	g := graph.New("hitl", "ask")
	g.AddNode(node.NewHumanNode("ask", "approve?", []hitl.HumanOption{{ID: "yes"}, {ID: "no"}}, time.Hour, nil))
	g.AddNode(echoOutput("done"))
	g.AddEdge(graph.Edge{From: "ask", To: "done"})

	store := inmemstore.New()
	r := runner.New()
	cfg := checkpoint.NewConfig(checkpoint.WithTTL(time.Hour))

	report, err := r.RunWithCheckpoint(context.Background(), g, nil, execctx.New(), store, cfg)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusPaused, report.Status)
	require.NotEmpty(t, report.CheckpointID)

	cp, err := store.Load(context.Background(), report.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, "ask", cp.CurrentNodeID)
	require.NotNil(t, cp.PendingInteraction)
	assert.Equal(t, "approve?", cp.PendingInteraction.Prompt)
}

func TestResume_ApprovedHumanResponseContinuesToSuccess(t *testing.T) {
	t.Parallel()
	g := graph.New("hitl", "ask")
	g.AddNode(node.NewHumanNode("ask", "approve?", []hitl.HumanOption{{ID: "yes"}, {ID: "no"}}, 0, nil))
	g.AddNode(echoOutput("done"))
	g.AddEdge(graph.Edge{From: "ask", To: "done"})

	store := inmemstore.New()
	r := runner.New()

	paused, err := r.RunWithCheckpoint(context.Background(), g, nil, execctx.New(), store, checkpoint.Config{})
	require.NoError(t, err)
	require.Equal(t, runner.StatusPaused, paused.Status)

	resumed, err := r.Resume(context.Background(), g, paused.CheckpointID, store,
		&hitl.HumanResponse{SelectedOption: "yes"}, execctx.New(), checkpoint.Config{AutoCleanup: true})
	require.NoError(t, err)
	assert.Equal(t, runner.StatusSuccess, resumed.Status)

	_, err = store.Load(context.Background(), paused.CheckpointID)
	assert.Error(t, err, "AutoCleanup must delete the checkpoint after a successful resume")
}

func TestResume_RejectedHumanResponseLeavesCheckpointUnchanged(t *testing.T) {
	t.Parallel()
	g := graph.New("hitl", "ask")
	g.AddNode(node.NewHumanNode("ask", "approve?", []hitl.HumanOption{{ID: "yes"}, {ID: "no"}}, 0, nil))
	g.AddNode(echoOutput("done"))
	g.AddEdge(graph.Edge{From: "ask", To: "done"})

	store := inmemstore.New()
	r := runner.New()

	paused, err := r.RunWithCheckpoint(context.Background(), g, nil, execctx.New(), store, checkpoint.Config{})
	require.NoError(t, err)

	before, err := store.Load(context.Background(), paused.CheckpointID)
	require.NoError(t, err)

	_, err = r.Resume(context.Background(), g, paused.CheckpointID, store,
		&hitl.HumanResponse{SelectedOption: "not-an-option"}, execctx.New(), checkpoint.Config{AutoCleanup: true})
	require.Error(t, err)

	after, err := store.Load(context.Background(), paused.CheckpointID)
	require.NoError(t, err, "checkpoint must still exist; AutoCleanup never ran")
	assert.Equal(t, before.CurrentNodeID, after.CurrentNodeID)
	assert.Equal(t, message.StateWaiting, after.Message.State)
}

func TestResume_ExpiredCheckpointFailsAndMarksMessageFailed(t *testing.T) {
	t.Parallel()
	g := graph.New("hitl", "ask")
	g.AddNode(node.NewHumanNode("ask", "approve?", nil, time.Millisecond, nil))
	g.AddNode(echoOutput("done"))
	g.AddEdge(graph.Edge{From: "ask", To: "done"})

	store := inmemstore.New()
	past := time.Now().Add(-time.Hour)
	r := runner.New()
	r.Now = func() time.Time { return past }

	paused, err := r.RunWithCheckpoint(context.Background(), g, nil, execctx.New(), store, checkpoint.NewConfig(checkpoint.WithTTL(time.Millisecond)))
	require.NoError(t, err)

	// Move the clock forward past the checkpoint's expiry.
	r.Now = time.Now

	_, err = r.Resume(context.Background(), g, paused.CheckpointID, store, nil, execctx.New(), checkpoint.Config{})
	require.Error(t, err)

	cp, loadErr := store.Load(context.Background(), paused.CheckpointID)
	require.NoError(t, loadErr)
	assert.Equal(t, message.StateFailed, cp.Message.State)
}

func TestRun_CycleExceedsStepBudgetFails(t *testing.T) {
	t.Parallel()
	g := graph.New("cycle", "loop")
	g.AllowCycles = true
	g.AddNode(node.NewAgentNode("loop", loopingAgent{}))
	g.AddEdge(graph.Edge{From: "loop", To: "loop"})

	r := runner.New(runner.WithStepBudget(5))
	report, err := r.Run(context.Background(), g, nil, execctx.New())
	require.Error(t, err)
	assert.Equal(t, runner.StatusFailed, report.Status)
	assert.Len(t, report.NodeReports, 5)
}

func TestRun_StuckNonTerminalNodeFails(t *testing.T) {
	t.Parallel()
	g := graph.New("stuck", "route")
	g.AddNode(node.NewAgentNode("route", loopingAgent{}))
	g.AddNode(echoOutput("a"))
	g.AddNode(echoOutput("b"))
	g.AddEdge(graph.Edge{From: "route", To: "a", Condition: func(node.NodeResult) bool { return false }})
	g.AddEdge(graph.Edge{From: "route", To: "b", Condition: func(node.NodeResult) bool { return false }})

	r := runner.New()
	report, err := r.Run(context.Background(), g, nil, execctx.New())
	require.Error(t, err, "route has outgoing edges but none match, so this must not be treated as a terminal success")
	assert.Equal(t, runner.StatusFailed, report.Status)
}

func TestResume_NoMatchingEdgeAfterApprovedResponseFails(t *testing.T) {
	t.Parallel()
	g := graph.New("hitl-stuck", "ask")
	g.AddNode(node.NewHumanNode("ask", "approve?", []hitl.HumanOption{{ID: "yes"}, {ID: "reject"}}, 0, nil))
	g.AddNode(echoOutput("done"))
	// Only a "yes" edge exists; a validator-accepted "reject" response has no
	// outgoing edge to follow.
	g.AddEdge(graph.Edge{From: "ask", To: "done", Condition: func(result node.NodeResult) bool {
		data, _ := result.Data().(map[string]any)
		return data[hitl.DataKeySelectedOption] == "yes"
	}})

	store := inmemstore.New()
	r := runner.New()

	paused, err := r.RunWithCheckpoint(context.Background(), g, nil, execctx.New(), store, checkpoint.Config{})
	require.NoError(t, err)
	require.Equal(t, runner.StatusPaused, paused.Status)

	report, err := r.Resume(context.Background(), g, paused.CheckpointID, store,
		&hitl.HumanResponse{SelectedOption: "reject"}, execctx.New(), checkpoint.Config{AutoCleanup: true})
	require.Error(t, err)
	assert.Equal(t, runner.StatusFailed, report.Status)
}

func TestRun_InvalidGraphIsRejectedBeforeExecution(t *testing.T) {
	t.Parallel()
	g := graph.New("bad", "missing-entry")
	g.AddNode(echoOutput("a"))

	r := runner.New()
	_, err := r.Run(context.Background(), g, nil, execctx.New())
	require.Error(t, err)
}

func TestRun_CancelledContextStopsExecution(t *testing.T) {
	t.Parallel()
	g := graph.New("cancel", "start")
	g.AddNode(echoOutput("start"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := runner.New()
	report, err := r.Run(ctx, g, nil, execctx.New())
	require.Error(t, err)
	assert.Equal(t, runner.StatusCancelled, report.Status)
}
