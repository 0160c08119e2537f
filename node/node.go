// Package node defines the sealed node taxonomy driven by the graph runner:
// AgentNode, ToolNode, OutputNode, DecisionNode, HumanNode, and
// EngineDecisionNode. Each exposes Run(NodeContext) (NodeResult, error).
//
// The taxonomy is sealed with an unexported marker method (isNode) that
// prevents external packages from adding new node kinds outside this
// package, while still letting the runner type switch on concrete types
// when it needs kind-specific behavior (HumanNode pause handling,
// DecisionNode branch matching).
package node

import (
	"context"

	"github.com/no-ai-labs/spice-sub002/execctx"
	"github.com/no-ai-labs/spice-sub002/message"
)

// Node is implemented by every node kind. Run must be side-effect-free with
// respect to ctx and the caller's message: it returns a NodeResult describing
// what changed, and the runner (not the node) is responsible for folding that
// into the next State/Message.
type Node interface {
	ID() string
	Run(ctx context.Context, nctx NodeContext) (NodeResult, error)
	isNode()
}

// NodeContext is the immutable context passed to every node invocation. It
// carries the graph/run identity, the persistent state map (keyed by nodeID
// plus the auto-merged metadata keys written back by the runner after each
// step), the current message, and the ambient ExecutionContext.
type NodeContext struct {
	GraphID string
	RunID   string
	State   message.State
	Message message.Message
	Exec    execctx.Context
}

// Previous returns the last node's NodeResult.Data, stored under "_previous".
func (c NodeContext) Previous() (any, bool) {
	return c.State.Get("_previous")
}

// PreviousMessage returns the last full message produced by an AgentNode,
// stored under "_previousMessage".
func (c NodeContext) PreviousMessage() (message.Message, bool) {
	v, ok := c.State.Get("_previousMessage")
	if !ok {
		return message.Message{}, false
	}
	m, ok := v.(message.Message)
	return m, ok
}

// NodeResult is the output of a single node execution. The only public
// constructor is Result, which requires a NodeContext so tenant/correlation
// identity can never be silently dropped when a node builds its result.
type NodeResult struct {
	data       any
	metadata   map[string]any
	nextEdges  []string
	execCtx    execctx.Context
}

// Result constructs a NodeResult seeded from nctx's ExecutionContext. data is
// the node's output value; metadata keys are auto-merged into the next
// node's State by the runner.
func Result(nctx NodeContext, data any, metadata map[string]any) NodeResult {
	return NodeResult{data: data, metadata: metadata, execCtx: nctx.Exec}
}

// WithNextEdges returns a copy of r with a NextEdges hint attached. Reserved
// for future parallel/fan-out support; the runner here does not consult it.
func (r NodeResult) WithNextEdges(edges ...string) NodeResult {
	out := r
	out.nextEdges = edges
	return out
}

// Data returns the node's output value.
func (r NodeResult) Data() any { return r.data }

// Metadata returns the metadata map to be merged into the next node's State.
// Always non-nil.
func (r NodeResult) Metadata() map[string]any {
	if r.metadata == nil {
		return map[string]any{}
	}
	return r.metadata
}

// NextEdges returns the reserved fan-out hint (unused by this runner).
func (r NodeResult) NextEdges() []string { return r.nextEdges }

// ExecCtx returns the ExecutionContext this result was seeded from.
func (r NodeResult) ExecCtx() execctx.Context { return r.execCtx }

// IsWaiting reports whether this result requests a WAITING transition, i.e.
// metadata["execution_state"] == "WAITING". HumanNode
// results are always waiting regardless of this flag; the runner checks
// both.
func (r NodeResult) IsWaiting() bool {
	v, ok := r.Metadata()["execution_state"]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == string(message.StateWaiting)
}

type base struct {
	id string
}

func (b base) ID() string { return b.id }
