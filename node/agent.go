package node

import (
	"context"

	"github.com/no-ai-labs/spice-sub002/errs"
)

// AgentNode delegates to an external Agent, copying the reply's content into
// Data, the full reply into State["_previousMessage"], and any tool calls on
// the reply into Metadata.
type AgentNode struct {
	base
	Agent Agent
}

// NewAgentNode constructs an AgentNode bound to agent.
func NewAgentNode(id string, agent Agent) *AgentNode {
	return &AgentNode{base: base{id: id}, Agent: agent}
}

func (AgentNode) isNode() {}

// Run implements Node.
func (n *AgentNode) Run(ctx context.Context, nctx NodeContext) (NodeResult, error) {
	reply, err := n.Agent.ProcessMessage(ctx, nctx.Message)
	if err != nil {
		return NodeResult{}, errs.Wrap(errs.KindExecution, "agent node failed", err).WithNode(n.ID())
	}

	metadata := map[string]any{
		"_previousMessage": reply,
	}
	calls := reply.ToolCalls()
	if len(calls) > 0 {
		metadata["tool_calls"] = calls
		metadata["has_tool_calls"] = true
		metadata["tool_call_count"] = len(calls)
	} else {
		metadata["has_tool_calls"] = false
		metadata["tool_call_count"] = 0
	}

	return Result(nctx, reply.Content, metadata), nil
}
