package node

import (
	"context"

	"github.com/no-ai-labs/spice-sub002/errs"
	"github.com/no-ai-labs/spice-sub002/message"
)

// DecisionResult is returned by a PolicyEngine with a stable ResultID the
// runner matches against edge conditions via state["_decisionResult"].
type DecisionResult struct {
	ResultID string
	Reason   string
}

// PolicyEngine is the external collaborator consulted by EngineDecisionNode.
type PolicyEngine interface {
	Decide(ctx context.Context, msg message.Message) (DecisionResult, error)
}

// EngineDecisionNode is like DecisionNode but delegates branch selection to
// an injected PolicyEngine.
type EngineDecisionNode struct {
	base
	Engine PolicyEngine
}

// NewEngineDecisionNode constructs an EngineDecisionNode bound to engine.
func NewEngineDecisionNode(id string, engine PolicyEngine) *EngineDecisionNode {
	return &EngineDecisionNode{base: base{id: id}, Engine: engine}
}

func (EngineDecisionNode) isNode() {}

// Run implements Node.
func (n *EngineDecisionNode) Run(ctx context.Context, nctx NodeContext) (NodeResult, error) {
	decision, err := n.Engine.Decide(ctx, nctx.Message)
	if err != nil {
		return NodeResult{}, errs.Wrap(errs.KindExecution, "engine decision node failed", err).WithNode(n.ID())
	}
	return Result(nctx, nil, map[string]any{
		"_decisionResult": decision.ResultID,
		"_decisionReason": decision.Reason,
		"_decisionNodeId": n.ID(),
	}), nil
}
