package node

import (
	"context"

	"github.com/no-ai-labs/spice-sub002/errs"
	"github.com/no-ai-labs/spice-sub002/message"
)

// Predicate evaluates a branch condition against the current message.
type Predicate func(msg message.Message) bool

// Branch is one ordered candidate route considered by DecisionNode.
type Branch struct {
	Name      string
	Target    string
	Predicate Predicate
}

// DecisionNode evaluates an ordered list of branches against the message; on
// first match it sets data["_selectedBranch"], data["_decisionNodeId"], and
// data["_branchName"]. It fails if none match and no "otherwise" branch
// exists.
type DecisionNode struct {
	base
	Branches  []Branch
	Otherwise string // target node id used when no branch predicate matches; empty means none
}

// NewDecisionNode constructs a DecisionNode with the given ordered branches.
func NewDecisionNode(id string, branches ...Branch) *DecisionNode {
	return &DecisionNode{base: base{id: id}, Branches: branches}
}

func (DecisionNode) isNode() {}

// BranchTargets returns the declared target node id for every branch,
// excluding Otherwise (graph.Validate does not check Otherwise against the
// graph's edges).
func (n *DecisionNode) BranchTargets() []string {
	out := make([]string, 0, len(n.Branches))
	for _, b := range n.Branches {
		out = append(out, b.Target)
	}
	return out
}

// Run implements Node.
func (n *DecisionNode) Run(_ context.Context, nctx NodeContext) (NodeResult, error) {
	for _, b := range n.Branches {
		if b.Predicate != nil && b.Predicate(nctx.Message) {
			return Result(nctx, nil, map[string]any{
				"_selectedBranch": b.Target,
				"_decisionNodeId": n.ID(),
				"_branchName":     b.Name,
			}), nil
		}
	}
	if n.Otherwise != "" {
		return Result(nctx, nil, map[string]any{
			"_selectedBranch": n.Otherwise,
			"_decisionNodeId": n.ID(),
			"_branchName":     "otherwise",
		}), nil
	}
	return NodeResult{}, errs.Errorf(errs.KindExecution, "decision node %q: no branch matched and no otherwise branch configured", n.ID()).WithNode(n.ID())
}
