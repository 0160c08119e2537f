package node

import "context"

// Selector computes the terminal result value from the current NodeContext.
type Selector func(nctx NodeContext) any

// OutputNode computes a terminal result by a selector over State. It has no
// outgoing edges.
type OutputNode struct {
	base
	Select Selector
}

// NewOutputNode constructs an OutputNode using select to compute the result.
func NewOutputNode(id string, selectFn Selector) *OutputNode {
	return &OutputNode{base: base{id: id}, Select: selectFn}
}

func (OutputNode) isNode() {}

// Run implements Node.
func (n *OutputNode) Run(_ context.Context, nctx NodeContext) (NodeResult, error) {
	var value any
	if n.Select != nil {
		value = n.Select(nctx)
	}
	return Result(nctx, value, nil), nil
}
