package node

import (
	"context"

	"github.com/no-ai-labs/spice-sub002/errs"
)

// ParamExtractor derives tool parameters from the current NodeContext.
type ParamExtractor func(nctx NodeContext) map[string]any

// ToolNode invokes an external Tool with parameters derived from State via a
// caller-supplied extractor, passing an injected ToolContext carrying the
// ambient ExecutionContext.
type ToolNode struct {
	base
	Tool      Tool
	Extractor ParamExtractor
}

// NewToolNode constructs a ToolNode bound to tool, using extractor to derive
// parameters from NodeContext.State.
func NewToolNode(id string, tool Tool, extractor ParamExtractor) *ToolNode {
	return &ToolNode{base: base{id: id}, Tool: tool, Extractor: extractor}
}

func (ToolNode) isNode() {}

// Run implements Node.
func (n *ToolNode) Run(ctx context.Context, nctx NodeContext) (NodeResult, error) {
	var params map[string]any
	if n.Extractor != nil {
		params = n.Extractor(nctx)
	}
	tctx := ToolContext{Exec: nctx.Exec}

	result, err := n.Tool.Execute(ctx, params, tctx)
	if err != nil {
		return NodeResult{}, errs.Wrap(errs.KindExecution, "tool node failed", err).WithNode(n.ID())
	}

	metadata := map[string]any{
		"tool_success": result.Success,
	}
	if result.Error != nil {
		metadata["tool_error"] = result.Error.Error()
	}
	if result.RetryHint != nil {
		metadata["tool_retry_hint"] = result.RetryHint
	}
	for k, v := range result.Metadata {
		metadata[k] = v
	}

	return Result(nctx, result.Result, metadata), nil
}

// ToolCallParams extracts arguments of the first ToolCall matching name from
// Message.Data["tool_calls"]. Convenience helper for wiring Extractor
// functions to an AgentNode's requested tool calls.
func ToolCallParams(name string) ParamExtractor {
	return func(nctx NodeContext) map[string]any {
		for _, call := range nctx.Message.ToolCalls() {
			if call.Name == name {
				return call.Arguments
			}
		}
		return nil
	}
}
