package node

import (
	"context"

	"github.com/no-ai-labs/spice-sub002/execctx"
	"github.com/no-ai-labs/spice-sub002/message"
)

// Agent is the external collaborator consumed by AgentNode. The
// runtime never speaks an LLM wire protocol itself; concrete Agent
// implementations (OpenAI/Anthropic clients, rule-based stand-ins) live
// outside this module.
type Agent interface {
	ID() string
	Name() string
	Description() string
	Capabilities() []string
	CanHandle(msg message.Message) bool
	GetTools() []string
	ProcessMessage(ctx context.Context, msg message.Message) (message.Message, error)
	IsReady() bool
}

// Tool is the external collaborator consumed by ToolNode.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, params map[string]any, tctx ToolContext) (message.ToolResult, error)
}

// ToolContext is injected into Tool.Execute carrying the ambient
// ExecutionContext so tools can apply tenant-scoped policy without the
// caller threading it through every parameter list.
type ToolContext struct {
	Exec execctx.Context
}
