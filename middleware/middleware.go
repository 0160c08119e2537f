// Package middleware implements the onion pipeline wrapping graph execution
// (OnStart/OnNode/OnFinish). Middleware is composed by function composition
// (first registered wraps the second, etc.), not inheritance.
package middleware

import (
	"context"

	"github.com/no-ai-labs/spice-sub002/execctx"
	"github.com/no-ai-labs/spice-sub002/node"
)

// RunReport is forward-declared here (not imported from package runner) to
// avoid an import cycle: runner depends on middleware, so middleware cannot
// depend back on runner. OnFinish receives the same shape runner.RunReport
// exposes; runner converts between the two at the call site.
type RunReport struct {
	GraphID     string
	RunID       string
	Status      string
	Result      any
	CheckpointID string
}

// NodeRequest is the input to an onNode middleware link.
type NodeRequest struct {
	Node node.Node
	Ctx  node.NodeContext
}

// NodeFunc executes (or continues to the next link for) a single node.
type NodeFunc func(ctx context.Context, req NodeRequest) (node.NodeResult, error)

// StartFunc executes (or continues to the next link for) a run.
type StartFunc func(ctx context.Context, exec execctx.Context) error

// Middleware is the cross-cutting interceptor interface. OnStart and OnNode
// each receive the next link in the chain and must call it to continue
// (or not, to short-circuit). OnFinish is invoked in declaration order
// without wrapping, only on terminal run states (SUCCESS/FAILED/CANCELLED),
// never on PAUSED.
type Middleware interface {
	OnStart(ctx context.Context, exec execctx.Context, next StartFunc) error
	OnNode(ctx context.Context, req NodeRequest, next NodeFunc) (node.NodeResult, error)
	OnFinish(ctx context.Context, report RunReport)
}

// ComposeNode composes a list of Middleware around a terminal NodeFunc, so that
// chain[0] wraps chain[1] wraps ... wraps terminal. This is the "onion":
// chain[0].OnNode runs first and last, LIFO relative to wrapping order.
func ComposeNode(chain []Middleware, terminal NodeFunc) NodeFunc {
	fn := terminal
	for i := len(chain) - 1; i >= 0; i-- {
		mw := chain[i]
		next := fn
		fn = func(ctx context.Context, req NodeRequest) (node.NodeResult, error) {
			return mw.OnNode(ctx, req, next)
		}
	}
	return fn
}

// ComposeStart composes a list of Middleware around a terminal StartFunc
// the same way ComposeNode does for OnNode.
func ComposeStart(chain []Middleware, terminal StartFunc) StartFunc {
	fn := terminal
	for i := len(chain) - 1; i >= 0; i-- {
		mw := chain[i]
		next := fn
		fn = func(ctx context.Context, exec execctx.Context) error {
			return mw.OnStart(ctx, exec, next)
		}
	}
	return fn
}

// RunFinish invokes every middleware's OnFinish in declaration order
// (not wrapped/nested).
func RunFinish(chain []Middleware, ctx context.Context, report RunReport) {
	for _, mw := range chain {
		mw.OnFinish(ctx, report)
	}
}

// Base provides no-op OnStart/OnNode/OnFinish implementations so concrete
// middleware only need to override the methods they care about.
type Base struct{}

func (Base) OnStart(ctx context.Context, exec execctx.Context, next StartFunc) error {
	return next(ctx, exec)
}

func (Base) OnNode(ctx context.Context, req NodeRequest, next NodeFunc) (node.NodeResult, error) {
	return next(ctx, req)
}

func (Base) OnFinish(context.Context, RunReport) {}
