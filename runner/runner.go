// Package runner implements GraphRunner: the engine that drives a Message
// through a Graph, wrapping every node invocation in the middleware chain,
// propagating state and metadata, checkpointing on pause or failure, and
// resuming paused runs with a HumanResponse.
package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/no-ai-labs/spice-sub002/checkpoint"
	"github.com/no-ai-labs/spice-sub002/errs"
	"github.com/no-ai-labs/spice-sub002/execctx"
	"github.com/no-ai-labs/spice-sub002/graph"
	"github.com/no-ai-labs/spice-sub002/hitl"
	"github.com/no-ai-labs/spice-sub002/message"
	"github.com/no-ai-labs/spice-sub002/middleware"
	"github.com/no-ai-labs/spice-sub002/node"
)

// Status is the terminal (or paused) outcome of a run.
type Status string

const (
	StatusSuccess   Status = "SUCCESS"
	StatusPaused    Status = "PAUSED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// NodeReport records the outcome of a single node invocation within a run.
type NodeReport struct {
	NodeID        string
	Duration      time.Duration
	Status        Status
	Output        any
	MetadataDelta map[string]any
	Error         error
}

// RunReport is the terminal record of a run.
type RunReport struct {
	GraphID      string
	RunID        string
	Status       Status
	Result       any
	CheckpointID string
	NodeReports  []NodeReport
}

func (r RunReport) toMiddlewareReport() middleware.RunReport {
	return middleware.RunReport{
		GraphID:      r.GraphID,
		RunID:        r.RunID,
		Status:       string(r.Status),
		Result:       r.Result,
		CheckpointID: r.CheckpointID,
	}
}

// DefaultStepBudget bounds the number of node steps taken in a single run
// when the graph allows cycles.
const DefaultStepBudget = 10000

// Runner drives Graph executions. Construct with New to apply options; a
// zero StepBudget falls back to DefaultStepBudget and a nil Now to time.Now.
type Runner struct {
	Middleware []middleware.Middleware
	StepBudget int
	// Limiter, when set, is consulted once per node step to pace execution
	// (e.g. to smooth bursts from cyclic graphs); nil disables pacing.
	Limiter *rate.Limiter
	// Now is overridable for deterministic tests.
	Now func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMiddleware appends mw to the Runner's middleware chain, in the order
// provided (first argument becomes the outermost wrapper).
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(r *Runner) { r.Middleware = append(r.Middleware, mw...) }
}

// WithStepBudget overrides DefaultStepBudget.
func WithStepBudget(n int) Option {
	return func(r *Runner) { r.StepBudget = n }
}

// WithRateLimit paces node execution to at most rps steps per second with
// the given burst allowance, using golang.org/x/time/rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(r *Runner) { r.Limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New constructs a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{StepBudget: DefaultStepBudget, Now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes graph from its entry point until a terminal state or a
// WAITING pause, without checkpoint persistence (a pause with no store
// configured still returns PAUSED, but GetPendingInteractions/Resume will
// have nothing to load).
func (r *Runner) Run(ctx context.Context, g *graph.Graph, input map[string]any, exec execctx.Context) (RunReport, error) {
	return r.RunWithCheckpoint(ctx, g, input, exec, nil, checkpoint.Config{})
}

// RunWithCheckpoint executes graph the same way Run does, additionally
// persisting a Checkpoint to store when the run pauses, fails with
// cfg.SaveOnError set, or (when cfg.SaveEveryNNodes > 0) every N completed
// nodes.
func (r *Runner) RunWithCheckpoint(ctx context.Context, g *graph.Graph, input map[string]any, exec execctx.Context, store checkpoint.Store, cfg checkpoint.Config) (RunReport, error) {
	if result := graph.Validate(g); !result.OK() {
		return RunReport{}, errs.Errorf(errs.KindValidation, "invalid graph: %v", result.Fatal())
	}

	runID := uuid.NewString()
	msg := message.New(uuid.NewString(), "", message.RoleUser).WithData(input)
	msg, ok := msg.TransitionTo(message.StateRunning, g.EntryPoint)
	if !ok {
		return RunReport{}, errs.New(errs.KindExecution, "cannot start run: CREATED->RUNNING transition rejected")
	}

	report := RunReport{GraphID: g.ID, RunID: runID}

	startFn := middleware.ComposeStart(r.Middleware, func(context.Context, execctx.Context) error { return nil })
	if err := startFn(ctx, exec); err != nil {
		report.Status = StatusFailed
		middleware.RunFinish(r.Middleware, ctx, report.toMiddlewareReport())
		return report, err
	}

	report, err := r.loop(ctx, g, msg, message.NewState(), g.EntryPoint, runID, exec, store, cfg, &report, 0)
	if report.Status != StatusPaused {
		middleware.RunFinish(r.Middleware, ctx, report.toMiddlewareReport())
	}
	return report, err
}

// loop drives nodes starting at nodeID until terminal/paused/failed, folding
// results into state and report as it goes.
func (r *Runner) loop(
	ctx context.Context,
	g *graph.Graph,
	msg message.Message,
	state message.State,
	nodeID string,
	runID string,
	exec execctx.Context,
	store checkpoint.Store,
	cfg checkpoint.Config,
	report *RunReport,
	steps int,
) (RunReport, error) {
	for {
		if err := ctx.Err(); err != nil {
			report.Status = StatusCancelled
			return *report, errs.Wrap(errs.KindCancellation, "run cancelled", err)
		}

		if g.AllowCycles {
			steps++
			budget := r.StepBudget
			if budget <= 0 {
				budget = DefaultStepBudget
			}
			if steps > budget {
				report.Status = StatusFailed
				return *report, errs.New(errs.KindExecution, "step budget exceeded")
			}
		}

		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				report.Status = StatusCancelled
				return *report, errs.Wrap(errs.KindCancellation, "run cancelled waiting on rate limiter", err)
			}
		}

		n, ok := g.Nodes[nodeID]
		if !ok {
			report.Status = StatusFailed
			return *report, errs.Errorf(errs.KindExecution, "node %q not found in graph", nodeID)
		}

		nctx := node.NodeContext{GraphID: g.ID, RunID: runID, State: state, Message: msg, Exec: exec}
		req := middleware.NodeRequest{Node: n, Ctx: nctx}

		nodeFn := middleware.ComposeNode(r.Middleware, func(ctx context.Context, req middleware.NodeRequest) (node.NodeResult, error) {
			return req.Node.Run(ctx, req.Ctx)
		})

		start := r.now()
		result, err := nodeFn(ctx, req)
		duration := r.now().Sub(start)

		if err != nil {
			report.NodeReports = append(report.NodeReports, NodeReport{
				NodeID: nodeID, Duration: duration, Status: StatusFailed, Error: err,
			})
			report.Status = StatusFailed
			if cfg.SaveOnError && store != nil {
				failed, _ := msg.TransitionTo(message.StateFailed, nodeID)
				_ = r.saveCheckpoint(ctx, store, cfg, report, runID, g.ID, nodeID, failed, nil)
			}
			return *report, err
		}

		// AgentNode already sets "_previousMessage" in its own metadata (see
		// node.AgentNode.Run), so it propagates here via the WithAll merge
		// below without a node-kind special case.
		metadata := result.Metadata()
		state = state.With(nodeID, result.Data()).With("_previous", result.Data()).WithAll(metadata)

		report.NodeReports = append(report.NodeReports, NodeReport{
			NodeID: nodeID, Duration: duration, Status: StatusSuccess, Output: result.Data(), MetadataDelta: metadata,
		})

		_, isHuman := n.(*node.HumanNode)
		if result.IsWaiting() || isHuman {
			waiting, ok := msg.TransitionTo(message.StateWaiting, nodeID)
			if !ok {
				report.Status = StatusFailed
				return *report, errs.New(errs.KindExecution, "cannot pause: RUNNING->WAITING transition rejected")
			}
			interaction, _ := node.PendingInteraction(result)
			report.Status = StatusPaused
			if store != nil {
				if err := r.saveCheckpoint(ctx, store, cfg, report, runID, g.ID, nodeID, waiting, &interaction); err != nil {
					return *report, err
				}
			}
			return *report, nil
		}

		if cfg.SaveEveryNNodes > 0 && len(report.NodeReports)%cfg.SaveEveryNNodes == 0 && store != nil {
			_ = r.saveCheckpoint(ctx, store, cfg, report, runID, g.ID, nodeID, msg, nil)
		}

		edge, matched := g.SelectNext(nodeID, result)
		if !matched {
			if len(g.OutgoingEdges(nodeID)) == 0 {
				report.Status = StatusSuccess
				report.Result = result.Data()
				return *report, nil
			}
			report.Status = StatusFailed
			return *report, errs.Errorf(errs.KindExecution, "no outgoing edge matched at node %q", nodeID)
		}
		nodeID = edge.To
	}
}

func (r *Runner) saveCheckpoint(ctx context.Context, store checkpoint.Store, cfg checkpoint.Config, report *RunReport, runID, graphID, nodeID string, msg message.Message, interaction *hitl.HumanInteraction) error {
	id := uuid.NewString()
	cp := checkpoint.Checkpoint{
		ID: id, RunID: runID, GraphID: graphID, CurrentNodeID: nodeID,
		Message: msg, CreatedAt: r.now(), PendingInteraction: interaction,
	}
	if cfg.TTL > 0 {
		expires := r.now().Add(cfg.TTL)
		cp.ExpiresAt = &expires
	}
	if err := store.Save(ctx, cp); err != nil {
		report.Status = StatusFailed
		return errs.Wrap(errs.KindCheckpoint, "save checkpoint", err)
	}
	report.CheckpointID = id
	return nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// GetPendingInteractions returns the pending HumanInteraction for the given
// checkpoint, if its saved message is currently WAITING.
func (r *Runner) GetPendingInteractions(ctx context.Context, checkpointID string, store checkpoint.Store) ([]hitl.HumanInteraction, error) {
	cp, err := store.Load(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	if cp.PendingInteraction == nil || cp.Message.State != message.StateWaiting {
		return nil, nil
	}
	return []hitl.HumanInteraction{*cp.PendingInteraction}, nil
}

// Resume loads checkpointID, optionally validates and merges a HumanResponse
// into the paused message, and continues execution at the paused node's
// successor.
func (r *Runner) Resume(ctx context.Context, g *graph.Graph, checkpointID string, store checkpoint.Store, response *hitl.HumanResponse, exec execctx.Context, cfg checkpoint.Config) (RunReport, error) {
	cp, err := store.Load(ctx, checkpointID)
	if err != nil {
		return RunReport{}, err
	}

	now := r.now()
	if cp.IsExpired(now) {
		failed, _ := cp.Message.TransitionTo(message.StateFailed, cp.CurrentNodeID)
		cp.Message = failed
		_ = store.Save(ctx, cp)
		return RunReport{GraphID: cp.GraphID, RunID: cp.RunID, Status: StatusFailed, CheckpointID: checkpointID},
			errs.New(errs.KindTimeout, "checkpoint expired")
	}

	n, ok := g.Nodes[cp.CurrentNodeID]
	if !ok {
		return RunReport{}, errs.Errorf(errs.KindExecution, "node %q not found in graph", cp.CurrentNodeID)
	}

	msg := cp.Message
	if response != nil {
		validator := hitl.DefaultValidator
		if hn, ok := n.(*node.HumanNode); ok {
			validator = hn.EffectiveValidator()
		}
		var interaction hitl.HumanInteraction
		if cp.PendingInteraction != nil {
			interaction = *cp.PendingInteraction
		}
		if !validator(interaction, *response) {
			return RunReport{GraphID: cp.GraphID, RunID: cp.RunID, Status: StatusFailed, CheckpointID: checkpointID},
				errs.New(errs.KindValidation, "human response rejected by validator")
		}
		msg = msg.WithData(map[string]any{
			hitl.DataKeyHumanResponse:  *response,
			hitl.DataKeySelectedOption: response.SelectedOption,
			hitl.DataKeyHumanText:      response.Text,
		})
	}
	msg, ok = msg.TransitionTo(message.StateRunning, cp.CurrentNodeID)
	if !ok {
		return RunReport{}, errs.New(errs.KindExecution, "cannot resume: WAITING->RUNNING transition rejected")
	}

	report := RunReport{GraphID: g.ID, RunID: cp.RunID}

	startFn := middleware.ComposeStart(r.Middleware, func(context.Context, execctx.Context) error { return nil })
	if err := startFn(ctx, exec); err != nil {
		report.Status = StatusFailed
		middleware.RunFinish(r.Middleware, ctx, report.toMiddlewareReport())
		return report, err
	}

	state := message.NewState().With("_previous", msg.Data)

	// The original NodeResult produced by the paused node is not part of the
	// persisted checkpoint (only the Message survives), so edge conditions
	// evaluated here see the merged message data rather than the pause-time
	// result value. HumanNode's own outgoing edges are expected to be
	// unconditional (or to inspect _humanResponse/_selectedOption, which are
	// present in msg.Data by this point).
	pauseResult := node.Result(node.NodeContext{Exec: exec}, msg.Data.Map(), nil)
	edge, matched := g.SelectNext(cp.CurrentNodeID, pauseResult)
	var nextNodeID string
	if matched {
		nextNodeID = edge.To
	} else if len(g.OutgoingEdges(cp.CurrentNodeID)) == 0 {
		report.Status = StatusSuccess
		middleware.RunFinish(r.Middleware, ctx, report.toMiddlewareReport())
		if cfg.AutoCleanup {
			_ = store.Delete(ctx, checkpointID)
		}
		return report, nil
	} else {
		report.Status = StatusFailed
		middleware.RunFinish(r.Middleware, ctx, report.toMiddlewareReport())
		return report, errs.Errorf(errs.KindExecution, "no outgoing edge matched at node %q", cp.CurrentNodeID)
	}

	out, err := r.loop(ctx, g, msg, state, nextNodeID, cp.RunID, exec, store, cfg, &report, 0)
	if out.Status != StatusPaused {
		middleware.RunFinish(r.Middleware, ctx, out.toMiddlewareReport())
		if out.Status == StatusSuccess && cfg.AutoCleanup {
			_ = store.Delete(ctx, checkpointID)
		}
	}
	return out, err
}
