package middleware

import (
	"context"
	"time"

	"github.com/no-ai-labs/spice-sub002/execctx"
	"github.com/no-ai-labs/spice-sub002/node"
	"github.com/no-ai-labs/spice-sub002/telemetry"
)

// Logging logs run start/finish and every node invocation via a
// telemetry.Logger, using the same keyval style as ClueLogger.
type Logging struct {
	Base
	Logger telemetry.Logger
}

// NewLogging constructs a Logging middleware. If logger is nil, a no-op
// logger is used.
func NewLogging(logger telemetry.Logger) *Logging {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Logging{Logger: logger}
}

// OnStart logs run start/end and delegates to next.
func (l *Logging) OnStart(ctx context.Context, exec execctx.Context, next StartFunc) error {
	l.Logger.Info(ctx, "graph run starting", "tenant_id", exec.TenantID(), "correlation_id", exec.CorrelationID())
	err := next(ctx, exec)
	if err != nil {
		l.Logger.Error(ctx, "graph run failed", "error", err)
	} else {
		l.Logger.Info(ctx, "graph run finished")
	}
	return err
}

// OnNode logs node entry/exit with duration.
func (l *Logging) OnNode(ctx context.Context, req NodeRequest, next NodeFunc) (node.NodeResult, error) {
	start := time.Now()
	l.Logger.Debug(ctx, "node starting", "node_id", req.Node.ID())
	result, err := next(ctx, req)
	dur := time.Since(start)
	if err != nil {
		l.Logger.Error(ctx, "node failed", "node_id", req.Node.ID(), "duration_ms", dur.Milliseconds(), "error", err)
		return result, err
	}
	l.Logger.Debug(ctx, "node finished", "node_id", req.Node.ID(), "duration_ms", dur.Milliseconds())
	return result, nil
}

// OnFinish logs the terminal run status.
func (l *Logging) OnFinish(ctx context.Context, report RunReport) {
	l.Logger.Info(ctx, "run report", "graph_id", report.GraphID, "run_id", report.RunID, "status", report.Status)
}
