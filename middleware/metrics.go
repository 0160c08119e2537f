package middleware

import (
	"context"
	"time"

	"github.com/no-ai-labs/spice-sub002/node"
	"github.com/no-ai-labs/spice-sub002/telemetry"
)

// Metrics records per-node duration and run outcome counters via a
// telemetry.Metrics recorder.
type Metrics struct {
	Base
	Recorder telemetry.Metrics
}

// NewMetrics constructs a Metrics middleware. If recorder is nil, a no-op
// recorder is used.
func NewMetrics(recorder telemetry.Metrics) *Metrics {
	if recorder == nil {
		recorder = telemetry.NewNoopMetrics()
	}
	return &Metrics{Recorder: recorder}
}

// OnNode records node execution duration and a success/failure counter.
func (m *Metrics) OnNode(ctx context.Context, req NodeRequest, next NodeFunc) (node.NodeResult, error) {
	start := time.Now()
	result, err := next(ctx, req)
	m.Recorder.RecordTimer("graph.node.duration", time.Since(start), "node_id", req.Node.ID())
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Recorder.IncCounter("graph.node.count", 1, "node_id", req.Node.ID(), "status", status)
	return result, err
}

// OnFinish records a run-outcome counter.
func (m *Metrics) OnFinish(_ context.Context, report RunReport) {
	m.Recorder.IncCounter("graph.run.count", 1, "graph_id", report.GraphID, "status", report.Status)
}
