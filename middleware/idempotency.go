package middleware

import (
	"context"
	"encoding/json"

	"github.com/no-ai-labs/spice-sub002/node"
)

// Idempotency caches successful node results keyed by (nodeID, serialized
// message data), so repeated calls to the same node with identical input
// data short-circuit to the cached result rather than re-executing. Nodes
// opt in by name via the Keys set. The cache belongs to the Idempotency
// value and is never cleared, so a Runner that reuses it across runs also
// reuses cached results across those runs.
type Idempotency struct {
	Base
	// Keys names the node ids eligible for idempotent caching. Nodes not in
	// this set always execute.
	Keys map[string]bool

	cache map[string]node.NodeResult
}

// NewIdempotency constructs an Idempotency middleware for the given node ids.
func NewIdempotency(nodeIDs ...string) *Idempotency {
	keys := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		keys[id] = true
	}
	return &Idempotency{Keys: keys, cache: map[string]node.NodeResult{}}
}

// OnNode implements Middleware.
func (i *Idempotency) OnNode(ctx context.Context, req NodeRequest, next NodeFunc) (node.NodeResult, error) {
	if !i.Keys[req.Node.ID()] {
		return next(ctx, req)
	}

	key := cacheKey(req)
	if cached, ok := i.cache[key]; ok {
		return cached, nil
	}

	result, err := next(ctx, req)
	if err == nil {
		i.cache[key] = result
	}
	return result, err
}

func cacheKey(req NodeRequest) string {
	data, _ := json.Marshal(req.Ctx.Message.Data.Map())
	return req.Node.ID() + "|" + string(data)
}
