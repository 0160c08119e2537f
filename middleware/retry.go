package middleware

import (
	"context"
	"time"

	"github.com/no-ai-labs/spice-sub002/node"
)

// ErrorDecision is the choice a middleware makes when a node's OnNode
// invocation fails.
type ErrorDecision string

const (
	// DecisionPropagate re-raises the error (default).
	DecisionPropagate ErrorDecision = "PROPAGATE"
	// DecisionRetry retries up to N times with the configured backoff.
	DecisionRetry ErrorDecision = "RETRY"
	// DecisionSkip treats the failure as success with empty data.
	DecisionSkip ErrorDecision = "SKIP"
	// DecisionContinue suppresses the error and continues with last-known data.
	DecisionContinue ErrorDecision = "CONTINUE"
)

// BackoffStrategy computes the delay before retry attempt n (1-based).
type BackoffStrategy func(attempt int, base time.Duration) time.Duration

// FixedBackoff always waits base.
func FixedBackoff(_ int, base time.Duration) time.Duration { return base }

// LinearBackoff waits base*attempt.
func LinearBackoff(attempt int, base time.Duration) time.Duration {
	return base * time.Duration(attempt)
}

// ExponentialBackoff waits base*2^(attempt-1), capped at cap.
func ExponentialBackoff(cap time.Duration) BackoffStrategy {
	return func(attempt int, base time.Duration) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d > cap {
				return cap
			}
		}
		if d > cap {
			return cap
		}
		return d
	}
}

// ErrorPolicy maps a node error to an ErrorDecision. Implementations decide
// per node/error, e.g. by node id or error kind.
type ErrorPolicy func(req NodeRequest, err error) ErrorDecision

// Retry middleware applies an ErrorPolicy on OnNode failure: PROPAGATE
// re-raises, RETRY re-invokes next up to MaxAttempts with Backoff delay,
// SKIP treats the failure as an empty success, CONTINUE returns the last
// successful result for this node (or an empty one if none yet seen).
type Retry struct {
	Base
	Policy      ErrorPolicy
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     BackoffStrategy
	Sleep       func(time.Duration) // overridable for tests

	lastSuccess map[string]node.NodeResult
}

// NewRetry constructs a Retry middleware. policy defaults to always
// PROPAGATE when nil.
func NewRetry(policy ErrorPolicy, maxAttempts int, baseDelay time.Duration, backoff BackoffStrategy) *Retry {
	if policy == nil {
		policy = func(NodeRequest, error) ErrorDecision { return DecisionPropagate }
	}
	if backoff == nil {
		backoff = FixedBackoff
	}
	return &Retry{
		Policy:      policy,
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Backoff:     backoff,
		Sleep:       time.Sleep,
		lastSuccess: map[string]node.NodeResult{},
	}
}

// OnNode implements Middleware.
func (r *Retry) OnNode(ctx context.Context, req NodeRequest, next NodeFunc) (node.NodeResult, error) {
	attempt := 0
	for {
		attempt++
		result, err := next(ctx, req)
		if err == nil {
			r.lastSuccess[req.Node.ID()] = result
			return result, nil
		}

		switch r.Policy(req, err) {
		case DecisionRetry:
			if attempt > r.MaxAttempts {
				return result, err
			}
			if r.Sleep != nil {
				r.Sleep(r.Backoff(attempt, r.BaseDelay))
			}
			continue
		case DecisionSkip:
			return node.Result(req.Ctx, nil, nil), nil
		case DecisionContinue:
			if last, ok := r.lastSuccess[req.Node.ID()]; ok {
				return last, nil
			}
			return node.Result(req.Ctx, nil, nil), nil
		default: // DecisionPropagate
			return result, err
		}
	}
}
