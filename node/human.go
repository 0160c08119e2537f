package node

import (
	"context"
	"time"

	"github.com/no-ai-labs/spice-sub002/hitl"
)

// HumanNode returns a result with execution_state=WAITING and a
// pendingInteraction populated from its Prompt/Options/Timeout. It never
// blocks or performs I/O itself; the runner handles persistence and pause
// detection.
type HumanNode struct {
	base
	Prompt    string
	Options   []hitl.HumanOption
	Timeout   time.Duration
	Validator hitl.Validator
}

// NewHumanNode constructs a HumanNode. If validator is nil,
// hitl.DefaultValidator is used on resume.
func NewHumanNode(id, prompt string, options []hitl.HumanOption, timeout time.Duration, validator hitl.Validator) *HumanNode {
	return &HumanNode{base: base{id: id}, Prompt: prompt, Options: options, Timeout: timeout, Validator: validator}
}

func (HumanNode) isNode() {}

// Run implements Node. PausedAt and ExpiresAt are computed from time.Now();
// the clock is not injectable (runner.Runner.Now does not affect them).
func (n *HumanNode) Run(_ context.Context, nctx NodeContext) (NodeResult, error) {
	now := time.Now()
	interaction := hitl.HumanInteraction{
		NodeID:   n.ID(),
		Prompt:   n.Prompt,
		Options:  n.Options,
		PausedAt: now,
	}
	if n.Timeout > 0 {
		expires := now.Add(n.Timeout)
		interaction.ExpiresAt = &expires
	}
	return Result(nctx, nil, map[string]any{
		"execution_state":    "WAITING",
		"pendingInteraction": interaction,
	}), nil
}

// PendingInteraction extracts the HumanInteraction attached to r, if any.
func PendingInteraction(r NodeResult) (hitl.HumanInteraction, bool) {
	v, ok := r.Metadata()["pendingInteraction"]
	if !ok {
		return hitl.HumanInteraction{}, false
	}
	interaction, ok := v.(hitl.HumanInteraction)
	return interaction, ok
}

// EffectiveValidator returns n.Validator, or hitl.DefaultValidator if unset.
func (n *HumanNode) EffectiveValidator() hitl.Validator {
	if n.Validator != nil {
		return n.Validator
	}
	return hitl.DefaultValidator
}
