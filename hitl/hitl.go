// Package hitl defines the Human-in-the-Loop model: HumanInteraction (the
// paused prompt surfaced to an operator), HumanResponse (the operator's
// reply), and response validators. A paused node's checkpoint carries the
// interaction until a resume delivers the matching response.
package hitl

import "time"

// HumanOption is one selectable choice offered to the operator.
type HumanOption struct {
	ID          string
	Label       string
	Description string
}

// HumanInteraction describes a paused step awaiting a HumanResponse.
type HumanInteraction struct {
	NodeID    string
	Prompt    string
	Options   []HumanOption
	PausedAt  time.Time
	ExpiresAt *time.Time
}

// IsExpired reports whether the interaction's deadline has passed relative
// to now.
func (h HumanInteraction) IsExpired(now time.Time) bool {
	if h.ExpiresAt == nil {
		return false
	}
	return now.After(*h.ExpiresAt)
}

// HumanResponse is the operator's reply to a HumanInteraction.
type HumanResponse struct {
	NodeID         string
	SelectedOption string
	Text           string
	Metadata       map[string]any
	Timestamp      time.Time
}

// IsEmpty reports whether the response carries neither a selected option nor
// free text. An empty response is rejected by DefaultValidator unless the
// node's validator explicitly accepts it.
func (r HumanResponse) IsEmpty() bool {
	return r.SelectedOption == "" && r.Text == ""
}

// Validator decides whether a HumanResponse is acceptable for a given
// HumanInteraction. Returning false causes resume to fail with a
// ValidationError and leave the checkpoint unchanged.
type Validator func(interaction HumanInteraction, response HumanResponse) bool

// DefaultValidator rejects empty responses and, when the interaction
// declares Options, requires SelectedOption to name one of them. Any
// non-empty free-text response is accepted when Options is empty.
func DefaultValidator(interaction HumanInteraction, response HumanResponse) bool {
	if response.IsEmpty() {
		return false
	}
	if len(interaction.Options) == 0 {
		return true
	}
	if response.SelectedOption == "" {
		return false
	}
	for _, opt := range interaction.Options {
		if opt.ID == response.SelectedOption {
			return true
		}
	}
	return false
}

// AcceptEmptyValidator wraps a Validator to additionally accept empty
// responses, for nodes that opt in to treating silence as acknowledgment.
func AcceptEmptyValidator(next Validator) Validator {
	return func(interaction HumanInteraction, response HumanResponse) bool {
		if response.IsEmpty() {
			return true
		}
		return next(interaction, response)
	}
}

// Data keys merged into a Message's Data on a successful resume.
const (
	DataKeyHumanResponse   = "_humanResponse"
	DataKeySelectedOption  = "_selectedOption"
	DataKeyHumanText       = "_humanText"
)
