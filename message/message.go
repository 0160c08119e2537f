// Package message defines SpiceMessage, the single immutable message driven
// through a graph run, plus the execution state machine and the tool call /
// result shapes exchanged with LLM backends.
package message

import "time"

// Role identifies the speaker for a message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
	RoleTool      Role = "TOOL"
)

// ExecutionState is the coarse lifecycle state of a message as it moves
// through a graph run. Transitions between states are enforced by
// Message.TransitionTo.
type ExecutionState string

const (
	StateCreated   ExecutionState = "CREATED"
	StateRunning   ExecutionState = "RUNNING"
	StateWaiting   ExecutionState = "WAITING"
	StateCompleted ExecutionState = "COMPLETED"
	StateFailed    ExecutionState = "FAILED"
	StateCancelled ExecutionState = "CANCELLED"
)

// validTransitions enumerates the allowed ExecutionState edges. A transition
// not listed here is rejected by Message.TransitionTo.
var validTransitions = map[ExecutionState]map[ExecutionState]bool{
	StateCreated:   {StateRunning: true, StateCancelled: true},
	StateRunning:   {StateWaiting: true, StateCompleted: true, StateFailed: true, StateCancelled: true, StateRunning: true},
	StateWaiting:   {StateRunning: true, StateFailed: true, StateCancelled: true},
	StateCompleted: {},
	StateFailed:    {},
	StateCancelled: {},
}

// CanTransition reports whether the state machine allows moving from from to to.
func CanTransition(from, to ExecutionState) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// Transition records one state change in a message's history.
type Transition struct {
	From      ExecutionState
	To        ExecutionState
	NodeID    string
	At        time.Time
}

// ToolCall is a structured tool invocation request carried inside
// data["tool_calls"].
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult is the outcome of executing a ToolCall.
//
// Error is an error value (typically an *errs.Error) rather than a bare
// string, so in-process callers keep errors.Is/As compatibility. It is an
// interface field, so JSON or BSON decoding does not restore it. RetryHint
// optionally carries enough structure for a re-planning AgentNode to
// self-correct.
type ToolResult struct {
	Success   bool
	Result    any
	Error     error
	RetryHint *RetryHint
	Metadata  map[string]any
}

// RetryHint carries structured guidance for a failed tool call.
type RetryHint struct {
	Issues      []FieldIssue
	ExampleJSON string
}

// FieldIssue describes a single field-level validation problem.
type FieldIssue struct {
	Field   string
	Problem string
}

// Message is the single immutable record driven through a graph run.
//
// Every mutation (WithContent, WithData, WithNodeID, TransitionTo) returns a
// new Message; prior versions remain reachable through whatever reference
// the caller held onto. Only TransitionTo appends to History; WithContent,
// WithData and WithNodeID leave History unchanged.
type Message struct {
	ID        string
	Content   string
	Role      Role
	From      string
	To        string
	Data      State
	State     ExecutionState
	NodeID    string
	History   []Transition
	Timestamp time.Time
}

// New constructs a fresh Message in StateCreated.
func New(id, content string, role Role) Message {
	return Message{
		ID:        id,
		Content:   content,
		Role:      role,
		Data:      NewState(),
		State:     StateCreated,
		Timestamp: time.Now(),
	}
}

// WithContent returns a copy of m with Content replaced.
func (m Message) WithContent(content string) Message {
	out := m
	out.Content = content
	out.Timestamp = time.Now()
	return out
}

// WithData returns a copy of m with Data replaced by the merge of m.Data and patch.
func (m Message) WithData(patch map[string]any) Message {
	out := m
	out.Data = m.Data.WithAll(patch)
	out.Timestamp = time.Now()
	return out
}

// WithNodeID returns a copy of m with NodeID replaced.
func (m Message) WithNodeID(nodeID string) Message {
	out := m
	out.NodeID = nodeID
	return out
}

// TransitionTo returns a copy of m moved to the given state, with the
// transition appended to History. Returns ok=false (and an unmodified copy)
// if the state machine forbids the move; callers are expected to check ok
// and surface an errs.Error(KindExecution) when it is false.
func (m Message) TransitionTo(to ExecutionState, nodeID string) (Message, bool) {
	if !CanTransition(m.State, to) {
		return m, false
	}
	out := m
	out.State = to
	out.NodeID = nodeID
	out.Timestamp = time.Now()
	out.History = append(append([]Transition{}, m.History...), Transition{
		From:   m.State,
		To:     to,
		NodeID: nodeID,
		At:     out.Timestamp,
	})
	return out, true
}

// ToolCalls extracts the ordered list of ToolCall from Data["tool_calls"].
// Returns nil if absent or malformed.
func (m Message) ToolCalls() []ToolCall {
	raw, ok := m.Data.Get("tool_calls")
	if !ok {
		return nil
	}
	calls, ok := raw.([]ToolCall)
	if !ok {
		return nil
	}
	return calls
}

// WithToolCalls returns a copy of m with Data["tool_calls"] set.
func (m Message) WithToolCalls(calls []ToolCall) Message {
	return m.WithData(map[string]any{"tool_calls": calls})
}
