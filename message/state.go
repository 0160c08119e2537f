package message

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// State is a persistent (copy-on-write) string-keyed map. Updates never
// mutate the receiver; they return a new State that shares the unmodified
// entries with the original (a simple backing map is sufficient at the
// sizes this runtime deals with; a HAMT/path-copy tree would be the natural
// upgrade for larger state, and this type's API leaves room to swap one in
// without touching callers).
type State struct {
	m map[string]any
}

// NewState returns an empty State.
func NewState() State {
	return State{}
}

// StateFrom builds a State from a plain map, copying it defensively.
func StateFrom(values map[string]any) State {
	return State{}.WithAll(values)
}

// Get returns the value stored under key and whether it was present.
func (s State) Get(key string) (any, bool) {
	if s.m == nil {
		return nil, false
	}
	v, ok := s.m[key]
	return v, ok
}

// Has reports whether key is present.
func (s State) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Len returns the number of entries.
func (s State) Len() int { return len(s.m) }

// With returns a new State with key set to value.
func (s State) With(key string, value any) State {
	out := make(map[string]any, len(s.m)+1)
	for k, v := range s.m {
		out[k] = v
	}
	out[key] = value
	return State{m: out}
}

// WithAll returns a new State with every key in values set, overwriting any
// existing keys with the same name (right-wins, like ExecutionContext.Merge).
func (s State) WithAll(values map[string]any) State {
	if len(values) == 0 {
		return s
	}
	out := make(map[string]any, len(s.m)+len(values))
	for k, v := range s.m {
		out[k] = v
	}
	for k, v := range values {
		out[k] = v
	}
	return State{m: out}
}

// Map returns a defensive copy of the entries as a plain map, for callers
// that need to range over the full state (e.g. a NodeContext builder).
func (s State) Map() map[string]any {
	out := make(map[string]any, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// MarshalJSON implements json.Marshaler. The backing map is unexported so
// the default reflection-based encoder would otherwise see no fields.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *State) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	s.m = m
	return nil
}

// MarshalBSON implements bson.Marshaler, for checkpoint stores (e.g.
// checkpoint/mongostore) that persist a Message by encoding it directly.
func (s State) MarshalBSON() ([]byte, error) {
	return bson.Marshal(s.m)
}

// UnmarshalBSON implements bson.Unmarshaler.
func (s *State) UnmarshalBSON(data []byte) error {
	var m map[string]any
	if err := bson.Unmarshal(data, &m); err != nil {
		return err
	}
	s.m = m
	return nil
}
