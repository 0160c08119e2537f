// Package toolregistry is the catalog of tools available to Agent and Tool
// nodes at graph-build time. It tracks registration order (for stable
// listing and export), secondary indexes by tag and source, and validates
// ToolCall arguments against each tool's declared JSON Schema before
// dispatch, following the same wire-message conventions as other
// generated tool catalogs (ToolSpec, FieldIssue) but generalized to a
// standalone catalog rather than a codegen-produced one.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/no-ai-labs/spice-sub002/errs"
)

// ToolSpec describes a single registered tool: its identity, metadata, and
// the JSON Schema its Arguments must satisfy.
type ToolSpec struct {
	// Name is the tool's unique identifier within the registry.
	Name string
	// Description is human/model-readable context for planners.
	Description string
	// Tags are free-form labels used for secondary lookup (ByTag).
	Tags []string
	// Source identifies where this tool was registered from (an agent id,
	// a package path, "builtin"), used for secondary lookup (BySource).
	Source string
	// ParamsSchema is the tool's JSON Schema for its call arguments, used to
	// validate ToolCall.Arguments before dispatch. May be nil/empty to skip
	// validation.
	ParamsSchema json.RawMessage
}

// Registry is an insertion-ordered catalog of ToolSpecs, safe for concurrent
// use.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	specs    map[string]ToolSpec
	compiled map[string]*jsonschema.Schema
	byTag    map[string][]string
	bySource map[string][]string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		specs:    make(map[string]ToolSpec),
		compiled: make(map[string]*jsonschema.Schema),
		byTag:    make(map[string][]string),
		bySource: make(map[string][]string),
	}
}

// Register adds spec to the catalog. Registration is idempotent: calling
// Register again with an identical spec for the same name is a no-op.
// Registering a different spec under a name already in use returns a
// validation error, since silently overwriting a tool's contract would
// change behavior for callers that looked it up earlier.
func (r *Registry) Register(spec ToolSpec) error {
	if spec.Name == "" {
		return errs.New(errs.KindValidation, "tool name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.specs[spec.Name]; ok {
		if sameSpec(existing, spec) {
			return nil
		}
		return errs.Errorf(errs.KindValidation, "tool %q already registered with a different spec", spec.Name)
	}

	if len(spec.ParamsSchema) > 0 {
		compiled, err := compileSchema(spec.Name, spec.ParamsSchema)
		if err != nil {
			return errs.Wrap(errs.KindValidation, fmt.Sprintf("compile schema for tool %q", spec.Name), err)
		}
		r.compiled[spec.Name] = compiled
	}

	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	for _, tag := range spec.Tags {
		r.byTag[tag] = append(r.byTag[tag], spec.Name)
	}
	if spec.Source != "" {
		r.bySource[spec.Source] = append(r.bySource[spec.Source], spec.Name)
	}
	return nil
}

func sameSpec(a, b ToolSpec) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

// Get returns the ToolSpec registered under name.
func (r *Registry) Get(name string) (ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec, ok
}

// List returns every registered ToolSpec in registration order.
func (r *Registry) List() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// ByTag returns every registered ToolSpec carrying tag, in registration
// order.
func (r *Registry) ByTag(tag string) []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.byTag[tag]
	out := make([]ToolSpec, 0, len(names))
	for _, name := range names {
		out = append(out, r.specs[name])
	}
	return out
}

// BySource returns every registered ToolSpec registered from source, in
// registration order.
func (r *Registry) BySource(source string) []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.bySource[source]
	out := make([]ToolSpec, 0, len(names))
	for _, name := range names {
		out = append(out, r.specs[name])
	}
	return out
}

// ValidateArguments validates args against the named tool's ParamsSchema.
// Returns a *errs.Error of KindNotFound if name is not registered, or
// KindValidation if args fails schema validation. Tools registered without a
// ParamsSchema always validate successfully.
func (r *Registry) ValidateArguments(_ context.Context, name string, args json.RawMessage) error {
	r.mu.RLock()
	schema, hasSchema := r.compiled[name]
	_, known := r.specs[name]
	r.mu.RUnlock()

	if !known {
		return errs.Errorf(errs.KindNotFound, "tool %q is not registered", name)
	}
	if !hasSchema {
		return nil
	}

	decoded, err := jsonschema.UnmarshalJSON(bytesReader(args))
	if err != nil {
		return errs.Wrap(errs.KindValidation, fmt.Sprintf("decode arguments for tool %q", name), err)
	}
	if err := schema.Validate(decoded); err != nil {
		return errs.Wrap(errs.KindValidation, fmt.Sprintf("arguments for tool %q failed validation", name), err)
	}
	return nil
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	decoded, err := jsonschema.UnmarshalJSON(bytesReader(raw))
	if err != nil {
		return nil, err
	}
	url := "mem://toolregistry/" + name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, decoded); err != nil {
		return nil, err
	}
	return c.Compile(url)
}
