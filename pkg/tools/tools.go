// Package tools holds the static catalog of callable tool names, their
// parameter contracts, and the dispatch routing from a validated tool call to
// the collaborator that executes it.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// ErrUnknownTool indicates a tool call referencing a name that is not in the
// registry.
var ErrUnknownTool = errors.New("unknown tool")

// ValidationError describes a tool call argument violating the declared schema.
type ValidationError struct {
	Tool   string
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s: parameter %q: %s", e.Tool, e.Param, e.Reason)
}

// Parameter describes one entry in a tool's parameter schema.
type Parameter struct {
	Name        string
	Type        jsonschema.DataType
	Description string
	Required    bool
	Default     any
	Enum        []string
}

// Descriptor is a static registry entry: a callable tool name, its
// description, and its parameter schema.
type Descriptor struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Schema renders the descriptor's parameters as a JSON schema definition
// suitable for an LLM function-calling request.
func (d Descriptor) Schema() jsonschema.Definition {
	props := make(map[string]jsonschema.Definition, len(d.Parameters))
	var required []string
	for _, p := range d.Parameters {
		def := jsonschema.Definition{
			Type:        p.Type,
			Description: p.Description,
		}
		if len(p.Enum) > 0 {
			def.Enum = p.Enum
		}
		props[p.Name] = def
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: props,
		Required:   required,
	}
}

// Registry is the process-wide catalog of tool descriptors. It is populated
// once at construction and read-only afterwards, so concurrent sessions may
// share it without locking.
type Registry struct {
	descriptors map[string]Descriptor
	order       []string
}

// NewRegistry builds a registry from the given descriptors. Duplicate names
// keep the first registration.
func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{descriptors: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if _, dup := r.descriptors[d.Name]; dup {
			continue
		}
		r.descriptors[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r
}

// Resolve returns the descriptor for name, or ErrUnknownTool.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	d, ok := r.descriptors[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return d, nil
}

// Descriptors returns the registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Validate checks args against the descriptor's parameter schema and fills in
// declared defaults for absent optional parameters. args is mutated in place.
func Validate(desc Descriptor, args map[string]any) error {
	for _, p := range desc.Parameters {
		v, present := args[p.Name]
		if !present {
			if p.Required {
				return &ValidationError{Tool: desc.Name, Param: p.Name, Reason: "missing required parameter"}
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return &ValidationError{
				Tool:   desc.Name,
				Param:  p.Name,
				Reason: fmt.Sprintf("expected %s, got %T", p.Type, v),
			}
		}
		if len(p.Enum) > 0 {
			s, _ := v.(string)
			if !contains(p.Enum, s) {
				return &ValidationError{
					Tool:   desc.Name,
					Param:  p.Name,
					Reason: fmt.Sprintf("value %q not in %v", s, p.Enum),
				}
			}
		}
	}
	return nil
}

// typeMatches checks a decoded JSON value against a schema type. JSON numbers
// decode as float64, so integer parameters accept whole float64 values.
func typeMatches(t jsonschema.DataType, v any) bool {
	switch t {
	case jsonschema.String:
		_, ok := v.(string)
		return ok
	case jsonschema.Boolean:
		_, ok := v.(bool)
		return ok
	case jsonschema.Number:
		switch v.(type) {
		case float64, int:
			return true
		}
		return false
	case jsonschema.Integer:
		switch n := v.(type) {
		case int:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case jsonschema.Array:
		_, ok := v.([]any)
		return ok
	case jsonschema.Object:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Dispatcher executes validated tool calls against an external collaborator.
// owner identifies the agent session issuing the call, so a dispatcher can
// track resources it creates on the session's behalf.
type Dispatcher interface {
	// Invoke runs the named tool and returns its textual result.
	Invoke(ctx context.Context, owner, name string, args map[string]any) (string, error)

	// Release frees any resources the dispatcher holds for the given owner
	// (e.g. terminal containers created during the session).
	Release(ctx context.Context, owner string) error
}

// Router fans tool calls out to dispatchers by tool name.
type Router struct {
	routes map[string]Dispatcher
	all    []Dispatcher
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]Dispatcher)}
}

// Register routes the given tool names to d.
func (r *Router) Register(d Dispatcher, names ...string) {
	for _, name := range names {
		r.routes[name] = d
	}
	r.all = append(r.all, d)
}

// Invoke dispatches the call to the registered dispatcher for name.
func (r *Router) Invoke(ctx context.Context, owner, name string, args map[string]any) (string, error) {
	d, ok := r.routes[name]
	if !ok {
		return "", fmt.Errorf("%w: no dispatcher for %s", ErrUnknownTool, name)
	}
	return d.Invoke(ctx, owner, name, args)
}

// Release releases owner's resources across all registered dispatchers.
func (r *Router) Release(ctx context.Context, owner string) error {
	var errs []error
	for _, d := range r.all {
		if err := d.Release(ctx, owner); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
