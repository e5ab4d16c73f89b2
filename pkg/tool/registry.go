package tool

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

var errToolNotFound = goerr.New("tool not found")

// Registry maps tool names to handlers. Dispatch is a lookup plus a typed
// call, never reflection.
type Registry struct {
	tools map[string]Tool
	order []string
}

// New creates a new tool registry with the given tools
func New(tools ...Tool) *Registry {
	r := &Registry{
		tools: make(map[string]Tool),
	}

	for _, t := range tools {
		spec := t.Spec()
		if spec == nil || spec.Name == "" {
			continue
		}
		if _, ok := r.tools[spec.Name]; !ok {
			r.order = append(r.order, spec.Name)
		}
		r.tools[spec.Name] = t
	}

	return r
}

// Specs returns the tool declarations for Gemini function calling.
func (r *Registry) Specs() []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.tools[name].Spec())
	}
	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Execute runs the named tool with the given function call arguments.
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall) (*Result, error) {
	t, ok := r.tools[fc.Name]
	if !ok {
		return nil, goerr.Wrap(errToolNotFound, "unknown tool requested", goerr.V("name", fc.Name))
	}

	return t.Execute(ctx, fc.Args)
}
