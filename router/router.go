// Package router describes procedures and the nested routers that group them.
//
// A Router maps names to procedures or to other routers. Values are accepted
// in typed form (Procedure, *Procedure, Router, *Router) or as loose
// map[string]any values, which are classified by their keys:
//
//	router.Router{Procedures: map[string]any{
//		"users": map[string]any{"procedures": map[string]any{
//			"get": map[string]any{"input": in, "output": out, "handler": h},
//		}},
//	}}
package router

import (
	"context"

	"github.com/hanpama/procgraph/shape"
)

// Procedure kinds understood by Meta.Kind and by classifiers.
const (
	KindQuery    = "query"
	KindMutation = "mutation"
)

// Handler runs a procedure. input has already been validated against the
// procedure's input shape.
type Handler func(ctx context.Context, input any) (any, error)

type Meta struct {
	// Method is the transport verb. "GET" marks the procedure as a query.
	Method string
	// Kind is "query" or "mutation" and outranks Method.
	Kind string
	// Auth requires an authenticated caller.
	Auth  bool
	Extra map[string]any
}

type Procedure struct {
	Input   *shape.Node
	Output  *shape.Node
	Meta    Meta
	Handler Handler
}

// Query returns a procedure classified as a query.
func Query(in, out *shape.Node, h Handler) *Procedure {
	return &Procedure{Input: in, Output: out, Meta: Meta{Kind: KindQuery}, Handler: h}
}

// Mutation returns a procedure classified as a mutation.
func Mutation(in, out *shape.Node, h Handler) *Procedure {
	return &Procedure{Input: in, Output: out, Meta: Meta{Kind: KindMutation}, Handler: h}
}

type Router struct {
	Procedures map[string]any
}

// New returns an empty router.
func New() Router { return Router{Procedures: map[string]any{}} }

// Add registers v under name and returns the router.
func (r Router) Add(name string, v any) Router {
	if r.Procedures == nil {
		r.Procedures = map[string]any{}
	}
	r.Procedures[name] = v
	return r
}

type contextKey struct{}

// WithValue attaches the per-request context value handed to handlers.
func WithValue(ctx context.Context, v any) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// Value returns the value stored by WithValue, or nil.
func Value(ctx context.Context) any {
	return ctx.Value(contextKey{})
}
