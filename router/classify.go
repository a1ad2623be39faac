package router

import (
	"context"

	"github.com/hanpama/procgraph/shape"
)

// asRouter reports whether v is a router. A loose map is a router only when it
// carries a "procedures" mapping and none of the procedure keys.
func asRouter(v any) (Router, bool) {
	switch r := v.(type) {
	case Router:
		return r, true
	case *Router:
		if r == nil {
			return Router{}, false
		}
		return *r, true
	case map[string]any:
		for _, k := range []string{"input", "output", "handler"} {
			if _, ok := r[k]; ok {
				return Router{}, false
			}
		}
		switch procs := r["procedures"].(type) {
		case map[string]any:
			return Router{Procedures: procs}, true
		case Router:
			return procs, true
		case *Router:
			if procs != nil {
				return *procs, true
			}
		}
	}
	return Router{}, false
}

// asProcedure reports whether v is a procedure. A loose map needs input and
// output shapes plus a callable handler; other keys are ignored.
func asProcedure(v any) (*Procedure, bool) {
	switch p := v.(type) {
	case *Procedure:
		return p, p != nil && p.Input != nil && p.Output != nil && p.Handler != nil
	case Procedure:
		return &p, p.Input != nil && p.Output != nil && p.Handler != nil
	case map[string]any:
		in, ok := p["input"].(*shape.Node)
		if !ok || in == nil {
			return nil, false
		}
		out, ok := p["output"].(*shape.Node)
		if !ok || out == nil {
			return nil, false
		}
		h, ok := asHandler(p["handler"])
		if !ok {
			return nil, false
		}
		return &Procedure{Input: in, Output: out, Meta: asMeta(p["meta"]), Handler: h}, true
	}
	return nil, false
}

func asHandler(v any) (Handler, bool) {
	switch h := v.(type) {
	case Handler:
		return h, h != nil
	case func(context.Context, any) (any, error):
		return h, h != nil
	case func(context.Context) (any, error):
		if h == nil {
			return nil, false
		}
		return func(ctx context.Context, _ any) (any, error) { return h(ctx) }, true
	}
	return nil, false
}

func asMeta(v any) Meta {
	switch m := v.(type) {
	case Meta:
		return m
	case *Meta:
		if m != nil {
			return *m
		}
	case map[string]any:
		var meta Meta
		for k, val := range m {
			switch k {
			case "method":
				s, _ := val.(string)
				meta.Method = s
			case "kind":
				s, _ := val.(string)
				meta.Kind = s
			case "auth":
				b, _ := val.(bool)
				meta.Auth = b
			default:
				if meta.Extra == nil {
					meta.Extra = map[string]any{}
				}
				meta.Extra[k] = val
			}
		}
		return meta
	}
	return Meta{}
}

func isQuery(p *Procedure) bool {
	switch p.Meta.Kind {
	case KindQuery:
		return true
	case KindMutation:
		return false
	}
	return p.Meta.Method == "GET"
}
