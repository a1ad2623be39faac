package manifest

import (
	"context"
	"database/sql"

	"github.com/hanpama/procgraph/internal/protoreg"
	"github.com/hanpama/procgraph/internal/remote"
	"github.com/hanpama/procgraph/internal/sqlproc"
	"github.com/hanpama/procgraph/router"
)

// Deps are the backends handlers are bound to. Only the backends a
// manifest uses need to be set.
type Deps struct {
	Transport remote.Transport
	Registry  *protoreg.Registry
	DB        *sql.DB
	Dialect   sqlproc.Dialect
}

// Bind turns m into a router built from plain maps, the loose form the
// analyzer classifies by keys.
func Bind(m *Manifest, deps Deps) (router.Router, error) {
	vs := violations{file: m.File}
	root := map[string]any{}
	for _, p := range m.Procedures {
		h := bindHandler(p, deps, &vs)
		if h == nil {
			continue
		}
		entry := map[string]any{
			"input":   p.Input,
			"output":  p.Output,
			"handler": h,
		}
		if p.Meta != nil {
			entry["meta"] = p.Meta
		}
		procs := root
		for _, seg := range p.Path[:len(p.Path)-1] {
			sub, ok := procs[seg].(map[string]any)
			if !ok {
				sub = map[string]any{"procedures": map[string]any{}}
				procs[seg] = sub
			}
			procs = sub["procedures"].(map[string]any)
		}
		procs[p.Path[len(p.Path)-1]] = entry
	}
	if err := vs.err(); err != nil {
		return router.Router{}, err
	}
	return router.Router{Procedures: root}, nil
}

func bindHandler(p *Procedure, deps Deps, vs *violations) router.Handler {
	switch p.Handler.Kind {
	case HandlerStatic:
		v := p.Handler.Value
		return func(context.Context, any) (any, error) { return v, nil }
	case HandlerSQL:
		if deps.DB == nil {
			vs.at(p.node, "procedure %s uses sql but no database is configured", p.Name())
			return nil
		}
		mode := sqlproc.ModeQuery
		switch {
		case p.Handler.One:
			mode = sqlproc.ModeOne
		case p.Handler.Exec:
			mode = sqlproc.ModeExec
		}
		return sqlproc.New(deps.DB, deps.Dialect, p.Handler.Query, mode)
	case HandlerGRPC:
		if deps.Transport == nil || deps.Registry == nil {
			vs.at(p.node, "procedure %s uses grpc but no transport is configured", p.Name())
			return nil
		}
		md := deps.Registry.Method(p.Name())
		if md == nil {
			vs.at(p.node, "procedure %s has no generated gRPC method", p.Name())
			return nil
		}
		return remote.NewHandler(deps.Transport, md, p.Input, p.Output)
	}
	vs.at(p.node, "procedure %s has no handler", p.Name())
	return nil
}

// GRPCProcedures lists the procedures served over gRPC, in the form
// protoreg.Build takes.
func (m *Manifest) GRPCProcedures() []router.AnalyzedProcedure {
	var out []router.AnalyzedProcedure
	for _, p := range m.Procedures {
		if p.Handler.Kind != HandlerGRPC {
			continue
		}
		meta := router.Meta{}
		if d, ok := p.Meta["description"].(string); ok {
			meta.Extra = map[string]any{"description": d}
		}
		out = append(out, router.AnalyzedProcedure{
			Name:      p.Name(),
			Procedure: &router.Procedure{Input: p.Input, Output: p.Output, Meta: meta},
		})
	}
	return out
}
