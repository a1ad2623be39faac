// Package assemble turns analyzed procedures into a GraphQL schema and the
// runtime that serves it.
package assemble

import (
	"fmt"
	"runtime"

	"github.com/hanpama/procgraph/internal/convert"
	"github.com/hanpama/procgraph/internal/delegate"
	"github.com/hanpama/procgraph/internal/schema"
	"github.com/hanpama/procgraph/router"
)

const (
	QueryTypeName    = "Query"
	MutationTypeName = "Mutation"
)

// Options configures Build.
type Options struct {
	// Convert is passed to the type converter (union type resolvers).
	Convert []convert.Option
	// Concurrency bounds parallel root query fields per request. Zero means
	// GOMAXPROCS.
	Concurrency int
	// Description is rendered as the schema description.
	Description string
}

type rootField struct {
	name     string
	resolve  delegate.Resolver
	auth     bool
	mutation bool
}

// Assembly is a built schema together with the runtime resolving it.
type Assembly struct {
	Schema *schema.Schema

	converter   *convert.Converter
	fields      map[string]*rootField
	concurrency int
}

// Build converts every procedure into a root field. Query is always present;
// Mutation only when some procedure is a mutation.
func Build(procs []router.AnalyzedProcedure, opts Options) (*Assembly, error) {
	s := schema.NewSchema(opts.Description)
	query := schema.NewType(QueryTypeName, schema.TypeKindObject, "")
	mutation := schema.NewType(MutationTypeName, schema.TypeKindObject, "")
	// Registered up front so procedure types cannot take the root names.
	s.AddType(query).AddType(mutation).SetQueryType(QueryTypeName)

	a := &Assembly{
		Schema:      s,
		converter:   convert.New(s, opts.Convert...),
		fields:      make(map[string]*rootField, len(procs)),
		concurrency: opts.Concurrency,
	}
	if a.concurrency <= 0 {
		a.concurrency = runtime.GOMAXPROCS(0)
	}

	seen := make(map[string]bool, len(procs))
	for _, ap := range procs {
		if seen[ap.Name] {
			return nil, fmt.Errorf("procedure %s: duplicate root field name", ap.Name)
		}
		seen[ap.Name] = true

		f, err := a.field(ap)
		if err != nil {
			return nil, fmt.Errorf("procedure %s: %w", ap.Name, err)
		}
		root := query
		if !ap.IsQuery {
			root = mutation
		}
		root.AddField(f)
		a.fields[root.Name+"."+ap.Name] = &rootField{
			name:     ap.Name,
			resolve:  delegate.Bind(ap.Procedure, ap.Name),
			auth:     ap.Procedure.Meta.Auth,
			mutation: !ap.IsQuery,
		}
	}

	if len(mutation.Fields) == 0 {
		delete(s.Types, MutationTypeName)
	} else {
		s.SetMutationType(MutationTypeName)
	}
	return a, nil
}

func (a *Assembly) field(ap router.AnalyzedProcedure) (*schema.Field, error) {
	p := ap.Procedure
	args, err := a.converter.ToArguments(p.Input, ap.Name+"_Input")
	if err != nil {
		return nil, err
	}
	out, err := a.converter.ToOutputType(p.Output, ap.Name+"_Output")
	if err != nil {
		return nil, err
	}
	desc, _ := p.Meta.Extra["description"].(string)
	f := schema.NewField(ap.Name, desc, out).SetAsync()
	for _, arg := range args {
		f.AddArgument(arg)
	}
	if reason, ok := p.Meta.Extra["deprecated"].(string); ok {
		f.Deprecate(reason)
	}
	return f, nil
}

// Converter exposes the converter used for the build.
func (a *Assembly) Converter() *convert.Converter { return a.converter }
