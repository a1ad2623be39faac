// Package procgraph publishes a router of typed procedures as a GraphQL
// schema. Each procedure becomes one root field: queries on Query, the rest
// on Mutation.
//
//	r := router.New().
//		Add("getUser", router.Query(in, out, getUser)).
//		Add("createUser", router.Mutation(in2, out2, createUser))
//	res, err := procgraph.Build(r)
//	fmt.Print(res.SDL())
package procgraph

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/hanpama/procgraph/internal/assemble"
	"github.com/hanpama/procgraph/internal/convert"
	"github.com/hanpama/procgraph/internal/executor"
	"github.com/hanpama/procgraph/internal/introspection"
	"github.com/hanpama/procgraph/internal/language"
	"github.com/hanpama/procgraph/internal/schema"
	"github.com/hanpama/procgraph/internal/server"
	"github.com/hanpama/procgraph/router"
)

type (
	// TypeResolver picks the member type name of an output union value.
	TypeResolver = convert.TypeResolver
	// ExecutionResult is the outcome of Execute.
	ExecutionResult = executor.ExecutionResult
	// GraphQLError is one located execution error.
	GraphQLError = executor.GraphQLError
	// HandlerOption configures Result.Handler.
	HandlerOption = server.Option
)

type options struct {
	classifier    router.Classifier
	federation    bool
	keyBy         string
	convert       []convert.Option
	concurrency   int
	introspection bool
	description   string
}

type Option func(*options)

// WithClassifier overrides query/mutation classification. Returning "" from
// the classifier keeps the default rules.
func WithClassifier(fn router.Classifier) Option {
	return func(o *options) { o.classifier = fn }
}

// WithFederation enables SubgraphSDL. Composition is not implemented: the
// subgraph text is the plain SDL and keyBy is recorded only.
func WithFederation(enabled bool, keyBy string) Option {
	return func(o *options) { o.federation, o.keyBy = enabled, keyBy }
}

// WithTypeResolver overrides member resolution for the named output union.
func WithTypeResolver(union string, fn TypeResolver) Option {
	return func(o *options) { o.convert = append(o.convert, convert.WithTypeResolver(union, fn)) }
}

// WithConcurrency bounds how many root query fields run at once per request.
func WithConcurrency(n int) Option { return func(o *options) { o.concurrency = n } }

// WithIntrospection toggles __schema and __type. It is on by default.
func WithIntrospection(enabled bool) Option { return func(o *options) { o.introspection = enabled } }

// WithDescription sets the schema description.
func WithDescription(desc string) Option { return func(o *options) { o.description = desc } }

// Result is a built schema ready to be printed, validated or served.
type Result struct {
	// Procedures lists the flattened procedures in root field order.
	Procedures []router.AnalyzedProcedure

	assembly *assemble.Assembly
	runtime  executor.Runtime
	served   *schema.Schema
	opt      options

	validateOnce sync.Once
	validated    *language.ValidatedSchema
	validateErr  error
}

// Build flattens r and assembles its schema. Conversion problems are
// returned here, never at request time.
func Build(r router.Router, opts ...Option) (*Result, error) {
	o := options{introspection: true}
	for _, opt := range opts {
		opt(&o)
	}
	var aopts []router.AnalyzeOption
	if o.classifier != nil {
		aopts = append(aopts, router.WithClassifier(o.classifier))
	}
	procs := router.Analyze(r, aopts...)

	a, err := assemble.Build(procs, assemble.Options{
		Convert:     o.convert,
		Concurrency: o.concurrency,
		Description: o.description,
	})
	if err != nil {
		return nil, fmt.Errorf("procgraph: %w", err)
	}
	res := &Result{Procedures: procs, assembly: a, runtime: a, served: a.Schema, opt: o}
	if o.introspection {
		w := introspection.Wrap(a, a.Schema)
		res.runtime, res.served = w.Runtime, w.Schema
	}
	return res, nil
}

// SDL renders the schema definition.
func (r *Result) SDL() string { return schema.Render(r.assembly.Schema) }

// SubgraphSDL returns the SDL when federation is enabled and "" otherwise.
func (r *Result) SubgraphSDL() string {
	if !r.opt.federation {
		return ""
	}
	return r.SDL()
}

// Validate checks the schema against the GraphQL type system rules. A router
// without queries yields an empty Query type, which fails here.
func (r *Result) Validate() error {
	r.validateOnce.Do(func() {
		r.validated, r.validateErr = schema.Validate(r.assembly.Schema)
	})
	return r.validateErr
}

// Execute runs one operation. Syntax and validation problems are reported as
// errors in the result, like a GraphQL server would.
func (r *Result) Execute(ctx context.Context, query, operationName string, vars map[string]any) (*ExecutionResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	doc, err := language.ParseQuery(query)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}, nil
	}
	if errs := language.ValidateQuery(r.validated, doc); len(errs) > 0 {
		return resultFromErrors(errs), nil
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return executor.NewExecutor(r.runtime, r.served).ExecuteRequest(ctx, doc, operationName, vars, nil), nil
}

func resultFromErrors(errs language.ErrorList) *ExecutionResult {
	out := &ExecutionResult{Errors: make([]GraphQLError, len(errs))}
	for i, e := range errs {
		out.Errors[i] = GraphQLError{Message: e.Message}
	}
	return out
}

// Handler returns an HTTP handler serving the schema, by default at
// /api/graphql.
func (r *Result) Handler(opts ...HandlerOption) (http.Handler, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return server.New(r.runtime, r.served, opts...)
}

// WithEndpoint sets the path Handler serves.
func WithEndpoint(path string) HandlerOption { return server.WithEndpoint(path) }

// WithContextFunc computes the per-request value procedures read with
// router.Value.
func WithContextFunc(fn func(*http.Request) any) HandlerOption { return server.WithContextFunc(fn) }
