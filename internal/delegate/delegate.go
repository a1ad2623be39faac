// Package delegate adapts a procedure handler to a GraphQL field resolver.
package delegate

import (
	"context"
	"errors"
	"time"

	"github.com/hanpama/procgraph/internal/convert"
	"github.com/hanpama/procgraph/internal/eventbus"
	"github.com/hanpama/procgraph/internal/events"
	"github.com/hanpama/procgraph/router"
	"github.com/hanpama/procgraph/shape"
)

// Resolver resolves one root field. args are the coerced field arguments.
type Resolver func(ctx context.Context, source any, args map[string]any) (any, error)

// ValidationError is returned when the arguments do not match the procedure
// input. The handler has not run.
type ValidationError struct {
	Procedure string
	Cause     *shape.ValidationError
}

func (e *ValidationError) Error() string {
	return "Validation error in " + e.Procedure + ": " + e.Cause.Error()
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Bind returns the resolver for p. The handler runs once per call.
// Output validation failures are returned as the *shape.ValidationError
// itself, without the procedure name.
func Bind(p *router.Procedure, name string) Resolver {
	return func(ctx context.Context, _ any, args map[string]any) (out any, err error) {
		eventbus.Publish(ctx, events.ProcedureStart{Name: name})
		start := time.Now()
		defer func() {
			eventbus.Publish(ctx, events.ProcedureFinish{Name: name, Err: err, Duration: time.Since(start)})
		}()

		var raw any = map[string]any{}
		if args != nil {
			raw = args
		}
		input, err := shape.Parse(p.Input, convert.NormalizeInput(p.Input, raw))
		if err != nil {
			var verr *shape.ValidationError
			if errors.As(err, &verr) {
				return nil, &ValidationError{Procedure: name, Cause: verr}
			}
			return nil, err
		}

		result, err := p.Handler(ctx, input)
		if err != nil {
			return nil, err
		}
		return shape.Parse(p.Output, result)
	}
}
