package assemble

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/procgraph/internal/authn"
	"github.com/hanpama/procgraph/internal/executor"
	"github.com/hanpama/procgraph/internal/schema"
)

var _ executor.Runtime = (*Assembly)(nil)

// ErrUnauthorized is wrapped by errors for auth procedures called without
// verified claims.
var ErrUnauthorized = errors.New("unauthorized")

// ResolveSync projects a field out of an object value returned by a
// procedure. Procedure outputs are already parsed into map[string]any.
func (a *Assembly) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return src[field], nil
	}
	rv := reflect.ValueOf(source)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		v := rv.MapIndex(reflect.ValueOf(field).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	}
	return nil, fmt.Errorf("%s.%s: cannot read field from %T", objectType, field, source)
}

// BatchResolveAsync runs the root fields of one request. Mutation fields run
// one after another in document order; query fields fan out up to the
// configured concurrency.
func (a *Assembly) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	var parallel []int
	for i, t := range tasks {
		rf := a.fields[t.ObjectType+"."+t.Field]
		if rf == nil {
			results[i] = executor.AsyncResolveResult{Error: fmt.Errorf("no procedure bound to %s.%s", t.ObjectType, t.Field)}
			continue
		}
		if rf.mutation {
			results[i] = a.call(ctx, rf, t)
			continue
		}
		parallel = append(parallel, i)
	}
	if len(parallel) == 1 {
		i := parallel[0]
		results[i] = a.call(ctx, a.fields[tasks[i].ObjectType+"."+tasks[i].Field], tasks[i])
		return results
	}

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for _, i := range parallel {
		g.Go(func() error {
			results[i] = a.call(ctx, a.fields[tasks[i].ObjectType+"."+tasks[i].Field], tasks[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Assembly) call(ctx context.Context, rf *rootField, t executor.AsyncResolveTask) (res executor.AsyncResolveResult) {
	defer func() {
		if r := recover(); r != nil {
			res = executor.AsyncResolveResult{Error: fmt.Errorf("procedure %s panicked: %v", rf.name, r)}
		}
	}()
	if rf.auth {
		if _, ok := authn.ClaimsFrom(ctx); !ok {
			return executor.AsyncResolveResult{Error: fmt.Errorf("%w: %s", ErrUnauthorized, rf.name)}
		}
	}
	if err := ctx.Err(); err != nil {
		return executor.AsyncResolveResult{Error: err}
	}
	v, err := rf.resolve(ctx, t.Source, t.Args)
	if err != nil {
		return executor.AsyncResolveResult{Error: err}
	}
	return executor.AsyncResolveResult{Value: v}
}

func (a *Assembly) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return a.converter.ResolveUnion(ctx, abstractType, value)
}

// Union values are plain member objects, so no envelope is removed.
func (a *Assembly) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error) {
	return value, nil
}

func (a *Assembly) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error) {
	return value, nil
}

func (a *Assembly) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	switch typeName {
	case "String", "ID":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%s cannot represent %T", typeName, value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %T", value)
	case "Float":
		f, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("Float cannot represent %T", value)
		}
		return f, nil
	case "Int":
		f, ok := toFloat(value)
		if !ok || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit integer value: %v", value)
		}
		return int(f), nil
	}
	t := a.Schema.Types[typeName]
	if t != nil && t.Kind == schema.TypeKindEnum {
		s, ok := value.(string)
		if !ok || !t.HasEnumValue(s) {
			return nil, fmt.Errorf("enum %s cannot represent value: %v", typeName, value)
		}
		return s, nil
	}
	return value, nil
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
