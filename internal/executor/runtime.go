package executor

import (
	"context"
)

// Runtime is what the Executor calls out to. Procedure root fields are marked
// async and arrive through BatchResolveAsync; everything else, projections of
// procedure results included, goes through ResolveSync.
//
// Execution is breadth first. At each depth the Executor drains sync fields,
// then calls BatchResolveAsync once with every async field collected at that
// depth. Tasks below a path already nulled by a Non-Null violation are
// dropped before the call.
//
// Errors from any method become located GraphQL errors at the field's path.
// Implementations must be safe for concurrent operations and must not mutate
// source or args.
type Runtime interface {
	// ResolveSync resolves a field with Async == false. Returning (nil, nil)
	// yields null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one depth of async fields. len(results) must
	// equal len(tasks) and results[i] answers tasks[i]; a failed element does
	// not fail its neighbours.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType names the object type of a value of an interface or union.
	// The name must be a possible type of abstractType.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// ResolveUnionConcreteValue unwraps a union value before completion.
	ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error)

	// ResolveInterfaceConcreteValue unwraps an interface value before completion.
	ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error)

	// SerializeLeafValue turns a scalar or enum value into its JSON-ready
	// form. Enums serialize to their name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// AsyncResolveTask is one async field awaiting resolution.
type AsyncResolveTask struct {
	ObjectType string
	Field      string
	// Source is the parent value, nil at the root.
	Source any
	// Args hold coerced argument values.
	Args map[string]any
}

type AsyncResolveResult struct {
	Value any
	Error error
}
