package executor_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/procgraph/internal/executor"
	"github.com/hanpama/procgraph/internal/language"
	"github.com/hanpama/procgraph/internal/schema"
)

// buildSchema loads sdl and marks the "Type.field" keys in async as batched.
func buildSchema(t *testing.T, sdl string, async ...string) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL("test.graphql", sdl)
	require.NoError(t, err)
	for _, key := range async {
		typ, field, _ := strings.Cut(key, ".")
		f := sch.Types[typ].FieldByName(field)
		require.NotNil(t, f, key)
		f.SetAsync()
	}
	return sch
}

func parseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	doc, err := language.ParseQuery(q)
	require.NoError(t, err)
	return doc
}

// project reads key from a map source, the way procedure results are
// projected.
func project(key string) executor.MockResolver {
	return func(_ context.Context, source any, _ map[string]any) (any, error) {
		return source.(map[string]any)[key], nil
	}
}

// trace renders calls as "sync Type.field" or "async#N Type.field".
func trace(calls []executor.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		kind := c.Kind
		if c.Kind == executor.CallKindAsync {
			kind = fmt.Sprintf("async#%d", c.BatchID)
		}
		out[i] = kind + " " + c.ObjectType + "." + c.Field
	}
	return out
}

func execute(t *testing.T, rt executor.Runtime, sch *schema.Schema, query string, vars map[string]any) *executor.ExecutionResult {
	t.Helper()
	return executor.NewExecutor(rt, sch).ExecuteRequest(context.Background(), parseQuery(t, query), "", vars, nil)
}

func requireResult(t *testing.T, want, got *executor.ExecutionResult) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

const notesSDL = `
type User { id: ID! name: String! }
type Note { id: ID! body: String! author: User }
type Query {
  version: String!
  notes_list: [Note!]!
}
`

func TestOneBatchPerDepth(t *testing.T) {
	sch := buildSchema(t, notesSDL, "Query.notes_list", "Note.author")
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.version": executor.NewMockValueResolver("1.0"),
		"Query.notes_list": executor.NewMockValueResolver([]any{
			map[string]any{"id": "n1", "body": "first", "author_id": "u1"},
			map[string]any{"id": "n2", "body": "second", "author_id": "u2"},
		}),
		"Note.id": project("id"),
		"Note.author": func(_ context.Context, source any, _ map[string]any) (any, error) {
			id := source.(map[string]any)["author_id"].(string)
			return map[string]any{"id": id, "name": "user " + id}, nil
		},
		"User.name": project("name"),
	})

	got := execute(t, rt, sch, `{ version notes_list { id author { name } } }`, nil)
	requireResult(t, &executor.ExecutionResult{Data: map[string]any{
		"version": "1.0",
		"notes_list": []any{
			map[string]any{"id": "n1", "author": map[string]any{"name": "user u1"}},
			map[string]any{"id": "n2", "author": map[string]any{"name": "user u2"}},
		},
	}}, got)

	want := []string{
		"sync Query.version",
		"async#1 Query.notes_list",
		"sync Note.id",
		"sync Note.id",
		"async#2 Note.author",
		"async#2 Note.author",
		"sync User.name",
		"sync User.name",
	}
	require.Equal(t, want, trace(rt.GetCalls()))
}

func TestRootFieldArguments(t *testing.T) {
	sch := buildSchema(t, `
type Query { notes_get(id: ID!, limit: Int = 5): String }
`, "Query.notes_get")
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.notes_get": executor.NewMockValueResolver("ok"),
	})

	execute(t, rt, sch, `{ notes_get(id: "n1") }`, nil)
	want := []executor.Call{{
		Kind:       executor.CallKindAsync,
		ObjectType: "Query",
		Field:      "notes_get",
		Args:       map[string]any{"id": "n1", "limit": 5},
		BatchID:    1,
	}}
	if diff := cmp.Diff(want, rt.GetCalls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestMutationFieldsShareOneBatch(t *testing.T) {
	sch := buildSchema(t, `
type Query { version: String }
type Mutation {
  notes_add(body: String!): ID
  notes_remove(id: ID!): Boolean
  notes_clear: Int
}
`, "Mutation.notes_add", "Mutation.notes_remove", "Mutation.notes_clear")
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Mutation.notes_add":    executor.NewMockValueResolver("n1"),
		"Mutation.notes_remove": executor.NewMockErrorResolver(errors.New("note n0 not found")),
		"Mutation.notes_clear":  executor.NewMockValueResolver(3),
	})

	got := execute(t, rt, sch, `mutation { notes_add(body: "x") notes_remove(id: "n0") notes_clear }`, nil)
	requireResult(t, &executor.ExecutionResult{
		Data:   map[string]any{"notes_add": "n1", "notes_remove": nil, "notes_clear": 3},
		Errors: []executor.GraphQLError{{Message: "note n0 not found", Path: executor.Path{"notes_remove"}}},
	}, got)
	require.Equal(t, []string{
		"async#1 Mutation.notes_add",
		"async#1 Mutation.notes_remove",
		"async#1 Mutation.notes_clear",
	}, trace(rt.GetCalls()))
}

func TestNullPropagation(t *testing.T) {
	tests := []struct {
		name      string
		sdl       string
		async     []string
		resolvers map[string]executor.MockResolver
		query     string
		want      *executor.ExecutionResult
		wantCalls []string
	}{
		{
			name:  "non-null child nulls parent and drops queued siblings",
			sdl:   `type User { name: String } type Note { author: User body: String! } type Query { note: Note }`,
			async: []string{"Query.note", "Note.author"},
			resolvers: map[string]executor.MockResolver{
				"Query.note": executor.NewMockValueResolver(map[string]any{}),
			},
			query: `{ note { author { name } body } }`,
			want: &executor.ExecutionResult{
				Data: map[string]any{"note": nil},
				Errors: []executor.GraphQLError{
					{Message: "Cannot return null for non-nullable field note.body", Path: executor.Path{"note", "body"}},
				},
			},
			wantCalls: []string{"async#1 Query.note", "sync Note.body"},
		},
		{
			name:  "failed non-null async field nulls its root field",
			sdl:   `type User { name: String } type Note { author: User! } type Query { note: Note version: String }`,
			async: []string{"Query.note", "Note.author"},
			resolvers: map[string]executor.MockResolver{
				"Query.note":    executor.NewMockValueResolver(map[string]any{}),
				"Query.version": executor.NewMockValueResolver("1.0"),
				"Note.author":   executor.NewMockErrorResolver(errors.New("user service down")),
			},
			query: `{ version note { author { name } } }`,
			want: &executor.ExecutionResult{
				Data: map[string]any{"version": "1.0", "note": nil},
				Errors: []executor.GraphQLError{
					{Message: "user service down", Path: executor.Path{"note", "author"}},
				},
			},
			wantCalls: []string{"sync Query.version", "async#1 Query.note", "async#2 Note.author"},
		},
		{
			name: "null root field stays in data",
			sdl:  `type Query { version: String! count: Int }`,
			resolvers: map[string]executor.MockResolver{
				"Query.count": executor.NewMockValueResolver(3),
			},
			query: `{ version count }`,
			want: &executor.ExecutionResult{
				Data: map[string]any{"version": nil, "count": 3},
				Errors: []executor.GraphQLError{
					{Message: "Cannot return null for non-nullable field version", Path: executor.Path{"version"}},
				},
			},
			wantCalls: []string{"sync Query.version", "sync Query.count"},
		},
		{
			name: "null element of non-null items nulls the list",
			sdl:  `type Query { tags: [String!] labels: [String]! }`,
			resolvers: map[string]executor.MockResolver{
				"Query.tags":   executor.NewMockValueResolver([]any{"a", nil}),
				"Query.labels": executor.NewMockValueResolver([]string{"a", "b"}),
			},
			query: `{ tags labels }`,
			want: &executor.ExecutionResult{
				Data: map[string]any{"tags": nil, "labels": []any{"a", "b"}},
				Errors: []executor.GraphQLError{
					{Message: "Cannot return null for non-nullable field tags.[1]", Path: executor.Path{"tags", 1}},
				},
			},
			wantCalls: []string{"sync Query.tags", "sync Query.labels"},
		},
		{
			name: "nullable elements keep their place",
			sdl:  `type Query { labels: [String]! }`,
			resolvers: map[string]executor.MockResolver{
				"Query.labels": executor.NewMockValueResolver([]any{"a", nil, "b"}),
			},
			query:     `{ labels }`,
			want:      &executor.ExecutionResult{Data: map[string]any{"labels": []any{"a", nil, "b"}}},
			wantCalls: []string{"sync Query.labels"},
		},
		{
			name:  "non-list value for a list field",
			sdl:   `type Query { labels: [String] }`,
			async: []string{"Query.labels"},
			resolvers: map[string]executor.MockResolver{
				"Query.labels": executor.NewMockValueResolver("a"),
			},
			query: `{ labels }`,
			want: &executor.ExecutionResult{
				Data:   map[string]any{"labels": nil},
				Errors: []executor.GraphQLError{{Message: "Expected list value, got string", Path: executor.Path{"labels"}}},
			},
			wantCalls: []string{"async#1 Query.labels"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sch := buildSchema(t, tt.sdl, tt.async...)
			rt := executor.NewMockRuntime(tt.resolvers)
			requireResult(t, tt.want, execute(t, rt, sch, tt.query, nil))
			require.Equal(t, tt.wantCalls, trace(rt.GetCalls()))
		})
	}
}

func TestErrorsAreLocated(t *testing.T) {
	sch := buildSchema(t, `
type Note { id: ID! body: String }
type Query { notes_list: [Note] }
`, "Query.notes_list")
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.notes_list": executor.NewMockValueResolver([]any{
			map[string]any{"id": "n1", "body": "first"},
			map[string]any{"id": "n2"},
		}),
		"Note.id": project("id"),
		"Note.body": func(_ context.Context, source any, _ map[string]any) (any, error) {
			body, ok := source.(map[string]any)["body"]
			if !ok {
				return nil, errors.New("body unavailable")
			}
			return body, nil
		},
	})

	got := execute(t, rt, sch, `{ notes_list { id body missing } }`, nil)
	requireResult(t, &executor.ExecutionResult{
		Data: map[string]any{"notes_list": []any{
			map[string]any{"id": "n1", "body": "first"},
			map[string]any{"id": "n2", "body": nil},
		}},
		Errors: []executor.GraphQLError{
			{Message: "Cannot query field 'missing' on type 'Note'", Path: executor.Path{"notes_list", 0, "missing"}},
			{Message: "body unavailable", Path: executor.Path{"notes_list", 1, "body"}},
			{Message: "Cannot query field 'missing' on type 'Note'", Path: executor.Path{"notes_list", 1, "missing"}},
		},
	}, got)
}

func TestSelectionShaping(t *testing.T) {
	sch := buildSchema(t, `type Query { version: String count: Int }`)
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.version": executor.NewMockValueResolver("1.0"),
		"Query.count":   executor.NewMockValueResolver(2),
	})

	t.Run("aliases and __typename", func(t *testing.T) {
		rt.Reset()
		got := execute(t, rt, sch, `{ v: version __typename count v2: version }`, nil)
		requireResult(t, &executor.ExecutionResult{Data: map[string]any{
			"v": "1.0", "__typename": "Query", "count": 2, "v2": "1.0",
		}}, got)
		require.Equal(t, []string{"sync Query.version", "sync Query.count", "sync Query.version"}, trace(rt.GetCalls()))
	})

	t.Run("repeated field resolves once", func(t *testing.T) {
		rt.Reset()
		execute(t, rt, sch, `{ version ... on Query { version } }`, nil)
		require.Equal(t, []string{"sync Query.version"}, trace(rt.GetCalls()))
	})

	t.Run("conditions read variables", func(t *testing.T) {
		rt.Reset()
		q := `query($full: Boolean!) { version count @include(if: $full) }`
		requireResult(t, &executor.ExecutionResult{Data: map[string]any{"version": "1.0"}},
			execute(t, rt, sch, q, map[string]any{"full": false}))
		requireResult(t, &executor.ExecutionResult{Data: map[string]any{"version": "1.0", "count": 2}},
			execute(t, rt, sch, q, map[string]any{"full": true}))
	})
}

func TestAbstractTypes(t *testing.T) {
	sch := buildSchema(t, `
enum Role { ADMIN }
type Note { id: ID! body: String }
type User { id: ID! name: String }
union SearchResult = Note | User
type Query { search: [SearchResult] }
`, "Query.search")

	tests := []struct {
		name    string
		results []any
		want    *executor.ExecutionResult
	}{
		{
			name: "fragments pick the resolved type",
			results: []any{
				map[string]any{"__typename": "Note", "body": "hi"},
				map[string]any{"__typename": "User", "name": "Ada"},
			},
			want: &executor.ExecutionResult{Data: map[string]any{"search": []any{
				map[string]any{"__typename": "Note", "body": "hi"},
				map[string]any{"__typename": "User", "name": "Ada"},
			}}},
		},
		{
			name:    "type resolver failure",
			results: []any{map[string]any{"body": "hi"}},
			want: &executor.ExecutionResult{
				Data:   map[string]any{"search": []any{nil}},
				Errors: []executor.GraphQLError{{Message: "cannot resolve type", Path: executor.Path{"search", 0}}},
			},
		},
		{
			name:    "resolved type is not an object",
			results: []any{map[string]any{"__typename": "Role"}},
			want: &executor.ExecutionResult{
				Data: map[string]any{"search": []any{nil}},
				Errors: []executor.GraphQLError{{
					Message: "Abstract type SearchResult must resolve to an Object type at runtime. Got: Role",
					Path:    executor.Path{"search", 0},
				}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := executor.NewMockRuntime(map[string]executor.MockResolver{
				"Query.search": executor.NewMockValueResolver(tt.results),
				"Note.body":    project("body"),
				"User.name":    project("name"),
			})
			got := execute(t, rt, sch, `{ search { __typename ... on Note { body } ... on User { name } } }`, nil)
			requireResult(t, tt.want, got)
		})
	}
}

func TestLeafSerialization(t *testing.T) {
	sch := buildSchema(t, `
enum Role { ADMIN MEMBER }
type Query { role: Role roles: [Role] }
`)
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.role":  executor.NewMockValueResolver("admin"),
		"Query.roles": executor.NewMockValueResolver([]any{"member", 7}),
	})
	executor.SetSerializer(rt, func(val any, typ schema.TypeRef) (any, error) {
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%s cannot represent %v", typ.Named, val)
		}
		return strings.ToUpper(s), nil
	})

	got := execute(t, rt, sch, `{ role roles }`, nil)
	requireResult(t, &executor.ExecutionResult{
		Data:   map[string]any{"role": "ADMIN", "roles": []any{"MEMBER", nil}},
		Errors: []executor.GraphQLError{{Message: "Role cannot represent 7", Path: executor.Path{"roles", 1}}},
	}, got)
}

func TestRequestErrors(t *testing.T) {
	sch := buildSchema(t, `type Query { echo(n: Int): Int version: String }`)
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.echo": func(_ context.Context, _ any, args map[string]any) (any, error) {
			return args["n"], nil
		},
		"Query.version": executor.NewMockValueResolver("1.0"),
	})
	exec := executor.NewExecutor(rt, sch)

	tests := []struct {
		name      string
		query     string
		operation string
		vars      map[string]any
		want      *executor.ExecutionResult
	}{
		{
			name:      "named operation",
			query:     `query A { version } query B { echo(n: 2) }`,
			operation: "B",
			want:      &executor.ExecutionResult{Data: map[string]any{"echo": 2}},
		},
		{
			name:  "ambiguous operation",
			query: `query A { version } query B { echo(n: 2) }`,
			want:  &executor.ExecutionResult{Errors: []executor.GraphQLError{{Message: "operation not found"}}},
		},
		{
			name:  "missing root type",
			query: `mutation { version }`,
			want:  &executor.ExecutionResult{Errors: []executor.GraphQLError{{Message: "root type not found for mutation operation"}}},
		},
		{
			name:  "variable provided",
			query: `query($n: Int!) { echo(n: $n) }`,
			vars:  map[string]any{"n": 3},
			want:  &executor.ExecutionResult{Data: map[string]any{"echo": 3}},
		},
		{
			name:  "variable missing",
			query: `query($n: Int!) { echo(n: $n) }`,
			want: &executor.ExecutionResult{Errors: []executor.GraphQLError{
				{Message: "variable $n of required type Int! was not provided"},
			}},
		},
		{
			name:  "variable null",
			query: `query($n: Int!) { echo(n: $n) }`,
			vars:  map[string]any{"n": nil},
			want: &executor.ExecutionResult{Errors: []executor.GraphQLError{
				{Message: "variable $n of type Int! cannot be null"},
			}},
		},
		{
			name:  "optional variable absent leaves argument unset",
			query: `query($n: Int) { echo(n: $n) }`,
			want:  &executor.ExecutionResult{Data: map[string]any{"echo": nil}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exec.ExecuteRequest(context.Background(), parseQuery(t, tt.query), tt.operation, tt.vars, nil)
			requireResult(t, tt.want, got)
		})
	}
}

type ctxKey struct{}

func TestContextReachesRuntime(t *testing.T) {
	sch := buildSchema(t, `type Query { principal: String whoami: String }`, "Query.whoami")
	fromCtx := func(ctx context.Context, _ any, _ map[string]any) (any, error) {
		return ctx.Value(ctxKey{}), nil
	}
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.principal": fromCtx,
		"Query.whoami":    fromCtx,
	})

	ctx := context.WithValue(context.Background(), ctxKey{}, "ada")
	got := executor.NewExecutor(rt, sch).ExecuteRequest(ctx, parseQuery(t, `{ principal whoami }`), "", nil, nil)
	requireResult(t, &executor.ExecutionResult{Data: map[string]any{"principal": "ada", "whoami": "ada"}}, got)
}

// shortRuntime drops every batch result.
type shortRuntime struct{ *executor.MockRuntime }

func (shortRuntime) BatchResolveAsync(context.Context, []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return nil
}

func TestShortBatchIsAnError(t *testing.T) {
	sch := buildSchema(t, `type Query { version: String }`, "Query.version")
	got := execute(t, shortRuntime{executor.NewMockRuntime(nil)}, sch, `{ version }`, nil)
	requireResult(t, &executor.ExecutionResult{
		Data:   map[string]any{"version": nil},
		Errors: []executor.GraphQLError{{Message: "runtime returned 0 results for 1 tasks", Path: executor.Path{"version"}}},
	}, got)
}
