package introspection

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/procgraph/internal/executor"
	language "github.com/hanpama/procgraph/internal/language"
	schema "github.com/hanpama/procgraph/internal/schema"
)

func buildSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL("test.graphql", `
"Roles a user can hold."
enum Role { ADMIN USER @deprecated(reason: "use ADMIN") }
input FilterInput { role: Role = ADMIN limit: Int = 10 }
type User { id: String! tags: [String!]! }
type Query {
  hello: String
  users(filter: FilterInput): [User!]!
}
`)
	require.NoError(t, err)
	return sch
}

func run(t *testing.T, rt executor.Runtime, sch *schema.Schema, q string) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(q)
	require.NoError(t, err)
	return executor.NewExecutor(rt, sch).ExecuteRequest(context.Background(), doc, "", nil, nil)
}

func TestSchemaRoots(t *testing.T) {
	w := Wrap(executor.NewMockRuntime(nil), buildSchema(t))
	res := run(t, w.Runtime, w.Schema, `{ __schema { queryType { name } mutationType { name } } }`)
	require.Empty(t, res.Errors)
	want := map[string]any{"__schema": map[string]any{
		"queryType":    map[string]any{"name": "Query"},
		"mutationType": nil,
	}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestTypeLookup(t *testing.T) {
	w := Wrap(executor.NewMockRuntime(nil), buildSchema(t))
	res := run(t, w.Runtime, w.Schema, `{
  user: __type(name: "User") {
    kind name
    fields { name type { kind name ofType { kind name ofType { kind name ofType { name } } } } }
  }
  missing: __type(name: "Nope") { name }
}`)
	require.Empty(t, res.Errors)
	want := map[string]any{
		"user": map[string]any{
			"kind": "OBJECT",
			"name": "User",
			"fields": []any{
				map[string]any{"name": "id", "type": map[string]any{
					"kind": "NON_NULL", "name": nil,
					"ofType": map[string]any{"kind": "SCALAR", "name": "String", "ofType": nil},
				}},
				map[string]any{"name": "tags", "type": map[string]any{
					"kind": "NON_NULL", "name": nil,
					"ofType": map[string]any{"kind": "LIST", "name": nil,
						"ofType": map[string]any{"kind": "NON_NULL", "name": nil,
							"ofType": map[string]any{"name": "String"}}},
				}},
			},
		},
		"missing": nil,
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestEnumValuesAndDefaults(t *testing.T) {
	w := Wrap(executor.NewMockRuntime(nil), buildSchema(t))
	res := run(t, w.Runtime, w.Schema, `{
  role: __type(name: "Role") {
    description
    active: enumValues { name }
    all: enumValues(includeDeprecated: true) { name isDeprecated deprecationReason }
  }
  filter: __type(name: "FilterInput") { inputFields { name defaultValue } }
}`)
	require.Empty(t, res.Errors)
	want := map[string]any{
		"role": map[string]any{
			"description": "Roles a user can hold.",
			"active":      []any{map[string]any{"name": "ADMIN"}},
			"all": []any{
				map[string]any{"name": "ADMIN", "isDeprecated": false, "deprecationReason": nil},
				map[string]any{"name": "USER", "isDeprecated": true, "deprecationReason": "use ADMIN"},
			},
		},
		"filter": map[string]any{"inputFields": []any{
			map[string]any{"name": "role", "defaultValue": "ADMIN"},
			map[string]any{"name": "limit", "defaultValue": "10"},
		}},
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestDelegatesOtherFields(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	w := Wrap(rt, buildSchema(t))
	res := run(t, w.Runtime, w.Schema, `{ hello __typename }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"hello": "world", "__typename": "Query"}, res.Data)
}

func TestWrapLeavesOriginalUntouched(t *testing.T) {
	sch := buildSchema(t)
	w := Wrap(executor.NewMockRuntime(nil), sch)
	require.Nil(t, sch.Types["__Schema"])
	require.Nil(t, sch.GetQueryType().FieldByName("__schema"))
	require.NotNil(t, w.Schema.GetQueryType().FieldByName("__schema"))
}
