package shape_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/procgraph/shape"
)

func TestParseScalars(t *testing.T) {
	tests := []struct {
		name    string
		node    *shape.Node
		in      any
		want    any
		wantErr string
	}{
		{name: "string", node: shape.String(), in: "x", want: "x"},
		{name: "string rejects number", node: shape.String(), in: 123, wantErr: "Expected string, received number"},
		{name: "number normalizes int", node: shape.Number(), in: 3, want: float64(3)},
		{name: "number rejects string", node: shape.Number(), in: "3", wantErr: "Expected number, received string"},
		{name: "boolean", node: shape.Boolean(), in: true, want: true},
		{name: "literal int keeps declared value", node: shape.Literal(2), in: float64(2), want: 2},
		{name: "literal mismatch", node: shape.Literal("a"), in: "b", wantErr: `Invalid literal value, expected "a"`},
		{name: "enum", node: shape.Enum("ADMIN", "USER"), in: "USER", want: "USER"},
		{name: "enum mismatch", node: shape.Enum("ADMIN", "USER"), in: "ROOT", wantErr: "Invalid enum value. Expected 'ADMIN' | 'USER', received 'ROOT'"},
		{name: "nullable accepts nil", node: shape.String().Nullable(), in: nil, want: nil},
		{name: "required rejects nil", node: shape.String(), in: nil, wantErr: "Expected string, received null"},
		{name: "any passes through", node: shape.Any(), in: []int{1}, want: []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := shape.Parse(tt.node, tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseObject(t *testing.T) {
	user := shape.Object().
		Field("id", shape.String()).
		Field("name", shape.String()).
		Field("nickname", shape.String().Optional()).
		Field("tags", shape.Array(shape.String()))

	t.Run("strips unknown keys", func(t *testing.T) {
		got, err := shape.Parse(user, map[string]any{
			"id": "1", "name": "John", "tags": []string{"a"}, "extra": true,
		})
		require.NoError(t, err)
		want := map[string]any{"id": "1", "name": "John", "tags": []any{"a"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("(-want +got):\n%s", diff)
		}
	})

	t.Run("reports every missing field with a path", func(t *testing.T) {
		_, err := shape.Parse(user, map[string]any{"tags": []any{1}})
		var verr *shape.ValidationError
		require.ErrorAs(t, err, &verr)
		want := []shape.Issue{
			{Path: []any{"id"}, Code: shape.CodeInvalidType, Message: "Required"},
			{Path: []any{"name"}, Code: shape.CodeInvalidType, Message: "Required"},
			{Path: []any{"tags", 0}, Code: shape.CodeInvalidType, Message: "Expected string, received number"},
		}
		if diff := cmp.Diff(want, verr.Issues); diff != "" {
			t.Fatalf("(-want +got):\n%s", diff)
		}
		require.Equal(t, "id: Required; name: Required; tags[0]: Expected string, received number", err.Error())
	})

	t.Run("accepts structs through json tags", func(t *testing.T) {
		type row struct {
			ID   string   `json:"id"`
			Name string   `json:"name"`
			Tags []string `json:"tags"`
		}
		got, err := shape.Parse(user, row{ID: "1", Name: "n", Tags: []string{}})
		require.NoError(t, err)
		require.Equal(t, map[string]any{"id": "1", "name": "n", "tags": []any{}}, got)
	})
}

func TestParseUnion(t *testing.T) {
	circle := shape.Object().Field("kind", shape.Literal("circle")).Field("radius", shape.Number())
	square := shape.Object().Field("kind", shape.Literal("square")).Field("side", shape.Number())

	t.Run("first matching member wins", func(t *testing.T) {
		u := shape.Union(shape.String(), shape.Number())
		got, err := shape.Parse(u, 4)
		require.NoError(t, err)
		require.Equal(t, float64(4), got)

		_, err = shape.Parse(u, true)
		require.EqualError(t, err, "Invalid input")
	})

	t.Run("discriminator selects member", func(t *testing.T) {
		u := shape.DiscriminatedUnion("kind", circle, square)
		got, err := shape.Parse(u, map[string]any{"kind": "square", "side": 2, "radius": 9})
		require.NoError(t, err)
		require.Equal(t, map[string]any{"kind": "square", "side": float64(2)}, got)

		_, err = shape.Parse(u, map[string]any{"kind": "hexagon"})
		require.EqualError(t, err, "kind: Invalid discriminator value. Expected 'circle' | 'square'")
	})
}

func TestParseTuple(t *testing.T) {
	pair := shape.Tuple(shape.String(), shape.Number())
	got, err := shape.Parse(pair, []any{"a", 1})
	require.NoError(t, err)
	require.Equal(t, []any{"a", float64(1)}, got)

	_, err = shape.Parse(pair, []any{"a"})
	require.EqualError(t, err, "Array must contain at least 2 element(s)")
}

func TestRecursiveObject(t *testing.T) {
	node := shape.Object().Named("Category")
	node.Field("name", shape.String())
	node.Field("children", shape.Array(node).Optional())

	got, err := shape.Parse(node, map[string]any{
		"name":     "root",
		"children": []any{map[string]any{"name": "leaf"}},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"name":     "root",
		"children": []any{map[string]any{"name": "leaf"}},
	}, got)
	require.Same(t, node, shape.UnwrapAll(node.FieldByName("children")).Elem())
}
