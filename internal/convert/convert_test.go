package convert

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/procgraph/internal/schema"
	"github.com/hanpama/procgraph/shape"
)

func render(ref *schema.TypeRef) string {
	switch ref.Kind {
	case schema.TypeRefKindNonNull:
		return render(ref.OfType) + "!"
	case schema.TypeRefKindList:
		return "[" + render(ref.OfType) + "]"
	}
	return ref.Named
}

func newConverter(opts ...Option) *Converter {
	return New(schema.NewSchema(""), opts...)
}

func TestScalarNullability(t *testing.T) {
	tests := []struct {
		name string
		node *shape.Node
		want string
	}{
		{"string", shape.String(), "String!"},
		{"number", shape.Number(), "Float!"},
		{"boolean", shape.Boolean(), "Boolean!"},
		{"optional string", shape.String().Optional(), "String"},
		{"nullable number", shape.Number().Nullable(), "Float"},
		{"stacked wrappers", shape.Boolean().Nullable().Optional(), "Boolean"},
		{"int literal", shape.Literal(3), "Int!"},
		{"integral float literal", shape.Literal(2.0), "Int!"},
		{"float literal", shape.Literal(1.5), "Float!"},
		{"string literal", shape.Literal("x"), "String!"},
		{"bool literal", shape.Literal(true), "Boolean!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, p := range []Polarity{Input, Output} {
				c := newConverter()
				var ref *schema.TypeRef
				var err error
				if p == Input {
					ref, err = c.ToInputType(tt.node, "T")
				} else {
					ref, err = c.ToOutputType(tt.node, "T")
				}
				require.NoError(t, err)
				require.Equal(t, tt.want, render(ref), "polarity %s", p)
			}
		})
	}
}

func TestListStripsOneNonNull(t *testing.T) {
	tests := []struct {
		node *shape.Node
		want string
	}{
		{shape.Array(shape.String()), "[String]!"},
		{shape.Array(shape.String().Optional()), "[String]!"},
		{shape.Array(shape.String()).Optional(), "[String]"},
		{shape.Array(shape.Array(shape.Number())), "[[Float]]!"},
	}
	for _, tt := range tests {
		ref, err := newConverter().ToOutputType(tt.node, "L")
		require.NoError(t, err)
		require.Equal(t, tt.want, render(ref))
	}
}

func TestObjectIsCachedByIdentity(t *testing.T) {
	user := shape.Object().Named("User").Field("id", shape.String())
	c := newConverter()

	a, err := c.ToOutputType(user, "getUser_Output")
	require.NoError(t, err)
	first := c.Schema().Types["User"]

	b, err := c.ToOutputType(shape.Array(user), "listUsers_Output")
	require.NoError(t, err)
	require.Equal(t, "User!", render(a))
	require.Equal(t, "[User]!", render(b))
	require.Same(t, first, c.Schema().Types["User"])

	in, err := c.ToInputType(user, "createUser_Input")
	require.NoError(t, err)
	require.Equal(t, "UserInput!", render(in))
	require.Equal(t, schema.TypeKindInputObject, c.Schema().Types["UserInput"].Kind)
	require.Equal(t, schema.TypeKindObject, c.Schema().Types["User"].Kind)
}

func TestRecursiveObject(t *testing.T) {
	category := shape.Object().Named("Category")
	category.Field("name", shape.String())
	category.Field("children", shape.Array(category).Optional())

	c := newConverter()
	_, err := c.ToOutputType(category, "tree_Output")
	require.NoError(t, err)

	typ := c.Schema().Types["Category"]
	require.Equal(t, "[Category]", render(typ.FieldByName("children").Type))
}

func TestNameEndingInInputServesBothPolarities(t *testing.T) {
	filter := shape.Object().Named("FilterInput").Field("q", shape.String())
	c := newConverter()

	in, err := c.ToInputType(filter, "search_Input")
	require.NoError(t, err)
	out, err := c.ToOutputType(filter, "search_Output")
	require.NoError(t, err)
	require.Equal(t, "FilterInputInput!", render(in))
	require.Equal(t, "FilterInput!", render(out))
	require.Equal(t, schema.TypeKindInputObject, c.Schema().Types["FilterInputInput"].Kind)
	require.Equal(t, schema.TypeKindObject, c.Schema().Types["FilterInput"].Kind)
}

func TestSynthesizedNamesAreDeterministic(t *testing.T) {
	build := func() string {
		out := shape.Object().
			Field("id", shape.String()).
			Field("address", shape.Object().Field("city", shape.String())).
			Field("status", shape.Enum("ACTIVE", "DISABLED"))
		c := newConverter()
		_, err := c.ToOutputType(out, "getUser_Output")
		require.NoError(t, err)
		return schema.Render(c.Schema())
	}
	want := `type getUser_Output {
  id: String!
  address: getUser_Output_address!
  status: getUser_Output_status!
}

type getUser_Output_address {
  city: String!
}

enum getUser_Output_status {
  ACTIVE
  DISABLED
}
`
	got := build()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	require.Equal(t, got, build())
}

func TestEnumValuesMustBeNames(t *testing.T) {
	_, err := newConverter().ToOutputType(shape.Enum("ok", "not ok"), "E")
	var merr *MisconfigurationError
	require.ErrorAs(t, err, &merr)
	require.Contains(t, merr.Reason, `"not ok"`)
}

func TestDuplicateTypeName(t *testing.T) {
	c := newConverter()
	_, err := c.ToOutputType(shape.Object().Named("User").Field("id", shape.String()), "a")
	require.NoError(t, err)
	_, err = c.ToOutputType(shape.Object().Named("User").Field("name", shape.String()), "b")
	var merr *MisconfigurationError
	require.ErrorAs(t, err, &merr)
	require.Contains(t, merr.Reason, "User is already in use")
}

func TestUnsupportedNodes(t *testing.T) {
	in := shape.Object().
		Field("id", shape.String()).
		Field("pair", shape.Tuple(shape.String(), shape.Number()))

	var uerr *UnsupportedSchemaNodeError
	_, err := newConverter().ToArguments(in, "p_Input")
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, "p_Input.pair", uerr.Path)
	require.Equal(t, shape.KindTuple, uerr.Kind)

	_, err = newConverter().ToInputType(shape.Any(), "x")
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, shape.KindAny, uerr.Kind)

	_, err = newConverter().ToOutputType(shape.Object().Field("meta", shape.Any().Optional()), "o")
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, "o.meta", uerr.Path)
}

func TestToArguments(t *testing.T) {
	c := newConverter()
	args, err := c.ToArguments(shape.Object().
		Field("name", shape.String().Describe("display name")).
		Field("email", shape.String().Optional()).
		Field("profile", shape.Object().Field("bio", shape.String())), "createUser_Input")
	require.NoError(t, err)

	got := map[string]string{}
	for _, a := range args {
		got[a.Name] = render(a.Type)
	}
	require.Equal(t, map[string]string{
		"name":    "String!",
		"email":   "String",
		"profile": "createUser_Input_profile!",
	}, got)
	require.Equal(t, "display name", args[0].Description)
	require.Equal(t, schema.TypeKindInputObject, c.Schema().Types["createUser_Input_profile"].Kind)

	_, err = c.ToArguments(shape.String(), "bad")
	var merr *MisconfigurationError
	require.ErrorAs(t, err, &merr)
	require.Contains(t, merr.Reason, "got string")
}

func shapes() (*shape.Node, *shape.Node) {
	circle := shape.Object().Named("Circle").
		Field("kind", shape.Literal("circle")).
		Field("radius", shape.Number())
	square := shape.Object().Named("Square").
		Field("kind", shape.Literal("square")).
		Field("side", shape.Number())
	return circle, square
}

func TestOutputUnion(t *testing.T) {
	circle, square := shapes()
	u := shape.DiscriminatedUnion("kind", circle, square).Named("Shape")
	c := newConverter()
	ref, err := c.ToOutputType(u, "draw_Output")
	require.NoError(t, err)
	require.Equal(t, "Shape!", render(ref))
	require.Equal(t, []string{"Circle", "Square"}, c.Schema().Types["Shape"].PossibleTypes)
	require.True(t, c.IsUnion("Shape"))

	ctx := context.Background()
	name, err := c.ResolveUnion(ctx, "Shape", map[string]any{"kind": "square", "side": 2.0})
	require.NoError(t, err)
	require.Equal(t, "Square", name)

	_, err = c.ResolveUnion(ctx, "Missing", nil)
	require.Error(t, err)
}

func TestOutputUnionResolution(t *testing.T) {
	a := shape.Object().Field("a", shape.String())
	b := shape.Object().Field("b", shape.Number())
	u := shape.Union(a, b)

	t.Run("structural then first member", func(t *testing.T) {
		c := newConverter()
		_, err := c.ToOutputType(u, "pick_Output")
		require.NoError(t, err)
		require.Equal(t, []string{"pick_Output_Option1", "pick_Output_Option2"}, c.Schema().Types["pick_Output"].PossibleTypes)

		name, err := c.ResolveUnion(context.Background(), "pick_Output", map[string]any{"b": 1.0})
		require.NoError(t, err)
		require.Equal(t, "pick_Output_Option2", name)

		name, err = c.ResolveUnion(context.Background(), "pick_Output", "neither")
		require.NoError(t, err)
		require.Equal(t, "pick_Output_Option1", name)
	})

	t.Run("override", func(t *testing.T) {
		c := newConverter(WithTypeResolver("pick_Output", func(context.Context, any) (string, error) {
			return "pick_Output_Option2", nil
		}))
		_, err := c.ToOutputType(u, "pick_Output")
		require.NoError(t, err)
		name, err := c.ResolveUnion(context.Background(), "pick_Output", map[string]any{"a": "x"})
		require.NoError(t, err)
		require.Equal(t, "pick_Output_Option2", name)
	})

	t.Run("override errors", func(t *testing.T) {
		boom := errors.New("boom")
		c := newConverter(WithTypeResolver("pick_Output", func(context.Context, any) (string, error) { return "", boom }))
		_, err := c.ToOutputType(u, "pick_Output")
		require.NoError(t, err)
		_, err = c.ResolveUnion(context.Background(), "pick_Output", nil)
		require.ErrorIs(t, err, boom)
	})

	t.Run("non-object member", func(t *testing.T) {
		_, err := newConverter().ToOutputType(shape.Union(a, shape.String()), "bad")
		var merr *MisconfigurationError
		require.ErrorAs(t, err, &merr)
		require.Equal(t, "bad.Option2", merr.Path)
	})
}

func TestInputUnion(t *testing.T) {
	circle, square := shapes()
	u := shape.DiscriminatedUnion("kind", circle, square).Named("Shape")
	c := newConverter()

	args, err := c.ToArguments(shape.Object().Field("shape", u), "draw_Input")
	require.NoError(t, err)
	require.Equal(t, "ShapeInput!", render(args[0].Type))

	want := `input ShapeInput {
  kind: ShapeInput_Variant!
  radius: Float
  side: Float
}

enum ShapeInput_Variant {
  circle
  square
}
`
	if diff := cmp.Diff(want, schema.Render(c.Schema())); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	got := NormalizeInput(shape.Object().Field("shape", u), map[string]any{
		"shape": map[string]any{"kind": "square", "side": 2.0, "radius": nil},
	})
	require.Equal(t, map[string]any{"shape": map[string]any{"kind": "square", "side": 2.0}}, got)
}

func TestInputUnionWithoutDiscriminator(t *testing.T) {
	byID := shape.Object().Named("ByID").Field("id", shape.String())
	byEmail := shape.Object().Field("email", shape.String())
	u := shape.Union(byID, byEmail)

	c := newConverter()
	ref, err := c.ToInputType(u, "find_Input")
	require.NoError(t, err)
	require.Equal(t, "find_Input!", render(ref))

	enum := c.Schema().Types["find_Input_Variant"]
	require.True(t, enum.HasEnumValue("ByID"))
	require.True(t, enum.HasEnumValue("Option2"))

	got := NormalizeInput(u, map[string]any{"variant": "Option2", "email": "a@b.c", "id": nil})
	require.Equal(t, map[string]any{"email": "a@b.c"}, got)

	parsed, err := shape.Parse(u, got)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"email": "a@b.c"}, parsed)
}

func TestInputUnionConflicts(t *testing.T) {
	a := shape.Object().Field("x", shape.String())
	b := shape.Object().Field("x", shape.Number())
	_, err := newConverter().ToInputType(shape.Union(a, b), "u")
	var merr *MisconfigurationError
	require.ErrorAs(t, err, &merr)
	require.Contains(t, merr.Reason, "conflicting types")

	nestedA := shape.Object().Field("at", shape.Object().Field("x", shape.String()))
	nestedB := shape.Object().Field("at", shape.Object().Field("y", shape.String()))
	_, err = newConverter().ToInputType(shape.Union(nestedA, nestedB), "w")
	require.ErrorAs(t, err, &merr)
	require.Contains(t, merr.Reason, `field "at" has conflicting types across members of w`)

	shared := shape.Object().Field("x", shape.String())
	c := newConverter()
	_, err = c.ToInputType(shape.Union(
		shape.Object().Field("at", shared),
		shape.Object().Field("at", shared).Field("n", shape.Number()),
	), "s")
	require.NoError(t, err)
	require.Equal(t, "s_at", c.Schema().Types["s"].InputFieldByName("at").Type.GetNamedType())

	tagged := shape.Object().Field("variant", shape.String())
	_, err = newConverter().ToInputType(shape.Union(tagged), "v")
	require.ErrorAs(t, err, &merr)
	require.Contains(t, merr.Reason, "collides with the union tag")
}
