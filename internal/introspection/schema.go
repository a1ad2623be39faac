package introspection

import (
	schema "github.com/hanpama/procgraph/internal/schema"
)

var (
	str     = schema.NamedType("String")
	boolean = schema.NamedType("Boolean")
)

func nn(t *schema.TypeRef) *schema.TypeRef { return schema.NonNullType(t) }

func listOf(name string) *schema.TypeRef {
	return schema.ListType(nn(schema.NamedType(name)))
}

func includeDeprecated() *schema.InputValue {
	return schema.NewInputValue("includeDeprecated", "", boolean).SetDefault(false)
}

// extend returns a copy of original with the introspection types and the
// __schema and __type root fields. original is not modified.
func extend(original *schema.Schema) *schema.Schema {
	extended := schema.NewSchema(original.Description)
	extended.QueryType = original.QueryType
	extended.MutationType = original.MutationType
	extended.SubscriptionType = original.SubscriptionType
	for _, t := range original.Types {
		extended.AddType(t)
	}
	for _, d := range original.Directives {
		extended.AddDirective(d)
	}
	for _, t := range metaTypes() {
		extended.AddType(t)
	}

	if q := original.GetQueryType(); q != nil {
		root := schema.NewType(q.Name, q.Kind, q.Description)
		root.Interfaces = q.Interfaces
		root.Fields = append(append(root.Fields, q.Fields...),
			schema.NewField("__schema", "Access the current type schema of this server.", nn(schema.NamedType("__Schema"))),
			schema.NewField("__type", "Request the type information of a single type.", schema.NamedType("__Type")).
				AddArgument(schema.NewInputValue("name", "The name of the type to look up.", nn(str))),
		)
		extended.AddType(root)
	}
	return extended
}

func metaTypes() []*schema.Type {
	schemaT := schema.NewType("__Schema", schema.TypeKindObject,
		"A GraphQL Schema defines the capabilities of a GraphQL server.").
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("types", "A list of all types supported by this server.", nn(listOf("__Type")))).
		AddField(schema.NewField("queryType", "The type that query operations will be rooted at.", nn(schema.NamedType("__Type")))).
		AddField(schema.NewField("mutationType", "If this server supports mutation, the type that mutation operations will be rooted at.", schema.NamedType("__Type"))).
		AddField(schema.NewField("subscriptionType", "If this server support subscription, the type that subscription operations will be rooted at.", schema.NamedType("__Type"))).
		AddField(schema.NewField("directives", "A list of all directives supported by this server.", nn(listOf("__Directive"))))

	typeT := schema.NewType("__Type", schema.TypeKindObject, "The fundamental unit of any GraphQL Schema is the type.").
		AddField(schema.NewField("kind", "", nn(schema.NamedType("__TypeKind")))).
		AddField(schema.NewField("name", "", str)).
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("specifiedByURL", "", str)).
		AddField(schema.NewField("fields", "", listOf("__Field")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("interfaces", "", listOf("__Type"))).
		AddField(schema.NewField("possibleTypes", "", listOf("__Type"))).
		AddField(schema.NewField("enumValues", "", listOf("__EnumValue")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("inputFields", "", listOf("__InputValue")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("ofType", "", schema.NamedType("__Type"))).
		AddField(schema.NewField("isOneOf", "", boolean))

	fieldT := schema.NewType("__Field", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", nn(str))).
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("args", "", nn(listOf("__InputValue"))).AddArgument(includeDeprecated())).
		AddField(schema.NewField("type", "", nn(schema.NamedType("__Type")))).
		AddField(schema.NewField("isDeprecated", "", nn(boolean))).
		AddField(schema.NewField("deprecationReason", "", str))

	inputValueT := schema.NewType("__InputValue", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", nn(str))).
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("type", "", nn(schema.NamedType("__Type")))).
		AddField(schema.NewField("defaultValue", "", str)).
		AddField(schema.NewField("isDeprecated", "", nn(boolean))).
		AddField(schema.NewField("deprecationReason", "", str))

	enumValueT := schema.NewType("__EnumValue", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", nn(str))).
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("isDeprecated", "", nn(boolean))).
		AddField(schema.NewField("deprecationReason", "", str))

	directiveT := schema.NewType("__Directive", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", nn(str))).
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("isRepeatable", "", nn(boolean))).
		AddField(schema.NewField("locations", "", nn(listOf("__DirectiveLocation")))).
		AddField(schema.NewField("args", "", nn(listOf("__InputValue"))).AddArgument(includeDeprecated()))

	return []*schema.Type{
		schemaT, typeT, fieldT, inputValueT, enumValueT, directiveT,
		enumOf("__TypeKind", "SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL"),
		enumOf("__DirectiveLocation",
			"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
			"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
			"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
			"INPUT_FIELD_DEFINITION"),
	}
}

func enumOf(name string, values ...string) *schema.Type {
	t := schema.NewType(name, schema.TypeKindEnum, "")
	for _, v := range values {
		t.AddEnumValue(schema.NewEnumValue(v, ""))
	}
	return t
}
