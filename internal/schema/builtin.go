package schema

import "slices"

// Builtin types and directives are shared by every Schema and must not be
// mutated.
var (
	builtinScalars = []*Type{
		builtinScalar("String", "The `String` scalar type represents textual data, represented as UTF-8 character sequences."),
		builtinScalar("Int", "The `Int` scalar type represents non-fractional signed whole numeric values."),
		builtinScalar("Float", "The `Float` scalar type represents signed double-precision fractional values."),
		builtinScalar("Boolean", "The `Boolean` scalar type represents `true` or `false`."),
		builtinScalar("ID", "The `ID` scalar type represents a unique identifier, often used to refetch an object or as a key for caching."),
	}

	includeDirective = conditionDirective("include",
		"Directs the executor to include this field or fragment only when the `if` argument is true.", "Included when true.")
	skipDirective = conditionDirective("skip",
		"Directs the executor to skip this field or fragment when the `if` argument is true.", "Skipped when true.")
)

func builtinScalar(name, description string) *Type {
	return NewType(name, TypeKindScalar, description)
}

func conditionDirective(name, description, ifDescription string) *Directive {
	return NewDirective(name, description, "FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT").
		AddArgument(NewInputValue("if", ifDescription, NonNullType(NamedType("Boolean"))))
}

// IsBuiltinScalar reports whether name is one of the five specified scalars.
func IsBuiltinScalar(name string) bool {
	return slices.ContainsFunc(builtinScalars, func(t *Type) bool { return t.Name == name })
}
