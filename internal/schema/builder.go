package schema

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/procgraph/internal/language"
)

// BuildFromSDL parses and validates SDL and converts it to a Schema. Builtin
// scalars and directives keep their shared definitions.
func BuildFromSDL(name, sdl string) (*Schema, error) {
	doc, err := language.LoadSchema(name, sdl)
	if err != nil {
		return nil, err
	}
	return FromValidated(doc), nil
}

// FromValidated converts a schema that has already passed validation.
func FromValidated(doc *language.ValidatedSchema) *Schema {
	s := NewSchema("")
	if doc.Query != nil {
		s.SetQueryType(doc.Query.Name)
	}
	if doc.Mutation != nil {
		s.SetMutationType(doc.Mutation.Name)
	}
	if doc.Subscription != nil {
		s.SetSubscriptionType(doc.Subscription.Name)
	}

	names := make([]string, 0, len(doc.Types))
	for name, def := range doc.Types {
		if def.BuiltIn || strings.HasPrefix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.AddType(buildType(doc, doc.Types[name]))
	}

	for name, def := range doc.Directives {
		if isBuiltinDirective(name) {
			continue
		}
		d := NewDirective(def.Name, def.Description)
		for _, loc := range def.Locations {
			d.Locations = append(d.Locations, string(loc))
		}
		for _, arg := range def.Arguments {
			d.AddArgument(buildArgument(arg))
		}
		if def.IsRepeatable {
			d.SetRepeatable()
		}
		s.AddDirective(d)
	}
	return s
}

func buildType(doc *language.ValidatedSchema, def *ast.Definition) *Type {
	var t *Type
	switch def.Kind {
	case ast.Object:
		t = NewType(def.Name, TypeKindObject, def.Description)
	case ast.Interface:
		t = NewType(def.Name, TypeKindInterface, def.Description)
		for _, impl := range doc.GetPossibleTypes(def) {
			t.AddPossibleType(impl.Name)
		}
	case ast.Union:
		t = NewType(def.Name, TypeKindUnion, def.Description)
		for _, member := range def.Types {
			t.AddPossibleType(member)
		}
		return t
	case ast.Enum:
		t = NewType(def.Name, TypeKindEnum, def.Description)
		for _, v := range def.EnumValues {
			ev := NewEnumValue(v.Name, v.Description)
			if reason, ok := deprecation(v.Directives); ok {
				ev.IsDeprecated = true
				ev.DeprecationReason = reason
			}
			t.AddEnumValue(ev)
		}
		return t
	case ast.InputObject:
		t = NewType(def.Name, TypeKindInputObject, def.Description)
		if def.Directives.ForName("oneOf") != nil {
			t.SetOneOf()
		}
		for _, f := range def.Fields {
			t.AddInputField(buildInputField(f))
		}
		return t
	default:
		t = NewType(def.Name, TypeKindScalar, def.Description)
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				t.SetSpecifiedByURL(arg.Value.Raw)
			}
		}
		return t
	}

	t.Interfaces = append(t.Interfaces, def.Interfaces...)
	for _, f := range def.Fields {
		if strings.HasPrefix(f.Name, "__") {
			continue
		}
		field := NewField(f.Name, f.Description, buildTypeRef(f.Type))
		for _, arg := range f.Arguments {
			field.AddArgument(buildArgument(arg))
		}
		if reason, ok := deprecation(f.Directives); ok {
			field.Deprecate(reason)
		}
		t.AddField(field)
	}
	return t
}

func buildArgument(arg *ast.ArgumentDefinition) *InputValue {
	v := NewInputValue(arg.Name, arg.Description, buildTypeRef(arg.Type))
	if arg.DefaultValue != nil {
		v.SetDefault(constValue(arg.DefaultValue))
	}
	return v
}

func buildInputField(f *ast.FieldDefinition) *InputValue {
	v := NewInputValue(f.Name, f.Description, buildTypeRef(f.Type))
	if f.DefaultValue != nil {
		v.SetDefault(constValue(f.DefaultValue))
	}
	if reason, ok := deprecation(f.Directives); ok {
		v.IsDeprecated = true
		v.DeprecationReason = reason
	}
	return v
}

func buildTypeRef(t *ast.Type) *TypeRef {
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = NonNullType(ref)
	}
	return ref
}

func deprecation(dirs ast.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return "", true
}

// constValue turns a literal default value into its Go form. Enum values are
// kept as EnumLiteral so they render unquoted.
func constValue(v *ast.Value) any {
	switch v.Kind {
	case ast.EnumValue:
		return EnumLiteral(v.Raw)
	case ast.ListValue:
		out := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			out = append(out, constValue(c.Value))
		}
		return out
	case ast.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			out[c.Name] = constValue(c.Value)
		}
		return out
	}
	val, err := v.Value(nil)
	if err != nil {
		return v.Raw
	}
	return val
}
