package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render prints s as SDL. Types and directives come out sorted by name;
// builtin scalars, builtin directives and introspection types are left out.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	p := &printer{}
	p.schemaBlock(s)

	for _, name := range sortedKeys(s.Types) {
		t := s.Types[name]
		if strings.HasPrefix(name, "__") || (t.Kind == TypeKindScalar && IsBuiltinScalar(name)) {
			continue
		}
		p.typeDef(t)
	}
	for _, name := range sortedKeys(s.Directives) {
		if !isBuiltinDirective(name) {
			p.directiveDef(s.Directives[name])
		}
	}
	return strings.TrimRight(p.String(), "\n") + "\n"
}

type printer struct{ strings.Builder }

func (p *printer) line(parts ...string) {
	for _, s := range parts {
		p.WriteString(s)
	}
	p.WriteByte('\n')
}

// schemaBlock is printed only when a root type has an unconventional name.
func (p *printer) schemaBlock(s *Schema) {
	roots := []struct{ op, conventional, name string }{
		{"query", "Query", s.QueryType},
		{"mutation", "Mutation", s.MutationType},
		{"subscription", "Subscription", s.SubscriptionType},
	}
	custom := false
	for _, r := range roots {
		if r.name != "" && r.name != r.conventional {
			custom = true
		}
	}
	if !custom {
		return
	}
	p.line("schema {")
	for _, r := range roots {
		if r.name != "" {
			p.line("  ", r.op, ": ", r.name)
		}
	}
	p.line("}")
	p.line()
}

func (p *printer) description(desc string) {
	if desc != "" {
		p.line(`"""`)
		p.line(strings.ReplaceAll(desc, `"""`, `\"""`))
		p.line(`"""`)
	}
}

func (p *printer) typeDef(t *Type) {
	p.description(t.Description)
	switch t.Kind {
	case TypeKindScalar:
		head := "scalar " + t.Name
		if t.SpecifiedByURL != nil {
			head += ` @specifiedBy(url: "` + *t.SpecifiedByURL + `")`
		}
		p.line(head)
	case TypeKindEnum:
		p.line("enum ", t.Name, " {")
		for _, v := range t.EnumValues {
			p.description(v.Description)
			p.line("  ", v.Name, deprecated(v.IsDeprecated, v.DeprecationReason))
		}
		p.line("}")
	case TypeKindInputObject:
		head := "input " + t.Name
		if t.OneOf {
			head += " @oneOf"
		}
		p.line(head, " {")
		for _, f := range t.InputFields {
			p.description(f.Description)
			p.line("  ", inputValue(f), deprecated(f.IsDeprecated, f.DeprecationReason))
		}
		p.line("}")
	case TypeKindObject, TypeKindInterface:
		keyword := "type "
		if t.Kind == TypeKindInterface {
			keyword = "interface "
		}
		head := keyword + t.Name
		if len(t.Interfaces) > 0 {
			head += " implements " + strings.Join(t.Interfaces, " & ")
		}
		p.line(head, " {")
		for _, f := range t.Fields {
			if !strings.HasPrefix(f.Name, "__") {
				p.field(f)
			}
		}
		p.line("}")
	case TypeKindUnion:
		p.line("union ", t.Name, " = ", strings.Join(t.PossibleTypes, " | "))
	}
	p.line()
}

func (p *printer) field(f *Field) {
	p.description(f.Description)
	p.line("  ", f.Name, arguments(f.Arguments), ": ", renderTypeRef(f.Type), deprecated(f.IsDeprecated, f.DeprecationReason))
}

func (p *printer) directiveDef(d *Directive) {
	p.description(d.Description)
	repeatable := ""
	if d.IsRepeatable {
		repeatable = " repeatable"
	}
	p.line("directive @", d.Name, arguments(d.Arguments), repeatable, " on ", strings.Join(d.Locations, " | "))
	p.line()
}

func arguments(args []*InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = inputValue(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func inputValue(v *InputValue) string {
	s := v.Name + ": " + renderTypeRef(v.Type)
	if v.DefaultValue != nil {
		s += " = " + RenderValue(v.DefaultValue)
	}
	return s
}

func deprecated(is bool, reason string) string {
	switch {
	case !is:
		return ""
	case reason == "":
		return " @deprecated"
	}
	return ` @deprecated(reason: "` + reason + `")`
}

func renderTypeRef(t *TypeRef) string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNamed:
		return t.Named
	case TypeRefKindList:
		return "[" + renderTypeRef(t.OfType) + "]"
	case TypeRefKindNonNull:
		return renderTypeRef(t.OfType) + "!"
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnumLiteral is a default value printed without quotes.
type EnumLiteral string

func isBuiltinDirective(name string) bool {
	switch name {
	case "include", "skip", "deprecated", "specifiedBy", "oneOf", "defer":
		return true
	}
	return false
}

// RenderValue prints v as a GraphQL literal. Object keys are sorted.
func RenderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case EnumLiteral:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = RenderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := sortedKeys(v)
		for i, k := range keys {
			keys[i] = k + ": " + RenderValue(v[k])
		}
		return "{" + strings.Join(keys, ", ") + "}"
	}
	return fmt.Sprint(value)
}
