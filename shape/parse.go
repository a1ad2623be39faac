package shape

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Parse validates value against n and returns the normalized value: objects
// become map[string]any with unknown keys removed, arrays become []any and
// numbers become float64. A literal keeps its declared value.
func Parse(n *Node, value any) (any, error) {
	p := &parser{}
	out := p.parse(n, value, nil)
	if len(p.issues) > 0 {
		return nil, &ValidationError{Issues: p.issues}
	}
	return out, nil
}

// Check reports whether value matches n.
func Check(n *Node, value any) bool {
	p := &parser{}
	p.parse(n, value, nil)
	return len(p.issues) == 0
}

type parser struct {
	issues []Issue
}

func (p *parser) fail(path []any, code, msg string) {
	cp := make([]any, len(path))
	copy(cp, path)
	p.issues = append(p.issues, Issue{Path: cp, Code: code, Message: msg})
}

func (p *parser) invalidType(path []any, expected string, value any) {
	p.fail(path, CodeInvalidType, fmt.Sprintf("Expected %s, received %s", expected, typeOf(value)))
}

func (p *parser) parse(n *Node, value any, path []any) any {
	switch n.kind {
	case KindNullable, KindOptional:
		if value == nil {
			return nil
		}
		return p.parse(n.elem, value, path)
	case KindAny:
		return value
	case KindString:
		s, ok := value.(string)
		if !ok {
			p.invalidType(path, "string", value)
			return nil
		}
		return s
	case KindNumber:
		f, ok := toFloat(value)
		if !ok || math.IsNaN(f) {
			p.invalidType(path, "number", value)
			return nil
		}
		return f
	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			p.invalidType(path, "boolean", value)
			return nil
		}
		return b
	case KindLiteral:
		if !literalEqual(n.literal, value) {
			p.fail(path, CodeInvalidLiteral, fmt.Sprintf("Invalid literal value, expected %s", describeLiteral(n.literal)))
			return nil
		}
		return n.literal
	case KindEnum:
		s, ok := value.(string)
		if !ok {
			p.invalidType(path, "string", value)
			return nil
		}
		for _, v := range n.values {
			if v == s {
				return s
			}
		}
		p.fail(path, CodeInvalidEnumValue, fmt.Sprintf("Invalid enum value. Expected %s, received '%s'", quoteJoin(n.values), s))
		return nil
	case KindObject:
		return p.parseObject(n, value, path)
	case KindArray:
		items, ok := toSlice(value)
		if !ok {
			p.invalidType(path, "array", value)
			return nil
		}
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = p.parse(n.elem, it, append(path, i))
		}
		return out
	case KindTuple:
		items, ok := toSlice(value)
		if !ok {
			p.invalidType(path, "array", value)
			return nil
		}
		if len(items) < len(n.members) {
			p.fail(path, CodeTooSmall, fmt.Sprintf("Array must contain at least %d element(s)", len(n.members)))
			return nil
		}
		if len(items) > len(n.members) {
			p.fail(path, CodeTooBig, fmt.Sprintf("Array must contain at most %d element(s)", len(n.members)))
			return nil
		}
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = p.parse(n.members[i], it, append(path, i))
		}
		return out
	case KindUnion:
		if n.discriminator != "" {
			return p.parseDiscriminated(n, value, path)
		}
		for _, m := range n.members {
			sub := &parser{}
			out := sub.parse(m, value, path)
			if len(sub.issues) == 0 {
				return out
			}
		}
		p.fail(path, CodeInvalidUnion, "Invalid input")
		return nil
	}
	p.fail(path, CodeInvalidType, fmt.Sprintf("unknown schema kind %s", n.kind))
	return nil
}

func (p *parser) parseObject(n *Node, value any, path []any) any {
	m, ok := toMap(value)
	if !ok {
		p.invalidType(path, "object", value)
		return nil
	}
	out := make(map[string]any, len(n.fields))
	for _, f := range n.fields {
		v, present := m[f.Name]
		if !present {
			if f.Node.kind == KindOptional {
				continue
			}
			if f.Node.kind == KindAny {
				continue
			}
			p.fail(append(path, f.Name), CodeInvalidType, "Required")
			continue
		}
		out[f.Name] = p.parse(f.Node, v, append(path, f.Name))
	}
	return out
}

func (p *parser) parseDiscriminated(n *Node, value any, path []any) any {
	m, ok := toMap(value)
	if !ok {
		p.invalidType(path, "object", value)
		return nil
	}
	tag := m[n.discriminator]
	for _, member := range n.members {
		mm := UnwrapAll(member)
		if mm.kind != KindObject {
			continue
		}
		lit := mm.fieldByName(n.discriminator)
		if lit != nil && lit.kind == KindLiteral && literalEqual(lit.literal, tag) {
			return p.parse(member, m, path)
		}
	}
	p.fail(append(path, n.discriminator), CodeInvalidDiscriminator,
		fmt.Sprintf("Invalid discriminator value. Expected %s", quoteJoin(DiscriminatorValues(n))))
	return nil
}

// DiscriminatorValues lists the literal tag of every object member of a
// discriminated union, as strings.
func DiscriminatorValues(n *Node) []string {
	var out []string
	for _, member := range n.members {
		mm := UnwrapAll(member)
		if mm.kind != KindObject {
			continue
		}
		if lit := mm.fieldByName(n.discriminator); lit != nil && lit.kind == KindLiteral {
			out = append(out, fmt.Sprint(lit.literal))
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func literalEqual(lit, v any) bool {
	if lf, ok := toFloat(lit); ok {
		vf, ok := toFloat(v)
		return ok && lf == vf
	}
	return lit == v
}

func describeLiteral(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}

func quoteJoin(vals []string) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += " | "
		}
		out += "'" + v + "'"
	}
	return out
}

func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toMap accepts map[string]any, other string-keyed maps, and structs (through
// their JSON encoding).
func toMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, true
	case reflect.Struct:
		b, err := json.Marshal(rv.Interface())
		if err != nil {
			return nil, false
		}
		var out map[string]any
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

func typeOf(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if _, ok := toFloat(v); ok {
		return "number"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Pointer:
		if rv.IsNil() {
			return "null"
		}
		return typeOf(rv.Elem().Interface())
	}
	return "unknown"
}
