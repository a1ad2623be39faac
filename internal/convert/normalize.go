package convert

import "github.com/hanpama/procgraph/shape"

// NormalizeInput rewrites coerced GraphQL arguments into the form n parses:
// each input union object loses its tag and the fields of other members, and
// a discriminator gets its literal back.
func NormalizeInput(n *shape.Node, value any) any {
	if n == nil || value == nil {
		return value
	}
	switch n.Kind() {
	case shape.KindNullable, shape.KindOptional:
		return NormalizeInput(n.Elem(), value)
	case shape.KindObject:
		m, ok := value.(map[string]any)
		if !ok {
			return value
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		for _, f := range n.Fields() {
			if v, ok := m[f.Name]; ok {
				out[f.Name] = NormalizeInput(f.Node, v)
			}
		}
		return out
	case shape.KindArray:
		items, ok := value.([]any)
		if !ok {
			return value
		}
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = NormalizeInput(n.Elem(), it)
		}
		return out
	case shape.KindUnion:
		return normalizeUnion(n, value)
	}
	return value
}

func normalizeUnion(n *shape.Node, value any) any {
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}
	tags, err := variantTags(n)
	if err != nil {
		return value
	}
	tagField := TagField(n)
	tag, _ := m[tagField].(string)
	for i, t := range tags {
		if t != tag {
			continue
		}
		member := n.Members()[i]
		obj := shape.UnwrapAll(member)
		out := make(map[string]any, len(obj.Fields()))
		for _, f := range obj.Fields() {
			if f.Name == n.Discriminator() {
				out[f.Name] = shape.UnwrapAll(f.Node).LiteralValue()
				continue
			}
			if v, ok := m[f.Name]; ok {
				out[f.Name] = v
			}
		}
		return NormalizeInput(member, out)
	}
	return value
}
