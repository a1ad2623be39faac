package manifest

import (
	"gopkg.in/yaml.v3"

	"github.com/hanpama/procgraph/shape"
)

var shapeKeys = map[string]bool{
	"type": true, "ref": true, "fields": true, "items": true, "values": true,
	"value": true, "members": true, "discriminator": true, "optional": true,
	"nullable": true, "description": true,
}

// shape parses a type expression: either {ref: Name} or an inline {type: ...},
// each optionally marked optional or nullable.
func (p *parser) shape(n *yaml.Node) *shape.Node {
	if n.Kind != yaml.MappingNode {
		p.vs.at(n, "type expression must be a mapping")
		return shape.Any()
	}
	p.checkKeys(n)
	var base *shape.Node
	if ref := child(n, "ref"); ref != nil {
		if child(n, "type") != nil {
			p.vs.at(ref, "ref and type cannot be combined")
		}
		if child(n, "description") != nil {
			p.vs.at(ref, "describe the referenced type instead of the reference")
		}
		base = p.ref(ref)
	} else {
		base = p.build(n, "")
	}
	if p.flag(n, "nullable") {
		base = base.Nullable()
	}
	if p.flag(n, "optional") {
		base = base.Optional()
	}
	return base
}

func (p *parser) checkKeys(n *yaml.Node) {
	eachPair(n, func(k, _ *yaml.Node) {
		if !shapeKeys[k.Value] {
			p.vs.at(k, "unknown key %s in type expression", k.Value)
		}
	})
}

func (p *parser) ref(n *yaml.Node) *shape.Node {
	def, ok := p.types[n.Value]
	if !ok {
		p.vs.at(n, "unknown type %s", n.Value)
		return shape.Any()
	}
	return p.named(n.Value, def)
}

// named resolves a declared type once. Objects are registered before their
// fields are parsed, so they may refer to themselves.
func (p *parser) named(name string, def *yaml.Node) *shape.Node {
	if n, ok := p.resolved[name]; ok {
		return n
	}
	if def.Kind != yaml.MappingNode {
		p.vs.at(def, "type %s must be a mapping", name)
		p.resolved[name] = shape.Any()
		return p.resolved[name]
	}
	if p.pending[name] {
		p.vs.at(def, "type %s refers to itself without passing through an object", name)
		return shape.Any()
	}
	if child(def, "optional") != nil || child(def, "nullable") != nil {
		p.vs.at(def, "named type %s cannot be optional or nullable; mark the reference instead", name)
	}
	p.checkKeys(def)
	if t := child(def, "type"); t != nil && t.Value == "object" {
		obj := shape.Object().Named(name)
		p.resolved[name] = obj
		p.describe(def, obj)
		p.fields(def, obj)
		return obj
	}
	p.pending[name] = true
	var n *shape.Node
	if ref := child(def, "ref"); ref != nil {
		n = p.ref(ref)
	} else {
		n = p.build(def, name)
	}
	delete(p.pending, name)
	p.resolved[name] = n
	return n
}

func (p *parser) build(n *yaml.Node, name string) *shape.Node {
	t := child(n, "type")
	if t == nil {
		p.vs.at(n, "type or ref is required")
		return shape.Any()
	}
	var out *shape.Node
	switch t.Value {
	case "string":
		out = shape.String()
	case "number":
		out = shape.Number()
	case "boolean":
		out = shape.Boolean()
	case "any":
		out = shape.Any()
	case "literal":
		v := child(n, "value")
		if v == nil {
			p.vs.at(n, "literal needs a value")
			return shape.Any()
		}
		var lit any
		if err := v.Decode(&lit); err != nil || v.Kind != yaml.ScalarNode {
			p.vs.at(v, "literal value must be a string, number or boolean")
			return shape.Any()
		}
		out = shape.Literal(lit)
	case "enum":
		var values []string
		v := child(n, "values")
		if v == nil || v.Decode(&values) != nil || len(values) == 0 {
			p.vs.at(n, "enum needs a non-empty list of string values")
			return shape.Any()
		}
		out = shape.Enum(values...)
	case "object":
		out = shape.Object()
		p.fields(n, out)
	case "array":
		items := child(n, "items")
		if items == nil {
			p.vs.at(n, "array needs items")
			return shape.Any()
		}
		out = shape.Array(p.shape(items))
	case "union", "tuple":
		members := p.members(n)
		if members == nil {
			return shape.Any()
		}
		if t.Value == "tuple" {
			out = shape.Tuple(members...)
		} else if d := child(n, "discriminator"); d != nil {
			out = shape.DiscriminatedUnion(d.Value, members...)
		} else {
			out = shape.Union(members...)
		}
	default:
		p.vs.at(t, "unknown type %s", t.Value)
		return shape.Any()
	}
	if name != "" {
		out.Named(name)
	}
	p.describe(n, out)
	return out
}

func (p *parser) fields(n *yaml.Node, obj *shape.Node) {
	fs := child(n, "fields")
	if fs == nil {
		return
	}
	if fs.Kind != yaml.MappingNode {
		p.vs.at(fs, "fields must be a mapping")
		return
	}
	seen := map[string]bool{}
	eachPair(fs, func(k, v *yaml.Node) {
		if seen[k.Value] {
			p.vs.at(k, "duplicate field %s", k.Value)
			return
		}
		seen[k.Value] = true
		obj.Field(k.Value, p.shape(v))
	})
}

func (p *parser) members(n *yaml.Node) []*shape.Node {
	ms := child(n, "members")
	if ms == nil || ms.Kind != yaml.SequenceNode || len(ms.Content) == 0 {
		p.vs.at(n, "members must be a non-empty list")
		return nil
	}
	out := make([]*shape.Node, len(ms.Content))
	for i, m := range ms.Content {
		out[i] = p.shape(m)
	}
	return out
}

func (p *parser) describe(n *yaml.Node, out *shape.Node) {
	if d := child(n, "description"); d != nil {
		out.Describe(d.Value)
	}
}

func (p *parser) flag(n *yaml.Node, key string) bool {
	v := child(n, key)
	if v == nil {
		return false
	}
	var b bool
	if err := v.Decode(&b); err != nil {
		p.vs.at(v, "%s must be a boolean", key)
	}
	return b
}
