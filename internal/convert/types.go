package convert

import (
	"fmt"
	"strconv"

	"github.com/hanpama/procgraph/internal/schema"
	"github.com/hanpama/procgraph/shape"
)

// Enums are shared by both polarities.
func (c *Converter) convertEnum(ctx *Context, n *shape.Node, fallback string) (*schema.TypeRef, error) {
	key := cacheKey{node: n, polarity: Output}
	if t, ok := ctx.cache[key]; ok {
		return schema.NamedType(t.Name), nil
	}
	name := n.Name()
	if name == "" {
		name = fallback
	}
	if len(n.Values()) == 0 {
		return nil, &MisconfigurationError{Path: ctx.where(), Reason: fmt.Sprintf("enum %s has no values", name)}
	}
	t := schema.NewType(name, schema.TypeKindEnum, n.Description())
	for _, v := range n.Values() {
		if !nameRE.MatchString(v) || v == "true" || v == "false" || v == "null" {
			return nil, &MisconfigurationError{Path: ctx.where(), Reason: fmt.Sprintf("enum value %q is not a valid GraphQL enum value", v)}
		}
		t.AddEnumValue(schema.NewEnumValue(v, ""))
	}
	if err := c.register(ctx, t); err != nil {
		return nil, err
	}
	ctx.cache[key] = t
	return schema.NamedType(name), nil
}

func (c *Converter) convertObject(ctx *Context, n *shape.Node, fallback string) (*schema.TypeRef, error) {
	key := cacheKey{node: n, polarity: ctx.polarity}
	if t, ok := ctx.cache[key]; ok {
		return schema.NamedType(t.Name), nil
	}
	name := typeName(ctx, n, fallback)
	kind := schema.TypeKindObject
	if ctx.polarity == Input {
		kind = schema.TypeKindInputObject
	}
	t := schema.NewType(name, kind, n.Description())
	if err := c.register(ctx, t); err != nil {
		return nil, err
	}
	// cached before the fields so cycles resolve to this type
	ctx.cache[key] = t

	for _, f := range n.Fields() {
		fctx := ctx.at(f.Name)
		if !nameRE.MatchString(f.Name) {
			return nil, &MisconfigurationError{Path: fctx.where(), Reason: fmt.Sprintf("%q is not a valid GraphQL name", f.Name)}
		}
		ref, err := c.convert(fctx, f.Node, name+"_"+f.Name)
		if err != nil {
			return nil, err
		}
		if kind == schema.TypeKindInputObject {
			t.AddInputField(schema.NewInputValue(f.Name, describe(f.Node), ref))
		} else {
			t.AddField(schema.NewField(f.Name, describe(f.Node), ref))
		}
	}
	return schema.NamedType(name), nil
}

func (c *Converter) convertOutputUnion(ctx *Context, n *shape.Node, fallback string) (*schema.TypeRef, error) {
	key := cacheKey{node: n, polarity: Output}
	if t, ok := ctx.cache[key]; ok {
		return schema.NamedType(t.Name), nil
	}
	name := typeName(ctx, n, fallback)
	if len(n.Members()) == 0 {
		return nil, &MisconfigurationError{Path: ctx.where(), Reason: fmt.Sprintf("union %s has no members", name)}
	}
	t := schema.NewType(name, schema.TypeKindUnion, n.Description())
	if err := c.register(ctx, t); err != nil {
		return nil, err
	}
	ctx.cache[key] = t

	info := &unionInfo{node: n}
	seen := map[string]bool{}
	for i, m := range n.Members() {
		mctx := ctx.at(optionName(i))
		obj := shape.UnwrapAll(m)
		if obj == nil || obj.Kind() != shape.KindObject {
			return nil, &MisconfigurationError{Path: mctx.where(), Reason: fmt.Sprintf("union member %d of %s is %s, members must be objects", i+1, name, kindOf(obj))}
		}
		ref, err := c.convertObject(mctx, obj, name+"_"+optionName(i))
		if err != nil {
			return nil, err
		}
		member := ref.GetNamedType()
		info.members = append(info.members, unionMember{node: obj, typeName: member})
		if !seen[member] {
			seen[member] = true
			t.AddPossibleType(member)
		}
	}
	c.unions[name] = info
	return schema.NamedType(name), nil
}

// convertInputUnion emits one input object: a Non-Null tag field naming the
// member, plus every member field as nullable.
func (c *Converter) convertInputUnion(ctx *Context, n *shape.Node, fallback string) (*schema.TypeRef, error) {
	key := cacheKey{node: n, polarity: Input}
	if t, ok := ctx.cache[key]; ok {
		return schema.NamedType(t.Name), nil
	}
	name := typeName(ctx, n, fallback)
	if len(n.Members()) == 0 {
		return nil, &MisconfigurationError{Path: ctx.where(), Reason: fmt.Sprintf("union %s has no members", name)}
	}
	tag, err := variantTags(n)
	if err != nil {
		return nil, &MisconfigurationError{Path: ctx.where(), Reason: err.Error()}
	}
	tagField := TagField(n)

	t := schema.NewType(name, schema.TypeKindInputObject, n.Description())
	if err := c.register(ctx, t); err != nil {
		return nil, err
	}
	ctx.cache[key] = t

	enum := schema.NewType(name+"_Variant", schema.TypeKindEnum, "")
	for _, v := range tag {
		if !enum.HasEnumValue(v) {
			enum.AddEnumValue(schema.NewEnumValue(v, ""))
		}
	}
	if err := c.register(ctx, enum); err != nil {
		return nil, err
	}
	t.AddInputField(schema.NewInputValue(tagField, "", schema.NonNullType(schema.NamedType(enum.Name))))

	for i, m := range n.Members() {
		obj := shape.UnwrapAll(m)
		mctx := ctx.at(optionName(i))
		if obj == nil || obj.Kind() != shape.KindObject {
			return nil, &MisconfigurationError{Path: mctx.where(), Reason: fmt.Sprintf("input union member %d of %s is %s, members must be objects", i+1, name, kindOf(obj))}
		}
		for _, f := range obj.Fields() {
			if f.Name == tagField {
				if n.Discriminator() == "" {
					return nil, &MisconfigurationError{Path: mctx.at(f.Name).where(), Reason: fmt.Sprintf("field %q collides with the union tag field", f.Name)}
				}
				continue
			}
			fctx := mctx.at(f.Name)
			if !nameRE.MatchString(f.Name) {
				return nil, &MisconfigurationError{Path: fctx.where(), Reason: fmt.Sprintf("%q is not a valid GraphQL name", f.Name)}
			}
			// a field seen on an earlier member is named per member, so a
			// different nested node is reported as a conflict
			prev := t.InputFieldByName(f.Name)
			nested := name + "_" + f.Name
			if prev != nil {
				nested = name + "_" + optionName(i) + "_" + f.Name
			}
			ref, err := c.convert(fctx, f.Node, nested)
			if err != nil {
				return nil, err
			}
			ref = schema.Nullable(ref)
			if prev != nil {
				if !sameTypeRef(prev.Type, ref) {
					return nil, &MisconfigurationError{Path: fctx.where(), Reason: fmt.Sprintf("field %q has conflicting types across members of %s", f.Name, name)}
				}
				continue
			}
			t.AddInputField(schema.NewInputValue(f.Name, describe(f.Node), ref))
		}
	}
	return schema.NamedType(name), nil
}

// TagField returns the field that names the member of an input union.
func TagField(n *shape.Node) string {
	if d := n.Discriminator(); d != "" {
		return d
	}
	return VariantField
}

// VariantTag is the tag value of member i of a union without a discriminator:
// the member's name, or Option{i+1}.
func VariantTag(member *shape.Node, i int) string {
	if obj := shape.UnwrapAll(member); obj != nil && obj.Name() != "" && nameRE.MatchString(obj.Name()) {
		return obj.Name()
	}
	return optionName(i)
}

// variantTags lists the tag of every member in order.
func variantTags(n *shape.Node) ([]string, error) {
	tags := make([]string, len(n.Members()))
	for i, m := range n.Members() {
		if n.Discriminator() == "" {
			tags[i] = VariantTag(m, i)
			continue
		}
		obj := shape.UnwrapAll(m)
		var lit *shape.Node
		if obj != nil && obj.Kind() == shape.KindObject {
			lit = shape.UnwrapAll(obj.FieldByName(n.Discriminator()))
		}
		if lit == nil || lit.Kind() != shape.KindLiteral {
			return nil, fmt.Errorf("member %d has no literal %q field", i+1, n.Discriminator())
		}
		s, ok := lit.LiteralValue().(string)
		if !ok || !nameRE.MatchString(s) {
			return nil, fmt.Errorf("discriminator value %v of member %d is not a valid GraphQL enum value", lit.LiteralValue(), i+1)
		}
		tags[i] = s
	}
	return tags, nil
}

func optionName(i int) string { return "Option" + strconv.Itoa(i+1) }

func kindOf(n *shape.Node) string {
	if n == nil {
		return "nil"
	}
	return n.Kind().String()
}

func sameTypeRef(a, b *schema.TypeRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind == b.Kind && a.Named == b.Named && sameTypeRef(a.OfType, b.OfType)
}
