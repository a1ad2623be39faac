package convert

import (
	"context"
	"fmt"

	"github.com/hanpama/procgraph/shape"
)

// IsUnion reports whether name is an output union built by this converter.
func (c *Converter) IsUnion(name string) bool {
	_, ok := c.unions[name]
	return ok
}

// ResolveUnion picks the member type of an output union value. The order is
// the caller's TypeResolver, the discriminator literal, the first member the
// value parses as, and finally the first member.
func (c *Converter) ResolveUnion(ctx context.Context, union string, value any) (string, error) {
	info, ok := c.unions[union]
	if !ok {
		return "", fmt.Errorf("convert: %s is not a union", union)
	}
	if fn := c.resolvers[union]; fn != nil {
		name, err := fn(ctx, value)
		if err != nil {
			return "", err
		}
		if name != "" {
			for _, m := range info.members {
				if m.typeName == name {
					return name, nil
				}
			}
			return "", fmt.Errorf("convert: type resolver for %s returned %q, which is not a member", union, name)
		}
	}
	if key := info.node.Discriminator(); key != "" {
		if obj, ok := value.(map[string]any); ok {
			tag := obj[key]
			for _, m := range info.members {
				if lit := m.node.FieldByName(key); lit != nil && shape.Check(lit, tag) {
					return m.typeName, nil
				}
			}
		}
	}
	for _, m := range info.members {
		if shape.Check(m.node, value) {
			return m.typeName, nil
		}
	}
	return info.members[0].typeName, nil
}
