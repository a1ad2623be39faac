package remote

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/procgraph/internal/protoreg"
	"github.com/hanpama/procgraph/shape"
)

func encodeMessage(msg protoreflect.Message, obj *shape.Node, value map[string]any) error {
	fields := msg.Descriptor().Fields()
	for _, f := range obj.Fields() {
		v, ok := value[f.Name]
		if !ok || v == nil {
			continue
		}
		fd := fields.ByName(protoreg.FieldName(f.Name))
		if fd == nil {
			return fmt.Errorf("%s has no field for %s", msg.Descriptor().FullName(), f.Name)
		}
		node := shape.UnwrapAll(f.Node)
		if fd.IsList() {
			items, ok := v.([]any)
			if !ok {
				return fmt.Errorf("%s: expected list, got %T", f.Name, v)
			}
			list := msg.Mutable(fd).List()
			elem := shape.UnwrapAll(node.Elem())
			for i, it := range items {
				if it == nil {
					return fmt.Errorf("%s[%d]: null list items cannot be encoded", f.Name, i)
				}
				pv, err := encodeValue(fd, elem, it)
				if err != nil {
					return fmt.Errorf("%s[%d]: %w", f.Name, i, err)
				}
				list.Append(pv)
			}
			continue
		}
		pv, err := encodeValue(fd, node, v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		msg.Set(fd, pv)
	}
	return nil
}

func encodeValue(fd protoreflect.FieldDescriptor, n *shape.Node, v any) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.StringKind:
		if s, ok := v.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.DoubleKind:
		if f, ok := toFloat(v); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
	case protoreflect.EnumKind:
		if s, ok := v.(string); ok {
			name := protoreg.EnumValueName(fd.Enum().Name(), s)
			if ev := fd.Enum().Values().ByName(name); ev != nil {
				return protoreflect.ValueOfEnum(ev.Number()), nil
			}
			return protoreflect.Value{}, fmt.Errorf("%s has no value %s", fd.Enum().FullName(), name)
		}
	case protoreflect.MessageKind:
		m, ok := v.(map[string]any)
		if !ok {
			break
		}
		msg := dynamicpb.NewMessage(fd.Message())
		if n.Kind() == shape.KindUnion {
			if err := encodeUnion(msg, n, m); err != nil {
				return protoreflect.Value{}, err
			}
			return protoreflect.ValueOfMessage(msg), nil
		}
		if err := encodeMessage(msg, n, m); err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfMessage(msg), nil
	}
	return protoreflect.Value{}, fmt.Errorf("cannot encode %T as %s", v, fd.Kind())
}

// encodeUnion sets the oneof choice of the member that accepts value.
func encodeUnion(msg protoreflect.Message, n *shape.Node, value map[string]any) error {
	i, ok := pickMember(n, value)
	if !ok {
		return fmt.Errorf("no member of %s accepts the value", msg.Descriptor().FullName())
	}
	oneof := msg.Descriptor().Oneofs().ByName("value")
	if oneof == nil || i >= oneof.Fields().Len() {
		return fmt.Errorf("%s has no choice for member %d", msg.Descriptor().FullName(), i)
	}
	fd := oneof.Fields().Get(i)
	member := dynamicpb.NewMessage(fd.Message())
	if err := encodeMessage(member, shape.UnwrapAll(n.Members()[i]), value); err != nil {
		return err
	}
	msg.Set(fd, protoreflect.ValueOfMessage(member))
	return nil
}

// pickMember selects a union member the same way shape.Parse does: by the
// discriminator literal when there is one, otherwise the first match.
func pickMember(n *shape.Node, value map[string]any) (int, bool) {
	if key := n.Discriminator(); key != "" {
		tag := fmt.Sprint(value[key])
		for i, m := range n.Members() {
			lit := shape.UnwrapAll(m).FieldByName(key)
			if lit != nil && lit.Kind() == shape.KindLiteral && fmt.Sprint(lit.LiteralValue()) == tag {
				return i, true
			}
		}
		return 0, false
	}
	for i, m := range n.Members() {
		if shape.Check(m, value) {
			return i, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
