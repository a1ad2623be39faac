package remote

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/procgraph/internal/protoreg"
	"github.com/hanpama/procgraph/shape"
)

// decodeField reads fd of msg. An unset field with presence, or an enum left
// at its UNSPECIFIED value, decodes to nil when its shape is wrapped. A
// required enum at UNSPECIFIED is an error.
func decodeField(msg protoreflect.Message, fd protoreflect.FieldDescriptor, n *shape.Node) (any, error) {
	node := shape.UnwrapAll(n)
	if fd.IsList() {
		list := msg.Get(fd).List()
		elem := shape.UnwrapAll(node.Elem())
		out := make([]any, 0, list.Len())
		for i := 0; i < list.Len(); i++ {
			v, err := decodeValue(fd, elem, list.Get(i))
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", fd.Name(), i, err)
			}
			out = append(out, v)
		}
		return out, nil
	}
	if fd.HasPresence() && !msg.Has(fd) && n.IsWrapper() {
		return nil, nil
	}
	v := msg.Get(fd)
	if fd.Kind() == protoreflect.EnumKind && v.Enum() == 0 && n.IsWrapper() {
		return nil, nil
	}
	return decodeValue(fd, node, v)
}

func decodeValue(fd protoreflect.FieldDescriptor, n *shape.Node, v protoreflect.Value) (any, error) {
	switch fd.Kind() {
	case protoreflect.StringKind:
		return v.String(), nil
	case protoreflect.BoolKind:
		return v.Bool(), nil
	case protoreflect.DoubleKind, protoreflect.FloatKind:
		return v.Float(), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return float64(v.Int()), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind, protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return float64(v.Uint()), nil
	case protoreflect.EnumKind:
		if v.Enum() == 0 {
			return nil, fmt.Errorf("%s: %s is unspecified", fd.Name(), fd.Enum().FullName())
		}
		ev := fd.Enum().Values().ByNumber(v.Enum())
		if ev == nil {
			return nil, fmt.Errorf("unknown %s number %d", fd.Enum().FullName(), v.Enum())
		}
		for _, s := range n.Values() {
			if protoreg.EnumValueName(fd.Enum().Name(), s) == ev.Name() {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%s: %s has no matching enum value", fd.Name(), ev.FullName())
	case protoreflect.MessageKind:
		if n.Kind() == shape.KindUnion {
			return decodeUnion(v.Message(), n)
		}
		return decodeMessage(v.Message(), n)
	}
	return nil, fmt.Errorf("cannot decode %s", fd.Kind())
}

func decodeMessage(msg protoreflect.Message, obj *shape.Node) (any, error) {
	if obj.Kind() != shape.KindObject {
		return nil, fmt.Errorf("message %s decoded against %s shape", msg.Descriptor().FullName(), obj.Kind())
	}
	fields := msg.Descriptor().Fields()
	out := make(map[string]any, len(obj.Fields()))
	for _, f := range obj.Fields() {
		fd := fields.ByName(protoreg.FieldName(f.Name))
		if fd == nil {
			continue
		}
		if fd.HasPresence() && !msg.Has(fd) && f.Node.Kind() == shape.KindOptional {
			continue
		}
		v, err := decodeField(msg, fd, f.Node)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

// decodeUnion maps the set oneof choice back to its member; choices follow
// member order.
func decodeUnion(msg protoreflect.Message, n *shape.Node) (any, error) {
	oneof := msg.Descriptor().Oneofs().ByName("value")
	if oneof == nil {
		return nil, fmt.Errorf("%s has no oneof value", msg.Descriptor().FullName())
	}
	which := msg.WhichOneof(oneof)
	if which == nil {
		return nil, nil
	}
	choices := oneof.Fields()
	for i := 0; i < choices.Len() && i < len(n.Members()); i++ {
		if choices.Get(i).Number() == which.Number() {
			return decodeMessage(msg.Get(which).Message(), shape.UnwrapAll(n.Members()[i]))
		}
	}
	return nil, fmt.Errorf("%s choice %s has no member", msg.Descriptor().FullName(), which.Name())
}
