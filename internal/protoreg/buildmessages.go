package protoreg

import (
	"strconv"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/procgraph/shape"
)

type resolvedType struct {
	isRepeated bool
	isOptional bool
	fieldType  *protobuilder.FieldType
}

// resolveField maps the shape of a field to its proto type. parent and field
// name anonymous messages and enums.
func (b *builder) resolveField(n *shape.Node, parent, field string) (resolvedType, error) {
	inner, wrapped := shape.Unwrap(n)
	if wrapped {
		rt, err := b.resolveField(inner, parent, field)
		if err != nil {
			return rt, err
		}
		// repeated fields carry no presence
		rt.isOptional = !rt.isRepeated
		return rt, nil
	}
	switch n.Kind() {
	case shape.KindString:
		return scalar(protoreflect.StringKind), nil
	case shape.KindNumber:
		return scalar(protoreflect.DoubleKind), nil
	case shape.KindBoolean:
		return scalar(protoreflect.BoolKind), nil
	case shape.KindLiteral:
		switch n.LiteralValue().(type) {
		case string:
			return scalar(protoreflect.StringKind), nil
		case bool:
			return scalar(protoreflect.BoolKind), nil
		default:
			return scalar(protoreflect.DoubleKind), nil
		}
	case shape.KindEnum:
		eb, err := b.enum(n, nameNested(parent, field))
		if err != nil {
			return resolvedType{}, err
		}
		return resolvedType{fieldType: protobuilder.FieldTypeEnum(eb)}, nil
	case shape.KindObject:
		mb, err := b.message(n, nameNested(parent, field))
		if err != nil {
			return resolvedType{}, err
		}
		return resolvedType{fieldType: protobuilder.FieldTypeMessage(mb)}, nil
	case shape.KindUnion:
		mb, err := b.union(n, nameNested(parent, field))
		if err != nil {
			return resolvedType{}, err
		}
		return resolvedType{fieldType: protobuilder.FieldTypeMessage(mb)}, nil
	case shape.KindArray:
		if shape.UnwrapAll(n.Elem()).Kind() == shape.KindArray {
			return resolvedType{}, &UnsupportedError{Kind: shape.KindArray, Path: parent + "." + field + "[]"}
		}
		rt, err := b.resolveField(shape.UnwrapAll(n.Elem()), parent, field)
		if err != nil {
			return rt, err
		}
		return resolvedType{isRepeated: true, fieldType: rt.fieldType}, nil
	}
	return resolvedType{}, &UnsupportedError{Kind: n.Kind(), Path: parent + "." + field}
}

// apply sets the label of fb. Wrapped scalars and enums become proto3
// optional so an unset value stays distinguishable from its zero value.
func (rt resolvedType) apply(fb *protobuilder.FieldBuilder) {
	switch {
	case rt.isRepeated:
		fb.SetRepeated()
	case rt.isOptional:
		fb.SetOptional()
		if rt.fieldType.Kind() != protoreflect.MessageKind {
			fb.SetProto3Optional(true)
		}
	}
}

func scalar(k protoreflect.Kind) resolvedType {
	return resolvedType{fieldType: protobuilder.FieldTypeScalar(k)}
}

// message returns the message for an object node, declaring it on first use.
func (b *builder) message(n *shape.Node, fallback string) (*protobuilder.MessageBuilder, error) {
	if mb, ok := b.messages[n]; ok {
		return mb, nil
	}
	name := n.Name()
	if name == "" {
		name = fallback
	}
	if err := b.claim(name, n); err != nil {
		return nil, err
	}
	mb := protobuilder.NewMessage(protoreflect.Name(name))
	mb.SetComments(comment(n.Description()))
	b.messages[n] = mb
	b.file.AddMessage(mb)
	if err := b.addFields(mb, name, n.Fields()); err != nil {
		return nil, err
	}
	return mb, nil
}

func (b *builder) addFields(mb *protobuilder.MessageBuilder, parent string, fields []shape.Field) error {
	fbs := make([]*protobuilder.FieldBuilder, 0, len(fields))
	for _, f := range fields {
		rt, err := b.resolveField(f.Node, parent, f.Name)
		if err != nil {
			return err
		}
		fb := protobuilder.NewField(FieldName(f.Name), rt.fieldType)
		fb.SetComments(comment(shape.UnwrapAll(f.Node).Description()))
		rt.apply(fb)
		mb.AddField(fb)
		fbs = append(fbs, fb)
	}
	allocateFieldNumbers(fbs)
	return nil
}

// union declares a message with a oneof named value. Choices follow member
// order, which remote relies on to pick the member of a decoded value.
func (b *builder) union(n *shape.Node, fallback string) (*protobuilder.MessageBuilder, error) {
	if mb, ok := b.messages[n]; ok {
		return mb, nil
	}
	name := n.Name()
	if name == "" {
		name = fallback
	}
	if err := b.claim(name, n); err != nil {
		return nil, err
	}
	mb := protobuilder.NewMessage(protoreflect.Name(name))
	mb.SetComments(comment(n.Description()))
	b.messages[n] = mb
	b.file.AddMessage(mb)

	oneof := protobuilder.NewOneof("value")
	mb.AddOneOf(oneof)
	fbs := make([]*protobuilder.FieldBuilder, 0, len(n.Members()))
	for i, m := range n.Members() {
		obj := shape.UnwrapAll(m)
		if obj.Kind() != shape.KindObject {
			return nil, &UnsupportedError{Kind: obj.Kind(), Path: name + ".value"}
		}
		member, err := b.message(obj, name+optionName(i))
		if err != nil {
			return nil, err
		}
		fb := protobuilder.NewField(FieldName(string(member.Name())), protobuilder.FieldTypeMessage(member))
		oneof.AddChoice(fb)
		fbs = append(fbs, fb)
	}
	allocateFieldNumbers(fbs)
	return mb, nil
}

func optionName(i int) string { return "Option" + strconv.Itoa(i) }

// enum declares an enum with the zero value <ENUM>_UNSPECIFIED.
func (b *builder) enum(n *shape.Node, fallback string) (*protobuilder.EnumBuilder, error) {
	if eb, ok := b.enums[n]; ok {
		return eb, nil
	}
	name := n.Name()
	if name == "" {
		name = fallback
	}
	if err := b.claim(name, n); err != nil {
		return nil, err
	}
	eb := protobuilder.NewEnum(protoreflect.Name(name))
	eb.SetComments(comment(n.Description()))
	zero := protobuilder.NewEnumValue(EnumValueName(protoreflect.Name(name), "UNSPECIFIED"))
	zero.SetNumber(0)
	eb.AddValue(zero)

	evbs := make([]*protobuilder.EnumValueBuilder, 0, len(n.Values()))
	for _, v := range n.Values() {
		vn := EnumValueName(protoreflect.Name(name), v)
		if vn == zero.Name() {
			continue
		}
		evb := protobuilder.NewEnumValue(vn)
		eb.AddValue(evb)
		evbs = append(evbs, evb)
	}
	allocateEnumValueNumbers(evbs)

	b.enums[n] = eb
	b.file.AddEnum(eb)
	return eb, nil
}
