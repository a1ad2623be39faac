package protoreg

import (
	"fmt"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/procgraph/router"
	"github.com/hanpama/procgraph/shape"
)

func (b *builder) addMethod(p router.AnalyzedProcedure) error {
	methodName := nameMethod(p.Name)
	for proc, m := range b.methods {
		if m == methodName {
			return fmt.Errorf("protoreg: method %s already generated for %s", methodName, proc)
		}
	}

	requestMB, err := b.createRequest(nameRequest(methodName), p.Procedure.Input)
	if err != nil {
		return err
	}
	responseMB, err := b.createResponse(nameResponse(methodName), p.Procedure.Output)
	if err != nil {
		return err
	}

	mb := protobuilder.NewMethod(
		methodName,
		protobuilder.RpcTypeMessage(requestMB, false),
		protobuilder.RpcTypeMessage(responseMB, false),
	)
	if desc, ok := p.Procedure.Meta.Extra["description"].(string); ok {
		mb.SetComments(comment(desc))
	}
	b.service.AddMethod(mb)
	b.methods[p.Name] = methodName
	return nil
}

// createRequest flattens the input object into the request message.
func (b *builder) createRequest(name protoreflect.Name, input *shape.Node) (*protobuilder.MessageBuilder, error) {
	obj := shape.UnwrapAll(input)
	if obj.Kind() != shape.KindObject {
		return nil, fmt.Errorf("protoreg: input must be an object, got %s", obj.Kind())
	}
	if err := b.claim(string(name), obj); err != nil {
		return nil, err
	}
	mb := protobuilder.NewMessage(name)
	b.file.AddMessage(mb)
	if err := b.addFields(mb, string(name), obj.Fields()); err != nil {
		return nil, err
	}
	return mb, nil
}

func (b *builder) createResponse(name protoreflect.Name, output *shape.Node) (*protobuilder.MessageBuilder, error) {
	if err := b.claim(string(name), nil); err != nil {
		return nil, err
	}
	mb := protobuilder.NewMessage(name)
	b.file.AddMessage(mb)
	rt, err := b.resolveField(output, string(name), "data")
	if err != nil {
		return nil, err
	}
	fb := protobuilder.NewField(FieldName("data"), rt.fieldType)
	fb.SetNumber(1)
	rt.apply(fb)
	mb.AddField(fb)
	return mb, nil
}
