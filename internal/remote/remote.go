// Package remote backs procedures with unary gRPC methods generated by
// protoreg. Inputs and outputs are converted between shape-normal Go values
// and dynamic messages by walking the shape and the descriptor together.
package remote

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/procgraph/router"
	"github.com/hanpama/procgraph/shape"
)

// NewHandler returns a handler that calls method through t.
func NewHandler(t Transport, method protoreflect.MethodDescriptor, in, out *shape.Node) router.Handler {
	return func(ctx context.Context, input any) (any, error) {
		req, err := EncodeRequest(method.Input(), in, input)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", method.FullName(), err)
		}
		resp, err := t.Call(ctx, method, req)
		if err != nil {
			return nil, err
		}
		return DecodeResponse(resp, out)
	}
}

// EncodeRequest builds a request message from a validated input object.
func EncodeRequest(desc protoreflect.MessageDescriptor, in *shape.Node, input any) (protoreflect.Message, error) {
	msg := dynamicpb.NewMessage(desc)
	obj := shape.UnwrapAll(in)
	if input == nil {
		return msg, nil
	}
	m, ok := input.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object input, got %T", input)
	}
	if err := encodeMessage(msg, obj, m); err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeResponse reads the data field of resp.
func DecodeResponse(resp protoreflect.Message, out *shape.Node) (any, error) {
	if resp == nil {
		return nil, nil
	}
	fd := resp.Descriptor().Fields().ByName("data")
	if fd == nil {
		return nil, fmt.Errorf("missing data field in %s", resp.Descriptor().FullName())
	}
	return decodeField(resp, fd, out)
}
