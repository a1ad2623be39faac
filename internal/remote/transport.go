package remote

import (
	"context"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Transport performs one unary call. Implementations must be safe for
// concurrent use; root fields of one operation call in parallel.
//
// internal/grpctp.Transport is the production implementation.
type Transport interface {
	Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error)
}
