package protoreg

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Registry holds the proto file generated for a set of procedures and the
// method descriptor bound to each procedure.
type Registry struct {
	file    protoreflect.FileDescriptor
	service protoreflect.ServiceDescriptor
	methods map[string]protoreflect.MethodDescriptor
}

// Method returns the method generated for the procedure with the given
// flattened name, or nil.
func (r *Registry) Method(procedure string) protoreflect.MethodDescriptor {
	return r.methods[procedure]
}

func (r *Registry) Service() protoreflect.ServiceDescriptor { return r.service }

func (r *Registry) Files() []protoreflect.FileDescriptor {
	return []protoreflect.FileDescriptor{r.file}
}
