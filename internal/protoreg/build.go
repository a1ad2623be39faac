// Package protoreg generates a proto3 service for procedures backed by gRPC.
// Each procedure becomes one unary method whose request carries the input
// object's fields and whose response carries the output in a single data
// field.
package protoreg

import (
	"fmt"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/procgraph/router"
	"github.com/hanpama/procgraph/shape"
)

// UnsupportedError reports a shape that has no proto encoding.
type UnsupportedError struct {
	Kind shape.Kind
	Path string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("protoreg: %s cannot be encoded as proto at %s", e.Kind, e.Path)
}

// Build generates one file in package pkg with the service {service}Service.
func Build(pkg, service string, procs []router.AnalyzedProcedure) (*Registry, error) {
	b := &builder{
		file:     protobuilder.NewFile(filePath(pkg, service)),
		messages: map[*shape.Node]*protobuilder.MessageBuilder{},
		enums:    map[*shape.Node]*protobuilder.EnumBuilder{},
		names:    map[string]*shape.Node{},
		methods:  map[string]protoreflect.Name{},
	}
	b.file.SetPackageName(protoreflect.FullName(pkg))
	b.file.SetSyntax(protoreflect.Proto3)
	b.service = protobuilder.NewService(nameService(service))
	b.file.AddService(b.service)

	for _, p := range procs {
		if err := b.addMethod(p); err != nil {
			return nil, fmt.Errorf("procedure %s: %w", p.Name, err)
		}
	}

	fd, err := b.file.Build()
	if err != nil {
		return nil, fmt.Errorf("protoreg: %w", err)
	}
	svc := fd.Services().ByName(nameService(service))
	reg := &Registry{file: fd, service: svc, methods: map[string]protoreflect.MethodDescriptor{}}
	for proc, method := range b.methods {
		reg.methods[proc] = svc.Methods().ByName(method)
	}
	return reg, nil
}

type builder struct {
	file    *protobuilder.FileBuilder
	service *protobuilder.ServiceBuilder

	// messages and enums are cached by node identity so recursive shapes
	// and shared subtrees map to one declaration.
	messages map[*shape.Node]*protobuilder.MessageBuilder
	enums    map[*shape.Node]*protobuilder.EnumBuilder
	// names guards against two different nodes claiming one name.
	names map[string]*shape.Node

	// procedure name -> method name
	methods map[string]protoreflect.Name
}

func (b *builder) claim(name string, n *shape.Node) error {
	if prev, ok := b.names[name]; ok && prev != n {
		return fmt.Errorf("protoreg: name %s is used by two different shapes", name)
	}
	b.names[name] = n
	return nil
}
