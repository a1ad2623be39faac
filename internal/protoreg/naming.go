package protoreg

import (
	"path"
	"strings"

	"github.com/go-openapi/inflect"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func nameService(service string) protoreflect.Name {
	return protoreflect.Name(inflect.Camelize(service) + "Service")
}

func nameMethod(procedure string) protoreflect.Name {
	return protoreflect.Name(inflect.Camelize(procedure))
}

func nameRequest(method protoreflect.Name) protoreflect.Name {
	return method + "Request"
}

func nameResponse(method protoreflect.Name) protoreflect.Name {
	return method + "Response"
}

// nameNested names an anonymous message or enum after the field holding it.
func nameNested(parent, field string) string {
	return parent + inflect.Camelize(field)
}

// FieldName returns the proto field name generated for a shape field.
func FieldName(field string) protoreflect.Name {
	return protoreflect.Name(inflect.Underscore(field))
}

// EnumValueName returns the proto value name generated for value of the
// named enum, e.g. Role + admin -> ROLE_ADMIN.
func EnumValueName(enum protoreflect.Name, value string) protoreflect.Name {
	prefix := strings.ToUpper(inflect.Underscore(string(enum)))
	return protoreflect.Name(prefix + "_" + strings.ToUpper(sanitize(value)))
}

// sanitize replaces characters that are not legal in proto identifiers.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, s)
}

func filePath(pkg, service string) string {
	return path.Join(strings.ReplaceAll(pkg, ".", "/"), inflect.Underscore(service)+".proto")
}
