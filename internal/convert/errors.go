package convert

import (
	"fmt"

	"github.com/hanpama/procgraph/shape"
)

// UnsupportedSchemaNodeError reports a shape kind that has no GraphQL type,
// such as a tuple or an unconstrained any.
type UnsupportedSchemaNodeError struct {
	Path string
	Kind shape.Kind
}

func (e *UnsupportedSchemaNodeError) Error() string {
	return fmt.Sprintf("unsupported schema node: %s at %s has no GraphQL type", e.Kind, e.Path)
}

// MisconfigurationError reports a shape that cannot be expressed as requested,
// for example an argument map built from a non-object.
type MisconfigurationError struct {
	Path   string
	Reason string
}

func (e *MisconfigurationError) Error() string {
	return fmt.Sprintf("schema misconfiguration at %s: %s", e.Path, e.Reason)
}
