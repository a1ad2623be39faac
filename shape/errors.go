package shape

import (
	"strconv"
	"strings"
)

// Issue codes reported by Parse.
const (
	CodeInvalidType          = "invalid_type"
	CodeInvalidLiteral       = "invalid_literal"
	CodeInvalidEnumValue     = "invalid_enum_value"
	CodeInvalidUnion         = "invalid_union"
	CodeInvalidDiscriminator = "invalid_union_discriminator"
	CodeTooSmall             = "too_small"
	CodeTooBig               = "too_big"
)

// Issue is a single validation failure located by the path of object keys
// (string) and array indexes (int) leading to the offending value.
type Issue struct {
	Path    []any  `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PathString renders the issue path as "a.b[0].c".
func (i Issue) PathString() string {
	var b strings.Builder
	for _, p := range i.Path {
		switch v := p.(type) {
		case int:
			b.WriteString("[")
			b.WriteString(strconv.Itoa(v))
			b.WriteString("]")
		case string:
			if b.Len() > 0 {
				b.WriteString(".")
			}
			b.WriteString(v)
		}
	}
	return b.String()
}

// ValidationError is returned by Parse when the value does not match.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		if p := is.PathString(); p != "" {
			parts[i] = p + ": " + is.Message
		} else {
			parts[i] = is.Message
		}
	}
	return strings.Join(parts, "; ")
}
