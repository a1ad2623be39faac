package schema

import (
	"fmt"

	"github.com/hanpama/procgraph/internal/language"
)

// Validate renders s and checks the SDL against the GraphQL type system
// rules. A root type without fields fails here.
func Validate(s *Schema) (*language.ValidatedSchema, error) {
	if s == nil {
		return nil, fmt.Errorf("schema: nil schema")
	}
	if s.GetQueryType() == nil {
		return nil, fmt.Errorf("schema: query type %q is not defined", s.QueryType)
	}
	v, err := language.LoadSchema("schema.graphql", Render(s))
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return v, nil
}
