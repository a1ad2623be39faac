// Package convert maps shape trees onto the GraphQL type model.
//
// A Converter lives for one schema build. Object and union types are cached
// by shape node identity and polarity, so a node reused across procedures or
// reached again through a cycle yields the same *schema.Type.
package convert

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hanpama/procgraph/internal/schema"
	"github.com/hanpama/procgraph/shape"
)

// Polarity selects the input or output type universe.
type Polarity int

const (
	Output Polarity = iota
	Input
)

func (p Polarity) String() string {
	if p == Input {
		return "input"
	}
	return "output"
}

// VariantField is the tag field of an input union without a discriminator.
const VariantField = "variant"

var nameRE = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// TypeResolver picks the concrete member type name for a union value. An
// empty name defers to the default resolution.
type TypeResolver func(ctx context.Context, value any) (string, error)

type Option func(*Converter)

// WithTypeResolver overrides member resolution for the named output union.
func WithTypeResolver(union string, fn TypeResolver) Option {
	return func(c *Converter) { c.resolvers[union] = fn }
}

type cacheKey struct {
	node     *shape.Node
	polarity Polarity
}

type unionInfo struct {
	node    *shape.Node
	members []unionMember
}

type unionMember struct {
	node     *shape.Node
	typeName string
}

// Converter converts shapes into types registered on one schema.
type Converter struct {
	schema    *schema.Schema
	cache     map[cacheKey]*schema.Type
	unions    map[string]*unionInfo
	resolvers map[string]TypeResolver
}

// New returns a converter that registers types on s.
func New(s *schema.Schema, opts ...Option) *Converter {
	c := &Converter{
		schema:    s,
		cache:     make(map[cacheKey]*schema.Type),
		unions:    make(map[string]*unionInfo),
		resolvers: make(map[string]TypeResolver),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Converter) Schema() *schema.Schema { return c.schema }

// Context carries the polarity and location of one entry point call. The
// type cache belongs to the converter and so to the build.
type Context struct {
	cache    map[cacheKey]*schema.Type
	polarity Polarity
	path     []string
}

func (c *Converter) newContext(p Polarity, name string) *Context {
	return &Context{cache: c.cache, polarity: p, path: []string{name}}
}

func (ctx *Context) at(seg string) *Context {
	path := make([]string, len(ctx.path), len(ctx.path)+1)
	copy(path, ctx.path)
	return &Context{cache: ctx.cache, polarity: ctx.polarity, path: append(path, seg)}
}

func (ctx *Context) where() string { return strings.Join(ctx.path, ".") }

// ToInputType converts n for argument position.
func (c *Converter) ToInputType(n *shape.Node, name string) (*schema.TypeRef, error) {
	ctx := c.newContext(Input, name)
	ref, err := c.convert(ctx, n, name)
	if err != nil {
		return nil, err
	}
	if t := c.schema.Types[ref.GetNamedType()]; t != nil && !isInputKind(t.Kind) {
		return nil, &MisconfigurationError{Path: ctx.where(), Reason: fmt.Sprintf("%s %s is not an input type", t.Kind, t.Name)}
	}
	return ref, nil
}

// ToOutputType converts n for result position.
func (c *Converter) ToOutputType(n *shape.Node, name string) (*schema.TypeRef, error) {
	ctx := c.newContext(Output, name)
	ref, err := c.convert(ctx, n, name)
	if err != nil {
		return nil, err
	}
	if t := c.schema.Types[ref.GetNamedType()]; t != nil && t.Kind == schema.TypeKindInputObject {
		return nil, &MisconfigurationError{Path: ctx.where(), Reason: fmt.Sprintf("input object %s is not an output type", t.Name)}
	}
	return ref, nil
}

// ToArguments converts the fields of an object shape into field arguments.
// Unsupported field shapes fail the same way they do for ToInputType.
func (c *Converter) ToArguments(n *shape.Node, name string) ([]*schema.InputValue, error) {
	ctx := c.newContext(Input, name)
	obj := shape.UnwrapAll(n)
	if obj == nil || obj.Kind() != shape.KindObject {
		kind := "nil"
		if obj != nil {
			kind = obj.Kind().String()
		}
		return nil, &MisconfigurationError{Path: ctx.where(), Reason: fmt.Sprintf("arguments require an object shape, got %s", kind)}
	}
	args := make([]*schema.InputValue, 0, len(obj.Fields()))
	for _, f := range obj.Fields() {
		fctx := ctx.at(f.Name)
		if !nameRE.MatchString(f.Name) {
			return nil, &MisconfigurationError{Path: fctx.where(), Reason: fmt.Sprintf("%q is not a valid GraphQL name", f.Name)}
		}
		ref, err := c.convert(fctx, f.Node, name+"_"+f.Name)
		if err != nil {
			return nil, err
		}
		args = append(args, schema.NewInputValue(f.Name, describe(f.Node), ref))
	}
	return args, nil
}

// convert unwraps one optional or nullable layer and returns the type as
// Non-Null unless a layer was removed.
func (c *Converter) convert(ctx *Context, n *shape.Node, name string) (*schema.TypeRef, error) {
	if n == nil {
		return nil, &MisconfigurationError{Path: ctx.where(), Reason: "missing shape"}
	}
	inner, nullable := shape.Unwrap(n)
	if inner.IsWrapper() {
		return c.convert(ctx, inner, name)
	}
	ref, err := c.convertInner(ctx, inner, name)
	if err != nil {
		return nil, err
	}
	if nullable {
		return ref, nil
	}
	return schema.NonNullType(ref), nil
}

func (c *Converter) convertInner(ctx *Context, n *shape.Node, name string) (*schema.TypeRef, error) {
	switch n.Kind() {
	case shape.KindString:
		return schema.NamedType("String"), nil
	case shape.KindNumber:
		return schema.NamedType("Float"), nil
	case shape.KindBoolean:
		return schema.NamedType("Boolean"), nil
	case shape.KindLiteral:
		return schema.NamedType(literalScalar(n.LiteralValue())), nil
	case shape.KindEnum:
		return c.convertEnum(ctx, n, name)
	case shape.KindObject:
		return c.convertObject(ctx, n, name)
	case shape.KindArray:
		elem, err := c.convert(ctx, n.Elem(), name)
		if err != nil {
			return nil, err
		}
		// element nullability is not preserved
		return schema.ListType(schema.Nullable(elem)), nil
	case shape.KindUnion:
		if ctx.polarity == Input {
			return c.convertInputUnion(ctx, n, name)
		}
		return c.convertOutputUnion(ctx, n, name)
	}
	return nil, &UnsupportedSchemaNodeError{Path: ctx.where(), Kind: n.Kind()}
}

func literalScalar(v any) string {
	switch x := v.(type) {
	case string:
		return "String"
	case bool:
		return "Boolean"
	case float32:
		return floatScalar(float64(x))
	case float64:
		return floatScalar(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		f, _ := strconv.ParseFloat(fmt.Sprint(x), 64)
		return floatScalar(f)
	}
	return "String"
}

func floatScalar(f float64) string {
	if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
		return "Int"
	}
	return "Float"
}

// typeName picks the registered name for n: its own name, with an Input
// suffix under input polarity, or the structural fallback. The suffix is
// added even to names already ending in Input, so one node never claims the
// same name under both polarities.
func typeName(ctx *Context, n *shape.Node, fallback string) string {
	if n.Name() == "" {
		return fallback
	}
	if ctx.polarity == Input {
		return n.Name() + "Input"
	}
	return n.Name()
}

// register adds t to the schema, failing if the name is already taken.
func (c *Converter) register(ctx *Context, t *schema.Type) error {
	if !nameRE.MatchString(t.Name) {
		return &MisconfigurationError{Path: ctx.where(), Reason: fmt.Sprintf("%q is not a valid GraphQL type name", t.Name)}
	}
	if _, taken := c.schema.Types[t.Name]; taken {
		return &MisconfigurationError{Path: ctx.where(), Reason: fmt.Sprintf("type name %s is already in use", t.Name)}
	}
	c.schema.AddType(t)
	return nil
}

// describe returns the first description found on n or its wrappers. A named
// container keeps its description on the type instead.
func describe(n *shape.Node) string {
	for n != nil {
		if d := n.Description(); d != "" && (n.IsWrapper() || n.Name() == "") {
			return d
		}
		if !n.IsWrapper() {
			return ""
		}
		n = n.Elem()
	}
	return ""
}

func isInputKind(k schema.TypeKind) bool {
	return k == schema.TypeKindScalar || k == schema.TypeKindEnum || k == schema.TypeKindInputObject
}
