// Package shape is a small validation-schema library. A schema is a tree of
// *Node values tagged by Kind; Parse checks a Go value against it and returns
// the normalized value.
//
// Nodes are built with the constructors in this file. Object nodes are mutable
// while being built so a schema can refer to itself:
//
//	user := shape.Object().Named("User")
//	user.Field("id", shape.String())
//	user.Field("friends", shape.Array(user).Optional())
package shape

import "fmt"

// Kind identifies the variant a Node holds.
type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
	KindBoolean
	KindLiteral
	KindEnum
	KindObject
	KindArray
	KindUnion
	KindNullable
	KindOptional
	KindTuple
	KindAny
)

var kindNames = map[Kind]string{
	KindString:   "string",
	KindNumber:   "number",
	KindBoolean:  "boolean",
	KindLiteral:  "literal",
	KindEnum:     "enum",
	KindObject:   "object",
	KindArray:    "array",
	KindUnion:    "union",
	KindNullable: "nullable",
	KindOptional: "optional",
	KindTuple:    "tuple",
	KindAny:      "any",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindFromString is the inverse of Kind.String.
func KindFromString(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Node is one schema node. The zero value is not usable; use the constructors.
type Node struct {
	kind        Kind
	name        string
	description string

	literal       any
	values        []string
	fields        []Field
	elem          *Node
	members       []*Node
	discriminator string
}

// Field is a named member of an object node.
type Field struct {
	Name string
	Node *Node
}

func String() *Node  { return &Node{kind: KindString} }
func Number() *Node  { return &Node{kind: KindNumber} }
func Boolean() *Node { return &Node{kind: KindBoolean} }
func Any() *Node     { return &Node{kind: KindAny} }

// Literal matches exactly v. Supported literal values are strings, booleans
// and Go integer or float numbers.
func Literal(v any) *Node { return &Node{kind: KindLiteral, literal: v} }

// Enum matches one of the given strings. Declaration order is kept.
func Enum(values ...string) *Node {
	vs := make([]string, len(values))
	copy(vs, values)
	return &Node{kind: KindEnum, values: vs}
}

// Object returns an object node with no fields. Add fields with Field.
func Object() *Node { return &Node{kind: KindObject} }

func Array(elem *Node) *Node { return &Node{kind: KindArray, elem: elem} }

// Union matches the first member that accepts the value.
func Union(members ...*Node) *Node {
	return &Node{kind: KindUnion, members: append([]*Node(nil), members...)}
}

// DiscriminatedUnion selects the member whose literal field named key equals
// the value's key field.
func DiscriminatedUnion(key string, members ...*Node) *Node {
	n := Union(members...)
	n.discriminator = key
	return n
}

func Tuple(items ...*Node) *Node {
	return &Node{kind: KindTuple, members: append([]*Node(nil), items...)}
}

func Nullable(n *Node) *Node { return &Node{kind: KindNullable, elem: n} }
func Optional(n *Node) *Node { return &Node{kind: KindOptional, elem: n} }

// Field appends a field to an object node and returns the node.
func (n *Node) Field(name string, node *Node) *Node {
	if n.kind != KindObject {
		panic(fmt.Sprintf("shape: Field called on %s node", n.kind))
	}
	for i := range n.fields {
		if n.fields[i].Name == name {
			n.fields[i].Node = node
			return n
		}
	}
	n.fields = append(n.fields, Field{Name: name, Node: node})
	return n
}

// Named sets the type name used when the node is published as a named type.
func (n *Node) Named(name string) *Node {
	n.name = name
	return n
}

func (n *Node) Describe(desc string) *Node {
	n.description = desc
	return n
}

func (n *Node) Nullable() *Node { return Nullable(n) }
func (n *Node) Optional() *Node { return Optional(n) }

func (n *Node) Kind() Kind                 { return n.kind }
func (n *Node) Name() string               { return n.name }
func (n *Node) Description() string        { return n.description }
func (n *Node) LiteralValue() any          { return n.literal }
func (n *Node) Values() []string           { return n.values }
func (n *Node) Fields() []Field            { return n.fields }
func (n *Node) Members() []*Node           { return n.members }
func (n *Node) Discriminator() string      { return n.discriminator }
func (n *Node) Elem() *Node                { return n.elem }
func (n *Node) IsWrapper() bool            { return n.kind == KindNullable || n.kind == KindOptional }
func (n *Node) FieldByName(s string) *Node { return n.fieldByName(s) }

func (n *Node) fieldByName(s string) *Node {
	for _, f := range n.fields {
		if f.Name == s {
			return f.Node
		}
	}
	return nil
}

// Unwrap strips one Optional or Nullable layer. The boolean reports whether a
// layer was removed.
func Unwrap(n *Node) (*Node, bool) {
	if n != nil && n.IsWrapper() {
		return n.elem, true
	}
	return n, false
}

// UnwrapAll strips every Optional and Nullable layer.
func UnwrapAll(n *Node) *Node {
	for n != nil && n.IsWrapper() {
		n = n.elem
	}
	return n
}
