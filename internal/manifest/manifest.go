// Package manifest loads procedures declared in YAML. Types are written in a
// small shape DSL and each procedure names the backend that serves it:
//
//	package: acme.users.v1
//	service: users
//	types:
//	  User:
//	    type: object
//	    fields:
//	      id: {type: string}
//	      friends: {type: array, items: {ref: User}, optional: true}
//	procedures:
//	  getUser:
//	    meta: {method: GET}
//	    input: {type: object, fields: {id: {type: string}}}
//	    output: {ref: User}
//	    handler: {grpc: {}}
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hanpama/procgraph/shape"
)

// Handler kinds.
const (
	HandlerGRPC   = "grpc"
	HandlerStatic = "static"
	HandlerSQL    = "sql"
)

type Manifest struct {
	File     string
	Package  string
	Service  string
	Database *Database
	// Types holds the named types in declaration order.
	Types      []NamedType
	Procedures []*Procedure
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type NamedType struct {
	Name string
	Node *shape.Node
}

type Procedure struct {
	// Path is the nesting of routers leading to the procedure, ending with
	// its own key.
	Path    []string
	Meta    map[string]any
	Input   *shape.Node
	Output  *shape.Node
	Handler Handler

	node *yaml.Node
}

// Name is the flattened name the procedure is published under.
func (p *Procedure) Name() string { return strings.Join(p.Path, "_") }

type Handler struct {
	Kind string
	// Value is returned by static handlers.
	Value any
	// Query, One and Exec configure sql handlers.
	Query string
	One   bool
	Exec  bool
}

// Type returns the named type, or nil.
func (m *Manifest) Type(name string) *shape.Node {
	for _, t := range m.Types {
		if t.Name == name {
			return t.Node
		}
	}
	return nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return Parse(path, b)
}

// Parse parses manifest source. file is used in violations only.
func Parse(file string, src []byte) (*Manifest, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(src))
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, Error{{Message: "empty manifest", File: file}}
		}
		return nil, Error{{Message: err.Error(), File: file}}
	}
	p := &parser{
		vs:       violations{file: file},
		types:    map[string]*yaml.Node{},
		resolved: map[string]*shape.Node{},
		pending:  map[string]bool{},
	}
	m := p.manifest(doc.Content[0])
	if err := p.vs.err(); err != nil {
		return nil, err
	}
	m.File = file
	return m, nil
}

type parser struct {
	vs violations

	types    map[string]*yaml.Node
	order    []string
	resolved map[string]*shape.Node
	// pending marks non-object types being resolved, to reject cycles that
	// do not pass through an object.
	pending map[string]bool
}

func (p *parser) manifest(root *yaml.Node) *Manifest {
	m := &Manifest{}
	if root.Kind != yaml.MappingNode {
		p.vs.at(root, "manifest must be a mapping")
		return m
	}
	var procs *yaml.Node
	eachPair(root, func(k, v *yaml.Node) {
		switch k.Value {
		case "package":
			m.Package = p.scalar(v)
		case "service":
			m.Service = p.scalar(v)
		case "database":
			m.Database = &Database{}
			if err := v.Decode(m.Database); err != nil {
				p.vs.at(v, "database: %v", err)
			}
		case "types":
			if v.Kind != yaml.MappingNode {
				p.vs.at(v, "types must be a mapping")
				return
			}
			eachPair(v, func(name, def *yaml.Node) {
				if _, dup := p.types[name.Value]; dup {
					p.vs.at(name, "duplicate type %s", name.Value)
					return
				}
				p.types[name.Value] = def
				p.order = append(p.order, name.Value)
			})
		case "procedures":
			procs = v
		default:
			p.vs.at(k, "unknown key %s", k.Value)
		}
	})
	for _, name := range p.order {
		if n := p.named(name, p.types[name]); n != nil {
			m.Types = append(m.Types, NamedType{Name: name, Node: n})
		}
	}
	if procs == nil {
		p.vs.at(root, "procedures is required")
		return m
	}
	p.procedures(procs, nil, m)
	return m
}

func (p *parser) procedures(n *yaml.Node, prefix []string, m *Manifest) {
	if n.Kind != yaml.MappingNode {
		p.vs.at(n, "procedures must be a mapping")
		return
	}
	seen := map[string]bool{}
	eachPair(n, func(k, v *yaml.Node) {
		if seen[k.Value] {
			p.vs.at(k, "duplicate procedure %s", k.Value)
			return
		}
		seen[k.Value] = true
		path := append(append([]string(nil), prefix...), k.Value)
		if v.Kind != yaml.MappingNode {
			p.vs.at(v, "%s must be a mapping", k.Value)
			return
		}
		if sub := child(v, "procedures"); sub != nil {
			if child(v, "handler") != nil {
				p.vs.at(k, "%s has both procedures and a handler", k.Value)
				return
			}
			p.procedures(sub, path, m)
			return
		}
		if proc := p.procedure(v, path); proc != nil {
			m.Procedures = append(m.Procedures, proc)
		}
	})
}

func (p *parser) procedure(n *yaml.Node, path []string) *Procedure {
	proc := &Procedure{Path: path, node: n}
	name := strings.Join(path, "_")
	eachPair(n, func(k, v *yaml.Node) {
		switch k.Value {
		case "meta":
			if err := v.Decode(&proc.Meta); err != nil {
				p.vs.at(v, "meta: %v", err)
			}
		case "input":
			proc.Input = p.shape(v)
		case "output":
			proc.Output = p.shape(v)
		case "handler":
			proc.Handler = p.handler(v)
		default:
			p.vs.at(k, "unknown key %s in procedure %s", k.Value, name)
		}
	})
	if proc.Input == nil {
		proc.Input = shape.Object()
	}
	if proc.Output == nil {
		p.vs.at(n, "procedure %s has no output", name)
		return nil
	}
	if proc.Handler.Kind == "" {
		if child(n, "handler") == nil {
			p.vs.at(n, "procedure %s has no handler", name)
		}
		return nil
	}
	return proc
}

func (p *parser) handler(n *yaml.Node) Handler {
	var h Handler
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		p.vs.at(n, "handler must have exactly one of grpc, static or sql")
		return h
	}
	k, v := n.Content[0], n.Content[1]
	switch k.Value {
	case HandlerGRPC:
		h.Kind = HandlerGRPC
	case HandlerStatic:
		h.Kind = HandlerStatic
		if val := child(v, "value"); val != nil {
			if err := val.Decode(&h.Value); err != nil {
				p.vs.at(val, "static value: %v", err)
			}
		}
	case HandlerSQL:
		h.Kind = HandlerSQL
		var spec struct {
			Query string `yaml:"query"`
			One   bool   `yaml:"one"`
			Exec  bool   `yaml:"exec"`
		}
		if err := v.Decode(&spec); err != nil {
			p.vs.at(v, "sql: %v", err)
			return h
		}
		if spec.Query == "" {
			p.vs.at(v, "sql handler needs a query")
		}
		if spec.One && spec.Exec {
			p.vs.at(v, "sql handler cannot be both one and exec")
		}
		h.Query, h.One, h.Exec = spec.Query, spec.One, spec.Exec
	default:
		p.vs.at(k, "unknown handler %s", k.Value)
	}
	return h
}

func (p *parser) scalar(n *yaml.Node) string {
	if n.Kind != yaml.ScalarNode {
		p.vs.at(n, "expected a scalar")
		return ""
	}
	return n.Value
}

func eachPair(n *yaml.Node, fn func(k, v *yaml.Node)) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		fn(n.Content[i], n.Content[i+1])
	}
}

func child(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
