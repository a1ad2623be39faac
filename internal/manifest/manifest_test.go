package manifest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/procgraph/internal/manifest"
	"github.com/hanpama/procgraph/internal/protoreg"
	"github.com/hanpama/procgraph/internal/remote"
	"github.com/hanpama/procgraph/internal/sqlproc"
	"github.com/hanpama/procgraph/router"
	"github.com/hanpama/procgraph/shape"
)

func TestLoad(t *testing.T) {
	m, err := manifest.Load("testdata/users.yaml")
	require.NoError(t, err)

	assert.Equal(t, "acme.users.v1", m.Package)
	assert.Equal(t, "users", m.Service)

	var names []string
	for _, p := range m.Procedures {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"ping", "users_get", "users_rename"}, names)

	user := m.Type("User")
	require.NotNil(t, user)
	assert.Equal(t, shape.KindObject, user.Kind())
	assert.Equal(t, "User", user.Name())
	assert.Equal(t, "A registered account.", user.Description())
	assert.Same(t, m.Type("Role"), user.FieldByName("role"))

	manager := user.FieldByName("manager")
	assert.Equal(t, shape.KindNullable, manager.Kind())
	assert.Same(t, user, manager.Elem())
	reports := shape.UnwrapAll(user.FieldByName("reports"))
	assert.Same(t, user, reports.Elem())

	get := m.Procedures[1]
	assert.Same(t, user, get.Output)
	assert.Equal(t, manifest.HandlerGRPC, get.Handler.Kind)
	assert.Equal(t, "Look up one user.", get.Meta["description"])

	ping := m.Procedures[0]
	assert.Equal(t, shape.KindObject, ping.Input.Kind())
	assert.Empty(t, ping.Input.Fields())
	assert.Equal(t, "pong", ping.Handler.Value)
}

func TestParseViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "empty",
			src:  "",
			want: []string{"x.yaml:0:0: empty manifest"},
		},
		{
			name: "missing procedures",
			src:  "package: a\n",
			want: []string{"x.yaml:1:1: procedures is required"},
		},
		{
			name: "unknown keys",
			src: `bogus: 1
procedures:
  p:
    output: {type: string, color: red}
    handler: {static: {value: x}}
`,
			want: []string{
				"x.yaml:1:1: unknown key bogus",
				"x.yaml:4:28: unknown key color in type expression",
			},
		},
		{
			name: "unknown ref",
			src: `procedures:
  p:
    output: {ref: Nope}
    handler: {grpc: {}}
`,
			want: []string{"x.yaml:3:19: unknown type Nope"},
		},
		{
			name: "cycle outside an object",
			src: `types:
  A: {type: array, items: {ref: A}}
procedures:
  p:
    output: {ref: A}
    handler: {grpc: {}}
`,
			want: []string{"x.yaml:2:6: type A refers to itself without passing through an object"},
		},
		{
			name: "missing output and handler",
			src: `procedures:
  p:
    input: {type: object}
  q:
    output: {type: string}
`,
			want: []string{
				"x.yaml:3:5: procedure p has no output",
				"x.yaml:5:5: procedure q has no handler",
			},
		},
		{
			name: "bad handlers",
			src: `procedures:
  a:
    output: {type: string}
    handler: {sql: {one: true, exec: true}}
  b:
    output: {type: string}
    handler: {grpc: {}, static: {}}
  c:
    output: {type: string}
    handler: {shell: {}}
`,
			want: []string{
				"x.yaml:4:20: sql handler needs a query",
				"x.yaml:4:20: sql handler cannot be both one and exec",
				"x.yaml:7:14: handler must have exactly one of grpc, static or sql",
				"x.yaml:10:15: unknown handler shell",
			},
		},
		{
			name: "group with a handler",
			src: `procedures:
  g:
    procedures: {}
    handler: {grpc: {}}
`,
			want: []string{"x.yaml:2:3: g has both procedures and a handler"},
		},
		{
			name: "named type marked nullable",
			src: `types:
  Id: {type: string, nullable: true}
procedures:
  p:
    output: {ref: Id}
    handler: {grpc: {}}
`,
			want: []string{"x.yaml:2:7: named type Id cannot be optional or nullable; mark the reference instead"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.Parse("x.yaml", []byte(tt.src))
			var merr manifest.Error
			require.True(t, errors.As(err, &merr), "got %v", err)
			var got []string
			for _, v := range merr {
				got = append(got, v.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseShapes(t *testing.T) {
	m, err := manifest.Parse("x.yaml", []byte(`
types:
  Shape:
    type: union
    discriminator: kind
    members:
      - {type: object, fields: {kind: {type: literal, value: circle}, radius: {type: number}}}
      - {type: object, fields: {kind: {type: literal, value: square}, side: {type: number}}}
  Pair: {type: tuple, members: [{type: string}, {type: number}]}
procedures:
  area:
    input: {type: object, fields: {shape: {ref: Shape}, pair: {ref: Pair, optional: true}}}
    output: {type: number}
    handler: {static: {value: 3.5}}
`))
	require.NoError(t, err)

	s := m.Type("Shape")
	assert.Equal(t, shape.KindUnion, s.Kind())
	assert.Equal(t, "kind", s.Discriminator())
	assert.Equal(t, []string{"circle", "square"}, shape.DiscriminatorValues(s))
	assert.Equal(t, shape.KindTuple, m.Type("Pair").Kind())

	in := m.Procedures[0].Input
	_, err = shape.Parse(in, map[string]any{"shape": map[string]any{"kind": "square", "side": 2}})
	require.NoError(t, err)
	_, err = shape.Parse(in, map[string]any{"shape": map[string]any{"kind": "square"}, "pair": []any{"a", 1}})
	require.EqualError(t, err, "shape.side: Required")
}

func TestBindStaticAndSQL(t *testing.T) {
	db, d, err := sqlproc.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL)")
	require.NoError(t, err)

	m, err := manifest.Parse("notes.yaml", []byte(`
types:
  Note:
    type: object
    fields:
      id: {type: number}
      body: {type: string}
procedures:
  version:
    meta: {method: GET}
    output: {type: string}
    handler: {static: {value: "1.0"}}
  notes:
    procedures:
      add:
        input: {type: object, fields: {body: {type: string}}}
        output: {type: object, fields: {rowsAffected: {type: number}}}
        handler: {sql: {query: "INSERT INTO notes (body) VALUES (:body)", exec: true}}
      list:
        meta: {method: GET}
        output: {type: array, items: {ref: Note}}
        handler: {sql: {query: "SELECT id, body FROM notes ORDER BY id"}}
`))
	require.NoError(t, err)

	r, err := manifest.Bind(m, manifest.Deps{DB: db, Dialect: d})
	require.NoError(t, err)

	procs := router.Analyze(r)
	var names []string
	for _, p := range procs {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"notes_add", "notes_list", "version"}, names)
	assert.False(t, procs[0].IsQuery)
	assert.True(t, procs[1].IsQuery)

	ctx := context.Background()
	add, _ := router.Lookup(r, "notes_add")
	_, err = add.Handler(ctx, map[string]any{"body": "hello"})
	require.NoError(t, err)

	list, _ := router.Lookup(r, "notes_list")
	rows, err := list.Handler(ctx, map[string]any{})
	require.NoError(t, err)
	parsed, err := shape.Parse(list.Output, rows)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": float64(1), "body": "hello"}}, parsed)

	version, _ := router.Lookup(r, "version")
	v, err := version.Handler(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "1.0", v)
}

func TestBindGRPC(t *testing.T) {
	m, err := manifest.Load("testdata/users.yaml")
	require.NoError(t, err)

	reg, err := protoreg.Build(m.Package, m.Service, m.GRPCProcedures())
	require.NoError(t, err)
	md := reg.Method("users_get")
	require.NotNil(t, md)
	assert.Nil(t, reg.Method("ping"))

	mock := &remote.MockTransport{}
	mock.Respond = func(method protoreflect.MethodDescriptor, req protoreflect.Message) (protoreflect.Message, error) {
		out := method.Output()
		data := out.Fields().ByName("data")
		user := dynamicpb.NewMessage(data.Message())
		fields := data.Message().Fields()
		user.Set(fields.ByName("id"), req.Get(req.Descriptor().Fields().ByName("id")))
		user.Set(fields.ByName("name"), protoreflect.ValueOfString("Ada"))
		role := fields.ByName("role")
		user.Set(role, protoreflect.ValueOfEnum(role.Enum().Values().ByName("ROLE_ADMIN").Number()))
		resp := dynamicpb.NewMessage(out)
		resp.Set(data, protoreflect.ValueOfMessage(user))
		return resp, nil
	}

	r, err := manifest.Bind(m, manifest.Deps{Transport: mock, Registry: reg})
	require.NoError(t, err)

	get, ok := router.Lookup(r, "users_get")
	require.True(t, ok)
	got, err := get.Handler(context.Background(), map[string]any{"id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "u1", "name": "Ada", "role": "admin", "manager": nil, "reports": []any{}}, got)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/acme.users.v1.UsersService/UsersGet", calls[0].FullMethod)
}

func TestBindMissingBackends(t *testing.T) {
	m, err := manifest.Parse("x.yaml", []byte(`procedures:
  a:
    output: {type: string}
    handler: {grpc: {}}
  b:
    output: {type: string}
    handler: {sql: {query: SELECT 1}}
`))
	require.NoError(t, err)

	_, err = manifest.Bind(m, manifest.Deps{})
	require.EqualError(t, err, "x.yaml:3:5: procedure a uses grpc but no transport is configured\n"+
		"x.yaml:6:5: procedure b uses sql but no database is configured")
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("procedures: {}\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var fired atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- manifest.Watch(ctx, path, 20*time.Millisecond, func() { fired.Add(1) })
	}()

	// writes to siblings are ignored
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644)
		_ = os.WriteFile(path, []byte("procedures: {a: {}}\n"), 0o644)
		return fired.Load() > 0
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
