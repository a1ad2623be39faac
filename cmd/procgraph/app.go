package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/hanpama/procgraph"
	"github.com/hanpama/procgraph/internal/authn"
	"github.com/hanpama/procgraph/internal/config"
	"github.com/hanpama/procgraph/internal/eventbus"
	"github.com/hanpama/procgraph/internal/events"
	"github.com/hanpama/procgraph/internal/grpctp"
	"github.com/hanpama/procgraph/internal/manifest"
	"github.com/hanpama/procgraph/internal/protoreg"
	"github.com/hanpama/procgraph/internal/server"
	"github.com/hanpama/procgraph/internal/sqlproc"
)

// Used when the manifest leaves package or service out.
const (
	defaultPackage = "procgraph.v1"
	defaultService = "procgraph"
)

// app holds the backends shared by every build of the manifest. The
// database is opened on the first build and kept across reloads.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	transport *grpctp.Transport

	db      *sql.DB
	dialect sqlproc.Dialect
}

func newApp(cfg *config.Config, log *zap.Logger) *app {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []grpctp.Option{
		grpctp.WithProvider(grpctp.NewStaticEndpoints(cfg.Transport.Backends)),
		grpctp.WithMaxConnsPerEndpoint(cfg.Transport.MaxConnsPerEndpoint),
	}
	if cfg.Transport.RPCTimeout > 0 {
		opts = append(opts, grpctp.WithRPCTimeout(cfg.Transport.RPCTimeout))
	}
	return &app{cfg: cfg, log: log, transport: grpctp.New(opts...)}
}

func (a *app) close() {
	_ = a.transport.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
}

func loadManifest(path string) (*manifest.Manifest, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load manifest:\n%w", err)
	}
	return m, nil
}

// registry generates the gRPC descriptors of m, or nil when no procedure
// is served over gRPC.
func registry(m *manifest.Manifest) (*protoreg.Registry, error) {
	procs := m.GRPCProcedures()
	if len(procs) == 0 {
		return nil, nil
	}
	pkg, svc := m.Package, m.Service
	if pkg == "" {
		pkg = defaultPackage
	}
	if svc == "" {
		svc = defaultService
	}
	reg, err := protoreg.Build(pkg, svc, procs)
	if err != nil {
		return nil, fmt.Errorf("protoreg build: %w", err)
	}
	return reg, nil
}

// build loads the manifest, binds it to the backends and returns the
// validated schema.
func (a *app) build(opts ...procgraph.Option) (*procgraph.Result, *protoreg.Registry, error) {
	m, err := loadManifest(a.cfg.Manifest.Path)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry(m)
	if err != nil {
		return nil, nil, err
	}
	if err := a.openDB(m); err != nil {
		return nil, nil, err
	}
	r, err := manifest.Bind(m, manifest.Deps{
		Transport: a.transport,
		Registry:  reg,
		DB:        a.db,
		Dialect:   a.dialect,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("bind manifest:\n%w", err)
	}
	opts = append([]procgraph.Option{procgraph.WithIntrospection(a.cfg.Server.Introspection)}, opts...)
	res, err := procgraph.Build(r, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate schema: %w", err)
	}
	return res, reg, nil
}

// openDB opens the configured database, falling back to the manifest's
// database section.
func (a *app) openDB(m *manifest.Manifest) error {
	if a.db != nil {
		return nil
	}
	driver, dsn := a.cfg.Database.Driver, a.cfg.Database.DSN
	if driver == "" && m.Database != nil {
		driver, dsn = m.Database.Driver, m.Database.DSN
	}
	if driver == "" {
		return nil
	}
	db, d, err := sqlproc.Open(driver, dsn)
	if err != nil {
		return err
	}
	a.db, a.dialect = db, d
	return nil
}

// checkBackends fails when a gRPC service has no endpoint to call.
func (a *app) checkBackends(reg *protoreg.Registry) error {
	if reg == nil {
		return nil
	}
	svc := string(reg.Service().FullName())
	if len(a.cfg.Transport.Backends[svc]) == 0 && len(a.cfg.Transport.Backends[grpctp.Wildcard]) == 0 {
		return fmt.Errorf("no backend mapping for %s; set -transport.backend %s=host:port", svc, svc)
	}
	return nil
}

func (a *app) serverOptions() []server.Option {
	s := a.cfg.Server
	opts := []server.Option{
		server.WithEndpoint(s.Endpoint),
		server.WithTimeout(s.Timeout),
		server.WithGraphiQL(s.GraphiQL),
		server.WithMaxBodyBytes(s.MaxBodyBytes),
		server.WithDocumentCache(s.DocumentCache),
	}
	if s.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if len(s.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(s.CORSOrigins...))
	}
	if len(s.MetadataHeaders) > 0 {
		opts = append(opts, server.WithMetadataHeaders(s.MetadataHeaders...))
	}
	if s.Msgpack {
		opts = append(opts, server.WithMsgpack())
	}
	if s.JWTSecret != "" {
		opts = append(opts, server.WithAuthenticator(authn.NewVerifier(s.JWTSecret)))
	}
	return opts
}

// reload rebuilds the schema and swaps it into live. A failed rebuild keeps
// the previous schema.
func (a *app) reload(ctx context.Context, live *server.Reloadable) {
	n, err := a.rebuild(live)
	eventbus.Publish(ctx, events.SchemaReload{Source: a.cfg.Manifest.Path, Procedures: n, Err: err})
}

func (a *app) rebuild(live *server.Reloadable) (int, error) {
	res, reg, err := a.build()
	if err != nil {
		return 0, err
	}
	if err := a.checkBackends(reg); err != nil {
		return 0, err
	}
	h, err := res.Handler(a.serverOptions()...)
	if err != nil {
		return 0, err
	}
	live.Store(h)
	return len(res.Procedures), nil
}
