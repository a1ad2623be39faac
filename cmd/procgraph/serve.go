package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/procgraph/internal/eventbus"
	"github.com/hanpama/procgraph/internal/logging"
	"github.com/hanpama/procgraph/internal/manifest"
	"github.com/hanpama/procgraph/internal/metrics"
	"github.com/hanpama/procgraph/internal/otel"
	"github.com/hanpama/procgraph/internal/server"
)

const shutdownTimeout = 5 * time.Second

func cmdServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg, err := parse(fs, args, serveUsage(), stderr)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	eventbus.Use(eventbus.New())
	defer logging.Register(log)()

	shutdownTracing, err := otel.Setup(ctx, cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	a := newApp(cfg, log)
	defer a.close()

	res, reg, err := a.build()
	if err != nil {
		return err
	}
	if err := a.checkBackends(reg); err != nil {
		return err
	}
	h, err := res.Handler(a.serverOptions()...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}
	live := server.NewReloadable(h)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("graphql server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("endpoint", cfg.Server.Endpoint),
			zap.Int("procedures", len(res.Procedures)))
		return listen(ctx, &http.Server{Addr: cfg.Server.Addr, Handler: live})
	})
	if cfg.Metrics.Addr != "" {
		mh, err := metricsHandler()
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
			return listen(ctx, &http.Server{Addr: cfg.Metrics.Addr, Handler: mh})
		})
	}
	if cfg.Manifest.Watch {
		g.Go(func() error {
			log.Info("watching manifest", zap.String("path", cfg.Manifest.Path))
			return manifest.Watch(ctx, cfg.Manifest.Path, manifest.DefaultDebounce, func() {
				a.reload(ctx, live)
			})
		})
	}
	return g.Wait()
}

// metricsHandler registers the collectors on a fresh registry, next to the
// Go runtime and process collectors.
func metricsHandler() (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}
	c.Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux, nil
}

// listen serves until ctx is done, then shuts srv down gracefully.
func listen(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

