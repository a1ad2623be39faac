// Package metrics exports Prometheus collectors fed from bus events.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/procgraph/internal/eventbus"
	events "github.com/hanpama/procgraph/internal/events"
)

const namespace = "procgraph"

type Collectors struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	Operations        *prometheus.CounterVec
	ProcedureCalls    *prometheus.CounterVec
	ProcedureDuration *prometheus.HistogramVec
	GRPCCalls         *prometheus.CounterVec
	SchemaReloads     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by status code.",
		}, []string{"code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: prometheus.DefBuckets,
		}, []string{"code"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "operations_total",
			Help: "GraphQL operations by type and outcome.",
		}, []string{"type", "outcome"}),
		ProcedureCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "procedure", Name: "calls_total",
			Help: "Procedure resolutions by name and outcome.",
		}, []string{"procedure", "outcome"}),
		ProcedureDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "procedure", Name: "duration_seconds",
			Help: "Procedure latency, validation included.", Buckets: prometheus.DefBuckets,
		}, []string{"procedure"}),
		GRPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "grpc_client", Name: "calls_total",
			Help: "Outgoing gRPC calls by method and status code.",
		}, []string{"service", "method", "code"}),
		SchemaReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "schema", Name: "reloads_total",
			Help: "Manifest reloads by outcome.",
		}, []string{"outcome"}),
	}
	for _, col := range []prometheus.Collector{
		c.HTTPRequests, c.HTTPDuration, c.Operations, c.ProcedureCalls,
		c.ProcedureDuration, c.GRPCCalls, c.SchemaReloads,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register feeds the collectors from the global bus.
func (c *Collectors) Register() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			code := strconv.Itoa(e.Status)
			c.HTTPRequests.WithLabelValues(code).Inc()
			c.HTTPDuration.WithLabelValues(code).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) {
			c.Operations.WithLabelValues(e.OperationType, outcome(len(e.Errors) == 0)).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.ProcedureFinish) {
			c.ProcedureCalls.WithLabelValues(e.Name, outcome(e.Err == nil)).Inc()
			c.ProcedureDuration.WithLabelValues(e.Name).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GRPCClientFinish) {
			c.GRPCCalls.WithLabelValues(e.Service, e.Method, e.Code.String()).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.SchemaReload) {
			c.SchemaReloads.WithLabelValues(outcome(e.Err == nil)).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
