// Package logging builds the process logger and logs bus events with it.
package logging

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	eventbus "github.com/hanpama/procgraph/internal/eventbus"
	events "github.com/hanpama/procgraph/internal/events"
	reqid "github.com/hanpama/procgraph/internal/reqid"
)

// New returns a logger writing to stderr. format is "json" or "console";
// level is any zap level name.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Register logs finished requests, operations, procedure calls, gRPC calls
// and schema reloads. Failures log at warn, the rest at debug or info.
func Register(log *zap.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			log.Info("http request",
				requestID(ctx),
				zap.String("method", e.Request.Method),
				zap.String("path", e.Request.URL.Path),
				zap.Int("status", e.Status),
				zap.Duration("duration", e.Duration),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("operation", e.OperationName),
				zap.String("type", e.OperationType),
				zap.Int("errors", len(e.Errors)),
				zap.Duration("duration", e.Duration),
			}
			if len(e.Errors) > 0 {
				log.Warn("graphql operation", append(fields, zap.Errors("error_list", e.Errors))...)
				return
			}
			log.Debug("graphql operation", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ProcedureFinish) {
			if e.Err != nil {
				log.Warn("procedure failed", requestID(ctx), zap.String("procedure", e.Name), zap.Error(e.Err), zap.Duration("duration", e.Duration))
				return
			}
			log.Debug("procedure", requestID(ctx), zap.String("procedure", e.Name), zap.Duration("duration", e.Duration))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GRPCClientFinish) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("service", e.Service),
				zap.String("method", e.Method),
				zap.String("target", e.Target),
				zap.Stringer("code", e.Code),
				zap.Duration("duration", e.Duration),
			}
			if e.Err != nil {
				log.Warn("grpc call", append(fields, zap.Error(e.Err))...)
				return
			}
			log.Debug("grpc call", fields...)
		}),
		eventbus.Subscribe(func(_ context.Context, e events.SchemaReload) {
			if e.Err != nil {
				log.Error("schema reload failed, keeping previous schema", zap.String("source", e.Source), zap.Error(e.Err))
				return
			}
			log.Info("schema reloaded", zap.String("source", e.Source), zap.Int("procedures", e.Procedures))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func requestID(ctx context.Context) zap.Field {
	id, _ := reqid.FromContext(ctx)
	return zap.String("request_id", id)
}
