package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type setting struct {
	key    string
	usage  string
	set    func(c *Config, v string) error
	get    func(c *Config) string
	isBool bool
	// reset is non-nil for repeatable settings; a layer that names the
	// setting replaces the earlier layer's list.
	reset func(c *Config)
}

var settings = []setting{
	str("server.addr", "HTTP listen address", func(c *Config) *string { return &c.Server.Addr }),
	str("server.endpoint", "GraphQL endpoint path", func(c *Config) *string { return &c.Server.Endpoint }),
	duration("server.timeout", "Per-request timeout", func(c *Config) *time.Duration { return &c.Server.Timeout }),
	boolean("server.pretty", "Pretty-print JSON responses", func(c *Config) *bool { return &c.Server.Pretty }),
	boolean("server.graphiql", "Serve GraphiQL on GET without a query", func(c *Config) *bool { return &c.Server.GraphiQL }),
	boolean("server.introspection", "Enable __schema and __type", func(c *Config) *bool { return &c.Server.Introspection }),
	list("server.cors-origin", "Allowed CORS origin. Repeatable", func(c *Config) *[]string { return &c.Server.CORSOrigins }),
	int64Setting("server.max-body", "Maximum request body in bytes", func(c *Config) *int64 { return &c.Server.MaxBodyBytes }),
	list("server.metadata-header", "Forward HTTP header to gRPC metadata. Repeatable", func(c *Config) *[]string { return &c.Server.MetadataHeaders }),
	integer("server.document-cache", "Parsed document cache size, 0 disables", func(c *Config) *int { return &c.Server.DocumentCache }),
	str("server.jwt-secret", "HMAC secret for bearer tokens", func(c *Config) *string { return &c.Server.JWTSecret }),
	boolean("server.msgpack", "Answer Accept: application/msgpack", func(c *Config) *bool { return &c.Server.Msgpack }),

	str("manifest.path", "Procedure manifest file", func(c *Config) *string { return &c.Manifest.Path }),
	boolean("manifest.watch", "Reload the schema when the manifest changes", func(c *Config) *bool { return &c.Manifest.Watch }),

	{
		key:   "transport.backend",
		usage: "Map gRPC service to endpoint as Svc=host:port, * for default. Repeatable",
		set:   setBackend,
		reset: func(c *Config) { c.Transport.Backends = nil },
	},
	integer("transport.max-conns-per-endpoint", "Max conns per endpoint", func(c *Config) *int { return &c.Transport.MaxConnsPerEndpoint }),
	duration("transport.rpc-timeout", "RPC timeout", func(c *Config) *time.Duration { return &c.Transport.RPCTimeout }),

	str("database.driver", "SQL driver: sqlite, postgres or mysql", func(c *Config) *string { return &c.Database.Driver }),
	str("database.dsn", "SQL data source name", func(c *Config) *string { return &c.Database.DSN }),

	str("otel.endpoint", "OTLP collector endpoint", func(c *Config) *string { return &c.Otel.Endpoint }),
	str("otel.service", "OpenTelemetry service name", func(c *Config) *string { return &c.Otel.Service }),

	str("log.level", "debug, info, warn or error", func(c *Config) *string { return &c.Log.Level }),
	str("log.format", "json or console", func(c *Config) *string { return &c.Log.Format }),

	str("metrics.addr", "Prometheus listen address, empty disables", func(c *Config) *string { return &c.Metrics.Addr }),
}

func lookup(key string) *setting {
	for i := range settings {
		if settings[i].key == key {
			return &settings[i]
		}
	}
	return nil
}

func str(key, usage string, field func(*Config) *string) setting {
	return setting{
		key: key, usage: usage,
		set: func(c *Config, v string) error { *field(c) = v; return nil },
		get: func(c *Config) string { return *field(c) },
	}
}

func boolean(key, usage string, field func(*Config) *bool) setting {
	return setting{
		key: key, usage: usage,
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*field(c) = b
			return nil
		},
		get:    func(c *Config) string { return strconv.FormatBool(*field(c)) },
		isBool: true,
	}
}

func integer(key, usage string, field func(*Config) *int) setting {
	return setting{
		key: key, usage: usage,
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*field(c) = n
			return nil
		},
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
	}
}

func int64Setting(key, usage string, field func(*Config) *int64) setting {
	return setting{
		key: key, usage: usage,
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			*field(c) = n
			return nil
		},
		get: func(c *Config) string { return strconv.FormatInt(*field(c), 10) },
	}
}

func duration(key, usage string, field func(*Config) *time.Duration) setting {
	return setting{
		key: key, usage: usage,
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*field(c) = d
			return nil
		},
		get: func(c *Config) string { return field(c).String() },
	}
}

func list(key, usage string, field func(*Config) *[]string) setting {
	return setting{
		key: key, usage: usage,
		set:   func(c *Config, v string) error { *field(c) = append(*field(c), v); return nil },
		reset: func(c *Config) { *field(c) = nil },
	}
}

func setBackend(c *Config, v string) error {
	svc, ep, ok := strings.Cut(v, "=")
	svc, ep = strings.TrimSpace(svc), strings.TrimSpace(ep)
	if !ok || svc == "" || ep == "" {
		return fmt.Errorf("invalid backend %q", v)
	}
	if c.Transport.Backends == nil {
		c.Transport.Backends = map[string][]string{}
	}
	c.Transport.Backends[svc] = append(c.Transport.Backends[svc], ep)
	return nil
}
