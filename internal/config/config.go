// Package config loads the gateway configuration in layers: defaults, a YAML
// file, a .env file, PROCGRAPH_* environment variables and finally flags.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PROCGRAPH_"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Manifest  ManifestConfig  `yaml:"manifest"`
	Transport TransportConfig `yaml:"transport"`
	Database  DatabaseConfig  `yaml:"database"`
	Otel      OtelConfig      `yaml:"otel"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Endpoint        string        `yaml:"endpoint"`
	Timeout         time.Duration `yaml:"timeout"`
	Pretty          bool          `yaml:"pretty"`
	GraphiQL        bool          `yaml:"graphiql"`
	Introspection   bool          `yaml:"introspection"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	MetadataHeaders []string      `yaml:"metadata_headers"`
	DocumentCache   int           `yaml:"document_cache"`
	JWTSecret       string        `yaml:"jwt_secret"`
	Msgpack         bool          `yaml:"msgpack"`
}

type ManifestConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

type TransportConfig struct {
	// Backends maps a fully-qualified gRPC service, or "*", to endpoints.
	Backends            map[string][]string `yaml:"backends"`
	MaxConnsPerEndpoint int                 `yaml:"max_conns_per_endpoint"`
	RPCTimeout          time.Duration       `yaml:"rpc_timeout"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type OtelConfig struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			Endpoint:      "/api/graphql",
			Timeout:       10 * time.Second,
			GraphiQL:      true,
			Introspection: true,
			MaxBodyBytes:  1 << 20,
			DocumentCache: 1000,
		},
		Manifest:  ManifestConfig{Path: "procgraph.yaml"},
		Transport: TransportConfig{MaxConnsPerEndpoint: 2, RPCTimeout: 3 * time.Second},
		Otel:      OtelConfig{Service: "procgraph"},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Validate checks values that cannot be checked while parsing.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format: must be json or console, got %q", c.Log.Format)
	}
	if !strings.HasPrefix(c.Server.Endpoint, "/") {
		return fmt.Errorf("server.endpoint: must start with /, got %q", c.Server.Endpoint)
	}
	if c.Transport.MaxConnsPerEndpoint < 1 {
		return fmt.Errorf("transport.max-conns-per-endpoint: must be positive")
	}
	switch c.Database.Driver {
	case "", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver)
	}
	if c.Database.Driver != "" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn: required when database.driver is set")
	}
	return nil
}

// Flags binds every setting to a flag set. Flags given on the command line
// take precedence over every other layer.
type Flags struct {
	fs      *flag.FlagSet
	file    string
	envFile string
	values  map[string]*flagValue
}

type flagValue struct {
	list   bool
	isBool bool
	vals   []string
	def    string
}

func (v *flagValue) String() string {
	if v == nil {
		return ""
	}
	return v.def
}

func (v *flagValue) IsBoolFlag() bool { return v.isBool }

func (v *flagValue) Set(s string) error {
	if v.list {
		v.vals = append(v.vals, s)
	} else {
		v.vals = []string{s}
	}
	return nil
}

// Register defines -config, -env-file and one flag per setting on fs.
func Register(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs, values: map[string]*flagValue{}}
	fs.StringVar(&f.file, "config", "", "YAML configuration file")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	def := Default()
	for i := range settings {
		s := &settings[i]
		v := &flagValue{list: s.reset != nil, isBool: s.isBool}
		if s.get != nil {
			v.def = s.get(def)
		}
		f.values[s.key] = v
		fs.Var(v, s.key, s.usage)
	}
	return f
}

// Load builds the configuration after fs has been parsed.
func (f *Flags) Load() (*Config, error) {
	if err := loadDotenv(f.envFile); err != nil {
		return nil, err
	}
	c := Default()
	path := f.file
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := loadFile(c, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(c); err != nil {
		return nil, err
	}
	var ferr error
	f.fs.Visit(func(fl *flag.Flag) {
		v, ok := f.values[fl.Name]
		if !ok || ferr != nil {
			return
		}
		ferr = apply(c, lookup(fl.Name), v.vals, "-"+fl.Name)
	})
	if ferr != nil {
		return nil, ferr
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadFile(c *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// EnvName returns the environment variable read for a setting key.
func EnvName(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return EnvPrefix + strings.ToUpper(r.Replace(key))
}

func applyEnv(c *Config) error {
	for i := range settings {
		s := &settings[i]
		raw, ok := os.LookupEnv(EnvName(s.key))
		if !ok {
			continue
		}
		vals := []string{raw}
		if s.reset != nil {
			vals = splitList(raw)
		}
		if err := apply(c, s, vals, EnvName(s.key)); err != nil {
			return err
		}
	}
	return nil
}

func apply(c *Config, s *setting, vals []string, source string) error {
	if s == nil {
		return nil
	}
	if s.reset != nil {
		s.reset(c)
	}
	for _, v := range vals {
		if err := s.set(c, v); err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Usage lists every setting with its environment variable, sorted by key.
func Usage() string {
	keys := make([]*setting, len(settings))
	for i := range settings {
		keys[i] = &settings[i]
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].key < keys[j].key })
	var b strings.Builder
	for _, s := range keys {
		fmt.Fprintf(&b, "  -%-34s %s (%s)\n", s.key, s.usage, EnvName(s.key))
	}
	return b.String()
}
