package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := Register(fs)
	require.NoError(t, fs.Parse(append([]string{"-env-file", ""}, args...)))
	return f.Load()
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaults(t *testing.T) {
	c, err := load(t)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestLayers(t *testing.T) {
	path := writeFile(t, "procgraph.yaml", `
server:
  addr: ":9000"
  timeout: 5s
  cors_origins: [https://a.example]
transport:
  backends:
    "*": [localhost:50051]
log:
  level: debug
`)
	t.Setenv("PROCGRAPH_SERVER_ADDR", ":9100")
	t.Setenv("PROCGRAPH_SERVER_CORS_ORIGIN", "https://b.example, https://c.example")
	t.Setenv("PROCGRAPH_TRANSPORT_RPC_TIMEOUT", "1s")

	c, err := load(t, "-config", path, "-server.addr", ":9200", "-server.pretty",
		"-transport.backend", "users.UserService=users:50051")
	require.NoError(t, err)

	require.Equal(t, ":9200", c.Server.Addr)
	require.Equal(t, 5*time.Second, c.Server.Timeout)
	require.True(t, c.Server.Pretty)
	require.Equal(t, []string{"https://b.example", "https://c.example"}, c.Server.CORSOrigins)
	require.Equal(t, time.Second, c.Transport.RPCTimeout)
	require.Equal(t, "debug", c.Log.Level)
	require.Equal(t, map[string][]string{"users.UserService": {"users:50051"}}, c.Transport.Backends)
}

func TestConfigFromEnv(t *testing.T) {
	path := writeFile(t, "c.yaml", "metrics:\n  addr: \":9091\"\n")
	t.Setenv("PROCGRAPH_CONFIG", path)
	c, err := load(t)
	require.NoError(t, err)
	require.Equal(t, ":9091", c.Metrics.Addr)
}

func TestDotenv(t *testing.T) {
	t.Setenv("PROCGRAPH_LOG_FORMAT", "")
	require.NoError(t, os.Unsetenv("PROCGRAPH_LOG_FORMAT"))
	env := writeFile(t, ".env", "PROCGRAPH_LOG_FORMAT=console\n")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := Register(fs)
	require.NoError(t, fs.Parse([]string{"-env-file", env}))
	c, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, "console", c.Log.Format)
}

func TestMissingDotenvIsIgnored(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := Register(fs)
	require.NoError(t, fs.Parse([]string{"-env-file", filepath.Join(t.TempDir(), "absent.env")}))
	_, err := f.Load()
	require.NoError(t, err)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		args    []string
		wantErr string
	}{
		{name: "unknown yaml field", yaml: "server:\n  adress: x\n", wantErr: "field adress not found"},
		{name: "bad env duration", env: map[string]string{"PROCGRAPH_SERVER_TIMEOUT": "soon"}, wantErr: "PROCGRAPH_SERVER_TIMEOUT"},
		{name: "bad flag bool", args: []string{"-server.msgpack=maybe"}, wantErr: "-server.msgpack"},
		{name: "bad backend", args: []string{"-transport.backend", "nohost"}, wantErr: `invalid backend "nohost"`},
		{name: "bad log format", args: []string{"-log.format", "xml"}, wantErr: "log.format"},
		{name: "dsn required", args: []string{"-database.driver", "sqlite"}, wantErr: "database.dsn"},
		{name: "unknown driver", args: []string{"-database.driver", "oracle", "-database.dsn", "x"}, wantErr: "unsupported driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args
			if tt.yaml != "" {
				args = append([]string{"-config", writeFile(t, "c.yaml", tt.yaml)}, args...)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(t, args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUsageListsEnvNames(t *testing.T) {
	u := Usage()
	require.Contains(t, u, "-server.addr")
	require.Contains(t, u, "PROCGRAPH_TRANSPORT_MAX_CONNS_PER_ENDPOINT")
}
