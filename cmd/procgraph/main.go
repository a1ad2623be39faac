package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanpama/procgraph"
	"github.com/hanpama/procgraph/internal/config"
	"github.com/hanpama/procgraph/internal/protoreg"
)

const rootUsage = `procgraph: publish typed procedures as a GraphQL API

USAGE:
  procgraph <command> [flags]

COMMANDS:
  serve            Serve the manifest's procedures over HTTP
  print-sdl        Print and validate the GraphQL schema of the manifest
  compile-proto    Generate .proto files for the manifest's gRPC procedures
  help             Show help for any command

Every setting can also come from a YAML file (-config), the environment
(PROCGRAPH_*) or a dotenv file (-env-file). Flags win over both.
`

func serveUsage() string {
	return "serve FLAGS:\n" + config.Usage()
}

func printSDLUsage() string {
	return `print-sdl FLAGS:
  -subgraph                           Print the federation subgraph SDL
  -out <file>                         Write the SDL to file (default: stdout)
` + config.Usage() + "  (Validation always runs; exits non-zero on errors)\n"
}

func compileProtoUsage() string {
	return `compile-proto FLAGS:
  -out <dir>                          Output directory for .proto files (required)
` + config.Usage()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "procgraph:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return errors.New("missing command")
	}
	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "serve":
		return cmdServe(ctx, cmdArgs, stderr)
	case "print-sdl":
		return cmdPrintSDL(cmdArgs, stdout, stderr)
	case "compile-proto":
		return cmdCompileProto(cmdArgs, stderr)
	case "help", "-h", "-help", "--help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage())
	case "print-sdl":
		fmt.Fprint(stdout, printSDLUsage())
	case "compile-proto":
		fmt.Fprint(stdout, compileProtoUsage())
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// parse parses a subcommand's flags and loads the configuration. usage is
// printed to stderr when the flags are malformed.
func parse(fs *flag.FlagSet, args []string, usage string, stderr io.Writer) (*config.Config, error) {
	fs.SetOutput(new(bytes.Buffer))
	flags := config.Register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, usage)
		return nil, err
	}
	if fs.NArg() > 0 {
		fmt.Fprint(stderr, usage)
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return flags.Load()
}

func cmdPrintSDL(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("print-sdl", flag.ContinueOnError)
	subgraph := fs.Bool("subgraph", false, "print the federation subgraph SDL")
	outFile := fs.String("out", "", "write the SDL to file")
	cfg, err := parse(fs, args, printSDLUsage(), stderr)
	if err != nil {
		return err
	}

	a := newApp(cfg, nil)
	defer a.close()
	var opts []procgraph.Option
	if *subgraph {
		opts = append(opts, procgraph.WithFederation(true, ""))
	}
	res, _, err := a.build(opts...)
	if err != nil {
		return err
	}
	sdl := res.SDL()
	if *subgraph {
		sdl = res.SubgraphSDL()
	}
	if *outFile == "" {
		_, err := io.WriteString(stdout, sdl)
		return err
	}
	return os.WriteFile(*outFile, []byte(sdl), 0o644)
}

func cmdCompileProto(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("compile-proto", flag.ContinueOnError)
	outDir := fs.String("out", "", "output directory for .proto files")
	cfg, err := parse(fs, args, compileProtoUsage(), stderr)
	if err != nil {
		return err
	}
	if *outDir == "" {
		fmt.Fprint(stderr, compileProtoUsage())
		return errors.New("-out is required")
	}

	m, err := loadManifest(cfg.Manifest.Path)
	if err != nil {
		return err
	}
	reg, err := registry(m)
	if err != nil {
		return err
	}
	if reg == nil {
		return fmt.Errorf("%s declares no grpc procedures", cfg.Manifest.Path)
	}
	if err := protoreg.Render(reg, *outDir); err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	return nil
}
