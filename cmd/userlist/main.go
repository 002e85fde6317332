package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/config"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/logger"
	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/users"
)

// version is set by goreleaser at build time.
var version = "dev"

// CLI flags parsed from command line. Zero values mean "use the config file".
type cliFlags struct {
	ConfigDir string
	Endpoint  string
	Timeout   time.Duration
	Delay     time.Duration
	LogLevel  string
	LogFormat string
	Version   bool
}

// app carries what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

const usage = `usage: userlist [flags] [command] [command flags]

commands:
  fetch      fetch the user list once and print it (default)
  watch      follow the state of a running 'userlist serve'
  serve      serve the user list state over HTTP
  serve-mcp  serve the user list tools over MCP on stdio

flags:
`

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var flags cliFlags

	fs := flag.NewFlagSet("userlist", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&flags.ConfigDir, "config", ".", "directory containing userlist.yml")
	fs.StringVar(&flags.Endpoint, "endpoint", "", "users endpoint URL (default from config)")
	fs.DurationVar(&flags.Timeout, "timeout", 0, "HTTP timeout for the users request (default from config)")
	fs.DurationVar(&flags.Delay, "delay", 0, "hold each result back by this long before showing it")
	fs.StringVar(&flags.LogLevel, "log-level", "", "TRACE, DEBUG, INFO, WARN or ERROR")
	fs.StringVar(&flags.LogFormat, "log-format", "", "text or json")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Fprintln(stdout, version)
		return nil
	}

	cfg, err := config.Load(flags.ConfigDir)
	if err != nil {
		return err
	}
	applyFlags(fs, &flags, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	a := &app{
		cfg:    cfg,
		logger: logger.New(stderr, level, cfg.LogFormat),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	cmd, rest := "fetch", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "fetch":
		return a.runFetch(ctx, rest)
	case "watch":
		return a.runWatch(ctx, rest)
	case "serve":
		return a.runServe(ctx, rest)
	case "serve-mcp":
		return a.runServeMCP(ctx, rest)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(fs *flag.FlagSet, flags *cliFlags, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "endpoint":
			cfg.Endpoint = flags.Endpoint
		case "timeout":
			cfg.Timeout = config.Duration(flags.Timeout)
		case "delay":
			cfg.Delay = config.Duration(flags.Delay)
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-format":
			cfg.LogFormat = flags.LogFormat
		}
	})
}

// newController builds a controller for the configured endpoint. The caller
// must Close it.
func (a *app) newController() *fetch.Controller {
	src := users.NewHTTPClient(
		users.WithEndpoint(a.cfg.Endpoint),
		users.WithTimeout(a.cfg.Timeout.Std()),
	)
	return fetch.New(src,
		fetch.WithLogger(a.logger),
		fetch.WithDelay(a.cfg.Delay.Std()),
	)
}
