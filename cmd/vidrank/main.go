// Command vidrank ranks YouTube videos by information density, redundancy,
// title relevance and originality. It serves the HTTP API by default and
// can rank a list of urls once with the rank subcommand.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/ahrav/go-vidrank/infrastructure/youtube"
	"github.com/ahrav/go-vidrank/internal/application"
	"github.com/ahrav/go-vidrank/internal/logging"
	"github.com/ahrav/go-vidrank/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "vidrank:", err)
		stop()
		os.Exit(1)
	}
}

type command struct {
	name       string
	configPath string
	logLevel   string
	urls       []string
}

var errUsage = errors.New("usage: vidrank [-config file] [-log-level level] [serve | rank <url>...]")

func parseArgs(args []string, stderr io.Writer) (command, error) {
	fs := flag.NewFlagSet("vidrank", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cmd command
	fs.StringVar(&cmd.configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&cmd.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return command{}, err
	}

	rest := fs.Args()
	cmd.name = "serve"
	if len(rest) > 0 {
		cmd.name, rest = rest[0], rest[1:]
	}
	switch cmd.name {
	case "serve":
		if len(rest) > 0 {
			return command{}, errUsage
		}
	case "rank":
		if len(rest) == 0 {
			return command{}, fmt.Errorf("rank requires at least one url: %w", errUsage)
		}
		for _, u := range rest {
			if !youtube.ValidLocator(u) {
				return command{}, fmt.Errorf("%w: %q", youtube.ErrInvalidLocator, u)
			}
		}
		cmd.urls = rest
	default:
		return command{}, fmt.Errorf("unknown command %q: %w", cmd.name, errUsage)
	}
	return cmd, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := application.LoadConfig(cmd.configPath)
	if err != nil {
		return err
	}
	if cmd.logLevel != "" {
		cfg.Log.Level = cmd.logLevel
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)

	a, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd.name {
	case "rank":
		return rank(ctx, a, cmd.urls, stdout)
	default:
		return serve(ctx, a, cfg)
	}
}

func rank(ctx context.Context, a *app, urls []string, stdout io.Writer) error {
	report, err := a.engine.Run(ctx, uuid.NewString(), urls)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func serve(ctx context.Context, a *app, cfg application.Config) error {
	opts := server.Options{
		Ranker:   a.engine,
		Metrics:  a.metrics.Handler(),
		Logger:   a.logger,
		Version:  version,
		MaxItems: cfg.Engine.MaxItems,
	}
	if a.store != nil {
		opts.Runs = a.store
	}
	srv, err := server.New(opts)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Server.Addr,
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)
}
