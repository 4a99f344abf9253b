// Command agentwire runs a configured agent.
//
// Usage:
//
//	agentwire run --config agentwire.yaml
//	agentwire validate --config agentwire.yaml
//	agentwire version
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hupe1980/agentwire"
	"github.com/hupe1980/agentwire/config"
	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/metrics"
	"golang.org/x/sync/errgroup"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Run      RunCmd      `cmd:"" help:"Connect the configured agent and serve until interrupted."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	Config   string `short:"c" help:"Path to config file." type:"path" default:"agentwire.yaml"`
	LogLevel string `help:"Override logging.level (debug, info, warn, error)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("agentwire version %s\n", version)
	return nil
}

// ValidateCmd checks a configuration file without connecting.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s agent %q is valid\n", cli.Config, cfg.Agent.Kind, cfg.Agent.Name)
	return nil
}

// RunCmd starts the agent and, when enabled, the metrics endpoint.
type RunCmd struct {
	ShutdownTimeout time.Duration `help:"Time allowed for in-flight messages on shutdown." default:"10s"`
}

func (c *RunCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	logger := logging.NewSlogLogger(cfg.LogLevel(), cfg.Logging.Format, false).
		WithComponent("cli").WithAgent(cfg.Agent.Name)

	var (
		observer  core.Observer
		collector *metrics.Collector
	)
	if cfg.Metrics.Enabled {
		collector, err = metrics.New()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		observer = collector
	}

	rsp, err := buildResponder(cfg, logger)
	if err != nil {
		return err
	}

	a, err := agentwire.New(cfg.AgentOptions(), func(o *agentwire.Options) {
		o.Responder = rsp
		o.Logger = logger
		o.Observer = observer
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		stopCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
		defer cancel()
		return a.Stop(stopCtx)
	})

	if collector != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, collector.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("Serving metrics", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func loadConfig(cli *CLI) (*config.Config, error) {
	if err := config.LoadDotEnvForConfig(cli.Config); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("agentwire"),
		kong.Description("Connect an agent to a peer-to-peer messaging substrate."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
