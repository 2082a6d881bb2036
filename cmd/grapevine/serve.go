package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/usegrapevine/grapevine/pkg/config"
	"github.com/usegrapevine/grapevine/pkg/config/provider"
	"github.com/usegrapevine/grapevine/pkg/logger"
	"github.com/usegrapevine/grapevine/pkg/observability"
	"github.com/usegrapevine/grapevine/pkg/server"
)

// ServeCmd runs the HTTP API server until interrupted.
type ServeCmd struct {
	Port  int  `help:"Override the configured listen port."`
	Watch bool `help:"Watch the config file and apply logging changes without a restart."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, loader, err := c.loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	if c.Watch {
		if loader == nil {
			slog.Warn("--watch needs a config file, ignoring")
		} else {
			go func() {
				if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
					slog.Error("config watch stopped", "error", err)
				}
			}()
		}
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("observability shutdown failed", "error", err)
		}
	}()

	pipe, client, closer, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer closer()

	var opts []server.Option
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, server.WithMetricsHandler(observability.MetricsHandler()))
	}
	srv := server.New(cfg.Server, pipe, client, opts...)

	fmt.Println("Grapevine server ready")
	fmt.Printf("   Query:   POST http://%s/v1/query\n", srv.Address())
	fmt.Printf("   Tools:   GET  http://%s/v1/tools\n", srv.Address())
	fmt.Printf("   Health:  GET  http://%s/healthz\n", srv.Address())
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics: GET  http://%s/metrics\n", srv.Address())
	}
	if cfg.Observability.Tracing.Enabled {
		fmt.Printf("   Tracing: %s (%s)\n", cfg.Observability.Tracing.Exporter, cfg.Observability.Tracing.Endpoint)
	}
	if len(cfg.Server.APIKeys) == 0 {
		fmt.Println("   Auth:    disabled (no server.api_keys configured)")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}

// loadConfig mirrors the shared loader but registers the reload hook, so
// --watch can apply logging changes while the server runs.
func (c *ServeCmd) loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path == "" {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("zero-config mode needs OPENAI_API_KEY, GRAPH_BASE_URL, and GRAPH_API_KEY set: %w", err)
		}
		slog.Info("using zero-config mode")
		return cfg, nil, nil
	}

	p, err := provider.NewFileProvider(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create config provider: %w", err)
	}

	loader := config.NewLoader(p, config.WithOnChange(applyLoggingConfig))
	cfg, err := loader.Load(ctx)
	if err != nil {
		_ = loader.Close()
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("loaded configuration", "path", path)
	return cfg, loader, nil
}

// applyLoggingConfig re-initializes the logger after a config reload.
// Only level and format take effect without a restart; file output and
// everything outside the logging section need one.
func applyLoggingConfig(cfg *config.Config) {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		slog.Warn("reloaded config has an invalid log level", "level", cfg.Logging.Level)
		return
	}
	logger.Init(level, os.Stderr, cfg.Logging.Format)
	slog.Info("logging configuration applied", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
}
