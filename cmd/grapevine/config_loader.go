package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/usegrapevine/grapevine/pkg/config"
	"github.com/usegrapevine/grapevine/pkg/graph"
	"github.com/usegrapevine/grapevine/pkg/llms"
	"github.com/usegrapevine/grapevine/pkg/pipeline"
)

// loadConfig reads the config file when one was given, or builds the
// configuration from defaults and environment variables. The returned
// loader is nil in the zero-config case.
func loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path == "" {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("zero-config mode needs OPENAI_API_KEY, GRAPH_BASE_URL, and GRAPH_API_KEY set: %w", err)
		}
		slog.Info("using zero-config mode")
		return cfg, nil, nil
	}

	cfg, loader, err := config.LoadConfigFile(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("loaded configuration", "path", path)
	return cfg, loader, nil
}

// loadGraphConfig resolves the graph section alone, so operational
// commands (tools, health) work without the LLM credential set. A config
// file still goes through the full load and validation.
func loadGraphConfig(ctx context.Context, path string) (*config.GraphConfig, func(), error) {
	if path == "" {
		gcfg := &config.GraphConfig{}
		gcfg.SetDefaults()
		if err := gcfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("graph settings from environment: %w", err)
		}
		return gcfg, func() {}, nil
	}

	cfg, loader, err := loadConfig(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return &cfg.Graph, func() { _ = loader.Close() }, nil
}

// buildPipeline constructs the LLM provider, the graph client, and the
// query pipeline around them. The returned closer releases both clients.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, *graph.Client, func(), error) {
	provider, err := llms.NewProvider(&cfg.LLM)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	client, err := graph.NewClient(&cfg.Graph)
	if err != nil {
		_ = provider.Close()
		return nil, nil, nil, fmt.Errorf("failed to create graph client: %w", err)
	}

	pipe := pipeline.New(provider, client, cfg.Pipeline)
	closer := func() {
		client.Close()
		_ = provider.Close()
	}
	return pipe, client, closer, nil
}
