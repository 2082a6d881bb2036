package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/usegrapevine/grapevine/pkg/graph"
)

// HealthCmd probes the graph tool server's liveness endpoint.
type HealthCmd struct {
	JSON    bool          `help:"Print the health payload as JSON."`
	Timeout time.Duration `help:"Probe deadline." default:"10s"`
}

func (c *HealthCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, c.Timeout)
	defer cancelTimeout()

	gcfg, release, err := loadGraphConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer release()

	client, err := graph.NewClient(gcfg)
	if err != nil {
		return fmt.Errorf("failed to create graph client: %w", err)
	}
	defer client.Close()

	payload, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("tool server at %s is unhealthy: %w", gcfg.BaseURL, err)
	}

	if c.JSON {
		return printJSON(payload)
	}

	fmt.Printf("tool server at %s is healthy\n", gcfg.BaseURL)
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, payload[k])
	}
	return nil
}
