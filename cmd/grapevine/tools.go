package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/usegrapevine/grapevine/pkg/graph"
)

// ToolsCmd lists the graph tool catalog, either from the server's
// discovery endpoint or from the built-in registry.
type ToolsCmd struct {
	Local   bool          `help:"Print the built-in catalog instead of asking the server."`
	JSON    bool          `help:"Print the catalog as JSON."`
	Timeout time.Duration `help:"Discovery request deadline." default:"30s"`
}

func (c *ToolsCmd) Run(cli *CLI) error {
	if c.Local {
		return c.printLocal()
	}

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

	tools, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("tool discovery failed: %w", err)
	}

	if c.JSON {
		return printJSON(map[string]any{"tools": tools, "total": len(tools)})
	}

	fmt.Printf("%d tools registered on %s:\n\n", len(tools), gcfg.BaseURL)
	for _, tool := range tools {
		fmt.Printf("  %s\n", tool.Name)
		if tool.Description != "" {
			fmt.Printf("      %s\n", tool.Description)
		}
	}
	return nil
}

func (c *ToolsCmd) printLocal() error {
	registry := graph.NewRegistry()
	if c.JSON {
		tools := registry.List()
		return printJSON(map[string]any{"tools": tools, "total": len(tools)})
	}
	fmt.Println(registry.Catalog())
	return nil
}

func printJSON(body any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(body); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
