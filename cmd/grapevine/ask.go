package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/usegrapevine/grapevine/pkg/pipeline"
)

// AskCmd runs one question through the pipeline and prints the answer.
type AskCmd struct {
	Query string `arg:"" help:"Question to ask about the graph."`

	Count   int           `help:"Number of people to return (1-10, 0 uses the configured default)."`
	JSON    bool          `help:"Print the structured result as JSON."`
	Timeout time.Duration `help:"Overall deadline for the query." default:"5m"`
}

func (c *AskCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, c.Timeout)
	defer cancelTimeout()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	pipe, _, closer, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer closer()

	result, runErr := pipe.Run(ctx, pipeline.Query{Text: c.Query, DesiredCount: c.Count})
	if result == nil {
		return runErr
	}

	if c.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return runErr
	}

	fmt.Println(result.FinalResponse)
	if len(result.Matches) > 0 {
		fmt.Printf("\nPeople in this answer (%d of %d ranked):\n", len(result.Matches), len(result.RankedIDs))
		for i, match := range result.Matches {
			fmt.Printf("  %d. %s (person %d)\n", i+1, match.Name, match.PersonID)
		}
	}
	return runErr
}
