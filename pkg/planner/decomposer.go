package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/usegrapevine/grapevine/pkg/config"
	"github.com/usegrapevine/grapevine/pkg/llms"
)

// Decomposer extracts typed Filters from a natural-language question with
// one model call per attempt.
type Decomposer struct {
	provider    llms.Provider
	temperature *float64
	maxRetries  int
}

func NewDecomposer(provider llms.Provider, cfg config.PlannerConfig) *Decomposer {
	return &Decomposer{
		provider:    provider,
		temperature: cfg.DecomposerTemperature,
		maxRetries:  cfg.MaxRetries,
	}
}

// Decomposition is the outcome of one Decompose run.
type Decomposition struct {
	Filters  Filters
	Usage    llms.Usage
	Duration time.Duration
	Attempts int

	// Err holds the final failure when every attempt produced unusable
	// output. Filters is empty in that case; the pipeline records the
	// error and proceeds.
	Err error
}

// Decompose extracts filters from the query. An empty query short-circuits
// to empty filters without a model call. Unparseable output is retried up
// to the configured limit; exhausting it is not fatal, the returned
// Decomposition carries empty Filters with Err set. The error return is
// reserved for context cancellation.
func (d *Decomposer) Decompose(ctx context.Context, query string) (*Decomposition, error) {
	started := time.Now()
	dec := &Decomposition{Filters: emptyFilters()}

	if strings.TrimSpace(query) == "" {
		dec.Duration = time.Since(started)
		return dec, nil
	}

	req := llms.Request{
		Messages: []llms.Message{
			llms.System(decomposerSystemPrompt),
			llms.User(buildDecomposerPrompt(query)),
		},
		Temperature: d.temperature,
		Structured:  &llms.StructuredOutputConfig{Format: "json"},
	}

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec.Attempts = attempt + 1

		resp, err := d.provider.Generate(ctx, req)
		if err != nil {
			lastErr = err
			slog.Debug("filter extraction call failed", "attempt", dec.Attempts, "error", err)
			continue
		}
		dec.Usage.Add(resp.Usage)

		filters, err := parseFilters(resp.Text)
		if err != nil {
			lastErr = err
			slog.Debug("filter extraction returned unusable output", "attempt", dec.Attempts, "error", err)
			continue
		}

		dec.Filters = filters
		dec.Duration = time.Since(started)
		return dec, nil
	}

	dec.Err = fmt.Errorf("extracting filters after %d attempts: %w", dec.Attempts, lastErr)
	dec.Duration = time.Since(started)
	return dec, nil
}

func parseFilters(text string) (Filters, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Filters{}, fmt.Errorf("filters are not a JSON object: %w", err)
	}
	return normalizeFilters(raw), nil
}
