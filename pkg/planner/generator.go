package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/usegrapevine/grapevine/pkg/config"
	"github.com/usegrapevine/grapevine/pkg/graph"
	"github.com/usegrapevine/grapevine/pkg/llms"
)

// SubQueryGenerator translates extracted Filters into an executable Plan
// with one model call per attempt. Sub-queries naming unregistered tools
// or carrying unfixable parameters are dropped during validation.
type SubQueryGenerator struct {
	provider    llms.Provider
	registry    *graph.Registry
	temperature *float64
	maxRetries  int
}

func NewSubQueryGenerator(provider llms.Provider, registry *graph.Registry, cfg config.PlannerConfig) *SubQueryGenerator {
	return &SubQueryGenerator{
		provider:    provider,
		registry:    registry,
		temperature: cfg.GeneratorTemperature,
		maxRetries:  cfg.MaxRetries,
	}
}

// Generation is the outcome of one Generate run.
type Generation struct {
	Plan     Plan
	Usage    llms.Usage
	Duration time.Duration
	Attempts int

	// Err holds the final failure when no executable plan came back. The
	// Plan is empty in that case; the pipeline records the error, skips
	// execution, and answers deterministically.
	Err error
}

// planResponse is the wire shape of the model's answer.
type planResponse struct {
	SubQueries []SubQuery `json:"sub_queries"`
	Strategy   string     `json:"strategy"`
}

// Generate plans tool calls for the query. Empty filters short-circuit to
// an empty plan without a model call. Unparseable output is retried up to
// the configured limit. The error return is reserved for context
// cancellation.
func (g *SubQueryGenerator) Generate(ctx context.Context, query string, filters Filters) (*Generation, error) {
	started := time.Now()
	gen := &Generation{Plan: Plan{
		SubQueries:    []SubQuery{},
		OriginalQuery: query,
		FiltersUsed:   filters,
	}}

	if filters.IsEmpty() {
		gen.Duration = time.Since(started)
		return gen, nil
	}

	req := llms.Request{
		Messages: []llms.Message{
			llms.System(buildGeneratorSystemPrompt(g.registry.Catalog())),
			llms.User(buildGeneratorPrompt(query, filters)),
		},
		Temperature: g.temperature,
		Structured:  &llms.StructuredOutputConfig{Format: "json"},
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gen.Attempts = attempt + 1

		resp, err := g.provider.Generate(ctx, req)
		if err != nil {
			lastErr = err
			slog.Debug("sub-query generation call failed", "attempt", gen.Attempts, "error", err)
			continue
		}
		gen.Usage.Add(resp.Usage)

		plan, err := g.parsePlan(resp.Text, query, filters)
		if err != nil {
			lastErr = err
			slog.Debug("sub-query generation returned unusable output", "attempt", gen.Attempts, "error", err)
			continue
		}

		if plan.IsEmpty() {
			gen.Err = fmt.Errorf("plan contains no executable sub-queries")
			gen.Duration = time.Since(started)
			return gen, nil
		}

		gen.Plan = plan
		gen.Duration = time.Since(started)
		return gen, nil
	}

	gen.Err = fmt.Errorf("generating sub-queries after %d attempts: %w", gen.Attempts, lastErr)
	gen.Duration = time.Since(started)
	return gen, nil
}

// parsePlan decodes and validates the model's answer. Sub-queries that
// name unknown tools or fail parameter validation after coercion are
// dropped; priorities are clamped to 1..3.
func (g *SubQueryGenerator) parsePlan(text, query string, filters Filters) (Plan, error) {
	var raw planResponse
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Plan{}, fmt.Errorf("plan is not a JSON object: %w", err)
	}

	kept := make([]SubQuery, 0, len(raw.SubQueries))
	for _, sq := range raw.SubQueries {
		sq.Tool = strings.TrimSpace(sq.Tool)
		if !g.registry.Registered(sq.Tool) {
			slog.Debug("dropping sub-query naming unknown tool", "tool", sq.Tool)
			continue
		}
		sq.Params = coerceParams(g.registry, sq.Tool, sq.Params)
		if err := g.registry.ValidateParams(sq.Tool, sq.Params); err != nil {
			slog.Debug("dropping sub-query with invalid parameters", "tool", sq.Tool, "error", err)
			continue
		}
		if sq.Priority < 1 {
			sq.Priority = 1
		} else if sq.Priority > 3 {
			sq.Priority = 3
		}
		sq.Group = strings.TrimSpace(sq.Group)
		kept = append(kept, sq)
	}

	return Plan{
		SubQueries:    kept,
		Strategy:      normalizeStrategy(raw.Strategy, kept),
		OriginalQuery: query,
		FiltersUsed:   filters,
	}, nil
}
