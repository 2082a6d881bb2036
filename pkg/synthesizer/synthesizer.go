// Package synthesizer turns ranked person ids into the final grounded
// answer. Profiles for the top ids are fetched in parallel, rendered as
// compact summaries under a token budget, and composed into prose by a
// single model call. When there is nothing to compose from, the answer
// is written deterministically without touching the model.
package synthesizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/usegrapevine/grapevine/pkg/config"
	"github.com/usegrapevine/grapevine/pkg/graph"
	"github.com/usegrapevine/grapevine/pkg/llms"
	"github.com/usegrapevine/grapevine/pkg/planner"
)

const profileTool = "get_person_complete_profile"

// Caller is the slice of the graph client the synthesizer fetches through.
type Caller interface {
	Call(ctx context.Context, tool string, params map[string]any) (*graph.CallResult, error)
}

// FetchFailure records a profile fetch that did not produce a record.
type FetchFailure struct {
	PersonID int    `json:"person_id"`
	Message  string `json:"message"`
}

// Match pairs a presented person id with the display name read from
// their profile.
type Match struct {
	PersonID int    `json:"person_id"`
	Name     string `json:"name"`
}

// Input carries everything the earlier stages learned about the query.
type Input struct {
	Query        string
	Filters      planner.Filters
	RankedIDs    []int
	DesiredCount int
	TotalMatches int
}

// Synthesis is the composed answer plus its accounting.
type Synthesis struct {
	Response string

	// Deterministic is true when the answer was written without a model
	// call: no ranked ids, or no retrievable profiles.
	Deterministic bool

	// Matches lists the profiles that made it into the prompt, in rank
	// order.
	Matches []Match

	FetchFailures []FetchFailure
	Usage         llms.Usage
	Duration      time.Duration
}

// Synthesizer composes final answers. Safe for concurrent use.
type Synthesizer struct {
	provider llms.Provider
	caller   Caller
	counter  *tokenCounter
	cfg      config.SynthesisConfig
}

func New(provider llms.Provider, caller Caller, cfg config.SynthesisConfig) *Synthesizer {
	return &Synthesizer{
		provider: provider,
		caller:   caller,
		counter:  newTokenCounter(provider.ModelName()),
		cfg:      cfg,
	}
}

// Synthesize fetches profiles for the top DesiredCount ranked ids and
// composes the answer. Individual fetch failures are tolerated and
// recorded; a failed composing call is fatal and comes back as the
// error, with the partial Synthesis kept for diagnostics. The composing
// call is never retried.
func (s *Synthesizer) Synthesize(ctx context.Context, input Input) (*Synthesis, error) {
	started := time.Now()
	syn := &Synthesis{Matches: []Match{}, FetchFailures: []FetchFailure{}}

	if len(input.RankedIDs) == 0 {
		syn.Response = noResultsResponse(input.Query)
		syn.Deterministic = true
		syn.Duration = time.Since(started)
		return syn, nil
	}

	limit := input.DesiredCount
	if limit < 1 || limit > len(input.RankedIDs) {
		limit = len(input.RankedIDs)
	}
	ids := input.RankedIDs[:limit]

	profiles, failures := s.fetchProfiles(ctx, ids)
	syn.FetchFailures = failures

	if err := ctx.Err(); err != nil {
		syn.Duration = time.Since(started)
		return syn, fmt.Errorf("synthesis cancelled: %w", err)
	}

	summaries, matches := s.fitSummaries(ids, profiles)
	syn.Matches = matches
	if len(matches) == 0 {
		syn.Response = noProfilesResponse(input.TotalMatches)
		syn.Deterministic = true
		syn.Duration = time.Since(started)
		return syn, nil
	}

	request := llms.Request{
		Messages: []llms.Message{
			llms.System(buildComposerSystemPrompt(s.cfg.ResponseMinWords, s.cfg.ResponseMaxWords)),
			llms.User(buildComposerPrompt(input, matches, summaries)),
		},
		Temperature: s.cfg.Temperature,
	}
	response, err := s.provider.Generate(ctx, request)
	if err != nil {
		syn.Duration = time.Since(started)
		return syn, fmt.Errorf("composing response: %w", err)
	}

	syn.Response = strings.TrimSpace(response.Text)
	syn.Usage = response.Usage
	syn.Duration = time.Since(started)
	return syn, nil
}

// fetchProfiles retrieves profile records in parallel. Results stay
// aligned with ids; a nil slot means that fetch failed.
func (s *Synthesizer) fetchProfiles(ctx context.Context, ids []int) ([]Profile, []FetchFailure) {
	profiles := make([]Profile, len(ids))
	failures := make([]*FetchFailure, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id // capture for goroutine
		g.Go(func() error {
			result, err := s.caller.Call(gctx, profileTool, map[string]any{"person_id": id})
			if err != nil {
				slog.Warn("profile fetch failed", "person_id", id, "error", err)
				failures[i] = &FetchFailure{PersonID: id, Message: err.Error()}
				return nil
			}
			profile := asProfile(result.Payload)
			if profile == nil {
				failures[i] = &FetchFailure{PersonID: id, Message: "profile payload held no record"}
				return nil
			}
			profiles[i] = profile
			return nil
		})
	}
	_ = g.Wait()

	collected := make([]FetchFailure, 0, len(ids))
	for _, f := range failures {
		if f != nil {
			collected = append(collected, *f)
		}
	}
	return profiles, collected
}

// fitSummaries renders fetched profiles in rank order and keeps adding
// them until the token budget is spent. The top profile is always
// included, even when it alone exceeds the budget.
func (s *Synthesizer) fitSummaries(ids []int, profiles []Profile) ([]string, []Match) {
	var summaries []string
	matches := []Match{}
	used := 0
	for i, profile := range profiles {
		if profile == nil {
			continue
		}
		summary := formatProfile(ids[i], profile)
		tokens := s.counter.count(summary)
		if len(matches) > 0 && used+tokens > s.cfg.ProfileTokenBudget {
			slog.Debug("profile summary dropped, token budget spent",
				"person_id", ids[i], "tokens", tokens, "used", used)
			break
		}
		summaries = append(summaries, summary)
		matches = append(matches, Match{PersonID: ids[i], Name: profile.displayName(ids[i])})
		used += tokens
	}
	return summaries, matches
}
