package synthesizer

import (
	"fmt"
	"strings"
)

const composerRules = `You are the final writer for a people-search system backed by a
professional knowledge graph. Answer the user's question using only the
candidate profiles provided with it.

Rules:
1. Ground every statement in the supplied profiles. Never invent names,
   employers, dates, or skills.
2. Present each candidate by name and say what in their profile makes
   them relevant to the question.
3. Keep the given candidate order; the list is already ranked by match
   strength.
4. If no candidate fully satisfies the question, say so and describe the
   closest matches instead of stretching the evidence.
5. Write a recruiter-style briefing of %d to %d words: a short overview
   of the field, then a paragraph per candidate, then a closing
   recommendation.`

func buildComposerSystemPrompt(minWords, maxWords int) string {
	return fmt.Sprintf(composerRules, minWords, maxWords)
}

func buildComposerPrompt(input Input, matches []Match, summaries []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", strings.TrimSpace(input.Query))
	if !input.Filters.IsEmpty() {
		fmt.Fprintf(&b, "Search criteria:\n%s\n\n", input.Filters.Summary())
	}
	fmt.Fprintf(&b, "%d people matched in total; the top %d profiles follow.\n\n",
		input.TotalMatches, len(matches))
	b.WriteString(strings.Join(summaries, "\n\n"))
	return b.String()
}

func noResultsResponse(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "No people matched this search. The question was empty, so no criteria could be extracted."
	}
	return fmt.Sprintf("No people in the graph matched %q. "+
		"Broader skill or company terms, alternate spellings, or fewer constraints usually help.", query)
}

func noProfilesResponse(totalMatches int) string {
	return fmt.Sprintf("%d people matched the search, but none of their profiles could be "+
		"retrieved from the graph, so no grounded answer can be written. "+
		"The tool server may be degraded; retrying shortly usually recovers this.", totalMatches)
}
