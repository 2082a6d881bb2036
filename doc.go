// Package grapevine answers natural-language questions about a
// professional-network knowledge graph.
//
// Grapevine turns a question like "Find Python developers who worked at
// fintech companies" into a set of typed filters, plans a batch of graph
// tool calls against a remote JSON-RPC tool server, executes them in
// parallel, combines the results with set algebra, and composes a single
// grounded answer from the matching profiles.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/usegrapevine/grapevine/cmd/grapevine@latest
//
// Create a configuration file:
//
//	llm:
//	  model: "gpt-4o-mini"
//	  api_key: "${OPENAI_API_KEY}"
//
//	graph:
//	  base_url: "https://graph.example.com"
//	  api_key: "${GRAPH_API_KEY}"
//
// Ask a question:
//
//	grapevine ask "Who knows Kubernetes and worked at a bank?" --config grapevine.yaml
//
// Or run the HTTP API:
//
//	grapevine serve --config grapevine.yaml
//
// # Using as Go Library
//
// Import the pipeline package and wire the stages yourself:
//
//	import (
//	    "github.com/usegrapevine/grapevine/pkg/graph"
//	    "github.com/usegrapevine/grapevine/pkg/llms"
//	    "github.com/usegrapevine/grapevine/pkg/pipeline"
//	)
//
// # Architecture
//
// One query owns one pipeline:
//
//	Query → Decomposer → SubQueryGenerator → Executor → Synthesizer → Answer
//
// The two planning stages each make a single structured LLM call. The
// Executor fans sub-queries out to the tool server concurrently and merges
// the returned person ids according to the plan strategy. The Synthesizer
// fetches the winning profiles in parallel and makes one composing LLM call.
// Nothing is persisted between queries.
package grapevine
