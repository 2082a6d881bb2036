package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/usegrapevine/grapevine/pkg/config"
)

// SchemaCmd generates JSON Schema from the config structs, for editor
// completion and config tooling. Output goes to stdout.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://usegrapevine.dev/schemas/config.json"
	schema.Title = "Grapevine Configuration Schema"
	schema.Description = "Complete configuration schema for the grapevine query pipeline"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []interface{}{
		map[string]interface{}{
			"llm": map[string]interface{}{
				"model":   "gpt-4o-mini",
				"api_key": "${OPENAI_API_KEY}",
			},
			"graph": map[string]interface{}{
				"base_url": "https://graph.example.com",
				"api_key":  "${GRAPH_API_KEY}",
			},
			"pipeline": map[string]interface{}{
				"desired_count":   5,
				"max_concurrency": 8,
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
