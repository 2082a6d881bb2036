// Package config defines the grapevine configuration model.
//
// Configuration is loaded from a YAML file, environment variables are
// expanded (${VAR}, ${VAR:-default}, $VAR), defaults applied, and the
// result validated. Every section follows the same convention: a struct
// with yaml tags plus SetDefaults and Validate methods.
package config

import "fmt"

// Config is the root configuration for a grapevine process.
type Config struct {
	// LLM configures the language model used by the planner and synthesizer.
	LLM LLMConfig `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=Language model provider settings"`

	// Graph configures the remote graph tool server.
	Graph GraphConfig `yaml:"graph,omitempty" json:"graph,omitempty" jsonschema:"title=Graph,description=Graph tool server settings"`

	// Pipeline configures query planning, execution, and synthesis.
	Pipeline PipelineConfig `yaml:"pipeline,omitempty" json:"pipeline,omitempty" jsonschema:"title=Pipeline,description=Query pipeline settings"`

	// Server configures the HTTP API surface.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server,description=HTTP server settings"`

	// Logging configures log level, format, and destination.
	Logging LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" jsonschema:"title=Logging,description=Logging settings"`

	// Observability configures metrics and tracing.
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability,description=Metrics and tracing settings"`
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Graph.SetDefaults()
	c.Pipeline.SetDefaults()
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Graph.Validate(); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool { return &b }

// Float64Ptr returns a pointer to the given float64.
func Float64Ptr(f float64) *float64 { return &f }

// IntPtr returns a pointer to the given int.
func IntPtr(i int) *int { return &i }
