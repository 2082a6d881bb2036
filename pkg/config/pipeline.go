package config

import "fmt"

// MaxDesiredCount is the hard ceiling on requested result counts.
const MaxDesiredCount = 10

// PlannerConfig configures the two planning stages.
type PlannerConfig struct {
	// DecomposerTemperature for the filter extraction call.
	DecomposerTemperature *float64 `yaml:"decomposer_temperature,omitempty" json:"decomposer_temperature,omitempty" jsonschema:"title=Decomposer Temperature,description=Sampling temperature for filter extraction,minimum=0,maximum=2,default=0.3"`

	// GeneratorTemperature for the sub-query generation call.
	GeneratorTemperature *float64 `yaml:"generator_temperature,omitempty" json:"generator_temperature,omitempty" jsonschema:"title=Generator Temperature,description=Sampling temperature for sub-query generation,minimum=0,maximum=2,default=0.4"`

	// MaxRetries bounds reattempts when the model returns unparseable output.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=Retries on unparseable model output,minimum=0,default=2"`
}

// SetDefaults applies default values.
func (c *PlannerConfig) SetDefaults() {
	if c.DecomposerTemperature == nil {
		c.DecomposerTemperature = Float64Ptr(0.3)
	}
	if c.GeneratorTemperature == nil {
		c.GeneratorTemperature = Float64Ptr(0.4)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
}

// Validate checks the planner configuration.
func (c *PlannerConfig) Validate() error {
	if t := c.DecomposerTemperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("decomposer_temperature must be in [0, 2]")
	}
	if t := c.GeneratorTemperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("generator_temperature must be in [0, 2]")
	}
	return nil
}

// SynthesisConfig configures the answer composition stage.
type SynthesisConfig struct {
	// Temperature for the composing call.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,description=Sampling temperature for answer composition,minimum=0,maximum=2,default=0.7"`

	// ProfileTokenBudget caps the tokens spent on profile summaries in the
	// composition prompt.
	ProfileTokenBudget int `yaml:"profile_token_budget,omitempty" json:"profile_token_budget,omitempty" jsonschema:"title=Profile Token Budget,description=Token budget for profile summaries,minimum=256,default=6000"`

	// ResponseMinWords and ResponseMaxWords bound the requested answer length.
	ResponseMinWords int `yaml:"response_min_words,omitempty" json:"response_min_words,omitempty" jsonschema:"title=Response Min Words,description=Lower bound hint for answer length,default=500"`
	ResponseMaxWords int `yaml:"response_max_words,omitempty" json:"response_max_words,omitempty" jsonschema:"title=Response Max Words,description=Upper bound hint for answer length,default=800"`
}

// SetDefaults applies default values.
func (c *SynthesisConfig) SetDefaults() {
	if c.Temperature == nil {
		c.Temperature = Float64Ptr(0.7)
	}
	if c.ProfileTokenBudget == 0 {
		c.ProfileTokenBudget = 6000
	}
	if c.ResponseMinWords == 0 {
		c.ResponseMinWords = 500
	}
	if c.ResponseMaxWords == 0 {
		c.ResponseMaxWords = 800
	}
}

// Validate checks the synthesis configuration.
func (c *SynthesisConfig) Validate() error {
	if t := c.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("temperature must be in [0, 2]")
	}
	if c.ResponseMinWords > c.ResponseMaxWords {
		return fmt.Errorf("response_min_words exceeds response_max_words")
	}
	return nil
}

// PipelineConfig configures the query pipeline.
type PipelineConfig struct {
	// DesiredCount is the default number of people to return.
	DesiredCount int `yaml:"desired_count,omitempty" json:"desired_count,omitempty" jsonschema:"title=Desired Count,description=Default number of results,minimum=1,maximum=10,default=5"`

	// MaxConcurrency caps in-flight sub-queries during execution.
	MaxConcurrency int `yaml:"max_concurrency,omitempty" json:"max_concurrency,omitempty" jsonschema:"title=Max Concurrency,description=Maximum parallel sub-queries,minimum=1,default=8"`

	// Planner configures the two planning stages.
	Planner PlannerConfig `yaml:"planner,omitempty" json:"planner,omitempty" jsonschema:"title=Planner,description=Planning stage settings"`

	// Synthesis configures answer composition.
	Synthesis SynthesisConfig `yaml:"synthesis,omitempty" json:"synthesis,omitempty" jsonschema:"title=Synthesis,description=Answer composition settings"`
}

// SetDefaults applies default values.
func (c *PipelineConfig) SetDefaults() {
	if c.DesiredCount == 0 {
		c.DesiredCount = 5
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 8
	}
	c.Planner.SetDefaults()
	c.Synthesis.SetDefaults()
}

// Validate checks the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	if c.DesiredCount < 1 || c.DesiredCount > MaxDesiredCount {
		return fmt.Errorf("desired_count must be in [1, %d]", MaxDesiredCount)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1")
	}
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	if err := c.Synthesis.Validate(); err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}
	return nil
}
