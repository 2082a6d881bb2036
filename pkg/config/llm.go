package config

import (
	"fmt"
	"os"
	"time"
)

// LLMProvider identifies the LLM provider type.
type LLMProvider string

const (
	// LLMProviderOpenAI covers the OpenAI API and any OpenAI-compatible
	// endpoint reachable through BaseURL.
	LLMProviderOpenAI LLMProvider = "openai"
)

// LLMConfig configures the language model provider.
type LLMConfig struct {
	// Provider type. Only "openai" (and compatible endpoints) is supported.
	Provider LLMProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=LLM provider,enum=openai,default=openai"`

	// Model name (e.g., "gpt-4o-mini").
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier,default=gpt-4o-mini"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Custom base URL for the chat completions endpoint"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens to generate,minimum=1,default=4096"`

	// Timeout bounds a single completion request.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-request timeout,default=120s"`

	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=Retry attempts for transient failures,minimum=0,default=3"`

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty" jsonschema:"title=Retry Delay,description=Base backoff delay,default=1s"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = LLMProviderOpenAI
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	if c.Provider != LLMProviderOpenAI {
		return fmt.Errorf("unsupported provider: %s", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set OPENAI_API_KEY or llm.api_key)")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}
