package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// GraphTLSConfig holds TLS options for the graph server connection.
type GraphTLSConfig struct {
	// InsecureSkipVerify disables certificate verification. Dev/test only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty" jsonschema:"title=Insecure Skip Verify,description=Disable TLS certificate verification,default=false"`

	// CACertificate is a path to a custom CA certificate file.
	CACertificate string `yaml:"ca_certificate,omitempty" json:"ca_certificate,omitempty" jsonschema:"title=CA Certificate,description=Path to a custom CA certificate"`
}

// GraphConfig configures the remote graph tool server client.
type GraphConfig struct {
	// BaseURL of the tool server, without a trailing slash.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Tool server base URL"`

	// APIKey sent as X-API-Key on every authenticated request.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=Tool server API key (use ${ENV_VAR})"`

	// CallTimeout bounds a single tool call attempt.
	CallTimeout time.Duration `yaml:"call_timeout,omitempty" json:"call_timeout,omitempty" jsonschema:"title=Call Timeout,description=Per-attempt timeout for tool calls,default=30s"`

	// MaxRetries bounds retry attempts for transport failures.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=Retry attempts for transport failures,minimum=0,default=3"`

	// RetryBaseDelay is the base delay for exponential backoff.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay,omitempty" json:"retry_base_delay,omitempty" jsonschema:"title=Retry Base Delay,description=Base backoff delay between retries,default=500ms"`

	// MaxIdleConns caps the connection pool across all hosts.
	MaxIdleConns int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty" jsonschema:"title=Max Idle Connections,description=Connection pool size,minimum=1,default=32"`

	// MaxIdleConnsPerHost caps the connection pool per host.
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host,omitempty" json:"max_idle_conns_per_host,omitempty" jsonschema:"title=Max Idle Connections Per Host,description=Connection pool size per host,minimum=1,default=16"`

	// TLS holds optional TLS settings.
	TLS *GraphTLSConfig `yaml:"tls,omitempty" json:"tls,omitempty" jsonschema:"title=TLS,description=TLS settings for the tool server connection"`
}

// SetDefaults applies default values.
func (c *GraphConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = os.Getenv("GRAPH_BASE_URL")
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GRAPH_API_KEY")
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 32
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = 16
	}
}

// Validate checks the graph configuration.
func (c *GraphConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required (set GRAPH_BASE_URL or graph.base_url)")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("base_url %q is not a valid URL", c.BaseURL)
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set GRAPH_API_KEY or graph.api_key)")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}
