package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	// Host to bind. Empty binds all interfaces.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Bind address,default=0.0.0.0"`

	// Port to listen on.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Listen port,minimum=1,maximum=65535,default=8080"`

	// APIKeys accepted in the X-API-Key header. Empty disables auth.
	APIKeys []string `yaml:"api_keys,omitempty" json:"api_keys,omitempty" jsonschema:"title=API Keys,description=Accepted client API keys (empty disables auth)"`

	// ReadTimeout bounds reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty" jsonschema:"title=Read Timeout,description=HTTP read timeout,default=30s"`

	// WriteTimeout bounds writing a response. Queries can run for a while,
	// so this defaults well above the pipeline's own deadlines.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty" jsonschema:"title=Write Timeout,description=HTTP write timeout,default=5m"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty" jsonschema:"title=Shutdown Timeout,description=Graceful shutdown deadline,default=15s"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in [1, 65535]")
	}
	return nil
}

// Address returns the host:port bind address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
