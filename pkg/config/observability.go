package config

import (
	"fmt"
	"time"
)

// MetricsConfig configures OTel metrics with the Prometheus exporter.
type MetricsConfig struct {
	// Enabled turns on metrics collection. Metrics are served on the
	// HTTP server's /metrics endpoint.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Enable metrics collection,default=false"`
}

// SetDefaults applies default values.
func (c *MetricsConfig) SetDefaults() {}

// Validate checks the metrics configuration.
func (c *MetricsConfig) Validate() error { return nil }

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on distributed tracing.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Enable distributed tracing,default=false"`

	// Exporter is "otlp" (gRPC) or "stdout".
	Exporter string `yaml:"exporter,omitempty" json:"exporter,omitempty" jsonschema:"title=Exporter,description=Trace exporter,enum=otlp,enum=stdout,default=otlp"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,description=OTLP collector endpoint,default=localhost:4317"`

	// SamplingRate controls what fraction of traces are sampled, 0.0 to 1.0.
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"title=Sampling Rate,description=Fraction of traces sampled,minimum=0,maximum=1,default=1"`

	// ServiceName identifies this service in traces.
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty" jsonschema:"title=Service Name,description=Service name reported in traces,default=grapevine"`

	// Insecure disables TLS to the collector. Defaults to true for local
	// development.
	Insecure *bool `yaml:"insecure,omitempty" json:"insecure,omitempty" jsonschema:"title=Insecure,description=Disable TLS to the collector,default=true"`

	// Timeout bounds exporter operations.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Exporter operation timeout,default=10s"`
}

// SetDefaults applies default values.
func (c *TracingConfig) SetDefaults() {
	if c.Exporter == "" {
		c.Exporter = "otlp"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.ServiceName == "" {
		c.ServiceName = "grapevine"
	}
	if c.Insecure == nil {
		c.Insecure = BoolPtr(true)
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks the tracing configuration.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	switch c.Exporter {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("invalid exporter %q (valid: otlp, stdout)", c.Exporter)
	}
	if c.Exporter == "otlp" && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required for the otlp exporter")
	}
	return nil
}

// IsInsecure reports whether the collector connection skips TLS.
func (c *TracingConfig) IsInsecure() bool {
	if c.Insecure == nil {
		return true
	}
	return *c.Insecure
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" jsonschema:"title=Metrics,description=Metrics settings"`
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty" jsonschema:"title=Tracing,description=Tracing settings"`
}

// SetDefaults applies default values.
func (c *ObservabilityConfig) SetDefaults() {
	c.Metrics.SetDefaults()
	c.Tracing.SetDefaults()
}

// Validate checks the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}
