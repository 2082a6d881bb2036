package config

import "fmt"

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"title=Level,description=Log level,enum=debug,enum=info,enum=warn,enum=error,default=info"`

	// Format is "simple" or "verbose".
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"title=Format,description=Log format,enum=simple,enum=verbose,default=simple"`

	// File redirects logs to a file instead of stderr.
	File string `yaml:"file,omitempty" json:"file,omitempty" jsonschema:"title=File,description=Log file path (empty logs to stderr)"`
}

// SetDefaults applies default values.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown level: %s", c.Level)
	}
	switch c.Format {
	case "simple", "verbose":
	default:
		return fmt.Errorf("unknown format: %s", c.Format)
	}
	return nil
}
