package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/usegrapevine/grapevine/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	Format      string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved)."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := config.LoadConfigFile(ctx, c.Config)
	if err != nil {
		return printLoadError(c.Format, c.Config, err)
	}
	defer loader.Close()

	if c.PrintConfig {
		return printExpandedConfig(c.Format, c.Config, cfg)
	}

	printSuccess(c.Format, c.Config)
	return nil
}

// ValidationError is one validation failure in the JSON output.
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type validationOutput struct {
	Valid  bool              `json:"valid"`
	File   string            `json:"file"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func printLoadError(format, file string, err error) error {
	switch format {
	case "json":
		printJSONResult(false, file, []ValidationError{{Type: "load", Message: err.Error()}})
	case "verbose":
		fmt.Fprintf(os.Stderr, "Configuration Load Error\n")
		fmt.Fprintf(os.Stderr, "========================\n\n")
		fmt.Fprintf(os.Stderr, "File:    %s\n", file)
		fmt.Fprintf(os.Stderr, "Error:   %s\n", err.Error())
	default: // compact
		fmt.Fprintf(os.Stderr, "%s: load error: %s\n", file, err.Error())
	}
	return fmt.Errorf("config load failed")
}

func printSuccess(format, file string) {
	switch format {
	case "json":
		printJSONResult(true, file, nil)
	case "verbose":
		fmt.Fprintf(os.Stdout, "Configuration Validation Successful\n")
		fmt.Fprintf(os.Stdout, "===================================\n\n")
		fmt.Fprintf(os.Stdout, "File:   %s\n", file)
		fmt.Fprintf(os.Stdout, "Status: valid\n")
	default: // compact
		fmt.Fprintf(os.Stdout, "%s: valid\n", file)
	}
}

func printExpandedConfig(format, file string, cfg *config.Config) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
	default: // compact and verbose both print YAML
		fmt.Fprintf(os.Stdout, "# Expanded configuration from: %s\n", file)
		fmt.Fprintf(os.Stdout, "# (defaults applied, env vars resolved)\n\n")

		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as YAML: %w", err)
		}
		encoder.Close()
	}
	return nil
}

func printJSONResult(valid bool, file string, errors []ValidationError) {
	output := validationOutput{Valid: valid, File: file, Errors: errors}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}
