package main

import (
	"fmt"
	"os"

	"github.com/usegrapevine/grapevine/pkg/logger"
)

const (
	logLevelEnvVar  = "LOG_LEVEL"
	logFileEnvVar   = "LOG_FILE"
	logFormatEnvVar = "LOG_FORMAT"
)

// initLogger wires the process logger before any command runs.
// Priority: CLI flags > environment variables > defaults. The returned
// cleanup closes the log file when one was opened.
func initLogger(cliLevel, cliFile, cliFormat string) (func(), error) {
	level := firstNonEmpty(cliLevel, os.Getenv(logLevelEnvVar), "info")
	file := firstNonEmpty(cliFile, os.Getenv(logFileEnvVar))
	format := firstNonEmpty(cliFormat, os.Getenv(logFormatEnvVar), "simple")

	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if file != "" {
		f, closeFile, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
		cleanup = closeFile
	}

	logger.Init(parsed, output, format)
	return cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
