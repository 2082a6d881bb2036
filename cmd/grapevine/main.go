// Command grapevine answers natural-language questions about a
// professional-network knowledge graph.
//
// Usage:
//
//	grapevine ask "Find Python developers at Google" --config grapevine.yaml
//	grapevine serve --config grapevine.yaml
//	grapevine tools --local
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	grapevine "github.com/usegrapevine/grapevine"
	"github.com/usegrapevine/grapevine/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Ask      AskCmd      `cmd:"" help:"Ask one question and print the answer."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API server."`
	Tools    ToolsCmd    `cmd:"" help:"List the graph tool catalog."`
	Health   HealthCmd   `cmd:"" help:"Check the graph tool server."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the configuration."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(grapevine.GetVersion().String())
	return nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM, so
// in-flight tool and model calls stop promptly on Ctrl+C.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("grapevine"),
		kong.Description("Grapevine - natural-language search over a professional-network graph"),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
