package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/camsbiometrics/cams-mcp/internal/platform/config"
	"github.com/camsbiometrics/cams-mcp/internal/platform/otel"
	"github.com/camsbiometrics/cams-mcp/internal/platform/timeouts"
)

// Service identifiers for command startup telemetry and CLI naming consistency.
const (
	ServiceMCP = "cams-mcp"
)

// ParseConfig loads environment defaults into cfg. A nil lookup reads the
// process environment.
func ParseConfig[T any](cfg *T, lookup func(string) (string, bool)) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnvWithLookup(cfg, lookup)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// ParseConfigFromArgs loads defaults from the environment and then parses
// flags. Flags bound to cfg fields override the environment only when set.
func ParseConfigFromArgs[T any](cfg *T, fs *flag.FlagSet, args []string, lookup func(string) (string, bool)) error {
	if err := ParseConfig(cfg, lookup); err != nil {
		return err
	}
	return ParseArgs(fs, args)
}

// RunWithTelemetry configures observability and executes a service run loop.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.TelemetryShutdown)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
