// Package mcp parses MCP command flags and wires the logger, the device API
// gateway and the session host.
package mcp

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	platformcmd "github.com/camsbiometrics/cams-mcp/internal/platform/cmd"
	"github.com/camsbiometrics/cams-mcp/internal/platform/branding"
	"github.com/camsbiometrics/cams-mcp/internal/platform/logging"
	"github.com/camsbiometrics/cams-mcp/internal/services/mcp/gateway"
	"github.com/camsbiometrics/cams-mcp/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	APIURL string `env:"CAMS_API_URL" envDefault:"https://mcp.camsbiometrics.com/api"`
	// APITimeout is the upstream call timeout in seconds.
	APITimeout float64 `env:"API_TIMEOUT" envDefault:"30"`
	Transport  string  `env:"CAMS_MCP_TRANSPORT" envDefault:"stdio"`
	HTTPAddr   string  `env:"CAMS_MCP_HTTP_ADDR" envDefault:"localhost:8081"`

	Log logging.Config
}

// ParseConfig parses environment and flags into a Config. Flags bound here
// override the environment only when given on the command line.
func ParseConfig(fs *flag.FlagSet, args []string, lookup func(string) (string, bool)) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.APIURL, "api-url", "", "Device API base URL (CAMS_API_URL)")
	fs.Float64Var(&cfg.APITimeout, "api-timeout", 0, "Device API timeout in seconds (API_TIMEOUT)")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", "", "HTTP server address for HTTP transport (CAMS_MCP_HTTP_ADDR)")
	fs.StringVar(&cfg.Transport, "transport", "", "Transport type: stdio or http (CAMS_MCP_TRANSPORT)")
	fs.StringVar(&cfg.Log.Level, "log-level", "", "Log level: DEBUG, INFO, WARNING, ERROR (LOG_LEVEL)")
	if err := platformcmd.ParseConfigFromArgs(&cfg, fs, args, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the command cannot start with.
func (c Config) Validate() error {
	if math.IsNaN(c.APITimeout) || math.IsInf(c.APITimeout, 0) || c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be a positive number of seconds, got %v", c.APITimeout)
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("CAMS_API_URL is required")
	}
	return c.Log.Validate()
}

// Timeout converts APITimeout to a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.APITimeout * float64(time.Second))
}

// Run starts the MCP session host and blocks until it stops.
func Run(ctx context.Context, cfg Config) error {
	return run(ctx, cfg, os.Stderr)
}

func run(ctx context.Context, cfg Config, console io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log, console)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Close()

	logger.Info("Starting "+branding.AppName+" MCP Server",
		"version", service.Version(),
		"api_url", cfg.APIURL,
		"timeout", cfg.Timeout().String(),
		"transport", cfg.Transport,
	)

	client, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.Timeout(),
		Logger:  logger.Logger,
		Version: service.Version(),
	})
	if err != nil {
		logger.Error("gateway configuration rejected", "error", err)
		return err
	}

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceMCP, func(ctx context.Context) error {
		return service.Run(ctx, service.Config{
			Transport: service.TransportKind(cfg.Transport),
			HTTPAddr:  cfg.HTTPAddr,
			Forwarder: client,
			Logger:    logger.Logger,
		})
	})
	if err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	logger.Info("server shutdown complete")
	return nil
}
