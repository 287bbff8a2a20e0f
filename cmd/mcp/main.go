package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	mcpcmd "github.com/camsbiometrics/cams-mcp/internal/cmd/mcp"
	"github.com/camsbiometrics/cams-mcp/internal/platform/config"
)

// main starts the Cams Biometrics MCP server on stdio or HTTP.
func main() {
	cfg, err := mcpcmd.ParseConfig(flag.CommandLine, os.Args[1:], os.LookupEnv)
	if err != nil {
		config.Exitf("parse config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mcpcmd.Run(ctx, cfg); err != nil {
		stop()
		config.Exitf("failed to serve MCP: %v", err)
	}
}
