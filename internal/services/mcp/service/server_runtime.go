package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/camsbiometrics/cams-mcp/internal/platform/timeouts"
	"github.com/camsbiometrics/cams-mcp/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var listenTCP = net.Listen

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over streamable HTTP.
	TransportHTTP TransportKind = "http"
)

// defaultHTTPAddr binds to loopback only.
const defaultHTTPAddr = "localhost:8081"

// httpEndpoint is where the streamable handler is mounted.
const httpEndpoint = "/mcp"

// Config configures the session host.
type Config struct {
	Transport TransportKind
	// HTTPAddr is used by TransportHTTP; defaults to localhost:8081.
	HTTPAddr  string
	Forwarder domain.Forwarder
	Logger    *slog.Logger
}

// Run builds the server and blocks until the session ends or ctx is done.
// Cancellation and a clean client disconnect return nil.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	if cfg.Transport != TransportStdio && cfg.Transport != TransportHTTP {
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}

	server, err := New(cfg.Forwarder, cfg.Logger)
	if err != nil {
		return err
	}

	switch cfg.Transport {
	case TransportHTTP:
		httpAddr := cfg.HTTPAddr
		if httpAddr == "" {
			httpAddr = defaultHTTPAddr
		}
		return server.ServeHTTP(ctx, httpAddr)
	default:
		return server.Serve(ctx)
	}
}

// Serve runs one session on stdio.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport runs a single session over transport. Per-invocation
// failures are answered inside the session; only transport failures end it
// with an error.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.setPhase(PhaseHandshaking)
	err := s.mcpServer.Run(ctx, transport)
	s.setPhase(PhaseTerminated)

	switch {
	case err == nil, errors.Is(err, io.EOF):
		s.logger.Info("session closed by client")
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Info("server stopped", "reason", err.Error())
		return nil
	default:
		s.logger.Error("session failed", "error", err)
		return fmt.Errorf("serve MCP: %w", err)
	}
}

// ServeHTTP listens on addr and serves streamable HTTP sessions until ctx is
// done.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	listener, err := listenTCP("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.serveHTTPListener(ctx, listener)
}

func (s *Server) serveHTTPListener(ctx context.Context, listener net.Listener) error {
	if s == nil || s.mcpServer == nil {
		_ = listener.Close()
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	mux := http.NewServeMux()
	mux.Handle(httpEndpoint, mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil))
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	s.setPhase(PhaseHandshaking)
	s.logger.Info("serving MCP over HTTP", "addr", listener.Addr().String(), "endpoint", httpEndpoint)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		s.setPhase(PhaseTerminated)
		if err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		s.logger.Info("server stopped", "reason", ctx.Err().Error())
		return nil
	case err := <-serveErr:
		s.setPhase(PhaseTerminated)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("HTTP transport failed", "error", err)
		return fmt.Errorf("serve MCP over HTTP: %w", err)
	}
}
