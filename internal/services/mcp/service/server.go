package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/camsbiometrics/cams-mcp/internal/platform/branding"
	"github.com/camsbiometrics/cams-mcp/internal/platform/logging"
	"github.com/camsbiometrics/cams-mcp/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// serverVersion identifies the MCP server version.
const serverVersion = "1.0.0"

// Version reports the server version to commands and the gateway User-Agent.
func Version() string {
	return serverVersion
}

// Phase is the session host lifecycle state.
type Phase int

const (
	// PhaseUninitialized holds until a transport is attached.
	PhaseUninitialized Phase = iota
	// PhaseHandshaking waits for the client's initialize exchange.
	PhaseHandshaking
	// PhaseServing dispatches tool invocations.
	PhaseServing
	// PhaseTerminated is final.
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseHandshaking:
		return "handshaking"
	case PhaseServing:
		return "serving"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
}

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.PingConnectionInput, any](),
	newMCPToolRegistrar[domain.FetchDeviceInventoryInput, any](),
	newMCPToolRegistrar[domain.DeviceSelectorInput, any](),
	newMCPToolRegistrar[domain.ResetDeviceQueueInput, any](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) (err error) {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	// mcp.AddTool panics on schemas it cannot resolve.
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("add tool %q: %v", tool.Name, recovered)
		}
	}()
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	return fmt.Errorf("tool %q has unsupported handler type %T", tool.Name, handler)
}

// registerTools validates the tool table and adds every tool to registrar.
func registerTools(registrar mcpRegistrationTarget, specs []domain.ToolSpec) error {
	if err := domain.ValidateSpecs(specs); err != nil {
		return fmt.Errorf("invalid tool table: %w", err)
	}
	for _, spec := range specs {
		if err := registrar.AddTool(spec.Tool(), spec.Handler); err != nil {
			return err
		}
	}
	return nil
}

// Server hosts the MCP session and tracks its lifecycle phase.
type Server struct {
	mcpServer *mcp.Server
	logger    *slog.Logger
	phase     Phase
	phaseMu   sync.RWMutex
}

// New builds the MCP server with every tool registered. It fails before any
// transport is attached when the tool table is malformed.
func New(forwarder domain.Forwarder, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	server := &Server{logger: logger}
	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    branding.ServerSlug,
		Title:   branding.AppName,
		Version: serverVersion,
	}, &mcp.ServerOptions{
		InitializedHandler: server.initialized,
	})

	specs := domain.Tools(domain.Dependencies{Forwarder: forwarder, Logger: logger})
	if err := registerTools(mcpServerRegistrationAdapter{server: server.mcpServer}, specs); err != nil {
		return nil, err
	}
	logger.Info("tools registered", "count", len(specs))
	return server, nil
}

// Phase returns the current lifecycle phase.
func (s *Server) Phase() Phase {
	if s == nil {
		return PhaseUninitialized
	}
	s.phaseMu.RLock()
	defer s.phaseMu.RUnlock()
	return s.phase
}

func (s *Server) setPhase(next Phase) {
	s.phaseMu.Lock()
	previous := s.phase
	s.phase = next
	s.phaseMu.Unlock()
	if previous != next {
		s.logger.Info("session phase changed", "from", previous.String(), "to", next.String())
	}
}

// initialized observes the client's notifications/initialized message.
func (s *Server) initialized(ctx context.Context, _ *mcp.InitializedRequest) {
	if s.Phase() == PhaseHandshaking {
		s.setPhase(PhaseServing)
	}
	s.logger.InfoContext(ctx, "server connected and ready")
}
