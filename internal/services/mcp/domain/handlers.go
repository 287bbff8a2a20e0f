package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/camsbiometrics/cams-mcp/internal/platform/id"
	"github.com/camsbiometrics/cams-mcp/internal/platform/logging"
	"github.com/camsbiometrics/cams-mcp/internal/platform/requestctx"
	"github.com/camsbiometrics/cams-mcp/internal/services/mcp/gateway"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PingReply is returned by ping_connection.
const PingReply = "Connection to server is successful."

// Forwarder performs one upstream call. *gateway.Client implements it.
type Forwarder interface {
	Forward(ctx context.Context, req gateway.Request) gateway.Result
}

// Dependencies are the collaborators shared by every handler.
type Dependencies struct {
	Forwarder Forwarder
	Logger    *slog.Logger
	// NewInvocationID defaults to id.NewID.
	NewInvocationID func() (string, error)
}

// PingConnectionInput takes no arguments.
type PingConnectionInput struct{}

// FetchDeviceInventoryInput represents the MCP tool input for the inventory fetch.
type FetchDeviceInventoryInput struct {
	ClientKey string `json:"client_key"`
	PassCode  string `json:"pass_code"`
}

// DeviceSelectorInput is shared by the tools that accept an optional serial
// number and fall back to every device.
type DeviceSelectorInput struct {
	ClientKey    string `json:"client_key"`
	PassCode     string `json:"pass_code"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// ResetDeviceQueueInput targets exactly one device.
type ResetDeviceQueueInput struct {
	ClientKey    string `json:"client_key"`
	PassCode     string `json:"pass_code"`
	SerialNumber string `json:"serial_number"`
}

// route binds a business tool to its endpoint and reply texts.
type route struct {
	tool string
	path string
	// emptyReply answers a call that produced no usable data.
	emptyReply string
	// action completes "Failed to ..." for unexpected handler failures.
	action string
}

var (
	inventoryRoute = route{
		tool:       ToolFetchDeviceInventory,
		path:       gateway.PathInventory,
		emptyReply: errorPayload("Unable to fetch machine list"),
		action:     "fetch machine list",
	}
	healthRoute = route{
		tool:       ToolCheckDeviceHealth,
		path:       gateway.PathHealth,
		emptyReply: errorPayload("Unable to fetch machine status details"),
		action:     "check device health",
	}
	queueResetRoute = route{
		tool:       ToolResetDeviceQueue,
		path:       gateway.PathQueueReset,
		emptyReply: "Unable to restart the queue of this serial number.",
		action:     "reset queue",
	}
	activityRoute = route{
		tool:       ToolAnalyzeDeviceActivity,
		path:       gateway.PathActivity,
		emptyReply: "Unable to fetch machine transaction list.",
		action:     "analyze activity",
	}
	migrationRoute = route{
		tool:       ToolMigrationStatus,
		path:       gateway.PathMigration,
		emptyReply: "Unable to fetch machine migration status.",
		action:     "fetch migration status",
	}
)

type handlers struct {
	forwarder       Forwarder
	logger          *slog.Logger
	newInvocationID func() (string, error)
}

func newHandlers(deps Dependencies) handlers {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	newInvocationID := deps.NewInvocationID
	if newInvocationID == nil {
		newInvocationID = id.NewID
	}
	return handlers{
		forwarder:       deps.Forwarder,
		logger:          logger,
		newInvocationID: newInvocationID,
	}
}

func (h handlers) pingConnection() mcp.ToolHandlerFor[PingConnectionInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ PingConnectionInput) (*mcp.CallToolResult, any, error) {
		h.logger.InfoContext(ctx, "tool called", "tool", ToolPingConnection)
		return textResult(PingReply), nil, nil
	}
}

func (h handlers) fetchDeviceInventory() mcp.ToolHandlerFor[FetchDeviceInventoryInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input FetchDeviceInventoryInput) (*mcp.CallToolResult, any, error) {
		return h.forward(ctx, inventoryRoute, credentials(input.ClientKey, input.PassCode), nil), nil, nil
	}
}

func (h handlers) checkDeviceHealth() mcp.ToolHandlerFor[DeviceSelectorInput, any] {
	return h.selectorHandler(healthRoute)
}

func (h handlers) analyzeDeviceActivity() mcp.ToolHandlerFor[DeviceSelectorInput, any] {
	return h.selectorHandler(activityRoute)
}

func (h handlers) migrationStatus() mcp.ToolHandlerFor[DeviceSelectorInput, any] {
	return h.selectorHandler(migrationRoute)
}

func (h handlers) resetDeviceQueue() mcp.ToolHandlerFor[ResetDeviceQueueInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResetDeviceQueueInput) (*mcp.CallToolResult, any, error) {
		serial := input.SerialNumber
		return h.forward(ctx, queueResetRoute, credentials(input.ClientKey, input.PassCode), &serial), nil, nil
	}
}

func (h handlers) selectorHandler(r route) mcp.ToolHandlerFor[DeviceSelectorInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeviceSelectorInput) (*mcp.CallToolResult, any, error) {
		serial := selectSerialNumber(input.SerialNumber)
		return h.forward(ctx, r, credentials(input.ClientKey, input.PassCode), &serial), nil, nil
	}
}

// forward runs one upstream call and shapes the reply. Panics raised while
// forwarding or formatting are recovered here so the session keeps serving.
func (h handlers) forward(ctx context.Context, r route, creds gateway.Credentials, serial *string) (reply *mcp.CallToolResult) {
	logger := h.logger.With("tool", r.tool)
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.ErrorContext(ctx, "tool handler failed", "panic", fmt.Sprint(recovered), "stack", string(debug.Stack()))
			reply = textResult(errorPayload(fmt.Sprintf("Failed to %s: %v", r.action, recovered)))
		}
	}()

	invocationID, err := h.newInvocationID()
	if err != nil {
		logger.ErrorContext(ctx, "tool handler failed", "error", err)
		return textResult(errorPayload(fmt.Sprintf("Failed to %s: generate invocation id: %v", r.action, err)))
	}
	logger = logger.With("invocation_id", invocationID)
	ctx = requestctx.WithInvocationID(ctx, invocationID)
	if serial != nil {
		logger.InfoContext(ctx, "tool called", "serial_number", *serial)
	} else {
		logger.InfoContext(ctx, "tool called")
	}

	if h.forwarder == nil {
		panic("device API forwarder is not configured")
	}
	result := h.forwarder.Forward(ctx, gateway.Request{
		Tool:         r.tool,
		Path:         r.path,
		Credentials:  creds,
		SerialNumber: serial,
	})
	if !result.OK() {
		attrs := []any{"client_name", result.ClientName}
		if result.Err != nil {
			attrs = append(attrs, "kind", string(result.Err.Kind))
		}
		logger.WarnContext(ctx, "tool returned no data", attrs...)
		return textResult(r.emptyReply)
	}

	logger.InfoContext(ctx, "upstream reply", "client_name", result.ClientName, "bytes", len(result.Data))
	logger.DebugContext(ctx, "upstream payload", "client_name", result.ClientName, "data", result.Data)
	return textResult(result.Data)
}

func credentials(clientKey, passCode string) gateway.Credentials {
	return gateway.Credentials{ClientKey: clientKey, PassCode: passCode}
}

// selectSerialNumber applies the ALL default to a blank selector.
func selectSerialNumber(serial string) string {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return SerialNumberAll
	}
	return serial
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// errorPayload renders {"error": message}.
func errorPayload(message string) string {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(payload)
}
