package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/camsbiometrics/cams-mcp/internal/platform/branding"
	"github.com/camsbiometrics/cams-mcp/internal/platform/logging"
	"github.com/camsbiometrics/cams-mcp/internal/platform/otel"
	"github.com/camsbiometrics/cams-mcp/internal/platform/requestctx"
	"github.com/camsbiometrics/cams-mcp/internal/platform/timeouts"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultBaseURL is the production device API.
const DefaultBaseURL = "https://mcp.camsbiometrics.com/api"

// Upstream paths, one per business tool.
const (
	PathInventory  = "/inventory"
	PathHealth     = "/health"
	PathQueueReset = "/queue/reset"
	PathActivity   = "/activity"
	PathMigration  = "/migration"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 16 << 20

// requestIDHeader carries the invocation identifier upstream.
const requestIDHeader = "X-Request-ID"

const tracerName = "github.com/camsbiometrics/cams-mcp/internal/services/mcp/gateway"

// Credentials authenticate every upstream call. They are forwarded unchanged
// and never logged.
type Credentials struct {
	ClientKey string
	PassCode  string
}

// Request describes one upstream call.
type Request struct {
	// Tool names the invoking tool for logs and spans.
	Tool string
	// Path is one of the Path* constants.
	Path        string
	Credentials Credentials
	// SerialNumber is sent only when non-nil.
	SerialNumber *string
}

// requestBody is the JSON body posted upstream.
type requestBody struct {
	ClientKey    string  `json:"client_key"`
	PassCode     string  `json:"pass_code"`
	SerialNumber *string `json:"serial_number,omitempty"`
}

// Config configures a Client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Timeout caps each call; defaults to timeouts.UpstreamRequest.
	Timeout time.Duration
	// NewTransport builds the transport for one call. Defaults to a clone of
	// http.DefaultTransport.
	NewTransport func() http.RoundTripper
	Logger       *slog.Logger
	// Version is reported in the User-Agent.
	Version string
}

// Client forwards tool invocations to the device API.
type Client struct {
	baseURL      string
	timeout      time.Duration
	newTransport func() http.RoundTripper
	logger       *slog.Logger
	userAgent    string
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = timeouts.UpstreamRequest
	}
	newTransport := cfg.NewTransport
	if newTransport == nil {
		newTransport = defaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		timeout:      timeout,
		newTransport: newTransport,
		logger:       logger,
		userAgent:    branding.ServerSlug + "-mcp/" + version,
	}, nil
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Forward performs one POST and normalizes the outcome. It never returns a Go
// error: failures are logged and reported through Result.Err.
func (c *Client) Forward(ctx context.Context, req Request) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gateway.forward")
	defer span.End()
	span.SetAttributes(
		attribute.String("cams.tool", req.Tool),
		attribute.String("cams.path", req.Path),
	)
	invocationID := requestctx.InvocationIDFromContext(ctx)
	if invocationID != "" {
		span.SetAttributes(attribute.String("cams.invocation_id", invocationID))
	}

	result := c.forward(ctx, req)
	if result.Err != nil {
		span.SetAttributes(attribute.String("cams.failure", string(result.Err.Kind)))
		if result.Err.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", result.Err.StatusCode))
		}
		span.SetStatus(codes.Error, result.Err.Error())
		c.logger.ErrorContext(ctx, "upstream request failed",
			"tool", req.Tool,
			"path", req.Path,
			"invocation_id", invocationID,
			"kind", string(result.Err.Kind),
			"error", result.Err.Error(),
		)
	}
	return result
}

func (c *Client) forward(ctx context.Context, req Request) Result {
	payload, err := json.Marshal(requestBody{
		ClientKey:    req.Credentials.ClientKey,
		PassCode:     req.Credentials.PassCode,
		SerialNumber: req.SerialNumber,
	})
	if err != nil {
		return failed(newError(KindDecode, "encode request body", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+req.Path, bytes.NewReader(payload))
	if err != nil {
		return failed(newError(KindNetwork, "build request", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if invocationID := requestctx.InvocationIDFromContext(ctx); invocationID != "" {
		httpReq.Header.Set(requestIDHeader, invocationID)
	}

	transport := c.newTransport()
	defer closeIdleConnections(transport)
	client := &http.Client{Transport: otelhttp.NewTransport(transport)}

	resp, err := client.Do(httpReq)
	if err != nil {
		return failed(classifyTransportError(callCtx, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failed(classifyTransportError(callCtx, err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return failed(&Error{
			Kind:       KindStatus,
			Message:    fmt.Sprintf("upstream returned status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		})
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return failed(newError(KindDecode, "decode response body", err))
	}

	clientName := env.clientName()
	data, ok := payloadText(env.Data)
	if !ok {
		return Result{
			ClientName: clientName,
			Err:        newError(KindEmptyPayload, "upstream returned no data", nil),
		}
	}
	return Result{Data: data, ClientName: clientName}
}

func classifyTransportError(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindTimeout, "upstream request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, "upstream request timed out", err)
	}
	return newError(KindNetwork, "upstream request failed", err)
}

func defaultTransport() http.RoundTripper {
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		return base.Clone()
	}
	return http.DefaultTransport
}

func closeIdleConnections(rt http.RoundTripper) {
	if closer, ok := rt.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}
}
