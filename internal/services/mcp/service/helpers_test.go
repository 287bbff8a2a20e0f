package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/camsbiometrics/cams-mcp/internal/services/mcp/gateway"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// syncBuffer collects log output written from server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(out io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeUpstream is a device API double that records every request body.
type fakeUpstream struct {
	mu      sync.Mutex
	bodies  []map[string]any
	paths   []string
	handler http.HandlerFunc
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeUpstream) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func (f *fakeUpstream) lastBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return nil
	}
	return f.bodies[len(f.bodies)-1]
}

func respondJSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// startGateway returns a gateway client pointed at a fake upstream.
func startGateway(t *testing.T, handler http.HandlerFunc, timeout time.Duration, logger *slog.Logger) (*fakeUpstream, *gateway.Client) {
	t.Helper()
	upstream := &fakeUpstream{handler: handler}
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	client, err := gateway.NewClient(gateway.Config{
		BaseURL: server.URL + "/api",
		Timeout: timeout,
		Logger:  logger,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("new gateway client: %v", err)
	}
	return upstream, client
}

// connectSession serves server over in-memory transports and returns a
// connected client session. The server stops when the test ends.
func connectSession(t *testing.T, server *Server) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer clientCancel()
	session, err := client.Connect(clientCtx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect client: %v", err)
	}

	t.Cleanup(func() {
		_ = session.Close()
		cancel()
		select {
		case err := <-serveErr:
			if err != nil {
				t.Errorf("serve returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("server did not stop after cancel")
		}
	})
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
}

func replyText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("expected tool result")
	}
	if len(result.Content) == 0 {
		t.Fatal("expected tool content")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

// expectRejected accepts either a protocol error or an error tool result.
func expectRejected(t *testing.T, result *mcp.CallToolResult, err error) {
	t.Helper()
	if err != nil {
		return
	}
	if result == nil || !result.IsError {
		t.Fatalf("expected rejection, got %+v", result)
	}
}

func waitForPhase(t *testing.T, server *Server, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if server.Phase() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("phase = %s, want %s", server.Phase(), want)
}

// failingTransport refuses to connect.
type failingTransport struct{}

func (failingTransport) Connect(context.Context) (mcp.Connection, error) {
	return nil, errors.New("transport unavailable")
}
