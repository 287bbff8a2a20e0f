// Package timeouts defines shared timeout constants used across the process.
package timeouts

import "time"

// UpstreamRequest is the default cap for one call to the device API.
const UpstreamRequest = 30 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// TelemetryShutdown bounds span flushing on exit.
const TelemetryShutdown = 5 * time.Second
