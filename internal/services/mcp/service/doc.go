// Package service hosts the MCP session: it registers the tool table on an
// MCP server, attaches a stdio or streamable HTTP transport, and tracks the
// session lifecycle from handshake to termination.
package service
