// Package domain declares the MCP tools exposed to clients and translates each
// invocation into one device API call.
//
// The mapping is kept explicit:
// - a static table names every tool with its required and optional inputs,
// - each handler builds exactly one gateway request from its typed input,
// - and replies relay the upstream data verbatim or a fixed failure message.
//
// No state survives an invocation; credentials only travel as call parameters.
package domain
