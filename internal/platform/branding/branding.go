// Package branding holds product naming shared by the server and its clients.
package branding

// AppName is the product name reported to MCP clients.
const AppName = "Cams Biometrics"

// ServerSlug is the short name used for the MCP implementation and User-Agent.
const ServerSlug = "cams-biometrics"
