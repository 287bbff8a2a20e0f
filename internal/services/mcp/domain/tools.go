package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names exposed over MCP.
const (
	ToolPingConnection        = "ping_connection"
	ToolFetchDeviceInventory  = "fetch_device_inventory"
	ToolCheckDeviceHealth     = "check_device_health"
	ToolResetDeviceQueue      = "reset_device_queue"
	ToolAnalyzeDeviceActivity = "analyze_device_activity"
	ToolMigrationStatus       = "migration_status"
)

// Input field names shared by the business tools.
const (
	FieldClientKey    = "client_key"
	FieldPassCode     = "pass_code"
	FieldSerialNumber = "serial_number"
)

// SerialNumberAll selects every device on the authenticated account.
const SerialNumberAll = "ALL"

// ToolSpec is one row of the tool table.
type ToolSpec struct {
	Name        string
	Description string
	// Required fields must be present and non-empty.
	Required []string
	// Optional maps each optional field to its default value.
	Optional map[string]string
	// Handler is an mcp.ToolHandlerFor bound to its input type.
	Handler any
}

// fieldDescriptions documents every input field a tool may declare.
var fieldDescriptions = map[string]string{
	FieldClientKey:    "Client authentication key",
	FieldPassCode:     "User authentication passcode",
	FieldSerialNumber: "Device serial number, or 'ALL' for every device on the account",
}

// Tool builds the MCP tool definition with an explicit input schema.
func (s ToolSpec) Tool() *mcp.Tool {
	return &mcp.Tool{
		Name:        s.Name,
		Description: s.Description,
		InputSchema: s.InputSchema(),
	}
}

// nonBlankPattern rejects whitespace-only values for required fields.
const nonBlankPattern = `\S`

// InputSchema declares required fields as non-blank strings and optional
// fields with their defaults.
func (s ToolSpec) InputSchema() *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
	}
	for _, field := range s.Required {
		schema.Properties[field] = &jsonschema.Schema{
			Type:        "string",
			Description: fieldDescriptions[field],
			MinLength:   intPointer(1),
			Pattern:     nonBlankPattern,
		}
	}
	for _, field := range sortedKeys(s.Optional) {
		defaultValue, _ := json.Marshal(s.Optional[field])
		schema.Properties[field] = &jsonschema.Schema{
			Type:        "string",
			Description: fieldDescriptions[field],
			Default:     defaultValue,
		}
	}
	if len(s.Required) > 0 {
		schema.Required = slices.Clone(s.Required)
	}
	return schema
}

// ValidateSpecs rejects a malformed tool table before serving begins.
func ValidateSpecs(specs []ToolSpec) error {
	if len(specs) == 0 {
		return errors.New("no tools declared")
	}
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return errors.New("tool name is required")
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("tool %q declared twice", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(spec.Description) == "" {
			return fmt.Errorf("tool %q: description is required", name)
		}
		if spec.Handler == nil {
			return fmt.Errorf("tool %q: handler is required", name)
		}
		for _, field := range spec.Required {
			if _, ok := fieldDescriptions[field]; !ok {
				return fmt.Errorf("tool %q: unknown required field %q", name, field)
			}
			if _, ok := spec.Optional[field]; ok {
				return fmt.Errorf("tool %q: field %q is both required and optional", name, field)
			}
		}
		for field, defaultValue := range spec.Optional {
			if _, ok := fieldDescriptions[field]; !ok {
				return fmt.Errorf("tool %q: unknown optional field %q", name, field)
			}
			if defaultValue == "" {
				return fmt.Errorf("tool %q: optional field %q needs a default", name, field)
			}
		}
	}
	return nil
}

// Tools returns the full tool table bound to deps.
func Tools(deps Dependencies) []ToolSpec {
	h := newHandlers(deps)
	credentials := []string{FieldClientKey, FieldPassCode}
	allDevices := map[string]string{FieldSerialNumber: SerialNumberAll}

	return []ToolSpec{
		{
			Name:        ToolPingConnection,
			Description: "Check the connection for server is connectable. Returns a success message when the server is reachable.",
			Handler:     h.pingConnection(),
		},
		{
			Name: ToolFetchDeviceInventory,
			Description: "Retrieves complete biometric device inventory for the authenticated user, including serial numbers, " +
				"models, custom labels and associated client names for partner accounts.",
			Required: credentials,
			Handler:  h.fetchDeviceInventory(),
		},
		{
			Name: ToolCheckDeviceHealth,
			Description: "Gets status information for biometric devices: serial number, model, label, client name, " +
				"license validity, service connections, online/offline status, sync direction and queue status.",
			Required: credentials,
			Optional: allDevices,
			Handler:  h.checkDeviceHealth(),
		},
		{
			Name: ToolResetDeviceQueue,
			Description: "Restarts the data processing queue for one biometric device. Use it when a device queue is stuck; " +
				"check the device health first to learn why.",
			Required: append(slices.Clone(credentials), FieldSerialNumber),
			Handler:  h.resetDeviceQueue(),
		},
		{
			Name: ToolAnalyzeDeviceActivity,
			Description: "Retrieves transaction logs and activity metrics for a biometric device: today's received, queued " +
				"and pushed attendance counts, last connection, queue status, next retry, last request and response, and callback URL.",
			Required: credentials,
			Optional: allDevices,
			Handler:  h.analyzeDeviceActivity(),
		},
		{
			Name:        ToolMigrationStatus,
			Description: "Retrieves migration status for biometric devices.",
			Required:    credentials,
			Optional:    allDevices,
			Handler:     h.migrationStatus(),
		},
	}
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func intPointer(value int) *int {
	return &value
}
