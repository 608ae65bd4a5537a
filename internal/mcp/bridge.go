package mcp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/synapserun/synapse/internal/tool"
	"github.com/synapserun/synapse/pkg/models"
)

const maxToolNameLen = 64

// ToolCaller defines the MCP tool execution contract used by the bridge.
type ToolCaller interface {
	CallTool(ctx context.Context, serverID, toolName string, arguments map[string]any) (*ToolCallResult, error)
}

// ToolBridge wraps a single MCP tool as an internal/tool.Tool, grounding
// spec.md's mcp.list_tools/mcp.call_tool facade operations on top of the
// ToolRegistry/ToolExecutor path the rest of the runtime already uses.
type ToolBridge struct {
	caller   ToolCaller
	serverID string
	tool     *MCPTool
	name     string
}

// NewToolBridge creates a bridge tool with a precomputed safe name.
func NewToolBridge(caller ToolCaller, serverID string, mcpTool *MCPTool, safeName string) *ToolBridge {
	return &ToolBridge{
		caller:   caller,
		serverID: serverID,
		tool:     mcpTool,
		name:     safeName,
	}
}

func (b *ToolBridge) Metadata() models.ToolMetadata {
	desc := strings.TrimSpace(b.tool.Description)
	if desc == "" {
		desc = fmt.Sprintf("MCP tool %s.%s.", b.serverID, b.tool.Name)
	} else {
		desc = fmt.Sprintf("MCP tool %s.%s: %s", b.serverID, b.tool.Name, desc)
	}
	return models.ToolMetadata{
		Name:        b.name,
		Description: desc,
		Parameters:  schemaToParameters(b.tool.InputSchema),
	}
}

// Validate only checks that arguments parse as a JSON object; the MCP
// server itself is the authority on its own input schema.
func (b *ToolBridge) Validate(arguments json.RawMessage) error {
	if len(arguments) == 0 {
		return nil
	}
	var probe map[string]any
	if err := json.Unmarshal(arguments, &probe); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// Execute invokes the MCP tool via the caller (typically a *Manager).
func (b *ToolBridge) Execute(ctx context.Context, arguments json.RawMessage) (*models.ToolResult, error) {
	if err := b.Validate(arguments); err != nil {
		return models.Err(err.Error()), nil
	}

	var parsed map[string]any
	if len(arguments) > 0 {
		_ = json.Unmarshal(arguments, &parsed)
	}

	result, err := b.caller.CallTool(ctx, b.serverID, b.tool.Name, parsed)
	if err != nil {
		return models.Err(err.Error()), nil
	}

	content, isError := formatToolCallResult(result)
	if isError {
		return models.Err(content), nil
	}
	return models.Ok(content), nil
}

// schemaToParameters best-effort translates an MCP JSON-Schema input
// schema's top-level object properties into ToolParameter entries, for
// catalog/planning display. MCP's own schema remains the executed contract.
func schemaToParameters(inputSchema json.RawMessage) []models.ToolParameter {
	if len(inputSchema) == 0 {
		return nil
	}
	var schema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(inputSchema, &schema); err != nil || len(schema.Properties) == 0 {
		return nil
	}

	required := make(map[string]struct{}, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = struct{}{}
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]models.ToolParameter, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		_, isRequired := required[name]
		params = append(params, models.ToolParameter{
			Name:        name,
			Type:        jsonSchemaType(prop.Type),
			Description: prop.Description,
			Required:    isRequired,
		})
	}
	return params
}

func jsonSchemaType(t string) models.ParameterType {
	switch t {
	case "number", "integer":
		return models.ParamNumber
	case "boolean":
		return models.ParamBoolean
	case "array":
		return models.ParamArray
	case "object":
		return models.ParamObject
	default:
		return models.ParamString
	}
}

// RegisterTools registers every tool discovered across a Manager's connected
// MCP servers into registry, returning the safe names assigned. Names are
// deduplicated and capped to maxToolNameLen.
func RegisterTools(registry *tool.Registry, mgr *Manager) ([]string, error) {
	tools := listToolsSorted(mgr)
	used := make(map[string]struct{})
	registered := make([]string, 0, len(tools))
	for _, entry := range tools {
		name := safeToolName(entry.serverID, entry.tool.Name, used)
		bridge := NewToolBridge(mgr, entry.serverID, entry.tool, name)
		if err := registry.Register(bridge); err != nil {
			return registered, fmt.Errorf("register mcp tool %s: %w", name, err)
		}
		registered = append(registered, name)
	}
	return registered, nil
}

type toolEntry struct {
	serverID string
	tool     *MCPTool
}

func listToolsSorted(mgr *Manager) []toolEntry {
	all := mgr.AllTools()
	if len(all) == 0 {
		return nil
	}

	serverIDs := make([]string, 0, len(all))
	for id := range all {
		serverIDs = append(serverIDs, id)
	}
	sort.Strings(serverIDs)

	var entries []toolEntry
	for _, serverID := range serverIDs {
		tools := all[serverID]
		sort.Slice(tools, func(i, j int) bool {
			return tools[i].Name < tools[j].Name
		})
		for _, t := range tools {
			entries = append(entries, toolEntry{serverID: serverID, tool: t})
		}
	}
	return entries
}

func safeToolName(serverID, toolName string, used map[string]struct{}) string {
	base := "mcp_" + sanitizeToolPart(serverID) + "_" + sanitizeToolPart(toolName)
	name := base
	if len(name) > maxToolNameLen {
		name = truncateWithHash(base, serverID, toolName)
	}

	if _, exists := used[name]; exists {
		name = dedupeWithHash(name, serverID, toolName)
	}

	used[name] = struct{}{}
	return name
}

func sanitizeToolPart(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	underscore := false
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			underscore = false
		default:
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	clean := strings.Trim(b.String(), "_")
	if clean == "" {
		return "tool"
	}
	return clean
}

func toolNameHash(serverID, toolName string) string {
	sum := sha1.Sum([]byte(serverID + ":" + toolName))
	return hex.EncodeToString(sum[:])[:8]
}

func truncateWithHash(base, serverID, toolName string) string {
	suffix := "_" + toolNameHash(serverID, toolName)
	if maxToolNameLen <= len(suffix) {
		return suffix[len(suffix)-maxToolNameLen:]
	}
	trimLen := maxToolNameLen - len(suffix)
	if trimLen > len(base) {
		trimLen = len(base)
	}
	return base[:trimLen] + suffix
}

func dedupeWithHash(base, serverID, toolName string) string {
	suffix := "_" + toolNameHash(serverID, toolName)
	name := base + suffix
	if len(name) <= maxToolNameLen {
		return name
	}
	return truncateWithHash(base, serverID, toolName)
}

func formatToolCallResult(result *ToolCallResult) (string, bool) {
	if result == nil {
		return "", false
	}
	if len(result.Content) == 0 {
		return "", result.IsError
	}

	allText := true
	var combined strings.Builder
	for _, item := range result.Content {
		if item.Type != "text" {
			allText = false
			break
		}
		if item.Text == "" {
			continue
		}
		if combined.Len() > 0 {
			combined.WriteString("\n")
		}
		combined.WriteString(item.Text)
	}

	if allText && combined.Len() > 0 {
		return combined.String(), result.IsError
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", result.IsError
	}
	return string(payload), result.IsError
}
