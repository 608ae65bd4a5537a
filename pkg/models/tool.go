package models

import "encoding/json"

// ParameterType is the semantic type tag of a ToolParameter.
type ParameterType string

const (
	ParamString  ParameterType = "string"
	ParamNumber  ParameterType = "number"
	ParamBoolean ParameterType = "boolean"
	ParamArray   ParameterType = "array"
	ParamObject  ParameterType = "object"
)

// ToolParameter describes a single named argument a tool accepts.
type ToolParameter struct {
	Name        string        `json:"name"`
	Type        ParameterType `json:"type"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required,omitempty"`
}

// ToolMetadata is the immutable, catalog-rendered description of a tool.
type ToolMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// ToolResult is the outcome of a tool execution. Exactly one of Output
// (on success) or Error (on failure) carries the primary payload.
type ToolResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok builds a successful ToolResult.
func Ok(output string) *ToolResult {
	return &ToolResult{Success: true, Output: output}
}

// Err builds a failed ToolResult.
func Err(errText string) *ToolResult {
	return &ToolResult{Success: false, Error: errText}
}

// ToolInvocation names a tool and the arguments an agent wants to pass it.
// Arguments must satisfy the tool's parameter schema.
type ToolInvocation struct {
	ToolName  string          `json:"tool"`
	Arguments json.RawMessage `json:"input"`
}
