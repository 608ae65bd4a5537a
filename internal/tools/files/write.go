package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/synapserun/synapse/pkg/models"
)

// WriteTool implements file writes within the workspace.
type WriteTool struct {
	resolver Resolver
}

// NewWriteTool creates a write tool scoped to the workspace.
func NewWriteTool(cfg Config) *WriteTool {
	return &WriteTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *WriteTool) Metadata() models.ToolMetadata {
	return models.ToolMetadata{
		Name:        "write",
		Description: "Write content to a file in the workspace (overwrites by default).",
		Parameters: []models.ToolParameter{
			{Name: "path", Type: models.ParamString, Description: "Path to write (relative to workspace).", Required: true},
			{Name: "content", Type: models.ParamString, Description: "File contents to write.", Required: true},
			{Name: "append", Type: models.ParamBoolean, Description: "Append instead of overwrite (default: false)."},
		},
	}
}

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Append  bool   `json:"append"`
}

func (t *WriteTool) Validate(arguments json.RawMessage) error {
	var input writeArgs
	if err := json.Unmarshal(arguments, &input); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	if strings.TrimSpace(input.Path) == "" {
		return fmt.Errorf("path is required")
	}
	if _, err := t.resolver.Resolve(input.Path); err != nil {
		return err
	}
	return nil
}

// Execute writes file contents.
func (t *WriteTool) Execute(ctx context.Context, arguments json.RawMessage) (*models.ToolResult, error) {
	if err := t.Validate(arguments); err != nil {
		return models.Err(err.Error()), nil
	}
	var input writeArgs
	_ = json.Unmarshal(arguments, &input)

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return models.Err(err.Error()), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return models.Err(fmt.Sprintf("create directory: %v", err)), nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if input.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return models.Err(fmt.Sprintf("open file: %v", err)), nil
	}
	defer file.Close()

	n, err := file.WriteString(input.Content)
	if err != nil {
		return models.Err(fmt.Sprintf("write file: %v", err)), nil
	}

	result := map[string]interface{}{
		"path":          input.Path,
		"bytes_written": n,
		"append":        input.Append,
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return models.Err(fmt.Sprintf("encode result: %v", err)), nil
	}

	return models.Ok(string(payload)), nil
}
