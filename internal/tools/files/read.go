package files

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/synapserun/synapse/pkg/models"
)

// Config controls filesystem tool defaults.
type Config struct {
	Workspace    string
	MaxReadBytes int
}

// ReadTool implements a safe file reader, satisfying internal/tool.Tool.
type ReadTool struct {
	resolver   Resolver
	maxReadLen int
}

// NewReadTool creates a read tool scoped to the workspace.
func NewReadTool(cfg Config) *ReadTool {
	limit := cfg.MaxReadBytes
	if limit <= 0 {
		limit = 200000
	}
	return &ReadTool{
		resolver:   Resolver{Root: cfg.Workspace},
		maxReadLen: limit,
	}
}

func (t *ReadTool) Metadata() models.ToolMetadata {
	return models.ToolMetadata{
		Name:        "read",
		Description: "Read a file from the workspace with optional offset and byte limit.",
		Parameters: []models.ToolParameter{
			{Name: "path", Type: models.ParamString, Description: "Path to the file (relative to workspace).", Required: true},
			{Name: "offset", Type: models.ParamNumber, Description: "Byte offset to start reading from (default: 0)."},
			{Name: "max_bytes", Type: models.ParamNumber, Description: "Maximum bytes to read (capped by tool default)."},
		},
	}
}

type readArgs struct {
	Path     string `json:"path"`
	Offset   int64  `json:"offset"`
	MaxBytes int    `json:"max_bytes"`
}

func (t *ReadTool) Validate(arguments json.RawMessage) error {
	var input readArgs
	if err := json.Unmarshal(arguments, &input); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	if strings.TrimSpace(input.Path) == "" {
		return fmt.Errorf("path is required")
	}
	if input.Offset < 0 {
		return fmt.Errorf("offset must be >= 0")
	}
	if _, err := t.resolver.Resolve(input.Path); err != nil {
		return err
	}
	return nil
}

// Execute reads a file with safety limits.
func (t *ReadTool) Execute(ctx context.Context, arguments json.RawMessage) (*models.ToolResult, error) {
	if err := t.Validate(arguments); err != nil {
		return models.Err(err.Error()), nil
	}
	var input readArgs
	_ = json.Unmarshal(arguments, &input)

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return models.Err(err.Error()), nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		return models.Err(fmt.Sprintf("open file: %v", err)), nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return models.Err(fmt.Sprintf("stat file: %v", err)), nil
	}

	if input.Offset > 0 {
		if _, err := file.Seek(input.Offset, io.SeekStart); err != nil {
			return models.Err(fmt.Sprintf("seek file: %v", err)), nil
		}
	}

	limit := t.maxReadLen
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}

	remaining := int64(limit)
	if size := info.Size(); size > 0 {
		remaining = size - input.Offset
		if remaining < 0 {
			remaining = 0
		}
		if remaining > int64(limit) {
			remaining = int64(limit)
		}
	}

	buf, err := io.ReadAll(io.LimitReader(file, remaining))
	if err != nil {
		return models.Err(fmt.Sprintf("read file: %v", err)), nil
	}

	truncated := false
	if info.Size() > 0 && input.Offset+int64(len(buf)) < info.Size() {
		truncated = true
	}

	result := map[string]interface{}{
		"path":      input.Path,
		"content":   string(buf),
		"offset":    input.Offset,
		"bytes":     len(buf),
		"truncated": truncated,
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return models.Err(fmt.Sprintf("encode result: %v", err)), nil
	}

	return models.Ok(string(payload)), nil
}
