package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/synapserun/synapse/pkg/models"
)

// EditTool implements in-place text edits on files.
type EditTool struct {
	resolver Resolver
}

// NewEditTool creates an edit tool scoped to the workspace.
func NewEditTool(cfg Config) *EditTool {
	return &EditTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *EditTool) Metadata() models.ToolMetadata {
	return models.ToolMetadata{
		Name:        "edit",
		Description: "Apply one or more find/replace edits to a file in the workspace.",
		Parameters: []models.ToolParameter{
			{Name: "path", Type: models.ParamString, Description: "Path to edit (relative to workspace).", Required: true},
			{Name: "edits", Type: models.ParamArray, Description: "Sequence of {old_text, new_text, replace_all?} edits.", Required: true},
		},
	}
}

type editArgs struct {
	Path  string `json:"path"`
	Edits []struct {
		OldText    string `json:"old_text"`
		NewText    string `json:"new_text"`
		ReplaceAll bool   `json:"replace_all"`
	} `json:"edits"`
}

func (t *EditTool) Validate(arguments json.RawMessage) error {
	var input editArgs
	if err := json.Unmarshal(arguments, &input); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	if strings.TrimSpace(input.Path) == "" {
		return fmt.Errorf("path is required")
	}
	if len(input.Edits) == 0 {
		return fmt.Errorf("edits are required")
	}
	for _, edit := range input.Edits {
		if edit.OldText == "" {
			return fmt.Errorf("old_text is required")
		}
	}
	if _, err := t.resolver.Resolve(input.Path); err != nil {
		return err
	}
	return nil
}

// Execute applies edits to the file.
func (t *EditTool) Execute(ctx context.Context, arguments json.RawMessage) (*models.ToolResult, error) {
	if err := t.Validate(arguments); err != nil {
		return models.Err(err.Error()), nil
	}
	var input editArgs
	_ = json.Unmarshal(arguments, &input)

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return models.Err(err.Error()), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return models.Err(fmt.Sprintf("read file: %v", err)), nil
	}

	content := string(data)
	replacements := 0
	for _, edit := range input.Edits {
		if !strings.Contains(content, edit.OldText) {
			return models.Err("old_text not found"), nil
		}
		if edit.ReplaceAll {
			count := strings.Count(content, edit.OldText)
			content = strings.ReplaceAll(content, edit.OldText, edit.NewText)
			replacements += count
		} else {
			content = strings.Replace(content, edit.OldText, edit.NewText, 1)
			replacements++
		}
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return models.Err(fmt.Sprintf("write file: %v", err)), nil
	}

	result := map[string]interface{}{
		"path":         input.Path,
		"replacements": replacements,
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return models.Err(fmt.Sprintf("encode result: %v", err)), nil
	}

	return models.Ok(string(payload)), nil
}
