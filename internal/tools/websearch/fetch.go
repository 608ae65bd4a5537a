package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/synapserun/synapse/pkg/models"
)

// FetchConfig controls web_fetch defaults.
type FetchConfig struct {
	MaxChars int
}

// WebFetchTool implements a lightweight web fetch + extraction tool.
type WebFetchTool struct {
	config    FetchConfig
	extractor *ContentExtractor
}

// WebFetchOption customizes WebFetchTool construction.
type WebFetchOption func(*WebFetchTool)

// WithExtractor overrides the default content extractor (useful for tests).
func WithExtractor(extractor *ContentExtractor) WebFetchOption {
	return func(tool *WebFetchTool) {
		if extractor != nil {
			tool.extractor = extractor
		}
	}
}

// NewWebFetchTool creates a new web_fetch tool with defaults applied.
func NewWebFetchTool(config *FetchConfig, opts ...WebFetchOption) *WebFetchTool {
	cfg := FetchConfig{MaxChars: 10000}
	if config != nil {
		if config.MaxChars > 0 {
			cfg.MaxChars = config.MaxChars
		}
	}
	tool := &WebFetchTool{
		config:    cfg,
		extractor: NewContentExtractor(),
	}
	for _, opt := range opts {
		opt(tool)
	}
	return tool
}

// Metadata describes the tool's name, purpose, and parameters for LLM planning.
func (t *WebFetchTool) Metadata() models.ToolMetadata {
	return models.ToolMetadata{
		Name:        "web_fetch",
		Description: "Fetch and extract readable content from a URL without full browser automation.",
		Parameters: []models.ToolParameter{
			{Name: "url", Type: models.ParamString, Description: "URL to fetch (http/https only).", Required: true},
			{Name: "extract_mode", Type: models.ParamString, Description: "Extraction mode: markdown or text (default: markdown)."},
			{Name: "max_chars", Type: models.ParamNumber, Description: "Maximum characters to return (default: 10000)."},
		},
	}
}

// Validate checks fetch parameters without performing any network I/O.
func (t *WebFetchTool) Validate(arguments json.RawMessage) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(arguments, &raw); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	if readStringParam(raw, "url") == "" {
		return fmt.Errorf("missing required parameter: url")
	}
	return nil
}

// Execute runs the fetch + extraction with SSRF protection.
func (t *WebFetchTool) Execute(ctx context.Context, arguments json.RawMessage) (*models.ToolResult, error) {
	if err := t.Validate(arguments); err != nil {
		return models.Err(err.Error()), nil
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(arguments, &raw)
	url := readStringParam(raw, "url")

	extractMode := normalizeExtractMode(readStringParam(raw, "extract_mode", "extractMode"))
	maxChars := readIntParam(raw, "max_chars", "maxChars")
	limit := t.config.MaxChars
	if maxChars > 0 && (limit == 0 || maxChars < limit) {
		limit = maxChars
	}

	content, err := t.extractor.Extract(ctx, url)
	if err != nil {
		return models.Err(fmt.Sprintf("fetch failed: %v", err)), nil
	}

	truncated := false
	if limit > 0 && len(content) > limit {
		content = content[:limit] + "..."
		truncated = true
	}

	result := map[string]interface{}{
		"url":          url,
		"extract_mode": extractMode,
		"content":      content,
	}
	if truncated {
		result["truncated"] = true
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return models.Err(fmt.Sprintf("failed to format response: %v", err)), nil
	}

	return models.Ok(string(payload)), nil
}

func normalizeExtractMode(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "text" {
		return "text"
	}
	return "markdown"
}

func readStringParam(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			if str, ok := value.(string); ok {
				return strings.TrimSpace(str)
			}
		}
	}
	return ""
}

func readIntParam(raw map[string]interface{}, keys ...string) int {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			switch v := value.(type) {
			case float64:
				return int(v)
			case int:
				return v
			case json.Number:
				if parsed, err := v.Int64(); err == nil {
					return int(parsed)
				}
			}
		}
	}
	return 0
}
