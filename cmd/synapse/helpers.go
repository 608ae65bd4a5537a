package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// newLineScanner wraps r in a bufio.Scanner and returns a closure reading
// one line at a time, matching the buffered-stdin-reader idiom the
// teacher's onboarding prompts use (bufio.NewReader over os.Stdin), but
// as a closure so buildSessionCmd's REPL loop can call it directly.
func newLineScanner(r io.Reader) func() (string, bool) {
	scanner := bufio.NewScanner(r)
	return func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return scanner.Text(), true
	}
}

// parseToolParams decodes the --params flag's JSON object into the map
// shape mcp.call_tool expects (spec.md §6).
func parseToolParams(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	return params, nil
}
