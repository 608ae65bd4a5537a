package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/synapserun/synapse/pkg/models"
)

// ExecTool runs shell commands, implementing internal/tool.Tool.
type ExecTool struct {
	name    string
	manager *Manager
}

// NewExecTool creates an exec tool with the given name.
func NewExecTool(name string, manager *Manager) *ExecTool {
	if strings.TrimSpace(name) == "" {
		name = "exec"
	}
	return &ExecTool{name: name, manager: manager}
}

func (t *ExecTool) Metadata() models.ToolMetadata {
	return models.ToolMetadata{
		Name:        t.name,
		Description: "Run a shell command in the workspace (supports optional background execution).",
		Parameters: []models.ToolParameter{
			{Name: "command", Type: models.ParamString, Description: "Shell command to execute.", Required: true},
			{Name: "cwd", Type: models.ParamString, Description: "Working directory (relative to workspace)."},
			{Name: "env", Type: models.ParamObject, Description: "Environment overrides (string values)."},
			{Name: "input", Type: models.ParamString, Description: "Stdin content to pass to the command."},
			{Name: "timeout_seconds", Type: models.ParamNumber, Description: "Timeout in seconds (0 = no timeout)."},
			{Name: "background", Type: models.ParamBoolean, Description: "Run in background and return a process id."},
		},
	}
}

type execArgs struct {
	Command        string            `json:"command"`
	Cwd            string            `json:"cwd"`
	Env            map[string]string `json:"env"`
	Input          string            `json:"input"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Background     bool              `json:"background"`
}

func (t *ExecTool) Validate(arguments json.RawMessage) error {
	var input execArgs
	if err := json.Unmarshal(arguments, &input); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	if strings.TrimSpace(input.Command) == "" {
		return fmt.Errorf("command is required")
	}
	return nil
}

func (t *ExecTool) Execute(ctx context.Context, arguments json.RawMessage) (*models.ToolResult, error) {
	if t.manager == nil {
		return models.Err("exec manager unavailable"), nil
	}
	if err := t.Validate(arguments); err != nil {
		return models.Err(err.Error()), nil
	}
	var input execArgs
	_ = json.Unmarshal(arguments, &input)
	command := strings.TrimSpace(input.Command)
	timeout := time.Duration(input.TimeoutSeconds) * time.Second

	if input.Background {
		proc, err := t.manager.startBackground(ctx, command, input.Cwd, input.Env, input.Input, timeout)
		if err != nil {
			return models.Err(err.Error()), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{
			"status":     "running",
			"process_id": proc.id,
		}, "", "  ")
		return models.Ok(string(payload)), nil
	}

	result, err := t.manager.runSync(ctx, command, input.Cwd, input.Env, input.Input, timeout)
	if err != nil {
		return models.Err(err.Error()), nil
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return models.Err(fmt.Sprintf("encode result: %v", err)), nil
	}
	return models.Ok(string(payload)), nil
}

// ProcessTool inspects and manages background exec processes.
type ProcessTool struct {
	manager *Manager
}

// NewProcessTool creates a process tool.
func NewProcessTool(manager *Manager) *ProcessTool {
	return &ProcessTool{manager: manager}
}

func (t *ProcessTool) Metadata() models.ToolMetadata {
	return models.ToolMetadata{
		Name:        "process",
		Description: "Manage background exec processes (list, status, log, write, kill, remove).",
		Parameters: []models.ToolParameter{
			{Name: "action", Type: models.ParamString, Description: "Action: list, status, log, write, kill, remove.", Required: true},
			{Name: "process_id", Type: models.ParamString, Description: "Process id for actions that target a process."},
			{Name: "input", Type: models.ParamString, Description: "Input for write action."},
		},
	}
}

type processArgs struct {
	Action    string `json:"action"`
	ProcessID string `json:"process_id"`
	Input     string `json:"input"`
}

func (t *ProcessTool) Validate(arguments json.RawMessage) error {
	var input processArgs
	if err := json.Unmarshal(arguments, &input); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	action := strings.ToLower(strings.TrimSpace(input.Action))
	if action == "" {
		return fmt.Errorf("action is required")
	}
	switch action {
	case "list", "status", "log", "write", "kill", "remove":
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
	if action != "list" && strings.TrimSpace(input.ProcessID) == "" {
		return fmt.Errorf("process_id is required")
	}
	if action == "write" && input.Input == "" {
		return fmt.Errorf("input is required")
	}
	return nil
}

func (t *ProcessTool) Execute(ctx context.Context, arguments json.RawMessage) (*models.ToolResult, error) {
	if t.manager == nil {
		return models.Err("process manager unavailable"), nil
	}
	if err := t.Validate(arguments); err != nil {
		return models.Err(err.Error()), nil
	}
	var input processArgs
	_ = json.Unmarshal(arguments, &input)
	action := strings.ToLower(strings.TrimSpace(input.Action))

	if action == "list" {
		payload, _ := json.MarshalIndent(map[string]interface{}{"processes": t.manager.list()}, "", "  ")
		return models.Ok(string(payload)), nil
	}

	proc, ok := t.manager.get(strings.TrimSpace(input.ProcessID))
	if !ok {
		return models.Err("process not found"), nil
	}

	switch action {
	case "status":
		payload, _ := json.MarshalIndent(proc.info(), "", "  ")
		return models.Ok(string(payload)), nil
	case "log":
		payload, _ := json.MarshalIndent(map[string]interface{}{
			"stdout": proc.stdout.String(),
			"stderr": proc.stderr.String(),
			"status": proc.status(),
		}, "", "  ")
		return models.Ok(string(payload)), nil
	case "write":
		if proc.stdin == nil {
			return models.Err("process stdin unavailable"), nil
		}
		if _, err := proc.stdin.Write([]byte(input.Input)); err != nil {
			return models.Err(fmt.Sprintf("write stdin: %v", err)), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{"status": "written"}, "", "  ")
		return models.Ok(string(payload)), nil
	case "kill":
		if proc.cmd.Process == nil {
			return models.Err("process not running"), nil
		}
		if err := proc.cmd.Process.Kill(); err != nil {
			return models.Err(fmt.Sprintf("kill process: %v", err)), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{"status": "killed"}, "", "  ")
		return models.Ok(string(payload)), nil
	case "remove":
		if proc.status() == "running" {
			return models.Err("process still running"), nil
		}
		if !t.manager.remove(proc.id) {
			return models.Err("remove failed"), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{"status": "removed"}, "", "  ")
		return models.Ok(string(payload)), nil
	}
	return models.Err("unsupported action"), nil
}
