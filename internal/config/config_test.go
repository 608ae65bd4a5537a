package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: claude-sonnet-4-5-20250929
  extra: true
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: claude-sonnet-4-5-20250929
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("expected default max_tokens 4096, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("expected default max_iterations 10, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.System.HeartbeatIntervalMS != 10_000 {
		t.Errorf("expected default heartbeat_interval_ms 10000, got %d", cfg.System.HeartbeatIntervalMS)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default logging level info, got %q", cfg.Logging.Level)
	}
}

func TestLoadValidatesTemperatureRange(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: claude-sonnet-4-5-20250929
  temperature: 3.5
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "llm.temperature") {
		t.Fatalf("expected llm.temperature error, got %v", err)
	}
}

func TestLoadValidatesMaxIterations(t *testing.T) {
	path := writeConfig(t, `
agent:
  max_iterations: 0
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "agent.max_iterations") {
		t.Fatalf("expected agent.max_iterations error, got %v", err)
	}
}

func TestLoadValidatesHeartbeatOrdering(t *testing.T) {
	path := writeConfig(t, `
system:
  heartbeat_interval_ms: 5000
  heartbeat_timeout_ms: 1000
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "heartbeat_timeout_ms") {
		t.Fatalf("expected heartbeat_timeout_ms error, got %v", err)
	}
}

func TestLoadValidatesLoggingLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: verbose
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging.level error, got %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: claude-sonnet-4-5-20250929
  max_tokens: 8192
  temperature: 0.5
agent:
  max_iterations: 8
  max_orchestration_steps: 6
  max_sub_goals: 4
system:
  auto_restart: true
  heartbeat_interval_ms: 5000
  heartbeat_timeout_ms: 30000
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.LLM.MaxTokens != 8192 {
		t.Errorf("expected max_tokens 8192, got %d", cfg.LLM.MaxTokens)
	}
	if !cfg.System.AutoRestart {
		t.Errorf("expected auto_restart true")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-override")
	t.Setenv("SYNAPSE_LOG_LEVEL", "warn")

	path := writeConfig(t, `
llm:
  model: claude-sonnet-4-5-20250929
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "sk-test-override" {
		t.Fatalf("expected api_key override, got %q", cfg.LLM.APIKey)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging level override, got %q", cfg.Logging.Level)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	mainPath := filepath.Join(dir, "main.yaml")

	if err := os.WriteFile(basePath, []byte("llm:\n  model: claude-sonnet-4-5-20250929\n  max_tokens: 2048\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(mainPath, []byte("$include: base.yaml\nlogging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.MaxTokens != 2048 {
		t.Fatalf("expected included max_tokens 2048, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging.level debug, got %q", cfg.Logging.Level)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "synapse.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
