package config

import (
	"fmt"
	"os"
	"strings"
)

// Config is the root configuration for the orchestration runtime. The
// recognized option set is exactly the one spec.md §6 enumerates: llm.*,
// agent.*, system.*, logging.level. Anything else in a config file is
// rejected at load time (decodeRawConfig decodes with KnownFields(true)).
type Config struct {
	Version int           `yaml:"version"`
	LLM     LLMConfig     `yaml:"llm"`
	Agent   AgentConfig   `yaml:"agent"`
	System  SystemConfig  `yaml:"system"`
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the LLMGateway (C4).
type LLMConfig struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// APIKey is a secret; it is never logged and is overridable by
	// ANTHROPIC_API_KEY / SYNAPSE_LLM_API_KEY.
	APIKey string `yaml:"api_key"`
}

// AgentConfig bounds the ReAct loop (C7) and orchestration loop (C8).
type AgentConfig struct {
	MaxIterations         int `yaml:"max_iterations"`
	MaxOrchestrationSteps int `yaml:"max_orchestration_steps"`
	MaxSubGoals           int `yaml:"max_sub_goals"`
}

// SystemConfig tunes the actor runtime (C9).
type SystemConfig struct {
	AutoRestart         bool `yaml:"auto_restart"`
	HeartbeatIntervalMS int  `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeoutMS  int  `yaml:"heartbeat_timeout_ms"`
	CheckIntervalMS     int  `yaml:"check_interval_ms"`
	ChannelBufferSize   int  `yaml:"channel_buffer_size"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads, $include-merges, decodes, defaults, and validates a config
// file. A malformed or out-of-range config is a ConfigValidationError —
// fatal at init per spec.md §6 (exit code 2).
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 10
	}
	if cfg.Agent.MaxOrchestrationSteps == 0 {
		cfg.Agent.MaxOrchestrationSteps = 5
	}
	if cfg.Agent.MaxSubGoals == 0 {
		cfg.Agent.MaxSubGoals = 5
	}
	if cfg.System.HeartbeatIntervalMS == 0 {
		cfg.System.HeartbeatIntervalMS = 10_000
	}
	if cfg.System.HeartbeatTimeoutMS == 0 {
		cfg.System.HeartbeatTimeoutMS = 60_000
	}
	if cfg.System.CheckIntervalMS == 0 {
		cfg.System.CheckIntervalMS = 1_000
	}
	if cfg.System.ChannelBufferSize == 0 {
		cfg.System.ChannelBufferSize = 32
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); value != "" {
		cfg.LLM.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("SYNAPSE_LLM_API_KEY")); value != "" {
		cfg.LLM.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("SYNAPSE_LLM_MODEL")); value != "" {
		cfg.LLM.Model = value
	}
	if value := strings.TrimSpace(os.Getenv("SYNAPSE_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
}

// ConfigValidationError accumulates every validation failure in one pass,
// mirroring OutputValidator's (C5) accumulate-don't-short-circuit policy.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.LLM.MaxTokens <= 0 {
		issues = append(issues, "llm.max_tokens must be > 0")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		issues = append(issues, "llm.temperature must be between 0 and 2")
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		issues = append(issues, "llm.model must be set")
	}
	if cfg.Agent.MaxIterations < 1 {
		issues = append(issues, "agent.max_iterations must be >= 1")
	}
	if cfg.Agent.MaxOrchestrationSteps < 1 {
		issues = append(issues, "agent.max_orchestration_steps must be >= 1")
	}
	if cfg.Agent.MaxSubGoals < 1 {
		issues = append(issues, "agent.max_sub_goals must be >= 1")
	}
	if cfg.System.HeartbeatIntervalMS <= 0 {
		issues = append(issues, "system.heartbeat_interval_ms must be > 0")
	}
	if cfg.System.HeartbeatTimeoutMS <= cfg.System.HeartbeatIntervalMS {
		issues = append(issues, "system.heartbeat_timeout_ms must be greater than system.heartbeat_interval_ms")
	}
	if cfg.System.CheckIntervalMS <= 0 {
		issues = append(issues, "system.check_interval_ms must be > 0")
	}
	if cfg.System.ChannelBufferSize <= 0 {
		issues = append(issues, "system.channel_buffer_size must be > 0")
	}
	if !validLogLevel(cfg.Logging.Level) {
		issues = append(issues, "logging.level must be one of debug, info, warn, error")
	}

	issues = append(issues, pluginValidationIssues(cfg)...)

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

func validLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
