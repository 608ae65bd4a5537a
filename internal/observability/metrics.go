package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting orchestration
// runtime metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Orchestration steps (SupervisorAgent) and ReAct iterations (SpecializedAgent)
//   - LLM request performance, token usage, and errors
//   - Tool execution counts and latencies
//   - Actor restarts and heartbeat misses
//   - Handoff and output validation failures
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.RecordLLMRequest("anthropic", "claude-sonnet-4-5", "success", time.Since(start).Seconds(), 100, 500)
type Metrics struct {
	// OrchestrationStepCounter counts orchestration steps by supervisor and action.
	// Labels: supervisor, action (delegate|synthesize|validate)
	OrchestrationStepCounter *prometheus.CounterVec

	// ReactIterationCounter counts ReAct loop iterations by agent.
	// Labels: agent
	ReactIterationCounter *prometheus.CounterVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (anthropic|openai), model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider (anthropic|openai), model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component (agent|supervisor|tool|actor), error_type
	ErrorCounter *prometheus.CounterVec

	// ActorRestarts counts actor restarts by actor name and reason.
	// Labels: actor, reason (panic|heartbeat_timeout|crash)
	ActorRestarts *prometheus.CounterVec

	// HandoffValidationFailures counts output validation failures on handoff.
	// Labels: from_agent, to_agent
	HandoffValidationFailures *prometheus.CounterVec

	// RunDuration measures end-to-end execute_task/orchestrate run duration.
	// Labels: outcome (success|error|timeout)
	// Buckets: 1s, 5s, 15s, 30s, 60s, 120s, 300s, 600s
	RunDuration *prometheus.HistogramVec

	// ActiveRuns is a gauge tracking currently in-flight runs.
	ActiveRuns prometheus.Gauge

	// LLMCostUSD tracks estimated cost in USD.
	// Labels: provider, model
	LLMCostUSD *prometheus.CounterVec

	// ContextWindowUsed tracks context window utilization.
	// Labels: provider, model
	// Buckets: 1000, 4000, 8000, 16000, 32000, 64000, 128000
	ContextWindowUsed *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using the prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		OrchestrationStepCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_orchestration_steps_total",
				Help: "Total number of orchestration steps by supervisor and action",
			},
			[]string{"supervisor", "action"},
		),

		ReactIterationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_react_iterations_total",
				Help: "Total number of ReAct loop iterations by agent",
			},
			[]string{"agent"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActorRestarts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_actor_restarts_total",
				Help: "Total number of actor restarts by actor and reason",
			},
			[]string{"actor", "reason"},
		),

		HandoffValidationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_handoff_validation_failures_total",
				Help: "Total number of output validation failures on agent handoff",
			},
			[]string{"from_agent", "to_agent"},
		),

		RunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_run_duration_seconds",
				Help:    "Duration of execute_task/orchestrate runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		),

		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "synapse_active_runs",
				Help: "Current number of in-flight execute_task/orchestrate runs",
			},
		),

		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_llm_cost_usd_total",
				Help: "Estimated LLM API cost in USD",
			},
			[]string{"provider", "model"},
		),

		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_context_window_tokens",
				Help:    "Context window tokens used",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"provider", "model"},
		),
	}
}

// RecordOrchestrationStep increments the orchestration step counter.
//
// Example:
//
//	metrics.RecordOrchestrationStep("supervisor", "delegate")
func (m *Metrics) RecordOrchestrationStep(supervisor, action string) {
	m.OrchestrationStepCounter.WithLabelValues(supervisor, action).Inc()
}

// RecordReactIteration increments the ReAct iteration counter for an agent.
//
// Example:
//
//	metrics.RecordReactIteration("researcher")
func (m *Metrics) RecordReactIteration(agent string) {
	m.ReactIterationCounter.WithLabelValues(agent).Inc()
}

// RecordLLMRequest records metrics for an LLM API request.
//
// Example:
//
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-sonnet-4-5", "success", time.Since(start).Seconds(), 100, 500)
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
//
// Example:
//
//	start := time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
//
// Example:
//
//	metrics.RecordError("agent", "llm_request_failed")
//	metrics.RecordError("actor", "mailbox_full")
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// RecordActorRestart increments the actor restart counter.
//
// Example:
//
//	metrics.RecordActorRestart("researcher", "panic")
func (m *Metrics) RecordActorRestart(actor, reason string) {
	m.ActorRestarts.WithLabelValues(actor, reason).Inc()
}

// RecordHandoffValidationFailure increments the handoff validation failure counter.
//
// Example:
//
//	metrics.RecordHandoffValidationFailure("researcher", "writer")
func (m *Metrics) RecordHandoffValidationFailure(fromAgent, toAgent string) {
	m.HandoffValidationFailures.WithLabelValues(fromAgent, toAgent).Inc()
}

// RunStarted increments the active runs gauge.
func (m *Metrics) RunStarted() {
	m.ActiveRuns.Inc()
}

// RunEnded decrements the active runs gauge and records run duration.
//
// Example:
//
//	start := time.Now()
//	// ... run lifecycle ...
//	metrics.RunEnded("success", time.Since(start).Seconds())
func (m *Metrics) RunEnded(outcome string, durationSeconds float64) {
	m.ActiveRuns.Dec()
	m.RunDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordLLMCost records estimated API cost.
//
// Example:
//
//	metrics.RecordLLMCost("anthropic", "claude-sonnet-4-5", 0.015)
func (m *Metrics) RecordLLMCost(provider, model string, costUSD float64) {
	m.LLMCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordContextWindow records context window utilization.
//
// Example:
//
//	metrics.RecordContextWindow("anthropic", "claude-sonnet-4-5", 45000)
func (m *Metrics) RecordContextWindow(provider, model string, tokensUsed int) {
	m.ContextWindowUsed.WithLabelValues(provider, model).Observe(float64(tokensUsed))
}
