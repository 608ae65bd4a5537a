// Package react implements the SpecializedAgent: a single ReAct loop that
// alternates LLM reasoning with tool execution until the model emits a
// final answer, a loop budget is exhausted, or two consecutive LLM-parse
// failures make forward progress impossible (spec.md 4.6). Tool failures,
// including an unresolvable tool name, are recoverable: they are reported
// back to the model as an observation and never end the loop on their own.
package react

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/synapserun/synapse/internal/llm"
	"github.com/synapserun/synapse/internal/tool"
	"github.com/synapserun/synapse/internal/toolexec"
	"github.com/synapserun/synapse/pkg/models"
)

// Agent runs one specialized agent's ReAct loop against a scoped tool
// registry and a shared LLMGateway.
type Agent struct {
	config   models.AgentConfig
	tools    *tool.Registry
	gateway  *llm.Gateway
	executor *toolexec.Executor
}

// New builds an Agent. tools should already be scoped to config.Tools
// (see tool.Registry.Subset) — the agent never sees tools outside its
// own configuration.
func New(config models.AgentConfig, tools *tool.Registry, gateway *llm.Gateway, executor *toolexec.Executor) *Agent {
	return &Agent{config: config, tools: tools, gateway: gateway, executor: executor}
}

// Name is the agent's configured name, used by SupervisorAgent to
// address it and to key per-agent invocation counts.
func (a *Agent) Name() string { return a.config.Name }

const maxJSONCorrections = 1

// ExecuteTask runs the agent's ReAct loop over task, bounded by
// maxIterations, with optional extra context rendered under a "CONTEXT
// DATA" heading in the system prompt.
func (a *Agent) ExecuteTask(ctx context.Context, task string, maxIterations int, extraContext map[string]string) (*models.AgentResponse, error) {
	start := time.Now()
	history := models.ConversationHistory{
		{Role: models.RoleSystem, Content: a.systemPrompt(extraContext)},
		{Role: models.RoleUser, Content: task},
	}

	var steps []models.AgentStep
	var toolCalls []models.ToolCallRecord
	consecutiveParseFailures := 0
	llmCalls := 0

	for iter := 0; iter < maxIterations; iter++ {
		decision, decisionText, err := a.decide(ctx, history)
		llmCalls++
		if err != nil {
			consecutiveParseFailures++
			if consecutiveParseFailures >= 2 {
				return a.failure(steps, toolCalls, llmCalls, start, fmt.Errorf("agent could not produce a valid decision: %w", err)), nil
			}
			history = history.Append(models.ChatMessage{Role: models.RoleUser, Content: correctiveRetryPrompt(err)})
			continue
		}
		consecutiveParseFailures = 0
		history = history.Append(models.ChatMessage{Role: models.RoleAssistant, Content: decisionText})

		if decision.IsFinal {
			steps = append(steps, models.AgentStep{Iteration: iter, Thought: decision.Thought})
			return a.success(decision.FinalAnswer, steps, toolCalls, llmCalls, start), nil
		}

		// Tool outcomes, including tool-not-found, are recoverable: they are
		// fed back to the LLM as an observation and never terminate the loop
		// (spec.md 4.6 step 3.d). Only parse failures are fatal.
		observation, callRecord, failed := a.act(ctx, *decision.Action)
		toolCalls = append(toolCalls, callRecord)
		steps = append(steps, models.AgentStep{
			Iteration:   iter,
			Thought:     decision.Thought,
			Action:      decision.Action,
			Observation: &observation,
		})

		if !failed && a.config.ReturnToolOutput {
			return a.success(observation, steps, toolCalls, llmCalls, start), nil
		}

		history = history.Append(models.ChatMessage{
			Role:    models.RoleUser,
			Content: observationFollowUp(observation),
		})
	}

	return a.timeout(steps, toolCalls, llmCalls, maxIterations, start), nil
}

// decide issues one LLM call and parses its response as an AgentDecision,
// applying one corrective retry if the first response does not contain a
// valid decision (spec.md 4.6: "one corrective retry before fatal").
func (a *Agent) decide(ctx context.Context, history models.ConversationHistory) (models.AgentDecision, string, error) {
	text, err := a.gateway.Complete(ctx, history, llm.Options{ResponseFormat: "json"})
	if err != nil {
		return models.AgentDecision{}, "", fmt.Errorf("llm call failed: %w", err)
	}

	decision, parseErr := extractDecision(text)
	if parseErr == nil {
		return decision, text, nil
	}

	correctionHistory := history.Append(models.ChatMessage{Role: models.RoleAssistant, Content: text}).
		Append(models.ChatMessage{Role: models.RoleUser, Content: correctiveRetryPrompt(parseErr)})
	retryText, err := a.gateway.Complete(ctx, correctionHistory, llm.Options{ResponseFormat: "json"})
	if err != nil {
		return models.AgentDecision{}, "", fmt.Errorf("llm call failed on corrective retry: %w", err)
	}
	decision, parseErr = extractDecision(retryText)
	if parseErr != nil {
		return models.AgentDecision{}, "", fmt.Errorf("model did not return a parseable decision after %d correction: %w", maxJSONCorrections, parseErr)
	}
	return decision, retryText, nil
}

// act resolves and invokes one tool call, returning a textual observation
// suitable for the next turn, a summary record for OutputMetadata, and
// whether the call failed (a failed call is still a recoverable
// observation, never fatal on its own).
func (a *Agent) act(ctx context.Context, invocation models.ToolInvocation) (string, models.ToolCallRecord, bool) {
	record := models.ToolCallRecord{Name: invocation.ToolName, Args: string(invocation.Arguments)}

	t, ok := a.tools.Get(invocation.ToolName)
	if !ok {
		observation := fmt.Sprintf("Tool failed: tool %q is not available to this agent", invocation.ToolName)
		record.Result = observation
		return observation, record, true
	}

	result, err := a.executor.Execute(ctx, t, invocation.Arguments)
	if err != nil {
		observation := fmt.Sprintf("Tool failed: %v", err)
		record.Result = observation
		return observation, record, true
	}
	if !result.Success {
		observation := fmt.Sprintf("Tool failed: %s", result.Error)
		record.Result = observation
		return observation, record, true
	}
	record.Result = result.Output
	return result.Output, record, false
}

func (a *Agent) systemPrompt(extraContext map[string]string) string {
	var b strings.Builder
	b.WriteString(a.config.SystemPrompt)
	b.WriteString("\n\nAvailable tools:\n")
	b.WriteString(a.tools.CatalogText())
	b.WriteString("\n\nRespond with exactly one JSON object per turn, either:\n")
	b.WriteString(`  {"thought": "...", "action": {"tool": "name", "input": {...}}, "is_final": false}` + "\n")
	b.WriteString(`  {"thought": "...", "is_final": true, "final_answer": "..."}` + "\n")

	if len(extraContext) > 0 {
		b.WriteString("\nCONTEXT DATA\n")
		for k, v := range extraContext {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}
	return b.String()
}

func observationFollowUp(observation string) string {
	return fmt.Sprintf("Observation: %s\nDoes this observation contain the answer to the original task? If so, respond with is_final=true and the final_answer. Otherwise continue with another thought/action.", observation)
}

func correctiveRetryPrompt(err error) string {
	return fmt.Sprintf("Your previous response could not be parsed: %v. Respond again with exactly one well-formed JSON object matching the required shape, and nothing else.", err)
}

// extractDecision locates the outermost JSON object in text and decodes
// it as an AgentDecision, enforcing the is_final invariant.
func extractDecision(text string) (models.AgentDecision, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return models.AgentDecision{}, fmt.Errorf("no JSON object found in response")
	}
	var decision models.AgentDecision
	if err := json.Unmarshal([]byte(text[start:end+1]), &decision); err != nil {
		return models.AgentDecision{}, fmt.Errorf("invalid decision JSON: %w", err)
	}
	if err := decision.Validate(); err != nil {
		return models.AgentDecision{}, fmt.Errorf("decision violates is_final invariant: %w", err)
	}
	return decision, nil
}

func (a *Agent) success(result string, steps []models.AgentStep, calls []models.ToolCallRecord, llmCalls int, start time.Time) *models.AgentResponse {
	return &models.AgentResponse{
		Kind:   models.ResponseSuccess,
		Result: result,
		Steps:  steps,
		Metadata: models.OutputMetadata{
			Confidence:      1.0,
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			AgentName:       a.config.Name,
			ToolCalls:       calls,
			TotalLLMCalls:   llmCalls,
			SchemaVersion:   a.config.ResponseSchema,
		},
		Completion: models.Completion{Kind: models.CompletionComplete, Confidence: 1.0},
	}
}

func (a *Agent) failure(steps []models.AgentStep, calls []models.ToolCallRecord, llmCalls int, start time.Time, cause error) *models.AgentResponse {
	return &models.AgentResponse{
		Kind:  models.ResponseFailure,
		Error: cause.Error(),
		Steps: steps,
		Metadata: models.OutputMetadata{
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			AgentName:       a.config.Name,
			ToolCalls:       calls,
			TotalLLMCalls:   llmCalls,
		},
		Completion: models.Completion{Kind: models.CompletionFailed, Error: cause.Error(), Recoverable: true},
	}
}

func (a *Agent) timeout(steps []models.AgentStep, calls []models.ToolCallRecord, llmCalls int, maxIterations int, start time.Time) *models.AgentResponse {
	last := "Max iterations reached"
	if len(steps) > 0 && steps[len(steps)-1].Observation != nil {
		last = *steps[len(steps)-1].Observation
	}
	progress := 0.0
	if maxIterations > 0 {
		progress = float64(len(steps)) / float64(maxIterations)
	}
	return &models.AgentResponse{
		Kind:          models.ResponseTimeout,
		PartialResult: last,
		Steps:         steps,
		Metadata: models.OutputMetadata{
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			AgentName:       a.config.Name,
			ToolCalls:       calls,
			TotalLLMCalls:   llmCalls,
		},
		Completion: models.Completion{Kind: models.CompletionPartial, Progress: progress},
	}
}
