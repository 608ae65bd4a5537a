// Package supervisor implements the SupervisorAgent: plans a task into
// sub-goals, then repeatedly asks the LLM for the next orchestration
// decision — which agent to invoke next, or whether to finish — threading
// every prior agent's output through a rolling, keyed context map
// (spec.md 4.7).
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/synapserun/synapse/internal/handoff"
	"github.com/synapserun/synapse/internal/llm"
	"github.com/synapserun/synapse/internal/react"
	"github.com/synapserun/synapse/pkg/models"
)

// AgentHandle pairs a runnable agent with the handoff contract its
// results are checked against, if any.
type AgentHandle struct {
	Agent        *react.Agent
	ContractName string // empty if this agent's output needs no contract check
}

// Supervisor orchestrates a fixed roster of named agents.
type Supervisor struct {
	gateway               *llm.Gateway
	agents                map[string]AgentHandle
	handoff               *handoff.Coordinator
	maxSubGoals           int
	maxIterationsPerAgent int
}

// Config bounds supervisor behavior. Zero values select spec.md 4.7's
// documented defaults.
type Config struct {
	MaxSubGoals           int // default 5
	MaxIterationsPerAgent int // default 5
}

// New builds a Supervisor over agents (keyed by AgentConfig.Name).
func New(gateway *llm.Gateway, agents map[string]AgentHandle, coordinator *handoff.Coordinator, config Config) *Supervisor {
	if config.MaxSubGoals <= 0 {
		config.MaxSubGoals = 5
	}
	if config.MaxIterationsPerAgent <= 0 {
		config.MaxIterationsPerAgent = 5
	}
	return &Supervisor{
		gateway:               gateway,
		agents:                agents,
		handoff:               coordinator,
		maxSubGoals:           config.MaxSubGoals,
		maxIterationsPerAgent: config.MaxIterationsPerAgent,
	}
}

type plannedSubGoal struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// stepDecision is the parsed shape of one orchestration-step LLM response
// (spec.md 6's "Supervisor decision" protocol). SubGoals is populated only
// on the step-0 planning call.
type stepDecision struct {
	Thought       string           `json:"thought"`
	AgentToInvoke string           `json:"agent_to_invoke,omitempty"`
	AgentTask     string           `json:"agent_task,omitempty"`
	SubGoals      []plannedSubGoal `json:"sub_goals,omitempty"`
	IsFinal       bool             `json:"is_final"`
	FinalAnswer   string           `json:"final_answer,omitempty"`
}

// Orchestrate implements spec.md 4.7: a planning call (step 0) that
// decomposes task into an ordered sub-goal list, then an execution loop
// (steps 1..max_orchestration_steps) that asks the LLM at every step which
// agent to invoke next — or whether to finish — threading each agent's
// output through a context map keyed "<agent>_output" so downstream
// agents see upstream results.
func (s *Supervisor) Orchestrate(ctx context.Context, task string, maxSteps int) (*models.AgentResponse, error) {
	start := time.Now()

	progress, warnings, err := s.planTask(ctx, task)
	if err != nil {
		return s.failure(nil, 0, start, fmt.Errorf("planning failed: %w", err)), nil
	}

	invocations := make(map[string]int)
	contextMap := make(map[string]string)
	var notes []string
	notes = append(notes, warnings...)
	totalLLMCalls := 1 // the planning call
	validationFailures := 0

	for step := 0; step < maxSteps; step++ {
		if progress.AllCompleted() {
			return s.success(progress, invocations, totalLLMCalls, validationFailures, start), nil
		}

		decision, err := s.decideNextStep(ctx, task, progress, contextMap, notes)
		totalLLMCalls++
		if err != nil {
			return s.failure(invocations, totalLLMCalls, start, fmt.Errorf("orchestration decision failed: %w", err)), nil
		}

		if decision.IsFinal {
			confidence := progress.ProgressRatio()
			if progress.AllCompleted() {
				confidence = 1.0
			}
			return &models.AgentResponse{
				Kind:   models.ResponseSuccess,
				Result: decision.FinalAnswer,
				Metadata: models.OutputMetadata{
					Confidence:         confidence,
					ExecutionTimeMs:    time.Since(start).Milliseconds(),
					AgentName:          "supervisor",
					OrchestrationSteps: step + 1,
					AgentInvocations:   invocations,
					ValidationFailures: validationFailures,
					TotalLLMCalls:      totalLLMCalls,
				},
				Completion: models.Completion{Kind: models.CompletionComplete, Confidence: confidence},
			}, nil
		}

		pending := nextPending(progress)
		if pending == nil {
			continue
		}

		agentName := decision.AgentToInvoke
		handle, ok := s.agents[agentName]
		if !ok {
			_ = progress.Transition(pending.ID, models.SubGoalFailed, fmt.Sprintf("no agent named %q is registered", agentName))
			notes = append(notes, fmt.Sprintf("agent_to_invoke %q does not resolve to a registered agent; choose one from the catalog", agentName))
			continue
		}

		_ = progress.Transition(pending.ID, models.SubGoalInProgress, "")
		invocations[agentName]++

		agentTask := decision.AgentTask
		if agentTask == "" {
			agentTask = pending.Description
		}

		resp, err := handle.Agent.ExecuteTask(ctx, agentTask, s.maxIterationsPerAgent, agentContext(task, contextMap))
		totalLLMCalls += resp.Metadata.TotalLLMCalls
		if err != nil {
			_ = progress.Transition(pending.ID, models.SubGoalFailed, err.Error())
			continue
		}

		if handle.ContractName != "" {
			valResult, _ := s.handoff.ValidateHandoff(handle.ContractName, *resp)
			if !valResult.Valid {
				validationFailures++
				_ = progress.Transition(pending.ID, models.SubGoalFailed, "validation failed")
				notes = append(notes, fmt.Sprintf("%s's last handoff failed validation (%s); do not reuse that output", agentName, handoffFailureSummary(valResult)))
				continue
			}
		}

		switch resp.Kind {
		case models.ResponseSuccess:
			_ = progress.Transition(pending.ID, models.SubGoalCompleted, resp.Result)
			contextMap[agentName+"_output"] = resp.Result
		case models.ResponseTimeout:
			_ = progress.Transition(pending.ID, models.SubGoalFailed, "agent timed out: "+resp.PartialResult)
		default:
			_ = progress.Transition(pending.ID, models.SubGoalFailed, resp.Error)
		}
	}

	if progress.AllCompleted() {
		return s.success(progress, invocations, totalLLMCalls, validationFailures, start), nil
	}
	return s.timeout(progress, invocations, totalLLMCalls, validationFailures, start), nil
}

// agentContext merges the rolling inter-agent context map with the
// original task text under a reserved "task" key, giving the invoked
// agent the same view of prior results the orchestration loop has.
func agentContext(task string, contextMap map[string]string) map[string]string {
	ctx := make(map[string]string, len(contextMap)+1)
	for k, v := range contextMap {
		ctx[k] = v
	}
	ctx["task"] = task
	return ctx
}

func nextPending(progress *models.TaskProgress) *models.SubGoal {
	for _, g := range progress.Goals() {
		if g.Status == models.SubGoalPending {
			goal := g
			return &goal
		}
	}
	return nil
}

// planTask asks the LLM to decompose task into an ordered sub-goal list
// (spec.md 4.7 step 1 / "planning step"). Agent assignment happens later,
// per step, in decideNextStep — the plan only declares what needs doing.
func (s *Supervisor) planTask(ctx context.Context, task string) (*models.TaskProgress, []string, error) {
	history := models.ConversationHistory{
		{Role: models.RoleSystem, Content: s.planningPrompt()},
		{Role: models.RoleUser, Content: task},
	}
	text, err := s.gateway.Complete(ctx, history, llm.Options{ResponseFormat: "json"})
	if err != nil {
		return nil, nil, err
	}

	d, err := parseStepDecision(text)
	if err != nil {
		return nil, nil, err
	}
	if len(d.SubGoals) == 0 {
		return nil, nil, fmt.Errorf("planner produced no sub-goals")
	}

	var warnings []string
	if len(d.SubGoals) > s.maxSubGoals {
		warnings = append(warnings, fmt.Sprintf("planner declared %d sub-goals, truncated to the first %d", len(d.SubGoals), s.maxSubGoals))
		d.SubGoals = d.SubGoals[:s.maxSubGoals]
	}

	declared := make([]models.SubGoal, 0, len(d.SubGoals))
	for _, sg := range d.SubGoals {
		declared = append(declared, models.SubGoal{ID: sg.ID, Description: sg.Description})
	}
	return models.NewTaskProgress(declared), warnings, nil
}

// decideNextStep implements spec.md 4.7 step 2.a: ask the LLM for the
// next decision given the task, the sub-goal table with statuses, the
// rolling per-agent context map, and the agent catalog.
func (s *Supervisor) decideNextStep(ctx context.Context, task string, progress *models.TaskProgress, contextMap map[string]string, notes []string) (stepDecision, error) {
	history := models.ConversationHistory{
		{Role: models.RoleSystem, Content: s.decisionPrompt(task, progress, contextMap, notes)},
		{Role: models.RoleUser, Content: task},
	}
	text, err := s.gateway.Complete(ctx, history, llm.Options{ResponseFormat: "json"})
	if err != nil {
		return stepDecision{}, err
	}
	return parseStepDecision(text)
}

func parseStepDecision(text string) (stepDecision, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return stepDecision{}, fmt.Errorf("response contained no JSON object")
	}
	var d stepDecision
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return stepDecision{}, fmt.Errorf("invalid decision JSON: %w", err)
	}
	if d.IsFinal && d.FinalAnswer == "" {
		return stepDecision{}, fmt.Errorf("decision sets is_final without a final_answer")
	}
	return d, nil
}

func (s *Supervisor) planningPrompt() string {
	var b strings.Builder
	b.WriteString("You are an orchestration planner. Decompose the user's task into an ordered list of at most ")
	fmt.Fprintf(&b, "%d sub-goals, each a unit of work someone else will carry out.\n\n", s.maxSubGoals)
	b.WriteString("Respond with exactly one JSON object:\n")
	b.WriteString(`{"thought": "...", "sub_goals": [{"id": "1", "description": "..."}, ...], "is_final": false}`)
	return b.String()
}

// decisionPrompt renders the per-step orchestration prompt: the sub-goal
// table (declared order, with current statuses), the rolling context map,
// the agent catalog, and any corrective notes from a prior failed step.
func (s *Supervisor) decisionPrompt(task string, progress *models.TaskProgress, contextMap map[string]string, notes []string) string {
	var b strings.Builder
	b.WriteString("You are an orchestration supervisor deciding the next step for this task:\n")
	b.WriteString(task)
	b.WriteString("\n\nSub-goals:\n")
	for _, g := range progress.Goals() {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", g.Status, g.ID, g.Description)
	}

	if len(contextMap) > 0 {
		b.WriteString("\nContext from prior agents:\n")
		for k, v := range contextMap {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}

	b.WriteString("\nAvailable agents:\n")
	for name, handle := range s.agents {
		fmt.Fprintf(&b, "- %s: %s\n", name, handle.Agent.Name())
	}

	for _, n := range notes {
		fmt.Fprintf(&b, "\nNote: %s\n", n)
	}

	b.WriteString("\nRespond with exactly one JSON object, either:\n")
	b.WriteString(`  {"thought": "...", "agent_to_invoke": "agent_name", "agent_task": "...", "is_final": false}` + "\n")
	b.WriteString(`  {"thought": "...", "is_final": true, "final_answer": "..."}` + "\n")
	return b.String()
}

func handoffFailureSummary(result *models.ValidationResult) string {
	var parts []string
	for _, e := range result.Errors {
		parts = append(parts, string(e.Kind)+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}

func (s *Supervisor) success(progress *models.TaskProgress, invocations map[string]int, llmCalls, validationFailures int, start time.Time) *models.AgentResponse {
	return &models.AgentResponse{
		Kind:   models.ResponseSuccess,
		Result: aggregateResults(progress),
		Metadata: models.OutputMetadata{
			Confidence:         progress.ProgressRatio(),
			ExecutionTimeMs:    time.Since(start).Milliseconds(),
			AgentName:          "supervisor",
			OrchestrationSteps: len(progress.Goals()),
			AgentInvocations:   invocations,
			ValidationFailures: validationFailures,
			TotalLLMCalls:      llmCalls,
		},
		Completion: models.Completion{Kind: models.CompletionComplete, Confidence: progress.ProgressRatio()},
	}
}

func (s *Supervisor) timeout(progress *models.TaskProgress, invocations map[string]int, llmCalls, validationFailures int, start time.Time) *models.AgentResponse {
	return &models.AgentResponse{
		Kind:          models.ResponseTimeout,
		PartialResult: progress.DetailedStatus(),
		Metadata: models.OutputMetadata{
			ExecutionTimeMs:    time.Since(start).Milliseconds(),
			AgentName:          "supervisor",
			OrchestrationSteps: len(progress.Goals()),
			AgentInvocations:   invocations,
			ValidationFailures: validationFailures,
			TotalLLMCalls:      llmCalls,
		},
		Completion: models.Completion{Kind: models.CompletionPartial, Progress: progress.ProgressRatio(), NextSteps: progress.PendingDescriptions()},
	}
}

func (s *Supervisor) failure(invocations map[string]int, llmCalls int, start time.Time, cause error) *models.AgentResponse {
	if invocations == nil {
		invocations = map[string]int{}
	}
	return &models.AgentResponse{
		Kind:  models.ResponseFailure,
		Error: cause.Error(),
		Metadata: models.OutputMetadata{
			ExecutionTimeMs:  time.Since(start).Milliseconds(),
			AgentName:        "supervisor",
			AgentInvocations: invocations,
			TotalLLMCalls:    llmCalls,
		},
		Completion: models.Completion{Kind: models.CompletionFailed, Error: cause.Error()},
	}
}

func aggregateResults(progress *models.TaskProgress) string {
	var b strings.Builder
	for i, g := range progress.Goals() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", g.Description, g.Result)
	}
	return b.String()
}
