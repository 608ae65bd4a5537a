// Package router implements router.route_task (spec.md 6): a single LLM
// classification call that picks exactly one agent for a task and hands
// it off. Unlike SupervisorAgent's return-ticket orchestration (4.7),
// this is a one-way ticket — the router never sees the agent's response
// and never re-routes.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/synapserun/synapse/internal/llm"
	"github.com/synapserun/synapse/pkg/models"
)

// AgentDescriptor is the routing-relevant slice of an agent's
// configuration: enough for the classifier prompt to tell agents apart
// without pulling in internal/react's Agent type (which would cycle
// back through internal/actor).
type AgentDescriptor struct {
	Name        string
	Description string
}

// Router selects one agent by LLM intent classification. It implements
// internal/actor.Router so the actor runtime can host it as the single
// "router" actor (models.RouterActor()).
type Router struct {
	gateway *llm.Gateway
	agents  []AgentDescriptor
}

// New builds a Router over a fixed candidate set. agents is the full
// registered set; route_task callers may narrow it per call via
// WithCandidates.
func New(gateway *llm.Gateway, agents []AgentDescriptor) *Router {
	sorted := append([]AgentDescriptor(nil), agents...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Router{gateway: gateway, agents: sorted}
}

// decision is the classifier's required JSON response shape. It is
// intentionally narrower than models.AgentDecision (4.6's ReAct
// decision) and the supervisor's per-step plan (4.7) — the router
// only ever answers "which one agent."
type decision struct {
	Thought      string `json:"thought"`
	AgentToInvoke string `json:"agent_to_invoke"`
}

// Route runs one LLM call classifying task against the router's
// candidate agents and returns the chosen agent's name. A malformed or
// out-of-catalog response is one corrective retry, then a
// ConfigurationError-flavored failure — route_task never partially
// delegates.
func (r *Router) Route(ctx context.Context, task string) (string, error) {
	if len(r.agents) == 0 {
		return "", fmt.Errorf("router: no candidate agents registered")
	}
	if len(r.agents) == 1 {
		return r.agents[0].Name, nil
	}

	history := models.ConversationHistory{
		{Role: models.RoleSystem, Content: r.classifierPrompt()},
		{Role: models.RoleUser, Content: task},
	}

	text, err := r.gateway.Complete(ctx, history, llm.Options{ResponseFormat: "json"})
	if err != nil {
		return "", fmt.Errorf("router: classification call failed: %w", err)
	}
	name, parseErr := r.extractAgent(text)
	if parseErr == nil {
		return name, nil
	}

	retryHistory := history.Append(models.ChatMessage{Role: models.RoleAssistant, Content: text}).
		Append(models.ChatMessage{Role: models.RoleUser, Content: fmt.Sprintf(
			"Your previous response could not be used: %v. Respond again with exactly one JSON object: "+
				`{"thought": "...", "agent_to_invoke": "<one of the listed agent names>"}`, parseErr)})
	retryText, err := r.gateway.Complete(ctx, retryHistory, llm.Options{ResponseFormat: "json"})
	if err != nil {
		return "", fmt.Errorf("router: classification retry call failed: %w", err)
	}
	name, parseErr = r.extractAgent(retryText)
	if parseErr != nil {
		return "", fmt.Errorf("router: could not classify task to a registered agent after one correction: %w", parseErr)
	}
	return name, nil
}

func (r *Router) classifierPrompt() string {
	var b strings.Builder
	b.WriteString("You route incoming tasks to exactly one specialized agent. Read the task and choose the single best agent from this list:\n\n")
	for _, a := range r.agents {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.Description)
	}
	b.WriteString("\nRespond with exactly one JSON object and nothing else:\n")
	b.WriteString(`  {"thought": "...", "agent_to_invoke": "<one of the agent names above>"}` + "\n")
	return b.String()
}

func (r *Router) extractAgent(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	var d decision
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return "", fmt.Errorf("invalid routing decision JSON: %w", err)
	}
	name := strings.TrimSpace(d.AgentToInvoke)
	if name == "" {
		return "", fmt.Errorf("agent_to_invoke is empty")
	}
	for _, a := range r.agents {
		if a.Name == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("agent_to_invoke %q is not a registered agent", name)
}
