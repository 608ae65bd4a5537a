package router

import (
	"context"
	"testing"

	"github.com/synapserun/synapse/internal/llm"
	"github.com/synapserun/synapse/pkg/models"
)

type scriptedProvider struct {
	responses []string
	i         int
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Complete(ctx context.Context, _ models.ConversationHistory, _ llm.Options) (string, error) {
	if s.i >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	r := s.responses[s.i]
	s.i++
	return r, nil
}

func (s *scriptedProvider) CompleteStream(ctx context.Context, h models.ConversationHistory, opts llm.Options, sink llm.StreamSink) (string, error) {
	return s.Complete(ctx, h, opts)
}

func newTestRouter(responses []string, agents ...AgentDescriptor) *Router {
	gw := llm.NewGateway(&scriptedProvider{responses: responses}, 0, false)
	return New(gw, agents)
}

func TestRouteSingleCandidateSkipsClassification(t *testing.T) {
	r := newTestRouter(nil, AgentDescriptor{Name: "researcher", Description: "finds facts"})
	name, err := r.Route(context.Background(), "look something up")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "researcher" {
		t.Fatalf("name = %q, want researcher", name)
	}
}

func TestRoutePicksClassifiedAgent(t *testing.T) {
	r := newTestRouter(
		[]string{`{"thought":"needs code","agent_to_invoke":"coder"}`},
		AgentDescriptor{Name: "researcher", Description: "finds facts"},
		AgentDescriptor{Name: "coder", Description: "writes code"},
	)
	name, err := r.Route(context.Background(), "write a sorting function")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "coder" {
		t.Fatalf("name = %q, want coder", name)
	}
}

func TestRouteCorrectsUnknownAgentOnce(t *testing.T) {
	r := newTestRouter(
		[]string{
			`{"thought":"hmm","agent_to_invoke":"not-a-real-agent"}`,
			`{"thought":"retry","agent_to_invoke":"coder"}`,
		},
		AgentDescriptor{Name: "researcher", Description: "finds facts"},
		AgentDescriptor{Name: "coder", Description: "writes code"},
	)
	name, err := r.Route(context.Background(), "write a sorting function")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "coder" {
		t.Fatalf("name = %q, want coder", name)
	}
}

func TestRouteFailsAfterTwoInvalidResponses(t *testing.T) {
	r := newTestRouter(
		[]string{
			`not json at all`,
			`{"thought":"still bad","agent_to_invoke":""}`,
		},
		AgentDescriptor{Name: "researcher", Description: "finds facts"},
		AgentDescriptor{Name: "coder", Description: "writes code"},
	)
	_, err := r.Route(context.Background(), "do something")
	if err == nil {
		t.Fatal("expected an error after two invalid classifier responses")
	}
}

func TestRouteNoCandidates(t *testing.T) {
	r := newTestRouter(nil)
	_, err := r.Route(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected an error with no candidate agents")
	}
}
