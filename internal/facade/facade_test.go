package facade

import (
	"context"
	"log/slog"
	"testing"

	"github.com/synapserun/synapse/internal/config"
	"github.com/synapserun/synapse/internal/handoff"
	"github.com/synapserun/synapse/internal/llm"
	"github.com/synapserun/synapse/internal/react"
	"github.com/synapserun/synapse/internal/session"
	"github.com/synapserun/synapse/internal/supervisor"
	"github.com/synapserun/synapse/internal/tool"
	"github.com/synapserun/synapse/internal/toolexec"
	"github.com/synapserun/synapse/internal/validate"
	"github.com/synapserun/synapse/pkg/models"
)

// scriptedProvider answers Complete/CompleteStream with a fixed, ordered
// set of responses, then repeats its last answer — the same fake-provider
// idiom internal/react and internal/router tests use.
type scriptedProvider struct {
	responses []string
	i         int
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Complete(ctx context.Context, _ models.ConversationHistory, _ llm.Options) (string, error) {
	if len(s.responses) == 0 {
		return `{"thought":"done","is_final":true,"final_answer":"ok"}`, nil
	}
	if s.i >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	r := s.responses[s.i]
	s.i++
	return r, nil
}

func (s *scriptedProvider) CompleteStream(ctx context.Context, h models.ConversationHistory, opts llm.Options, sink llm.StreamSink) (string, error) {
	text, err := s.Complete(ctx, h, opts)
	if err == nil && sink != nil {
		sink(text)
	}
	return text, err
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Agent:  config.AgentConfig{MaxIterations: 5, MaxOrchestrationSteps: 5, MaxSubGoals: 5},
		System: config.SystemConfig{ChannelBufferSize: 16, HeartbeatIntervalMS: 5000, HeartbeatTimeoutMS: 15000, CheckIntervalMS: 2000},
	}
	return cfg
}

func newTestFacade(t *testing.T, responses []string) *Facade {
	t.Helper()
	return &Facade{
		cfg:          testConfig(),
		logger:       slog.Default(),
		gateway:      llm.NewGateway(&scriptedProvider{responses: responses}, 0, false),
		registry:     tool.NewRegistry(),
		executor:     toolexec.New(toolexec.DefaultConfig()),
		coordinator:  handoff.New(validate.New()),
		agentHandles: make(map[string]supervisor.AgentHandle),
		agents:       make(map[string]*react.Agent),
		sessions:     make(map[string]*session.Session),
	}
}

func TestInitIsIdempotent(t *testing.T) {
	f := newTestFacade(t, nil)
	roster := []AgentSpec{{Name: "researcher", Description: "finds facts"}}
	if err := f.Init(context.Background(), roster); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := f.Init(context.Background(), roster); err != nil {
		t.Fatalf("second init: %v", err)
	}
	f.Shutdown()
}

func TestInitRejectsEmptyRoster(t *testing.T) {
	f := newTestFacade(t, nil)
	if err := f.Init(context.Background(), nil); err == nil {
		t.Fatal("expected an error for an empty roster")
	}
}

func TestGenerateTextRequiresInit(t *testing.T) {
	f := newTestFacade(t, []string{"hello"})
	if _, err := f.GenerateText(context.Background(), "hi", llm.Options{}); err == nil {
		t.Fatal("expected an error before init")
	}
}

func TestGenerateText(t *testing.T) {
	f := newTestFacade(t, []string{"hello there"})
	if err := f.Init(context.Background(), []AgentSpec{{Name: "a"}}); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer f.Shutdown()

	text, err := f.GenerateText(context.Background(), "hi", llm.Options{})
	if err != nil {
		t.Fatalf("generate text: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("text = %q", text)
	}
}

func TestRunTask(t *testing.T) {
	f := newTestFacade(t, []string{`{"thought":"easy","is_final":true,"final_answer":"42"}`})
	roster := []AgentSpec{{Name: "solver", Description: "solves things"}}
	if err := f.Init(context.Background(), roster); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer f.Shutdown()

	resp, err := f.RunTask(context.Background(), "solver", "what is the answer", 0)
	if err != nil {
		t.Fatalf("run task: %v", err)
	}
	if resp.Kind != models.ResponseSuccess || resp.Result != "42" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestRouteTaskDelegatesOnce(t *testing.T) {
	responses := []string{
		`{"thought":"route to coder","agent_to_invoke":"coder"}`,
		`{"thought":"done","is_final":true,"final_answer":"written"}`,
	}
	f := newTestFacade(t, responses)
	roster := []AgentSpec{
		{Name: "researcher", Description: "finds facts"},
		{Name: "coder", Description: "writes code"},
	}
	if err := f.Init(context.Background(), roster); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer f.Shutdown()

	resp, err := f.RouteTask(context.Background(), "write a function", 0)
	if err != nil {
		t.Fatalf("route task: %v", err)
	}
	if resp.Kind != models.ResponseSuccess || resp.Result != "written" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestOrchestrateSingleAgentSingleSubgoal(t *testing.T) {
	responses := []string{
		`{"sub_goals":[{"id":"g1","description":"do it"}]}`,                            // planning (step 0)
		`{"agent_to_invoke":"worker","agent_task":"do it","is_final":false}`,           // orchestration decision
		`{"thought":"done","is_final":true,"final_answer":"finished"}`,                 // worker's own ReAct decision
	}
	f := newTestFacade(t, responses)
	roster := []AgentSpec{{Name: "worker", Description: "does work"}}
	if err := f.Init(context.Background(), roster); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer f.Shutdown()

	resp, err := f.Orchestrate(context.Background(), "finish the thing", 0)
	if err != nil {
		t.Fatalf("orchestrate: %v", err)
	}
	if resp.Kind != models.ResponseSuccess {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestOrchestrateWithValidationUnknownContract(t *testing.T) {
	f := newTestFacade(t, nil)
	roster := []AgentSpec{{Name: "worker", Description: "does work"}}
	if err := f.Init(context.Background(), roster); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer f.Shutdown()

	if _, err := f.OrchestrateWithValidation(context.Background(), "not-a-contract", "task", 0); err == nil {
		t.Fatal("expected a configuration error for an unregistered contract")
	}
}

func TestSessionCreateSendClear(t *testing.T) {
	responses := []string{`{"thought":"hi","is_final":true,"final_answer":"hello back"}`}
	f := newTestFacade(t, responses)
	roster := []AgentSpec{{Name: "chatter", Description: "chats"}}
	if err := f.Init(context.Background(), roster); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer f.Shutdown()

	sess, err := f.SessionCreate(context.Background(), "sess-1", "memory", "chatter")
	if err != nil {
		t.Fatalf("session create: %v", err)
	}
	resp, err := sess.SendMessage(context.Background(), "hi", 0)
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if resp.Result != "hello back" {
		t.Fatalf("resp = %+v", resp)
	}
	if sess.MessageCount() != 2 {
		t.Fatalf("message count = %d, want 2", sess.MessageCount())
	}
	if err := sess.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if sess.MessageCount() != 0 {
		t.Fatalf("message count after clear = %d", sess.MessageCount())
	}

	if _, ok := f.Session("sess-1"); !ok {
		t.Fatal("expected session to be retrievable by id")
	}
}
