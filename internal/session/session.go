package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/synapserun/synapse/pkg/models"
)

// Runner is the minimal surface a Session needs from whatever executes a
// turn — satisfied by *react.Agent.ExecuteTask and, for sessions backed
// by full orchestration, an adapter over *supervisor.Supervisor.Orchestrate.
type Runner interface {
	ExecuteTask(ctx context.Context, task string, maxIterations int, extraContext map[string]string) (*models.AgentResponse, error)
}

// Session is spec.md 3's Session entity: `{ id, history, storage }`. It
// exclusively owns its ConversationHistory for its lifetime in memory
// and shares the storage back-end, flushing every successful turn.
type Session struct {
	id      string
	runner  Runner
	storage ConversationStore
	history models.ConversationHistory
}

// Create builds a new Session with the given id (generating a uuid if
// empty) against runner, persisting through storage. Matches spec.md 6's
// `session.create(id, storage_kind)` — storage_kind selection (memory,
// file, sqlite) is the caller's concern; Create takes the already-built
// ConversationStore.
func Create(ctx context.Context, id string, runner Runner, storage ConversationStore) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	history, err := storage.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: loading existing history for %q: %w", id, err)
	}
	return &Session{id: id, runner: runner, storage: storage, history: history}, nil
}

// ID returns the session's id.
func (s *Session) ID() string { return s.id }

// SendMessage runs one turn: appends text as a user message, executes it
// against the session's runner, appends the resulting assistant message,
// and flushes the updated history to storage. Per spec.md 3's invariant,
// a successful call appends at least one user and one assistant message.
func (s *Session) SendMessage(ctx context.Context, text string, maxIterations int) (*models.AgentResponse, error) {
	s.history = s.history.Append(models.ChatMessage{Role: models.RoleUser, Content: text})

	resp, err := s.runner.ExecuteTask(ctx, text, maxIterations, nil)
	if err != nil {
		return nil, err
	}

	assistantContent := resp.Result
	if resp.Kind != models.ResponseSuccess {
		assistantContent = resp.Error
		if resp.Kind == models.ResponseTimeout {
			assistantContent = resp.PartialResult
		}
	}
	s.history = s.history.Append(models.ChatMessage{Role: models.RoleAssistant, Content: assistantContent})

	if err := s.storage.Save(ctx, s.id, s.history); err != nil {
		return resp, fmt.Errorf("session: flushing history: %w", err)
	}
	return resp, nil
}

// Clear discards the session's history, in memory and in storage.
func (s *Session) Clear(ctx context.Context) error {
	s.history = models.ConversationHistory{}
	return s.storage.Save(ctx, s.id, s.history)
}

// MessageCount reports how many messages the session currently holds.
func (s *Session) MessageCount() int { return len(s.history) }

// History returns a copy of the session's current conversation history.
func (s *Session) History() models.ConversationHistory {
	return cloneHistory(s.history)
}
