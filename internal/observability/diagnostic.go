// Package observability provides diagnostic event types and emission.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// DiagnosticActorState represents the lifecycle state of an actor.
type DiagnosticActorState string

const (
	ActorStateIdle       DiagnosticActorState = "idle"
	ActorStateProcessing DiagnosticActorState = "processing"
	ActorStateWaiting    DiagnosticActorState = "waiting"
)

// DiagnosticEventType identifies the type of diagnostic event.
type DiagnosticEventType string

const (
	EventTypeModelUsage          DiagnosticEventType = "model.usage"
	EventTypeActorRestart        DiagnosticEventType = "actor.restart"
	EventTypeHeartbeatMissed     DiagnosticEventType = "actor.heartbeat_missed"
	EventTypeMailboxEnqueue      DiagnosticEventType = "mailbox.enqueue"
	EventTypeMailboxDequeue      DiagnosticEventType = "mailbox.dequeue"
	EventTypeOrchestrationStep   DiagnosticEventType = "orchestration.step"
	EventTypeActorState          DiagnosticEventType = "actor.state"
	EventTypeActorStuck          DiagnosticEventType = "actor.stuck"
	EventTypeRunAttempt          DiagnosticEventType = "run.attempt"
	EventTypeHandoffValidation   DiagnosticEventType = "handoff.validation"
	EventTypeDiagnosticHeartbeat DiagnosticEventType = "diagnostic.heartbeat"
)

// DiagnosticEvent is the base event structure.
type DiagnosticEvent struct {
	Type DiagnosticEventType `json:"type"`
	Seq  int64               `json:"seq"`
	Ts   int64               `json:"ts"`
}

// ModelUsageEvent tracks token usage for a model request.
type ModelUsageEvent struct {
	DiagnosticEvent
	RunID      string          `json:"run_id,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Actor      string          `json:"actor,omitempty"`
	Provider   string          `json:"provider,omitempty"`
	Model      string          `json:"model,omitempty"`
	Usage      UsageDetails    `json:"usage"`
	Context    *ContextDetails `json:"context,omitempty"`
	CostUSD    float64         `json:"cost_usd,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// UsageDetails contains token usage breakdown.
type UsageDetails struct {
	Input        int64 `json:"input,omitempty"`
	Output       int64 `json:"output,omitempty"`
	CacheRead    int64 `json:"cache_read,omitempty"`
	CacheWrite   int64 `json:"cache_write,omitempty"`
	PromptTokens int64 `json:"prompt_tokens,omitempty"`
	Total        int64 `json:"total,omitempty"`
}

// ContextDetails contains context window information.
type ContextDetails struct {
	Limit int64 `json:"limit,omitempty"`
	Used  int64 `json:"used,omitempty"`
}

// ActorRestartEvent tracks an actor restart.
type ActorRestartEvent struct {
	DiagnosticEvent
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// HeartbeatMissedEvent tracks a missed actor heartbeat.
type HeartbeatMissedEvent struct {
	DiagnosticEvent
	Actor       string `json:"actor"`
	MissedCount int    `json:"missed_count,omitempty"`
}

// MailboxEnqueueEvent tracks an actor mailbox enqueue.
type MailboxEnqueueEvent struct {
	DiagnosticEvent
	Actor      string `json:"actor"`
	Source     string `json:"source"`
	QueueDepth int    `json:"queue_depth,omitempty"`
}

// MailboxDequeueEvent tracks an actor mailbox dequeue.
type MailboxDequeueEvent struct {
	DiagnosticEvent
	Actor      string `json:"actor"`
	QueueDepth int    `json:"queue_depth,omitempty"`
	WaitMs     int64  `json:"wait_ms,omitempty"`
}

// OrchestrationStepEvent tracks a single supervisor orchestration step.
type OrchestrationStepEvent struct {
	DiagnosticEvent
	RunID      string `json:"run_id,omitempty"`
	Supervisor string `json:"supervisor"`
	Action     string `json:"action"` // "delegate", "synthesize", "validate"
	SubGoalID  string `json:"sub_goal_id,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Outcome    string `json:"outcome"` // "completed", "failed"
	Error      string `json:"error,omitempty"`
}

// ActorStateEvent tracks actor state changes.
type ActorStateEvent struct {
	DiagnosticEvent
	Actor      string               `json:"actor"`
	PrevState  DiagnosticActorState `json:"prev_state,omitempty"`
	State      DiagnosticActorState `json:"state"`
	Reason     string               `json:"reason,omitempty"`
	QueueDepth int                  `json:"queue_depth,omitempty"`
}

// ActorStuckEvent tracks an actor that has been processing for too long.
type ActorStuckEvent struct {
	DiagnosticEvent
	Actor      string               `json:"actor"`
	State      DiagnosticActorState `json:"state"`
	AgeMs      int64                `json:"age_ms"`
	QueueDepth int                  `json:"queue_depth,omitempty"`
}

// RunAttemptEvent tracks execute_task/orchestrate run attempts.
type RunAttemptEvent struct {
	DiagnosticEvent
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id,omitempty"`
	Attempt   int    `json:"attempt"`
}

// HandoffValidationEvent tracks an output validation decision at a handoff boundary.
type HandoffValidationEvent struct {
	DiagnosticEvent
	RunID      string `json:"run_id,omitempty"`
	FromAgent  string `json:"from_agent"`
	ToAgent    string `json:"to_agent"`
	Passed     bool   `json:"passed"`
	Reason     string `json:"reason,omitempty"`
	RetryCount int    `json:"retry_count,omitempty"`
}

// DiagnosticHeartbeatEvent tracks periodic runtime health snapshots.
type DiagnosticHeartbeatEvent struct {
	DiagnosticEvent
	Actors  ActorStats `json:"actors"`
	Active  int        `json:"active"`
	Waiting int        `json:"waiting"`
	Queued  int        `json:"queued"`
}

// ActorStats contains aggregate actor health statistics.
type ActorStats struct {
	Restarts int64 `json:"restarts"`
	Missed   int64 `json:"missed_heartbeats"`
	Errors   int64 `json:"errors"`
}

// DiagnosticEventPayload is a union type for all diagnostic events.
type DiagnosticEventPayload interface {
	EventType() DiagnosticEventType
	Sequence() int64
	Timestamp() int64
}

// Implement DiagnosticEventPayload for all event types
func (e *DiagnosticEvent) EventType() DiagnosticEventType { return e.Type }
func (e *DiagnosticEvent) Sequence() int64                { return e.Seq }
func (e *DiagnosticEvent) Timestamp() int64               { return e.Ts }

// DiagnosticListener receives diagnostic events.
type DiagnosticListener func(event DiagnosticEventPayload)

// DiagnosticEmitter manages diagnostic event emission.
type DiagnosticEmitter struct {
	mu        sync.RWMutex
	seq       int64
	enabled   bool
	listeners []DiagnosticListener
}

var globalEmitter = &DiagnosticEmitter{}

// SetDiagnosticsEnabled enables or disables diagnostic events.
func SetDiagnosticsEnabled(enabled bool) {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.enabled = enabled
}

// IsDiagnosticsEnabled returns whether diagnostics are enabled.
func IsDiagnosticsEnabled() bool {
	globalEmitter.mu.RLock()
	defer globalEmitter.mu.RUnlock()
	return globalEmitter.enabled
}

// OnDiagnosticEvent registers a listener for diagnostic events.
func OnDiagnosticEvent(listener DiagnosticListener) func() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.listeners = append(globalEmitter.listeners, listener)

	// Return unsubscribe function
	return func() {
		globalEmitter.mu.Lock()
		defer globalEmitter.mu.Unlock()
		for i, l := range globalEmitter.listeners {
			// Compare function pointers (this is a simplification)
			if &l == &listener {
				globalEmitter.listeners = append(globalEmitter.listeners[:i], globalEmitter.listeners[i+1:]...)
				break
			}
		}
	}
}

// nextSeq returns the next sequence number.
func nextSeq() int64 {
	return atomic.AddInt64(&globalEmitter.seq, 1)
}

// emit sends an event to all listeners.
func emit(event DiagnosticEventPayload) {
	globalEmitter.mu.RLock()
	if !globalEmitter.enabled {
		globalEmitter.mu.RUnlock()
		return
	}
	listeners := make([]DiagnosticListener, len(globalEmitter.listeners))
	copy(listeners, globalEmitter.listeners)
	globalEmitter.mu.RUnlock()

	for _, listener := range listeners {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					_ = recovered
				}
			}() // Ignore listener panics
			listener(event)
		}()
	}
}

// EmitModelUsage emits a model usage event.
func EmitModelUsage(e *ModelUsageEvent) {
	e.Type = EventTypeModelUsage
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitActorRestart emits an actor restart event.
func EmitActorRestart(e *ActorRestartEvent) {
	e.Type = EventTypeActorRestart
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitHeartbeatMissed emits a missed heartbeat event.
func EmitHeartbeatMissed(e *HeartbeatMissedEvent) {
	e.Type = EventTypeHeartbeatMissed
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitMailboxEnqueue emits a mailbox enqueue event.
func EmitMailboxEnqueue(e *MailboxEnqueueEvent) {
	e.Type = EventTypeMailboxEnqueue
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitMailboxDequeue emits a mailbox dequeue event.
func EmitMailboxDequeue(e *MailboxDequeueEvent) {
	e.Type = EventTypeMailboxDequeue
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitOrchestrationStep emits an orchestration step event.
func EmitOrchestrationStep(e *OrchestrationStepEvent) {
	e.Type = EventTypeOrchestrationStep
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitActorState emits an actor state event.
func EmitActorState(e *ActorStateEvent) {
	e.Type = EventTypeActorState
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitActorStuck emits an actor stuck event.
func EmitActorStuck(e *ActorStuckEvent) {
	e.Type = EventTypeActorStuck
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitRunAttempt emits a run attempt event.
func EmitRunAttempt(e *RunAttemptEvent) {
	e.Type = EventTypeRunAttempt
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitHandoffValidation emits a handoff validation event.
func EmitHandoffValidation(e *HandoffValidationEvent) {
	e.Type = EventTypeHandoffValidation
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitDiagnosticHeartbeat emits a diagnostic heartbeat event.
func EmitDiagnosticHeartbeat(e *DiagnosticHeartbeatEvent) {
	e.Type = EventTypeDiagnosticHeartbeat
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// ResetDiagnosticsForTest resets diagnostic state for testing.
func ResetDiagnosticsForTest() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	atomic.StoreInt64(&globalEmitter.seq, 0)
	globalEmitter.listeners = nil
}
