// Package actor implements the ActorRuntime: a cooperative,
// single-threaded-per-actor message runtime with heartbeat-based
// liveness detection and reset-on-timeout (spec.md 4.8).
//
// Each registered actor owns a private mailbox and processes messages
// one at a time on its own goroutine — there are no shared locks in the
// per-message hot path (spec.md 5). Liveness is tracked via heartbeats:
// an actor that misses its heartbeat deadline is reset.
package actor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/synapserun/synapse/pkg/models"
)

// Message is one unit of work routed to an actor's mailbox. Reply, when
// non-nil, receives exactly one Result before the call that sent the
// message returns — Runtime.Send blocks on it to give request/response
// semantics on top of an async mailbox.
type Message struct {
	Kind    string
	Payload interface{}
	reply   chan Result
}

// Result is what an Actor's Handle returns, delivered back to the sender
// of a Message built via Send.
type Result struct {
	Value interface{}
	Err   error
}

// Actor is one named, stateful unit of work. Handle runs on the actor's
// own goroutine; implementations do not need to synchronize their own
// state against concurrent access, since the runtime guarantees at most
// one in-flight Handle call per actor at a time.
type Actor interface {
	ID() models.ActorId
	Handle(ctx context.Context, msg Message) (interface{}, error)
}

// Resettable is implemented by actors that need to clear internal state
// when the health monitor declares them unresponsive (spec.md 4.8
// "reset semantics").
type Resettable interface {
	Reset()
}

// Config bounds mailbox size and heartbeat/health-check cadence. Field
// names and defaults mirror spec.md 6's system.* configuration options.
type Config struct {
	ChannelBufferSize   int
	HeartbeatIntervalMs int
	HeartbeatTimeoutMs  int
	CheckIntervalMs     int
	AutoRestart         bool
}

// DefaultConfig matches spec.md 6's suggested defaults.
func DefaultConfig() Config {
	return Config{
		ChannelBufferSize:   64,
		HeartbeatIntervalMs: 5000,
		HeartbeatTimeoutMs:  15000,
		CheckIntervalMs:     2000,
		AutoRestart:         true,
	}
}

type entry struct {
	actor    Actor
	mailbox  chan Message
	cancel   context.CancelFunc
	restarts int

	mu            sync.Mutex
	lastHeartbeat time.Time
}

// Runtime owns a fixed set of registered actors, their mailboxes, and the
// heartbeat/health-monitor goroutines that watch them.
type Runtime struct {
	config Config

	mu      sync.RWMutex
	actors  map[string]*entry
	started bool

	onEvent func(models.AgentEventType, models.ActorId)
}

// New returns an empty Runtime. Register actors before calling Start.
func New(config Config) *Runtime {
	if config.ChannelBufferSize <= 0 {
		config = DefaultConfig()
	}
	return &Runtime{config: config, actors: make(map[string]*entry)}
}

// OnEvent installs an observer notified of actor lifecycle transitions
// (reset, restart). Intended for internal/observability wiring.
func (r *Runtime) OnEvent(fn func(models.AgentEventType, models.ActorId)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvent = fn
}

// Register adds an actor under its own ActorId. It is an error to
// register the same id twice.
func (r *Runtime) Register(a Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := a.ID().String()
	if _, exists := r.actors[key]; exists {
		return fmt.Errorf("actor: %q is already registered", key)
	}
	r.actors[key] = &entry{
		actor:         a,
		mailbox:       make(chan Message, r.config.ChannelBufferSize),
		lastHeartbeat: time.Now(),
	}
	return nil
}

// Start launches every registered actor's receive loop plus a single
// health-monitor loop. ctx cancellation stops all of them.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	entries := make([]*entry, 0, len(r.actors))
	for _, e := range r.actors {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		actorCtx, cancel := context.WithCancel(ctx)
		e.cancel = cancel
		go r.runActor(actorCtx, e)
	}
	go r.monitorHealth(ctx)
}

func (r *Runtime) runActor(ctx context.Context, e *entry) {
	interval := jittered(time.Duration(r.config.HeartbeatIntervalMs) * time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-e.mailbox:
			val, err := e.actor.Handle(ctx, msg)
			if msg.reply != nil {
				msg.reply <- Result{Value: val, Err: err}
			}
			e.touch()
		case <-ticker.C:
			e.touch() // an idle actor still beats, per spec.md 4.8
		}
	}
}

func (e *entry) touch() {
	e.mu.Lock()
	e.lastHeartbeat = time.Now()
	e.mu.Unlock()
}

func (e *entry) sinceHeartbeat() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Since(e.lastHeartbeat)
}

// jittered spreads heartbeat timers by up to 20% so a fleet of actors
// started together does not tick in lockstep.
func jittered(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	spread := float64(base) * 0.2
	return base + time.Duration(rand.Float64()*spread)
}

func (r *Runtime) monitorHealth(ctx context.Context) {
	interval := time.Duration(r.config.CheckIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	timeout := time.Duration(r.config.HeartbeatTimeoutMs) * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.RLock()
			entries := make([]*entry, 0, len(r.actors))
			for _, e := range r.actors {
				entries = append(entries, e)
			}
			r.mu.RUnlock()

			for _, e := range entries {
				if e.sinceHeartbeat() > timeout {
					r.resetActor(e)
				}
			}
		}
	}
}

func (r *Runtime) resetActor(e *entry) {
	if resettable, ok := e.actor.(Resettable); ok {
		resettable.Reset()
	}
	e.touch()
	e.restarts++
	if r.onEvent != nil {
		r.onEvent(models.AgentEventActorReset, e.actor.ID())
	}
}

// Send delivers a message to the named actor's mailbox and blocks for its
// reply, honoring ctx cancellation on both the send and the wait.
func (r *Runtime) Send(ctx context.Context, to models.ActorId, kind string, payload interface{}) (interface{}, error) {
	r.mu.RLock()
	e, ok := r.actors[to.String()]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("actor: no actor registered for %q", to.String())
	}

	msg := Message{Kind: kind, Payload: payload, reply: make(chan Result, 1)}
	select {
	case e.mailbox <- msg:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-msg.reply:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Restarts reports how many times the named actor has been reset by the
// health monitor, for diagnostics.
func (r *Runtime) Restarts(id models.ActorId) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.actors[id.String()]
	if !ok {
		return 0
	}
	return e.restarts
}
