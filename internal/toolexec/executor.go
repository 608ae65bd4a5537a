// Package toolexec wraps a tool.Registry invocation with a per-attempt
// timeout and a bounded, exponential-backoff retry policy, classifying
// failures as transient (retriable) or permanent (not retriable).
package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/synapserun/synapse/internal/retry"
	"github.com/synapserun/synapse/internal/tool"
	"github.com/synapserun/synapse/pkg/models"
)

// Config configures one ToolExecutor. Per-tool timeout overrides are
// supported via WithTimeout on Execute.
type Config struct {
	// Timeout bounds a single attempt. Exceeding it yields a Timeout
	// result for that attempt.
	Timeout time.Duration
	// MaxAttempts is R in spec.md 4.1: the retry ceiling (small, default 3).
	MaxAttempts int
	// BaseDelay and Factor compute backoff b*k^n, n = attempt index
	// starting at 0, capped at MaxDelay.
	BaseDelay time.Duration
	Factor    float64
	MaxDelay  time.Duration
}

// DefaultConfig matches spec.md 4.1's suggested defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		Factor:      2.0,
		MaxDelay:    5 * time.Second,
	}
}

// Executor invokes one tool.Tool with timeout and retry semantics.
type Executor struct {
	config Config
}

// New builds an Executor from config, filling unset fields from
// DefaultConfig.
func New(config Config) *Executor {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = def.BaseDelay
	}
	if config.Factor <= 0 {
		config.Factor = def.Factor
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	return &Executor{config: config}
}

// validationError marks a failure as non-retriable (classified permanent
// per spec.md 4.1: "Validation failures are not retried").
type validationError struct{ err error }

func (v *validationError) Error() string { return v.err.Error() }
func (v *validationError) Unwrap() error { return v.err }

// Execute validates arguments, then invokes t.Execute with the executor's
// timeout and retry policy. Validation failures short-circuit without
// consuming a retry attempt; transient I/O/timeout failures are retried
// up to config.MaxAttempts; the final failure (most recent) is returned
// if every attempt fails (spec.md 4.1: "the executor does not partially
// succeed").
func (e *Executor) Execute(ctx context.Context, t tool.Tool, arguments json.RawMessage) (*models.ToolResult, error) {
	if err := t.Validate(arguments); err != nil {
		return models.Err(err.Error()), nil
	}

	retryCfg := retry.Config{
		MaxAttempts:  e.config.MaxAttempts,
		InitialDelay: e.config.BaseDelay,
		MaxDelay:     e.config.MaxDelay,
		Factor:       e.config.Factor,
		Jitter:       false,
	}

	var last *models.ToolResult
	result := retry.Do(ctx, retryCfg, func() error {
		res, err := e.attempt(ctx, t, arguments)
		last = res
		if err != nil {
			if isPermanent(err) {
				return retry.Permanent(err)
			}
			return err
		}
		if !res.Success {
			// A tool-reported failure (as opposed to a transport/timeout
			// error) is not automatically retried unless it is tagged
			// transient by the tool's own error text classification.
			if classify(res.Error) == transient {
				return errTransientToolFailure
			}
			return retry.Permanent(errPermanentToolFailure)
		}
		return nil
	})

	if result.Err == nil {
		return last, nil
	}
	if last == nil {
		last = models.Err(result.Err.Error())
	}
	return last, nil
}

var (
	errTransientToolFailure  = errors.New("toolexec: transient tool failure")
	errPermanentToolFailure  = errors.New("toolexec: permanent tool failure")
)

func isPermanent(err error) bool {
	var v *validationError
	return errors.As(err, &v)
}

// attempt runs exactly one timed invocation of the tool.
func (e *Executor) attempt(ctx context.Context, t tool.Tool, arguments json.RawMessage) (*models.ToolResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	type out struct {
		res *models.ToolResult
		err error
	}
	done := make(chan out, 1)

	go func() {
		res, err := t.Execute(attemptCtx, arguments)
		done <- out{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		return o.res, nil
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return models.Err("tool execution timed out"), nil
		}
		return nil, attemptCtx.Err()
	}
}

// errorClass is the transient/permanent classification from spec.md 4.1:
// transient (I/O, timeout, upstream 5xx) is retriable; permanent
// (validation, 4xx, parse) is not.
type errorClass int

const (
	permanent errorClass = iota
	transient
)

// classify inspects a tool's reported error text for transient markers.
// Real tools are expected to prefix transient failures distinctly (e.g.
// network/tool implementations in internal/tools/*); absent such a
// marker, a reported failure is treated as permanent so a flaky tool
// cannot force unbounded retries by default.
func classify(errText string) errorClass {
	for _, marker := range transientMarkers {
		if containsFold(errText, marker) {
			return transient
		}
	}
	return permanent
}

var transientMarkers = []string{"timeout", "timed out", "connection reset", "temporarily unavailable", "503", "502", "429"}

func containsFold(s, substr string) bool {
	sl, sub := []rune(s), []rune(substr)
	if len(sub) == 0 || len(sub) > len(sl) {
		return false
	}
	toLower := func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}
	for i := 0; i+len(sub) <= len(sl); i++ {
		match := true
		for j := range sub {
			if toLower(sl[i+j]) != toLower(sub[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
