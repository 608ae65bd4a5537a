package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/synapserun/synapse/pkg/models"
)

type stubProvider struct {
	calls   int
	errs    []error
	texts   []string
	deltas  []string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, _ models.ConversationHistory, _ Options) (string, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var text string
	if i < len(s.texts) {
		text = s.texts[i]
	}
	return text, err
}

func (s *stubProvider) CompleteStream(ctx context.Context, h models.ConversationHistory, opts Options, sink StreamSink) (string, error) {
	text, err := s.Complete(ctx, h, opts)
	if err == nil {
		for _, d := range s.deltas {
			sink(d)
		}
	}
	return text, err
}

func TestGatewayCompleteSuccess(t *testing.T) {
	p := &stubProvider{texts: []string{"hello"}}
	g := NewGateway(p, time.Millisecond, false)

	text, err := g.Complete(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello" {
		t.Fatalf("text = %q, want hello", text)
	}
	if p.calls != 1 {
		t.Fatalf("calls = %d, want 1", p.calls)
	}
}

func TestGatewayRetriesTransientOnce(t *testing.T) {
	p := &stubProvider{
		errs:  []error{errors.New("connection reset by peer"), nil},
		texts: []string{"", "recovered"},
	}
	g := NewGateway(p, time.Millisecond, false)

	text, err := g.Complete(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("text = %q, want recovered", text)
	}
	if p.calls != 2 {
		t.Fatalf("calls = %d, want 2", p.calls)
	}
}

func TestGatewayDoesNotRetryPermanentFailure(t *testing.T) {
	p := &stubProvider{errs: []error{errors.New("invalid api key (401)")}}
	g := NewGateway(p, time.Millisecond, false)

	_, err := g.Complete(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Fatalf("calls = %d, want 1 (permanent failures must not retry)", p.calls)
	}
}

func TestGatewayStatefulSerializesCalls(t *testing.T) {
	p := &stubProvider{texts: []string{"a", "b"}}
	g := NewGateway(p, time.Millisecond, true)

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _ = g.Complete(context.Background(), nil, Options{})
			done <- struct{}{}
		}()
	}
	<-done
	<-done
	if p.calls != 2 {
		t.Fatalf("calls = %d, want 2", p.calls)
	}
}

func TestGatewayCompleteStreamDeliversDeltas(t *testing.T) {
	p := &stubProvider{texts: []string{"full"}, deltas: []string{"fu", "ll"}}
	g := NewGateway(p, time.Millisecond, false)

	var got string
	text, err := g.CompleteStream(context.Background(), nil, Options{}, func(delta string) {
		got += delta
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "full" {
		t.Fatalf("text = %q, want full", text)
	}
	if got != "full" {
		t.Fatalf("streamed deltas = %q, want full", got)
	}
}
