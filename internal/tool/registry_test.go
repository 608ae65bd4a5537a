package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/synapserun/synapse/pkg/models"
)

type stubTool struct {
	name string
}

func (s *stubTool) Metadata() models.ToolMetadata {
	return models.ToolMetadata{Name: s.name, Description: "a stub tool"}
}
func (s *stubTool) Validate(json.RawMessage) error { return nil }
func (s *stubTool) Execute(context.Context, json.RawMessage) (*models.ToolResult, error) {
	return models.Ok("ok"), nil
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubTool{name: "write_file"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(&stubTool{name: "write_file"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if len(r.List()) != 1 {
		t.Fatalf("List() len = %d, want 1", len(r.List()))
	}
}

func TestRegistryListIsInsertionOrdered(t *testing.T) {
	r := NewRegistry()
	names := []string{"c", "a", "b"}
	for _, n := range names {
		if err := r.Register(&stubTool{name: n}); err != nil {
			t.Fatal(err)
		}
	}
	got := r.List()
	for i, n := range names {
		if got[i].Name != n {
			t.Errorf("List()[%d] = %q, want %q", i, got[i].Name, n)
		}
	}
}

func TestRegistryCatalogTextIsStable(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&stubTool{name: "alpha"})
	first := r.CatalogText()
	second := r.CatalogText()
	if first != second {
		t.Fatalf("catalog text changed across calls without mutation")
	}

	_ = r.Register(&stubTool{name: "beta"})
	third := r.CatalogText()
	if third == first {
		t.Fatalf("catalog text did not refresh after registration")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected Get on unknown tool to report not found")
	}
}

func TestRegistrySubset(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&stubTool{name: "a"})
	_ = r.Register(&stubTool{name: "b"})
	_ = r.Register(&stubTool{name: "c"})

	sub := r.Subset([]string{"c", "a", "missing"})
	got := sub.List()
	if len(got) != 2 {
		t.Fatalf("subset len = %d, want 2", len(got))
	}
	if got[0].Name != "c" || got[1].Name != "a" {
		t.Fatalf("subset order = %v", got)
	}
}
