// Package session implements the Session entity and ConversationStore
// persistence abstraction (spec.md 3 "Session", spec.md 6 "Persisted
// session format"). A Session exclusively owns its ConversationHistory
// for as long as it is in memory and shares a storage back-end that
// survives process restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/synapserun/synapse/pkg/models"
)

// ErrNotFound is returned by Load when no document exists for an id; per
// spec.md 6 this is not an error condition for Load itself (load returns
// an empty history), but back-ends and callers that need to distinguish
// "never existed" from "empty history" can check for it via Exists.
var ErrNotFound = errors.New("session: no document for id")

// Document is the persisted shape of one session: `{ "id", "history" }`
// per spec.md 6.
type Document struct {
	ID      string                   `json:"id"`
	History models.ConversationHistory `json:"history"`
}

// ConversationStore is spec.md 6's storage interface: save/load/delete/
// exists/list, implemented by at least an in-memory and a file-system
// (or, here, sqlite) back-end.
type ConversationStore interface {
	Save(ctx context.Context, id string, history models.ConversationHistory) error
	Load(ctx context.Context, id string) (models.ConversationHistory, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

var pathSafeID = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateID enforces spec.md 6's "session ids must be path-safe for
// file-system back-ends" requirement; sqlite and memory back-ends apply
// it too so an id accepted by one back-end is accepted by all of them.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("session: id must not be empty")
	}
	if !pathSafeID.MatchString(id) {
		return fmt.Errorf("session: id %q is not path-safe (allowed: letters, digits, '_', '-', '.')", id)
	}
	return nil
}

// MemoryStore is the default in-memory ConversationStore back-end,
// grounded on the teacher's sessions.MemoryStore deep-clone-on-read/write
// discipline so callers can freely mutate a returned history without
// corrupting the store's own copy.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]models.ConversationHistory
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]models.ConversationHistory)}
}

func (m *MemoryStore) Save(ctx context.Context, id string, history models.ConversationHistory) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = cloneHistory(history)
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id string) (models.ConversationHistory, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.docs[id]
	if !ok {
		return models.ConversationHistory{}, nil
	}
	return cloneHistory(h), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[id]
	return ok, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func cloneHistory(h models.ConversationHistory) models.ConversationHistory {
	clone := make(models.ConversationHistory, len(h))
	copy(clone, h)
	return clone
}

// FileStore is a file-system-backed ConversationStore: one JSON document
// per session, named by id, under Dir (spec.md 6 "File-system back-end
// stores one document per session keyed by id").
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore builds a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: creating store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+".json")
}

func (f *FileStore) Save(ctx context.Context, id string, history models.ConversationHistory) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	doc := Document{ID: id, History: history}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("session: encoding document: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := f.path(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("session: writing document: %w", err)
	}
	return os.Rename(tmp, f.path(id))
}

func (f *FileStore) Load(ctx context.Context, id string) (models.ConversationHistory, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return models.ConversationHistory{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: reading document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("session: decoding document: %w", err)
	}
	return doc.History, nil
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: deleting document: %w", err)
	}
	return nil
}

func (f *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := os.Stat(f.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *FileStore) List(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("session: listing store directory: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	sort.Strings(ids)
	return ids, nil
}
