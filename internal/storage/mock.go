package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// MockStorage is an in-memory Storage implementation for handler and
// engine tests. It keeps the real contract: loading a missing session
// yields a fresh default world.
type MockStorage struct {
	mu        sync.RWMutex
	worlds    map[uuid.UUID]*state.WorldState
	templates map[string]*state.WorldState
	pingError error

	// SaveError, when set, is returned by every SaveWorld call.
	SaveError error

	// SaveCalls counts SaveWorld invocations, for asserting the
	// one-save-per-turn rule.
	SaveCalls int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		worlds:    make(map[uuid.UUID]*state.WorldState),
		templates: make(map[string]*state.WorldState),
	}
}

// SetPingError configures the mock to fail on ping with the given error.
// Pass nil to restore success.
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// AddTemplate registers an authored world under the given filename.
func (m *MockStorage) AddTemplate(filename string, w *state.WorldState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[filename] = w
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveWorld(ctx context.Context, id uuid.UUID, w *state.WorldState) error {
	if w == nil {
		return errors.New("world cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.worlds[id] = w
	return nil
}

func (m *MockStorage) LoadWorld(ctx context.Context, id uuid.UUID) (*state.WorldState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.worlds[id]; ok {
		return w, nil
	}
	return freshWorld(id), nil
}

func (m *MockStorage) DeleteWorld(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.worlds, id)
	return nil
}

func (m *MockStorage) ListWorlds(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.worlds))
	for id := range m.worlds {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockStorage) GetTemplate(ctx context.Context, filename string) (*state.WorldState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.templates[filename]
	if !ok {
		return nil, fmt.Errorf("template not found: %s", filename)
	}
	// Round-trip so every caller gets its own copy, matching the file
	// backend's fresh unmarshal.
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	out := &state.WorldState{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MockStorage) ListTemplates(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make(map[string]string, len(m.templates))
	for filename := range m.templates {
		names[filename] = filename
	}
	return names, nil
}

// Stored returns the world most recently saved for a session, without the
// fresh-default fallback. Nil when nothing was saved.
func (m *MockStorage) Stored(id uuid.UUID) *state.WorldState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.worlds[id]
}
