package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// HealthChecker defines basic health check capabilities
type HealthChecker interface {
	// Ping tests the backing store connection
	Ping(ctx context.Context) error
}

// Closer defines cleanup capabilities
type Closer interface {
	// Close closes the backing store connection
	Close() error
}

// Storage persists world documents and serves authored world templates.
// A load never fails on a missing or unreadable document: the session gets
// a fresh default world carrying the requested id instead.
type Storage interface {
	HealthChecker
	Closer

	// SaveWorld overwrites the stored document for a session.
	SaveWorld(ctx context.Context, id uuid.UUID, w *state.WorldState) error

	// LoadWorld retrieves a session's world. Missing or corrupt documents
	// yield a fresh default world with the requested id, never an error.
	LoadWorld(ctx context.Context, id uuid.UUID) (*state.WorldState, error)

	// DeleteWorld removes a session's document. Deleting a session that
	// does not exist is not an error.
	DeleteWorld(ctx context.Context, id uuid.UUID) error

	// ListWorlds returns the ids of all stored sessions.
	ListWorlds(ctx context.Context) ([]uuid.UUID, error)

	// GetTemplate loads an authored starting world by filename.
	GetTemplate(ctx context.Context, filename string) (*state.WorldState, error)

	// ListTemplates maps template names (file stems) to filenames.
	ListTemplates(ctx context.Context) (map[string]string, error)
}

// freshWorld is what every backend hands out when a document is missing or
// unreadable. The session keeps its identity; the content resets.
func freshWorld(id uuid.UUID) *state.WorldState {
	w := state.NewWorldState()
	w.ID = id
	return w
}
