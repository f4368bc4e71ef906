package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// FileStorage keeps one JSON document per session under a snapshot
// directory, with templates served from the data directory. It is the
// default backend: no external service, human-inspectable saves.
type FileStorage struct {
	snapshotDir string
	dataDir     string
	logger      *slog.Logger
}

// Ensure FileStorage implements Storage interface
var _ Storage = (*FileStorage)(nil)

// NewFileStorage creates a file storage instance rooted at snapshotDir.
func NewFileStorage(snapshotDir, dataDir string, logger *slog.Logger) *FileStorage {
	if snapshotDir == "" {
		snapshotDir = "./data/worlds"
	}
	if dataDir == "" {
		dataDir = "./data"
	}
	return &FileStorage{
		snapshotDir: snapshotDir,
		dataDir:     dataDir,
		logger:      logger,
	}
}

func (f *FileStorage) worldPath(id uuid.UUID) string {
	return filepath.Join(f.snapshotDir, id.String()+".json")
}

func (f *FileStorage) Ping(ctx context.Context) error {
	if err := os.MkdirAll(f.snapshotDir, 0o755); err != nil {
		return fmt.Errorf("snapshot directory unavailable: %w", err)
	}
	return nil
}

func (f *FileStorage) Close() error {
	return nil
}

// SaveWorld writes the full document to a temp file and renames it into
// place, so a crash mid-write never leaves a truncated snapshot.
func (f *FileStorage) SaveWorld(ctx context.Context, id uuid.UUID, w *state.WorldState) error {
	w.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		f.logger.Error("Failed to marshal world", "id", id, "error", err)
		return fmt.Errorf("failed to marshal world: %w", err)
	}

	if err := os.MkdirAll(f.snapshotDir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := f.worldPath(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		f.logger.Error("Failed to write world snapshot", "id", id, "error", err)
		return fmt.Errorf("failed to write world snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		f.logger.Error("Failed to commit world snapshot", "id", id, "error", err)
		return fmt.Errorf("failed to commit world snapshot: %w", err)
	}

	return nil
}

func (f *FileStorage) LoadWorld(ctx context.Context, id uuid.UUID) (*state.WorldState, error) {
	data, err := os.ReadFile(f.worldPath(id))
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("Unreadable world snapshot, starting fresh", "id", id, "error", err)
		}
		return freshWorld(id), nil
	}

	var w state.WorldState
	if err := json.Unmarshal(data, &w); err != nil {
		f.logger.Warn("Corrupt world snapshot, starting fresh", "id", id, "error", err)
		return freshWorld(id), nil
	}

	return &w, nil
}

func (f *FileStorage) DeleteWorld(ctx context.Context, id uuid.UUID) error {
	if err := os.Remove(f.worldPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete world: %w", err)
	}
	return nil
}

func (f *FileStorage) ListWorlds(ctx context.Context) ([]uuid.UUID, error) {
	entries, err := os.ReadDir(f.snapshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var ids []uuid.UUID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *FileStorage) GetTemplate(ctx context.Context, filename string) (*state.WorldState, error) {
	return loadTemplate(f.dataDir, filename)
}

func (f *FileStorage) ListTemplates(ctx context.Context) (map[string]string, error) {
	return listTemplates(f.dataDir)
}
