package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/services/queue"
)

// Archiver drains turn event feeds into per-session archive files, one JSON
// record per line, mirroring every record to the structured log. The feed is
// history, not state: the world snapshot stays authoritative, so the drain
// is destructive and nothing is ever re-queued.
type Archiver struct {
	events *queue.TurnEventQueue
	dir    string
	logger *slog.Logger
}

// NewArchiver creates an archiver writing under dir.
func NewArchiver(events *queue.TurnEventQueue, dir string, logger *slog.Logger) *Archiver {
	if dir == "" {
		dir = "./data/archive"
	}
	return &Archiver{
		events: events,
		dir:    dir,
		logger: logger,
	}
}

func (a *Archiver) archivePath(sessionID uuid.UUID) string {
	return filepath.Join(a.dir, sessionID.String()+".jsonl")
}

// ArchiveSession drains one session's feed and returns how many events were
// drained. Events are logged before the file write, so a failed write loses
// the durable copy but not the log record.
func (a *Archiver) ArchiveSession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	drained, err := a.events.DequeueAll(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to drain turn events: %w", err)
	}
	if len(drained) == 0 {
		return 0, nil
	}

	for _, event := range drained {
		a.logger.Info("Turn event archived",
			"session_id", sessionID,
			"kind", event.Kind,
			"summary", event.Summary,
			"changes", len(event.ChangeIDs),
			"at", event.Timestamp)
	}

	if err := a.appendRecords(sessionID, drained); err != nil {
		return len(drained), err
	}

	return len(drained), nil
}

// appendRecords appends events to the session's archive file.
func (a *Archiver) appendRecords(sessionID uuid.UUID, events []queue.TurnEvent) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	f, err := os.OpenFile(a.archivePath(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open archive file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			a.logger.Error("Failed to close archive file", "error", err, "session_id", sessionID)
		}
	}()

	enc := json.NewEncoder(f)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to append archive record: %w", err)
		}
	}

	return nil
}
