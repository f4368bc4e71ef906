package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/services/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupFeed(t *testing.T) (*queue.TurnEventQueue, *queue.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client, err := queue.NewClient("redis://"+mr.Addr(), testLogger())
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return queue.NewTurnEventQueue(client, testLogger()), client
}

func readArchive(t *testing.T, dir string, sessionID uuid.UUID) []queue.TurnEvent {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, sessionID.String()+".jsonl"))
	if err != nil {
		t.Fatalf("Failed to read archive file: %v", err)
	}

	var events []queue.TurnEvent
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var event queue.TurnEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("Failed to parse archive record %q: %v", line, err)
		}
		events = append(events, event)
	}
	return events
}

func TestArchiveSession_DrainsFeed(t *testing.T) {
	q, _ := setupFeed(t)
	ctx := context.Background()
	dir := t.TempDir()
	archiver := NewArchiver(q, dir, testLogger())
	sessionID := uuid.New()

	enqueued := []queue.TurnEvent{
		{Kind: queue.TurnAction, Summary: "Player rested at the inn"},
		{Kind: queue.TurnModification, Summary: "Sharpened the iron sword", ChangeIDs: []string{uuid.NewString()}},
		{Kind: queue.TurnConversation, Summary: "Asked the barkeep about rumors"},
	}
	for _, event := range enqueued {
		if err := q.Enqueue(ctx, sessionID, event); err != nil {
			t.Fatalf("Failed to enqueue event: %v", err)
		}
	}

	count, err := archiver.ArchiveSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("ArchiveSession failed: %v", err)
	}
	if count != len(enqueued) {
		t.Errorf("Expected %d events drained, got %d", len(enqueued), count)
	}

	remaining, err := q.Len(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to read feed length: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected empty feed after drain, got %d events", remaining)
	}

	archived := readArchive(t, dir, sessionID)
	if len(archived) != len(enqueued) {
		t.Fatalf("Expected %d archive records, got %d", len(enqueued), len(archived))
	}
	for i, event := range archived {
		if event.Kind != enqueued[i].Kind {
			t.Errorf("Record %d: expected kind %q, got %q", i, enqueued[i].Kind, event.Kind)
		}
		if event.Summary != enqueued[i].Summary {
			t.Errorf("Record %d: expected summary %q, got %q", i, enqueued[i].Summary, event.Summary)
		}
	}
	if len(archived[1].ChangeIDs) != 1 {
		t.Errorf("Expected change ids to survive archiving, got %v", archived[1].ChangeIDs)
	}
}

func TestArchiveSession_EmptyFeed(t *testing.T) {
	q, _ := setupFeed(t)
	dir := t.TempDir()
	archiver := NewArchiver(q, dir, testLogger())
	sessionID := uuid.New()

	count, err := archiver.ArchiveSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ArchiveSession failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no events drained, got %d", count)
	}

	if _, err := os.Stat(filepath.Join(dir, sessionID.String()+".jsonl")); !os.IsNotExist(err) {
		t.Error("Expected no archive file for an empty feed")
	}
}

func TestArchiveSession_AppendsAcrossDrains(t *testing.T) {
	q, _ := setupFeed(t)
	ctx := context.Background()
	dir := t.TempDir()
	archiver := NewArchiver(q, dir, testLogger())
	sessionID := uuid.New()

	if err := q.Enqueue(ctx, sessionID, queue.TurnEvent{Kind: queue.TurnImmediate, Summary: "A cold wind blows"}); err != nil {
		t.Fatalf("Failed to enqueue event: %v", err)
	}
	if _, err := archiver.ArchiveSession(ctx, sessionID); err != nil {
		t.Fatalf("First drain failed: %v", err)
	}

	for _, summary := range []string{"Found a healing draught", "Learned the smith's name"} {
		if err := q.Enqueue(ctx, sessionID, queue.TurnEvent{Kind: queue.TurnCreation, Summary: summary}); err != nil {
			t.Fatalf("Failed to enqueue event: %v", err)
		}
	}
	if _, err := archiver.ArchiveSession(ctx, sessionID); err != nil {
		t.Fatalf("Second drain failed: %v", err)
	}

	archived := readArchive(t, dir, sessionID)
	if len(archived) != 3 {
		t.Fatalf("Expected 3 archive records across drains, got %d", len(archived))
	}
}

func TestWorker_SweepSkipsLockedFeed(t *testing.T) {
	q, client := setupFeed(t)
	ctx := context.Background()
	dir := t.TempDir()
	archiver := NewArchiver(q, dir, testLogger())
	w := New(q, archiver, client.GetRedisClient(), testLogger(), "worker-a")
	sessionID := uuid.New()

	if err := q.Enqueue(ctx, sessionID, queue.TurnEvent{Kind: queue.TurnAction, Summary: "Player meditated"}); err != nil {
		t.Fatalf("Failed to enqueue event: %v", err)
	}

	// Another worker holds this feed.
	lockKey := "archive-lock:" + sessionID.String()
	if err := client.GetRedisClient().Set(ctx, lockKey, "worker-b", time.Minute).Err(); err != nil {
		t.Fatalf("Failed to seed lock: %v", err)
	}

	if err := w.sweep(); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	remaining, err := q.Len(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to read feed length: %v", err)
	}
	if remaining != 1 {
		t.Errorf("Expected locked feed to be skipped, got %d events remaining", remaining)
	}

	// Lock released: the next sweep drains it.
	if err := client.GetRedisClient().Del(ctx, lockKey).Err(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
	if err := w.sweep(); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	remaining, err = q.Len(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to read feed length: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected feed drained after lock release, got %d events remaining", remaining)
	}

	if got := len(readArchive(t, dir, sessionID)); got != 1 {
		t.Errorf("Expected 1 archive record, got %d", got)
	}
}

func TestWorker_StartReturnsAfterStop(t *testing.T) {
	q, client := setupFeed(t)
	archiver := NewArchiver(q, t.TempDir(), testLogger())
	w := New(q, archiver, client.GetRedisClient(), testLogger(), "")

	w.Stop()
	if err := w.Start(); err != nil {
		t.Fatalf("Start after Stop should return cleanly, got: %v", err)
	}
}
