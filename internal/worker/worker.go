package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mkarlsen/world-engine/internal/services/queue"
)

const (
	pollInterval = 5 * time.Second
	lockTTL      = 30 * time.Second
)

// Worker periodically sweeps the turn event feeds and hands each session's
// backlog to the archiver. A per-session lock keeps concurrent workers from
// draining the same feed.
type Worker struct {
	id          string
	events      *queue.TurnEventQueue
	archiver    *Archiver
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(events *queue.TurnEventQueue, archiver *Archiver, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("archiver-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		events:      events,
		archiver:    archiver,
		redisClient: redisClient,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins sweeping the event feeds until Stop is called.
func (w *Worker) Start() error {
	w.log.Info("Archive worker starting", "worker_id", w.id)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Archive worker shutting down", "worker_id", w.id)
			return nil
		case <-ticker.C:
			if err := w.sweep(); err != nil {
				w.log.Error("Error sweeping event feeds", "error", err, "worker_id", w.id)
				// Continue sweeping even on error
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Archive worker stop requested", "worker_id", w.id)
	w.cancel()
}

// sweep drains every session feed that currently has queued events, skipping
// feeds another worker holds locked.
func (w *Worker) sweep() error {
	sessions, err := w.events.Sessions(w.ctx)
	if err != nil {
		return fmt.Errorf("failed to list event feeds: %w", err)
	}

	for _, sessionID := range sessions {
		locked, err := w.acquireSessionLock(sessionID)
		if err != nil {
			return fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if !locked {
			// Another worker is draining this feed
			w.log.Debug("Feed already locked, skipping",
				"worker_id", w.id,
				"session_id", sessionID.String(),
			)
			continue
		}

		count, err := w.archiver.ArchiveSession(w.ctx, sessionID)
		w.releaseSessionLock(sessionID)
		if err != nil {
			w.log.Error("Failed to archive session feed",
				"error", err,
				"worker_id", w.id,
				"session_id", sessionID.String(),
			)
			continue
		}

		if count > 0 {
			w.log.Info("Session feed archived",
				"worker_id", w.id,
				"session_id", sessionID.String(),
				"events", count,
			)
		}
	}

	return nil
}

// acquireSessionLock attempts to acquire a lock for a session's feed
// Returns true if lock was acquired, false if already locked
func (w *Worker) acquireSessionLock(sessionID uuid.UUID) (bool, error) {
	lockKey := fmt.Sprintf("archive-lock:%s", sessionID.String())

	result, err := w.redisClient.SetNX(w.ctx, lockKey, w.id, lockTTL).Result()
	if err != nil {
		return false, err
	}

	return result, nil
}

// releaseSessionLock releases the lock for a session's feed
func (w *Worker) releaseSessionLock(sessionID uuid.UUID) {
	lockKey := fmt.Sprintf("archive-lock:%s", sessionID.String())

	// Only delete if we own the lock
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	if err := script.Run(w.ctx, w.redisClient, []string{lockKey}, w.id).Err(); err != nil {
		w.log.Error("Failed to release session lock", "error", err, "session_id", sessionID.String())
	}
}
