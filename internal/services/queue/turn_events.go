package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Turn kinds recorded on the event feed.
const (
	TurnAction       = "action"
	TurnModification = "modification"
	TurnCreation     = "creation"
	TurnConversation = "conversation"
	TurnImmediate    = "immediate"
)

const turnEventPrefix = "turn-events:"

// TurnEvent is one compact record of a mutating turn, published for
// out-of-band consumers. The world snapshot stays authoritative; losing an
// event loses history, not state.
type TurnEvent struct {
	Kind      string    `json:"kind"`
	Summary   string    `json:"summary"`
	ChangeIDs []string  `json:"change_ids,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnEventQueue manages per-session turn event lists in Redis.
type TurnEventQueue struct {
	client *Client
	logger *slog.Logger
}

// NewTurnEventQueue creates a new turn event queue service
func NewTurnEventQueue(client *Client, logger *slog.Logger) *TurnEventQueue {
	return &TurnEventQueue{
		client: client,
		logger: logger,
	}
}

// queueKey returns the Redis key for a session's turn event list
func (q *TurnEventQueue) queueKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s%s", turnEventPrefix, sessionID)
}

// Enqueue appends a turn event to the end of a session's list.
func (q *TurnEventQueue) Enqueue(ctx context.Context, sessionID uuid.UUID, event TurnEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal turn event: %w", err)
	}

	key := q.queueKey(sessionID)
	if err := q.client.rdb.RPush(ctx, key, payload).Err(); err != nil {
		q.logger.Error("Failed to enqueue turn event",
			"error", err,
			"session_id", sessionID,
			"key", key)
		return fmt.Errorf("failed to enqueue turn event: %w", err)
	}

	q.logger.Debug("Enqueued turn event",
		"session_id", sessionID,
		"kind", event.Kind)

	return nil
}

// DequeueAll removes and returns all turn events for a session in the order
// they were enqueued.
func (q *TurnEventQueue) DequeueAll(ctx context.Context, sessionID uuid.UUID) ([]TurnEvent, error) {
	key := q.queueKey(sessionID)

	raw, err := q.client.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		q.logger.Error("Failed to dequeue turn events",
			"error", err,
			"session_id", sessionID,
			"key", key)
		return nil, fmt.Errorf("failed to dequeue turn events: %w", err)
	}

	if len(raw) > 0 {
		if err := q.client.rdb.Del(ctx, key).Err(); err != nil {
			q.logger.Error("Failed to delete turn event list",
				"error", err,
				"session_id", sessionID,
				"key", key)
			return nil, fmt.Errorf("failed to delete turn event list: %w", err)
		}
	}

	return q.decodeEvents(sessionID, raw), nil
}

// Peek returns up to limit turn events without removing them. A limit of
// zero or less returns everything.
func (q *TurnEventQueue) Peek(ctx context.Context, sessionID uuid.UUID, limit int) ([]TurnEvent, error) {
	key := q.queueKey(sessionID)

	end := int64(limit - 1)
	if limit <= 0 {
		end = -1
	}

	raw, err := q.client.rdb.LRange(ctx, key, 0, end).Result()
	if err != nil && err != redis.Nil {
		q.logger.Error("Failed to peek turn events",
			"error", err,
			"session_id", sessionID,
			"key", key)
		return nil, fmt.Errorf("failed to peek turn events: %w", err)
	}

	return q.decodeEvents(sessionID, raw), nil
}

// Clear removes all turn events for a session.
func (q *TurnEventQueue) Clear(ctx context.Context, sessionID uuid.UUID) error {
	key := q.queueKey(sessionID)

	if err := q.client.rdb.Del(ctx, key).Err(); err != nil {
		q.logger.Error("Failed to clear turn event list",
			"error", err,
			"session_id", sessionID,
			"key", key)
		return fmt.Errorf("failed to clear turn event list: %w", err)
	}

	q.logger.Debug("Cleared turn event list", "session_id", sessionID)
	return nil
}

// Len returns the number of turn events queued for a session.
func (q *TurnEventQueue) Len(ctx context.Context, sessionID uuid.UUID) (int, error) {
	key := q.queueKey(sessionID)

	count, err := q.client.rdb.LLen(ctx, key).Result()
	if err != nil {
		q.logger.Error("Failed to get turn event list length",
			"error", err,
			"session_id", sessionID,
			"key", key)
		return 0, fmt.Errorf("failed to get turn event list length: %w", err)
	}

	return int(count), nil
}

// Sessions returns the session ids that currently have queued events.
func (q *TurnEventQueue) Sessions(ctx context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)

	iter := q.client.rdb.Scan(ctx, 0, turnEventPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		id, err := uuid.Parse(strings.TrimPrefix(iter.Val(), turnEventPrefix))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan turn event lists: %w", err)
	}

	return ids, nil
}

// decodeEvents unmarshals raw list entries, skipping any that fail to parse.
func (q *TurnEventQueue) decodeEvents(sessionID uuid.UUID, raw []string) []TurnEvent {
	events := make([]TurnEvent, 0, len(raw))
	for _, entry := range raw {
		var event TurnEvent
		if err := json.Unmarshal([]byte(entry), &event); err != nil {
			q.logger.Warn("Skipping unparseable turn event",
				"error", err,
				"session_id", sessionID)
			continue
		}
		events = append(events, event)
	}
	return events
}
