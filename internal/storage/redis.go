package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// RedisStorage keeps world documents in Redis with templates served from
// the filesystem, mirroring the file backend's contract.
type RedisStorage struct {
	client  *redis.Client
	dataDir string
	ttl     time.Duration
	logger  *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a Redis storage instance. A ttl of zero stores
// documents without expiry.
func NewRedisStorage(redisURL, dataDir string, ttl time.Duration, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisStorage{
		client:  redis.NewClient(opt),
		dataDir: dataDir,
		ttl:     ttl,
		logger:  logger,
	}, nil
}

func worldKey(id uuid.UUID) string {
	return "world:" + id.String()
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func (r *RedisStorage) SaveWorld(ctx context.Context, id uuid.UUID, w *state.WorldState) error {
	w.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(w)
	if err != nil {
		r.logger.Error("Failed to marshal world", "id", id, "error", err)
		return fmt.Errorf("failed to marshal world: %w", err)
	}

	if err := r.client.Set(ctx, worldKey(id), string(data), r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save world", "id", id, "error", err)
		return fmt.Errorf("failed to save world: %w", err)
	}

	return nil
}

func (r *RedisStorage) LoadWorld(ctx context.Context, id uuid.UUID) (*state.WorldState, error) {
	data, err := r.client.Get(ctx, worldKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return freshWorld(id), nil
		}
		r.logger.Error("Failed to load world", "id", id, "error", err)
		return nil, fmt.Errorf("failed to load world: %w", err)
	}

	var w state.WorldState
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		r.logger.Warn("Corrupt world document, starting fresh", "id", id, "error", err)
		return freshWorld(id), nil
	}

	return &w, nil
}

func (r *RedisStorage) DeleteWorld(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, worldKey(id)).Err(); err != nil {
		r.logger.Error("Failed to delete world", "id", id, "error", err)
		return fmt.Errorf("failed to delete world: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListWorlds(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	iter := r.client.Scan(ctx, 0, "world:*", 0).Iterator()
	for iter.Next(ctx) {
		id, err := uuid.Parse(strings.TrimPrefix(iter.Val(), "world:"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan worlds: %w", err)
	}
	return ids, nil
}

func (r *RedisStorage) GetTemplate(ctx context.Context, filename string) (*state.WorldState, error) {
	return loadTemplate(r.dataDir, filename)
}

func (r *RedisStorage) ListTemplates(ctx context.Context) (map[string]string, error) {
	return listTemplates(r.dataDir)
}
