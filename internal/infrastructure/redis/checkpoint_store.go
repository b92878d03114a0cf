package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"auction-service/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisCheckpointStore keeps one small hash per import correlation id.
// The consumer process may restart between batches, so the marker has
// to outlive it.
type RedisCheckpointStore struct {
	client *redis.Client
}

func NewRedisCheckpointStore(client *redis.Client) *RedisCheckpointStore {
	return &RedisCheckpointStore{client: client}
}

func checkpointKey(correlationID string) string {
	return fmt.Sprintf("import:checkpoint:%s", correlationID)
}

func (r *RedisCheckpointStore) GetCheckpoint(ctx context.Context, correlationID string) (*domain.ImportCheckpoint, error) {
	values, err := r.client.HGetAll(ctx, checkpointKey(correlationID)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, domain.ErrNotFound
	}

	lastRow, err := strconv.Atoi(values["last_processed_row"])
	if err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s: %w", correlationID, err)
	}
	succeeded, err := strconv.Atoi(values["succeeded"])
	if err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s: %w", correlationID, err)
	}
	failed, err := strconv.Atoi(values["failed"])
	if err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s: %w", correlationID, err)
	}

	cp := &domain.ImportCheckpoint{
		CorrelationID:    correlationID,
		LastProcessedRow: lastRow,
		Succeeded:        succeeded,
		Failed:           failed,
	}
	if ts, err := strconv.ParseInt(values["updated_at"], 10, 64); err == nil {
		cp.UpdatedAt = time.Unix(ts, 0)
	}

	return cp, nil
}

func (r *RedisCheckpointStore) SaveCheckpoint(ctx context.Context, cp *domain.ImportCheckpoint) error {
	return r.client.HSet(ctx, checkpointKey(cp.CorrelationID),
		"last_processed_row", cp.LastProcessedRow,
		"succeeded", cp.Succeeded,
		"failed", cp.Failed,
		"updated_at", time.Now().Unix(),
	).Err()
}

func (r *RedisCheckpointStore) DeleteCheckpoint(ctx context.Context, correlationID string) error {
	return r.client.Del(ctx, checkpointKey(correlationID)).Err()
}
