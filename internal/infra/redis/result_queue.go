package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"evaluation-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// PendingResultsKey is the Redis list holding result records awaiting reconciliation.
const PendingResultsKey = "evaluation:results:pending"

// ResultQueue is a FIFO of result records backed by a Redis list (RPUSH / LPOP).
type ResultQueue struct {
	client *redis.Client
	key    string
}

func NewResultQueue(client *redis.Client) *ResultQueue {
	return &ResultQueue{client: client, key: PendingResultsKey}
}

func (q *ResultQueue) Push(ctx context.Context, record domain.ResultRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return q.client.RPush(ctx, q.key, raw).Err()
}

func (q *ResultQueue) Pop(ctx context.Context) (domain.ResultRecord, bool, error) {
	raw, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ResultRecord{}, false, nil
	}
	if err != nil {
		return domain.ResultRecord{}, false, err
	}
	var record domain.ResultRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.ResultRecord{}, false, fmt.Errorf("unmarshal pending result: %w", err)
	}
	return record, true, nil
}

// Len reports the queue depth.
func (q *ResultQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
