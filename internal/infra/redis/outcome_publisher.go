package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"evaluation-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// OutcomesChannel is the pub/sub channel certificate issuance listens on.
const OutcomesChannel = "evaluation:outcomes"

// OutcomePublisher publishes final outcomes as JSON on a Redis channel.
type OutcomePublisher struct {
	client  *redis.Client
	channel string
}

func NewOutcomePublisher(client *redis.Client) *OutcomePublisher {
	return &OutcomePublisher{client: client, channel: OutcomesChannel}
}

func (p *OutcomePublisher) PublishOutcome(ctx context.Context, outcome domain.Outcome) error {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	return p.client.Publish(ctx, p.channel, raw).Err()
}
