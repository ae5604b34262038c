package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// WSUpdate é o payload padrão para o WS do pool-feed-service
type WSUpdate struct {
	Type    string              `json:"type"` // tipo do LedgerEvent que gerou o snapshot
	EventID string              `json:"eventId"`
	Payload events.PoolSnapshot `json:"payload"`
}
