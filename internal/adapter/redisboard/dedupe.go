package redisboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeliveryGuard remembers provider event ids so redelivered webhooks are
// acknowledged without being recorded twice.
type DeliveryGuard struct {
	keyspace
	client *redis.Client
	ttl    time.Duration
}

func NewDeliveryGuard(client *redis.Client, ttl time.Duration, opts ...Option) *DeliveryGuard {
	return &DeliveryGuard{keyspace: newKeyspace(opts), client: client, ttl: ttl}
}

func (g *DeliveryGuard) deliveryKey(key string) string { return g.prefix + "delivery:" + key }

// Claim reports true the first time key is seen within the TTL.
func (g *DeliveryGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.deliveryKey(key), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim delivery: %w", err)
	}
	return ok, nil
}

// Release forgets key so a failed delivery can be retried by the provider.
func (g *DeliveryGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.deliveryKey(key)).Err(); err != nil {
		return fmt.Errorf("redis release delivery: %w", err)
	}
	return nil
}
