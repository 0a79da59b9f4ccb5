package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// RedisPublisher replica cada payload para as réplicas de borda:
// PUBLISH no canal e SET do último estado completo com TTL.
type RedisPublisher struct {
	Client   *redis.Client
	Channel  string
	StateKey string
	TTL      time.Duration
}

// NewRedisPublisher cria o publisher com TTL configurável
func NewRedisPublisher(c *redis.Client, channel, stateKey string, ttl time.Duration) *RedisPublisher {
	return &RedisPublisher{Client: c, Channel: channel, StateKey: stateKey, TTL: ttl}
}

// Publish grava o estado e publica o payload numa única ida ao Redis
func (r *RedisPublisher) Publish(ctx context.Context, ld events.LiveData) error {
	b, err := json.Marshal(ld)
	if err != nil {
		return err
	}
	pipe := r.Client.TxPipeline()
	pipe.Set(ctx, r.StateKey, b, r.TTL)
	pipe.Publish(ctx, r.Channel, b)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// LoadState lê o último estado completo gravado; false se não houver
func LoadState(ctx context.Context, c *redis.Client, key string) (events.LiveData, bool, error) {
	b, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return events.LiveData{}, false, nil
	}
	if err != nil {
		return events.LiveData{}, false, err
	}
	var ld events.LiveData
	if err := json.Unmarshal(b, &ld); err != nil {
		return events.LiveData{}, false, fmt.Errorf("decode state: %w", err)
	}
	return ld, true, nil
}
