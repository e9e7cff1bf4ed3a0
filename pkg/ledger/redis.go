package ledger

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "weft:ledger:"

// RedisLedger implements admission on Redis. SET NX gives the atomic
// first-writer-wins insert; keys carry no TTL because dedup memory is
// permanent per event.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger connects to Redis using a redis:// URL.
func NewRedisLedger(ctx context.Context, url string) (*RedisLedger, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisLedger{client: client}, nil
}

func (l *RedisLedger) Admit(ctx context.Context, key Key, executionID string) (Admission, error) {
	redisKey := redisKeyPrefix + key.String()

	inserted, err := l.client.SetNX(ctx, redisKey, executionID, 0).Result()
	if err != nil {
		return Admission{}, fmt.Errorf("failed to admit %s: %w", key, err)
	}

	if inserted {
		return Admission{ExecutionID: executionID, IsNew: true}, nil
	}

	existing, err := l.client.Get(ctx, redisKey).Result()
	if err != nil {
		return Admission{}, fmt.Errorf("failed to read existing admission for %s: %w", key, err)
	}

	return Admission{ExecutionID: existing, IsNew: false}, nil
}

func (l *RedisLedger) Close(_ context.Context) error {
	return l.client.Close()
}
