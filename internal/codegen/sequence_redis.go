package codegen

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "reliefops:seq:"

// RedisSequence draws hints from INCR so every API replica shares one counter.
type RedisSequence struct {
	client redis.Cmdable
}

func NewRedisSequence(client redis.Cmdable) *RedisSequence {
	return &RedisSequence{client: client}
}

func (s *RedisSequence) Next(ctx context.Context, kind Kind) (int64, error) {
	n, err := s.client.Incr(ctx, redisKeyPrefix+string(kind)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s sequence: %w", kind, err)
	}
	return n, nil
}
