package idgen

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSequence uses INCR as a store-native counter. The key is seeded once from the
// last stored identifier so numbering continues from existing data.
type RedisSequence struct {
	client *redis.Client
	key    string
	format Format
	seed   LastFunc
}

func NewRedisSequence(client *redis.Client, key string, format Format, seed LastFunc) *RedisSequence {
	return &RedisSequence{client: client, key: key, format: format, seed: seed}
}

func (s *RedisSequence) Next(ctx context.Context) (string, error) {
	exists, err := s.client.Exists(ctx, s.key).Result()
	if err != nil {
		return "", fmt.Errorf("RedisSequence.Next (exists): %w", err)
	}
	if exists == 0 {
		last, err := s.seed(ctx)
		if err != nil {
			return "", fmt.Errorf("RedisSequence.Next (seed): %w", err)
		}
		// SETNX: a concurrent seeder may win, both values come from the same store anyway
		if err := s.client.SetNX(ctx, s.key, s.format.Suffix(last), 0).Err(); err != nil {
			return "", fmt.Errorf("RedisSequence.Next (setnx): %w", err)
		}
	}
	n, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return "", fmt.Errorf("RedisSequence.Next (incr): %w", err)
	}
	return s.format.Format(n), nil
}
