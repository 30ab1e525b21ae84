package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IshaanNene/TableScout/internal/config"
)

// RedisSeenSet is a SeenSet shared by several crawler processes. Each URL
// becomes one key under the configured prefix, claimed with SETNX.
type RedisSeenSet struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisSeenSet connects to Redis and verifies the connection with a PING.
func NewRedisSeenSet(cfg config.RedisConfig) (*RedisSeenSet, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisSeenSet{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

func (s *RedisSeenSet) key(rawURL string) string {
	return s.prefix + hashURL(CanonicalizeURL(rawURL))
}

func (s *RedisSeenSet) MarkIfNew(ctx context.Context, rawURL string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.key(rawURL), 1, 0).Result()
	if err != nil {
		return false, fmt.Errorf("marking %s seen: %w", rawURL, err)
	}
	return ok, nil
}

// Reset deletes every key under the prefix so a new pass starts empty. It
// returns the number of keys removed.
func (s *RedisSeenSet) Reset(ctx context.Context) (int64, error) {
	var deleted int64
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning prefix %s: %w", s.prefix, err)
	}
	return deleted, nil
}

func (s *RedisSeenSet) Close() error {
	return s.rdb.Close()
}
