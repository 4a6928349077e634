package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisSetter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisSink writes "<prefix><routine>" = unix millis with a TTL, so an
// external checker sees a missing key once a routine stops ticking.
type RedisSink struct {
	rdb    redisSetter
	prefix string
	ttl    time.Duration
}

func NewRedisSink(rdb redisSetter, prefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{rdb: rdb, prefix: prefix, ttl: ttl}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisSink) MarkAlive(ctx context.Context, routine string, at time.Time) error {
	key := s.prefix + routine
	if err := s.rdb.Set(ctx, key, strconv.FormatInt(at.UnixMilli(), 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: mark %s: %w", routine, err)
	}
	return nil
}
