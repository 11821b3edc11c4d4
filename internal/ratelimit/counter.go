package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultPrefix  = "ratelimit"
	defaultTimeout = 100 * time.Millisecond
)

var _ httprate.LimitCounter = (*RedisCounter)(nil)

// RedisCounter is an httprate.LimitCounter whose windows live in redis, so every
// replica shares one budget per key. Redis failures fail open.
type RedisCounter struct {
	client       redis.Cmdable
	prefix       string
	timeout      time.Duration
	windowLength time.Duration
}

// NewRedisCounter creates a counter. prefix namespaces the keys of one limiter.
func NewRedisCounter(client redis.Cmdable, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisCounter{client: client, prefix: prefix, timeout: defaultTimeout}
}

func (c *RedisCounter) Config(requestLimit int, windowLength time.Duration) {
	c.windowLength = windowLength
}

func (c *RedisCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *RedisCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	k := c.key(key, currentWindow)
	pipe := c.client.TxPipeline()
	pipe.IncrBy(ctx, k, int64(amount))
	pipe.Expire(ctx, k, c.ttl())
	if _, err := pipe.Exec(ctx); err != nil {
		zap.L().Warn("rate limit increment failed", zap.String("key", k), zap.Error(err))
	}
	return nil
}

func (c *RedisCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	values, err := c.client.MGet(ctx, c.key(key, currentWindow), c.key(key, previousWindow)).Result()
	if err != nil {
		zap.L().Warn("rate limit lookup failed", zap.String("key", key), zap.Error(err))
		return 0, 0, nil
	}
	return count(values[0]), count(values[1]), nil
}

func (c *RedisCounter) key(key string, window time.Time) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, key, window.Unix())
}

// Keys must outlive the window after theirs, which reads them as the previous window.
func (c *RedisCounter) ttl() time.Duration {
	if c.windowLength <= 0 {
		return 2 * time.Second
	}
	return 2*c.windowLength + time.Second
}

func count(v interface{}) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
