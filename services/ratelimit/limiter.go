package ratelimitsvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/newstandard/academy/core"
)

// Limiter counts hits per key over fixed windows.
type Limiter interface {
	// Allow records a hit on key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

type redisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

var _ Limiter = (*redisLimiter)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisLimiter(client *redis.Client, conf *core.Config) Limiter {
	return &redisLimiter{client: client, limit: int64(conf.RateLimit.Requests), window: conf.RateLimit.Window}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = "ratelimit:" + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Wrap(err, "counting hit")
	}
	return incr.Val() <= l.limit, nil
}

type window struct {
	count   int
	resetAt time.Time
}

type memoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
	swept   time.Time
	now     func() time.Time
}

var _ Limiter = (*memoryLimiter)(nil)

func NewMemoryLimiter(conf *core.Config) Limiter {
	return &memoryLimiter{
		limit:   conf.RateLimit.Requests,
		window:  conf.RateLimit.Window,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) >= l.window {
		l.sweep(now)
	}
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit, nil
}

// sweep drops the expired windows.
func (l *memoryLimiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
	l.swept = now
}
