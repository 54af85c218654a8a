// Package ratelimit provides fixed-window request limiting keyed by caller.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	// Allow records one hit for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

// Redis counts hits with INCR and starts the window with EXPIRE on the first
// hit, so every replica shares one budget per key.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedis(ctx context.Context, addr string, limit int, window time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &Redis{client: client, limit: limit, window: window, prefix: "ratelimit"}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}
	k := fmt.Sprintf("%s:%s", r.prefix, key)
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("check rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return false, fmt.Errorf("set rate limit window: %w", err)
		}
	}
	return count <= int64(r.limit), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Memory is the single-process fallback used when no redis is configured.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	count   int
	resetAt time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{limit: limit, window: window, now: time.Now, buckets: map[string]*bucket{}}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	if m.limit <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	b := m.buckets[key]
	if b == nil || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(m.window)}
		m.buckets[key] = b
		m.sweep(now)
	}
	b.count++
	return b.count <= m.limit, nil
}

func (m *Memory) sweep(now time.Time) {
	for k, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, k)
		}
	}
}
