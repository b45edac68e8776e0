package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Config defines how many actions a key may perform per window
type Config struct {
	Requests int
	Window   time.Duration
	// Burst allows temporary bursts above the rate (local limiter only)
	Burst int
}

// DefaultConfig allows 60 actions a minute with a burst of 10
func DefaultConfig() Config {
	return Config{Requests: 60, Window: time.Minute, Burst: 10}
}

// Validate rejects configs that would block every request
func (c Config) Validate() error {
	if c.Requests < 1 {
		return fmt.Errorf("rate limit must allow at least 1 request, got %d", c.Requests)
	}
	if c.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.Burst < 0 {
		return errors.New("rate limit burst cannot be negative")
	}
	return nil
}

// Decision is the answer for one request
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is the time until the key has capacity again
	Reset time.Duration
}

// Limiter decides whether a key may act now
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Local is an in-process token bucket per key
type Local struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewLocal creates an in-process limiter
func NewLocal(cfg Config) *Local {
	return &Local{cfg: cfg, now: time.Now, buckets: make(map[string]*bucket)}
}

func (l *Local) capacity() float64 {
	return float64(l.cfg.Requests + l.cfg.Burst)
}

// Allow takes one token from the key's bucket
func (l *Local) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity(), lastUpdate: now}
		l.buckets[key] = b
	}

	rate := float64(l.cfg.Requests) / l.cfg.Window.Seconds()
	b.tokens = math.Min(l.capacity(), b.tokens+now.Sub(b.lastUpdate).Seconds()*rate)
	b.lastUpdate = now

	d := Decision{Limit: l.cfg.Requests}
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
	}
	d.Remaining = int(b.tokens)
	if b.tokens < 1 {
		d.Reset = time.Duration((1 - b.tokens) / rate * float64(time.Second))
	}
	return d, nil
}

// Cleanup drops buckets idle for more than two windows
func (l *Local) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastUpdate) > 2*l.cfg.Window {
			delete(l.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup every window until ctx is done
func (l *Local) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Window)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Redis is a fixed-window counter shared by every replica
type Redis struct {
	client *redis.Client
	cfg    Config
	prefix string
}

// NewRedis creates a Redis-backed limiter
func NewRedis(client *redis.Client, cfg Config, prefix string) *Redis {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{client: client, cfg: cfg, prefix: prefix}
}

// Allow counts the request in the key's current window. On a Redis error
// the decision allows the request and the error is returned.
func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := r.prefix + ":" + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true, Limit: r.cfg.Requests}, fmt.Errorf("rate limit counter: %w", err)
	}

	reset := ttl.Val()
	if reset <= 0 {
		// first request of the window
		if err := r.client.PExpire(ctx, redisKey, r.cfg.Window).Err(); err != nil {
			return Decision{Allowed: true, Limit: r.cfg.Requests}, fmt.Errorf("rate limit window: %w", err)
		}
		reset = r.cfg.Window
	}

	count := incr.Val()
	d := Decision{
		Allowed:   count <= int64(r.cfg.Requests),
		Limit:     r.cfg.Requests,
		Remaining: max(0, r.cfg.Requests-int(count)),
	}
	if !d.Allowed {
		d.Reset = reset
	}
	return d, nil
}
