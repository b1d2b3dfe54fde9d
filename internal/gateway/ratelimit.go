package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitStore persists fixed-window counters keyed by caller identity.
// Incr advances the counter for the window containing now, creating a fresh
// window when the previous one has elapsed, and returns the post-increment
// count plus the instant the window resets.
type RateLimitStore interface {
	Incr(ctx context.Context, key string, window time.Duration, now time.Time) (count int, resetAt time.Time, err error)
}

// RateLimiter applies a fixed-window request quota per caller
type RateLimiter struct {
	store       RateLimitStore
	maxRequests int
	window      time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewRateLimiter creates a fixed-window limiter over the given store
func NewRateLimiter(store RateLimitStore, maxRequests int, window time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		store:       store,
		maxRequests: maxRequests,
		window:      window,
		logger:      logger,
		now:         time.Now,
	}
}

// Allow records one request for the caller and reports whether it is within
// quota. When over quota, retryAfter is the whole seconds until the window
// resets, rounded up and never below 1.
//
// Store failures fail open: an unreachable backing store degrades rate
// limiting rather than taking down the proxy.
func (r *RateLimiter) Allow(ctx context.Context, key string) (allowed bool, retryAfter int64) {
	now := r.now()

	count, resetAt, err := r.store.Incr(ctx, key, r.window, now)
	if err != nil {
		r.logger.Warn("Rate limit store unavailable, failing open",
			zap.String("key", key),
			zap.Error(err))
		return true, 0
	}

	if count <= r.maxRequests {
		return true, 0
	}

	remaining := resetAt.Sub(now)
	retryAfter = int64((remaining + time.Second - 1) / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

// RateLimitKey derives the caller identity key: the user id when
// authenticated, the client IP otherwise. Authenticated quota follows the
// user across addresses; anonymous quota is per source address.
func RateLimitKey(userID, clientIP string) string {
	if userID != "" {
		return "user:" + userID
	}
	return "ip:" + clientIP
}

// --- In-memory store ---

type memoryWindow struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimitStore is a process-local fixed-window counter store
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

// NewMemoryRateLimitStore creates an in-memory rate limit store
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		windows: make(map[string]*memoryWindow),
	}
}

// Incr implements RateLimitStore
func (s *MemoryRateLimitStore) Incr(_ context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++

	return w.count, w.resetAt, nil
}

// --- Redis store ---

// RedisRateLimitStore keeps fixed-window counters in redis so the quota
// is shared across gateway replicas.
type RedisRateLimitStore struct {
	client *redis.Client
}

// NewRedisRateLimitStore creates a redis-backed rate limit store
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

func (s *RedisRateLimitStore) redisKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// Incr implements RateLimitStore. The counter key expires with the window,
// so a new window starts automatically when the old key is gone.
func (s *RedisRateLimitStore) Incr(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	rkey := s.redisKey(key)

	count, err := s.client.Incr(ctx, rkey).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	if count == 1 {
		if err := s.client.Expire(ctx, rkey, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return int(count), now.Add(window), nil
	}

	ttl, err := s.client.TTL(ctx, rkey).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// Key exists without expiry (lost Expire on a prior crash); reset it
		if err := s.client.Expire(ctx, rkey, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		ttl = window
	}

	return int(count), now.Add(ttl), nil
}
