package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/salonpos/access-service/internal/client"
	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/util/logger"
)

// Store counts one request against a client key's fixed window and reports
// the count after increment plus the window's absolute reset time.
//
// Fixed window is deliberate: bursts of up to twice the ceiling can straddle
// a window boundary, traded for exact, cheap counting.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

type LimiterConfig struct {
	Max       int
	Window    time.Duration
	KeyPrefix string
	// StrictOnFailure denies requests when the counting store is down
	// instead of admitting them uncounted. Off by default: this limiter
	// guards a door its own operators need to open.
	StrictOnFailure bool
}

// RateLimiter is the third guard in the chain. The counter key is the
// caller's socket address, so it only ever counts requests that already
// passed the origin and secret guards.
type RateLimiter struct {
	cfg   LimiterConfig
	store Store
	now   func() time.Time
}

func NewRateLimiter(cfg LimiterConfig, store Store) *RateLimiter {
	if cfg.Max <= 0 {
		cfg.Max = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RateLimiter{cfg: cfg, store: store, now: time.Now}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.cfg.KeyPrefix + remoteAddrIP(r.RemoteAddr).String()

		count, resetAt, err := rl.store.Incr(r.Context(), key, rl.cfg.Window)
		if err != nil {
			if rl.cfg.StrictOnFailure {
				logger.Error("Rate limiter store failure, blocking %s (strict): %v", r.RemoteAddr, err)
				writeError(w, http.StatusServiceUnavailable, models.CodeServiceUnavailable,
					"rate limiter unavailable")
				return
			}
			// Fail open by default: a dead store must not lock operators
			// out of their own door.
			logger.Error("Rate limiter store failure, admitting %s: %v", r.RemoteAddr, err)
			w.Header().Set("X-RateLimit-Degraded", "true")
			next.ServeHTTP(w, r)
			return
		}

		remaining := int64(rl.cfg.Max) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > int64(rl.cfg.Max) {
			retryAfter := int(math.Ceil(resetAt.Sub(rl.now()).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			logger.Warn("Rate limiter denied %s: %d requests in window", r.RemoteAddr, count)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error": map[string]any{
					"code":              models.CodeRateLimited,
					"message":           "too many door requests, slow down",
					"retryAfterSeconds": retryAfter,
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// StatsHandler exposes limiter mode and backend health for observability.
func (rl *RateLimiter) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := struct {
		Mode          string `json:"mode"`
		Limit         int    `json:"limit"`
		WindowSec     int    `json:"window_seconds"`
		InMemoryKeys  int    `json:"in_memory_keys,omitempty"`
		RedisCommands uint64 `json:"redis_commands,omitempty"`
		RedisErrors   uint64 `json:"redis_errors,omitempty"`
		RedisTimeouts uint64 `json:"redis_timeouts,omitempty"`
		CircuitOpen   uint64 `json:"redis_circuit_open,omitempty"`
		CircuitState  string `json:"redis_circuit_state,omitempty"`
	}{
		Mode:      "redis",
		Limit:     rl.cfg.Max,
		WindowSec: int(rl.cfg.Window.Seconds()),
	}
	switch s := rl.store.(type) {
	case *MemoryStore:
		stats.Mode = "memory"
		stats.InMemoryKeys = s.Len()
	case *RedisStore:
		rs := s.redis.Stats()
		stats.RedisCommands = rs.Commands
		stats.RedisErrors = rs.Errors
		stats.RedisTimeouts = rs.Timeouts
		stats.CircuitOpen = rs.CircuitOpen
		stats.CircuitState = s.redis.CircuitBreakerState()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

type windowRecord struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is the single-process backend. Records expire via a one-shot
// timer armed when a window opens; the sweep compares the scheduled window's
// resetAt against the live record so a window that was legitimately reset in
// the meantime survives.
type MemoryStore struct {
	mu         sync.Mutex
	records    map[string]*windowRecord
	sweepSlack time.Duration
	now        func() time.Time
	afterFunc  func(d time.Duration, f func()) // nil disables sweeps (tests call sweep directly)
}

func NewMemoryStore(sweepSlack time.Duration) *MemoryStore {
	if sweepSlack <= 0 {
		sweepSlack = 5 * time.Second
	}
	return &MemoryStore{
		records:    make(map[string]*windowRecord),
		sweepSlack: sweepSlack,
		now:        time.Now,
		afterFunc:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[key]
	if !ok || !now.Before(rec.resetAt) {
		rec = &windowRecord{count: 1, resetAt: now.Add(window)}
		s.records[key] = rec
		s.scheduleSweep(key, rec.resetAt)
		return rec.count, rec.resetAt, nil
	}

	rec.count++
	return rec.count, rec.resetAt, nil
}

func (s *MemoryStore) scheduleSweep(key string, resetAt time.Time) {
	if s.afterFunc == nil {
		return
	}
	delay := resetAt.Sub(s.now()) + s.sweepSlack
	s.afterFunc(delay, func() { s.sweep(key, resetAt) })
}

// sweep evicts key only if its record still belongs to the window the sweep
// was armed for.
func (s *MemoryStore) sweep(key string, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if ok && rec.resetAt.Equal(resetAt) {
		delete(s.records, key)
	}
}

// Len reports the current key population.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// RedisStore backs the limiter with Redis so multiple instances share one
// budget per client. Expiry rides on the key TTL; no sweep needed.
type RedisStore struct {
	redis *client.RedisClient
	now   func() time.Time
}

func NewRedisStore(rc *client.RedisClient) *RedisStore {
	return &RedisStore{redis: rc, now: time.Now}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	count, ttl, err := s.redis.FixedWindowIncr(ctx, key, window)
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl <= 0 {
		ttl = window
	}
	return count, s.now().Add(ttl), nil
}
