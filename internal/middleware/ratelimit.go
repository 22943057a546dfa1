package middleware

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/product-watch/internal/config"
)

// RateLimiter enforces a fixed-window request budget per (client IP, path)
// using a Redis counter. The key is INCRed atomically on every request and
// given its window-length expiry on the first increment, so the window is a
// wall-clock bucket anchored at the first request, not a sliding span.
// Limiting is availability-biased: a missing client or a Redis error lets
// the request through.
type RateLimiter struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{rdb: rdb, cfg: cfg}
}

// Allow reports whether the request fits in the current window.
func (l *RateLimiter) Allow(ctx context.Context, ip, path string) bool {
	if l == nil || !l.cfg.Enabled || l.rdb == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	key := l.cfg.Prefix + ":" + ip + ":" + path
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		if l.cfg.Debug {
			log.Printf("ratelimit: redis error for key=%s: %v", key, err)
		}
		return true
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, l.cfg.Window).Err(); err != nil && l.cfg.Debug {
			log.Printf("ratelimit: expire failed for key=%s: %v", key, err)
		}
	}
	if n > int64(l.cfg.Limit) {
		if l.cfg.Debug {
			log.Printf("ratelimit: block key=%s count=%d", key, n)
		}
		return false
	}
	return true
}
