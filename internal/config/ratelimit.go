package config

import "time"

// RateLimitConfig controls the per-(client IP, path) fixed-window rate
// limiter backed by Redis. Windows are wall-clock buckets keyed by the
// first request: the counter's expiry is set once when the key is created
// and the count resets when the key expires, not on a sliding basis.
type RateLimitConfig struct {
	Enabled bool          // disable to let every request through
	Limit   int           // max requests per window per (ip, path)
	Window  time.Duration // bucket length, one hour by default
	Prefix  string        // Redis key namespace
	Debug   bool          // log limiter decisions
}

// LoadRateLimitConfig reads limiter settings from the environment with the
// default policy of 100 requests per hour.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Limit:   envInt("RATE_LIMIT_PER_WINDOW", 100),
		Window:  envDur("RATE_LIMIT_WINDOW", time.Hour),
		Prefix:  envStr("RATE_LIMIT_PREFIX", "rate_limit"),
		Debug:   envBool("RATE_LIMIT_DEBUG", false),
	}
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return cfg
}
