// Package ratelimit gates expensive operations with per-key token buckets.
// Generative-planner calls and admin actions spend from separate cost tiers;
// a denial is advisory (the caller falls back or skips), never an error.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// CostTier names a budget class.
type CostTier string

// Cost tiers.
const (
	TierPlanner CostTier = "planner"
	TierAdmin   CostTier = "admin"
)

// TierConfig sets a tier's refill rate (tokens per second) and burst size.
type TierConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// Config maps each tier to its budget.
type Config struct {
	Planner TierConfig `mapstructure:"planner"`
	Admin   TierConfig `mapstructure:"admin"`
}

// DefaultConfig is a conservative budget: one planner call per 3 seconds
// with a small burst, and a looser admin allowance.
func DefaultConfig() Config {
	return Config{
		Planner: TierConfig{PerSecond: 1.0 / 3.0, Burst: 3},
		Admin:   TierConfig{PerSecond: 1, Burst: 5},
	}
}

// Limiter holds one token bucket per (key, tier) pair. Keys are typically
// session refs or NPC stable ids; buckets are created on first use.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*rate.Limiter
}

// NewLimiter constructs a Limiter. Zero-valued tiers get the defaults.
func NewLimiter(cfg Config) *Limiter {
	d := DefaultConfig()
	if cfg.Planner.PerSecond <= 0 {
		cfg.Planner = d.Planner
	}
	if cfg.Admin.PerSecond <= 0 {
		cfg.Admin = d.Admin
	}
	return &Limiter{cfg: cfg, buckets: make(map[string]*rate.Limiter)}
}

// CheckAndConsume spends one token from the key's bucket for the tier.
//
// Postcondition: returns whether the operation may proceed; a denial spends
// nothing. Safe for concurrent use.
func (l *Limiter) CheckAndConsume(key string, tier CostTier) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := string(tier) + ":" + key
	bucket, ok := l.buckets[id]
	if !ok {
		tc := l.cfg.Planner
		if tier == TierAdmin {
			tc = l.cfg.Admin
		}
		bucket = rate.NewLimiter(rate.Limit(tc.PerSecond), tc.Burst)
		l.buckets[id] = bucket
	}
	return bucket.Allow()
}

// Reset drops every bucket, for world reloads where stale keys may no
// longer correspond to live entities.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*rate.Limiter)
}

// Forget drops the buckets for a key, for session teardown.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, string(TierPlanner)+":"+key)
	delete(l.buckets, string(TierAdmin)+":"+key)
}
