package security

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxEntries bounds the number of identifiers tracked at once
	DefaultMaxEntries = 10000

	// DefaultIdleTimeout is how long an unused limiter is kept
	DefaultIdleTimeout = 30 * time.Minute
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate per identifier
	RequestsPerSecond float64

	// Burst is the bucket size per identifier
	Burst int

	// MaxEntries caps tracked identifiers; the least recently used is evicted
	// when full. Zero means DefaultMaxEntries.
	MaxEntries int

	// IdleTimeout drops limiters that saw no request for this long.
	// Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	Logger *slog.Logger
}

// RateLimiter provides per-identifier token bucket rate limiting. Limiters
// live in a ttlcache bounded by capacity and idle time.
type RateLimiter struct {
	limiters   *ttlcache.Cache[string, *rate.Limiter]
	limit      rate.Limit
	burst      int
	maxEntries int
	logger     *slog.Logger

	evictions atomic.Int64
}

// NewRateLimiter creates a rate limiter with default capacity and idle timeout.
func NewRateLimiter(requestsPerSecond float64, burst int, logger *slog.Logger) *RateLimiter {
	return NewRateLimiterWithConfig(RateLimiterConfig{
		RequestsPerSecond: requestsPerSecond,
		Burst:             burst,
		Logger:            logger,
	})
}

// NewRateLimiterWithConfig creates a rate limiter and starts its expiry loop.
// Call Stop to release it.
func NewRateLimiterWithConfig(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	rl := &RateLimiter{
		limit:      rate.Limit(cfg.RequestsPerSecond),
		burst:      cfg.Burst,
		maxEntries: cfg.MaxEntries,
		logger:     cfg.Logger,
	}

	// Concurrent first requests from one identifier share a single limiter.
	loader := ttlcache.LoaderFunc[string, *rate.Limiter](
		func(c *ttlcache.Cache[string, *rate.Limiter], key string) *ttlcache.Item[string, *rate.Limiter] {
			return c.Set(key, rate.NewLimiter(rl.limit, rl.burst), ttlcache.DefaultTTL)
		},
	)

	rl.limiters = ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](cfg.IdleTimeout),
		ttlcache.WithCapacity[string, *rate.Limiter](uint64(cfg.MaxEntries)),
		ttlcache.WithLoader[string, *rate.Limiter](ttlcache.NewSuppressedLoader[string, *rate.Limiter](loader, nil)),
	)
	rl.limiters.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *rate.Limiter]) {
		if reason != ttlcache.EvictionReasonCapacityReached {
			return
		}
		total := rl.evictions.Add(1)
		rl.logger.Debug("Rate limiter capacity eviction",
			"identifier", item.Key(),
			"total_evictions", total)
	})

	go rl.limiters.Start()

	return rl
}

// Allow reports whether a request from identifier may proceed now.
func (rl *RateLimiter) Allow(identifier string) bool {
	item := rl.limiters.Get(identifier)
	if item == nil {
		// loader always returns an item; treat a miss as a fresh bucket
		return true
	}
	return item.Value().Allow()
}

// Cleanup removes limiters whose idle timeout has passed.
func (rl *RateLimiter) Cleanup() {
	rl.limiters.DeleteExpired()
}

// Stop stops the background expiry loop.
func (rl *RateLimiter) Stop() {
	rl.limiters.Stop()
}

// Stats holds rate limiter statistics for monitoring
type Stats struct {
	CurrentEntries int     // Current number of tracked identifiers
	MaxEntries     int     // Maximum tracked identifiers
	TotalEvictions int64   // Capacity evictions since start
	MemoryPressure float64 // Percentage of max capacity used (0-100)
}

// GetStats returns current rate limiter statistics.
func (rl *RateLimiter) GetStats() Stats {
	current := rl.limiters.Len()
	return Stats{
		CurrentEntries: current,
		MaxEntries:     rl.maxEntries,
		TotalEvictions: rl.evictions.Load(),
		MemoryPressure: float64(current) / float64(rl.maxEntries) * 100.0,
	}
}
