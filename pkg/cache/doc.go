// Package cache provides a high-performance, thread-safe TTL cache with
// built-in statistics tracking and optional Prometheus metrics integration.
//
// # Overview
//
// The package offers one eviction strategy, Time-To-Live expiration, plus a
// no-op variant for configurations where caching is disabled. The
// implementation is generic, thread-safe, and provides observability through
// always-on statistics and optional metrics.
//
// # Quick Start
//
// TTL cache with expiration:
//
//	cache, err := cache.NewTTL[*Manifest](ctx, 10*time.Minute, 5*time.Minute)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cache.Close()
//
//	cache.Set("key", manifest)
//	value, ok := cache.Get("key")
//
// With metrics and an eviction callback:
//
//	cache, err := cache.NewTTL[[]byte](ctx, 10*time.Minute, 1*time.Minute,
//		cache.WithMetrics[[]byte](registry, "manifest_cache"),
//		cache.WithEvictionCallback[[]byte](func(key string, value []byte) {
//			log.Printf("Evicted: %s", key)
//		}),
//	)
//
// # Eviction
//
// Items expire after the configured TTL and are removed either lazily on Get
// or by the background cleanup goroutine, which runs every cleanupInterval.
// The goroutine exits when the constructor's context is cancelled or when
// Close is called.
//
// # Configuration-Driven Creation
//
// Services that load cache settings from configuration use NewFromConfig,
// which validates the Config and returns a no-op cache when caching is
// disabled:
//
//	cfg := cache.Config{Enabled: true, TTL: 10 * time.Minute, CleanupInterval: time.Minute}
//	c, err := cache.NewFromConfig[*Manifest](ctx, cfg)
//
// Config supports JSON duration strings ("1h", "5m") as well as integer
// nanoseconds for backward compatibility.
//
// # Statistics and Metrics
//
// Statistics (hits, misses, sets, deletes, evictions, size) are always
// collected and available via Stats(). Prometheus export is opt-in through
// WithMetrics, which registers per-cache counters and a size gauge under the
// given component prefix.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Eviction callbacks are invoked
// outside the cache lock, so they may run concurrently with other operations
// and must synchronise any shared state of their own.
package cache
