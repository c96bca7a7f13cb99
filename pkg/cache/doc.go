// Package cache provides a caller-owned table cache with a Redis backend.
//
// A Manager replaces process-wide cached tables: the owner decides what is
// cached, for how long, and when it is invalidated.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{Dataset: "r5kz-chrr", Count: 1000}
//
//	licenses, err := manager.LoadOrFetch(ctx, key, time.Hour, func(ctx context.Context) (*table.Table, error) {
//		return fetcher.Fetch(ctx, 1000)
//	})
//
//	// after upstream changes
//	_ = manager.Invalidate(ctx, key)
//
// # Metrics
//
//   - chidata_cache_hits_total - Cache hits
//   - chidata_cache_misses_total - Cache misses
//   - chidata_cache_size_bytes - Bytes written by the last Set
//   - chidata_cache_errors_total{operation} - Cache operation errors
//
// Fetch errors are never cached; a failing fetch leaves the previous state
// untouched.
package cache
