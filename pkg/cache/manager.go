package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dsworkflows/chidata/pkg/table"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// FetchFunc produces a table on a cache miss.
type FetchFunc func(ctx context.Context) (*table.Table, error)

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:  redisClient,
		logger: log.With().Str("component", "table-cache").Logger(),
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	cacheKey := key.String()

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return &entry, nil
}

// Set stores a cache entry with TTL based on the entry's Expires field.
// The entry will be automatically removed from Redis when it expires.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		// Already expired, don't cache
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.Set(float64(len(data)))
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Invalidate drops the cached table for key so the next LoadOrFetch fetches again.
func (m *Manager) Invalidate(ctx context.Context, key Key) error {
	if err := m.Delete(ctx, key); err != nil {
		return err
	}
	m.logger.Info().Str("key", key.String()).Msg("Cache invalidated")
	return nil
}

// LoadOrFetch returns the cached table for key, or calls fetch, caches its
// result for ttl and returns it. Fetch errors are returned as-is and nothing
// is cached. A failing cache read or write is logged and does not fail the call.
func (m *Manager) LoadOrFetch(ctx context.Context, key Key, ttl time.Duration, fetch FetchFunc) (*table.Table, error) {
	entry, err := m.Get(ctx, key)
	switch {
	case err == nil:
		m.logger.Debug().
			Str("key", key.String()).
			Dur("ttl", entry.TTL()).
			Msg("Cache hit")
		return entry.Table, nil
	case !errors.Is(err, ErrCacheMiss):
		m.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
	}

	t, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.Set(ctx, key, NewEntry(t, ttl)); err != nil {
		m.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache table")
	} else {
		m.logger.Debug().
			Str("key", key.String()).
			Int("records", t.Len()).
			Dur("ttl", ttl).
			Msg("Cached table")
	}

	return t, nil
}
