package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	throttleCooldownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chidata_throttle_cooldown_seconds",
		Help: "Length of the most recent upstream throttle cooldown",
	})

	throttleBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chidata_throttle_blocks_total",
		Help: "Total number of requests blocked during an upstream cooldown",
	})

	throttleResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chidata_throttle_responses_total",
		Help: "Total number of 429 responses observed from upstream",
	})
)

// extendCooldown sets KEYS[1] to the deadline ARGV[1] (unix ms) with a TTL of
// ARGV[2] ms unless a later deadline is already stored.
var extendCooldown = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local deadline = tonumber(ARGV[1])
if deadline > current then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
end
return 1
`)

// Tracker records upstream throttling and gates requests.
// With a nil Redis client the state is kept in process memory.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu    sync.Mutex
	local ThrottleState
}

// NewTracker creates a new throttle tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current throttle state.
// Returns a zero state if nothing was recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		state := t.local
		return &state, nil
	}

	until, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get cooldown: %w", err)
	}
	if errors.Is(err, redis.Nil) {
		return &ThrottleState{}, nil
	}

	lastUpdate, err := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	count, err := t.redis.Get(ctx, RedisKeyThrottleCount).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get throttle count: %w", err)
	}

	return &ThrottleState{
		CooldownUntil: time.UnixMilli(until),
		LastUpdate:    time.UnixMilli(lastUpdate),
		ThrottleCount: count,
	}, nil
}

// RecordThrottle opens a cooldown window from a 429 response's headers.
func (t *Tracker) RecordThrottle(ctx context.Context, headers http.Header) error {
	cooldown := ParseRetryAfter(headers.Get("Retry-After"), time.Now())

	now := time.Now()
	until := now.Add(cooldown)

	throttleResponsesTotal.Inc()
	throttleCooldownSeconds.Set(cooldown.Seconds())

	if t.redis == nil {
		t.mu.Lock()
		if until.After(t.local.CooldownUntil) {
			t.local.CooldownUntil = until
		}
		t.local.LastUpdate = now
		t.local.ThrottleCount++
		t.mu.Unlock()
	} else {
		err := extendCooldown.Run(ctx, t.redis, []string{RedisKeyCooldownUntil},
			until.UnixMilli(), MaxCooldown.Milliseconds()).Err()
		if err != nil {
			return fmt.Errorf("store cooldown in redis: %w", err)
		}

		pipe := t.redis.TxPipeline()
		pipe.Set(ctx, RedisKeyLastUpdate, now.UnixMilli(), 0)
		pipe.Incr(ctx, RedisKeyThrottleCount)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store throttle state in redis: %w", err)
		}
	}

	t.logger.Warn().
		Dur("cooldown", cooldown).
		Time("cooldown_until", until).
		Msg("Upstream throttling - holding requests")

	return nil
}

// ShouldAllowRequest reports whether a request may be sent now.
// Returns false while a cooldown window is open.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get throttle state: %w", err)
	}

	if state.IsCoolingDown(time.Now()) {
		t.logger.Warn().
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Upstream cooldown active - blocking request")

		throttleBlocksTotal.Inc()
		return false, nil
	}

	return true, nil
}

// ParseRetryAfter converts a Retry-After value (seconds or HTTP date) into a
// cooldown clamped to [0, MaxCooldown]. Empty or invalid values yield
// DefaultCooldown.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return DefaultCooldown
	}

	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now)
	} else {
		return DefaultCooldown
	}

	if d < 0 {
		return 0
	}
	if d > MaxCooldown {
		return MaxCooldown
	}
	return d
}
