// Package ratelimit tracks upstream throttling of the open-data portal.
// When the portal answers 429 Too Many Requests, the Retry-After header opens
// a cooldown window during which requests are gated.
package ratelimit

import (
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyCooldownUntil = "chidata:throttle:cooldown_until"
	RedisKeyLastUpdate    = "chidata:throttle:last_update"
	RedisKeyThrottleCount = "chidata:throttle:count"
)

// Cooldown bounds.
const (
	// DefaultCooldown applies when a 429 carries no usable Retry-After header.
	DefaultCooldown = 10 * time.Second

	// MaxCooldown caps the cooldown requested by the portal.
	MaxCooldown = 5 * time.Minute
)

// ThrottleState represents the current upstream throttling state.
// The state is shared across client instances via Redis when available.
type ThrottleState struct {
	// CooldownUntil is when requests may resume. Zero when never throttled.
	CooldownUntil time.Time `json:"cooldown_until"`

	// LastUpdate is when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// ThrottleCount is the number of 429 responses observed.
	ThrottleCount int64 `json:"throttle_count"`
}

// IsCoolingDown reports whether requests should be held back at now.
func (s *ThrottleState) IsCoolingDown(now time.Time) bool {
	return now.Before(s.CooldownUntil)
}

// TimeUntilReset returns the duration until the cooldown ends.
// Returns 0 if the cooldown has already passed.
func (s *ThrottleState) TimeUntilReset() time.Duration {
	duration := time.Until(s.CooldownUntil)
	if duration < 0 {
		return 0
	}
	return duration
}
