package cache

import (
	"context"
	"time"
)

// Store provides a generic key-value store with TTL support. Production
// deployments back this with a shared Redis so rate limits, sessions and
// CSRF tokens survive horizontal scaling; tests use the in-memory variant.
type Store interface {
	// Get retrieves a value by key
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with optional TTL (0 means no expiry)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete removes a key (idempotent)
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists
	Exists(ctx context.Context, key string) (bool, error)

	// Close closes the underlying connection
	Close() error
}

// RateLimitResult reports the outcome of a fixed-window admission check.
type RateLimitResult struct {
	Limited   bool
	Count     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter provides fixed-window rate limiting. The window is a bucket
// that resets wholesale at its boundary; the call that pushes the counter
// over the limit is itself recorded.
type RateLimiter interface {
	// Allow increments the counter for key and reports whether the request
	// is over the limit for the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)

	// Remaining returns limit - count floored at zero, or limit if the key
	// has no live window.
	Remaining(ctx context.Context, key string, limit int) (int, error)

	// Reset deletes the counter for key outright.
	Reset(ctx context.Context, key string) error
}

// CSRFStore keeps exactly one token per session. Generating a new token
// overwrites the prior one, so a token issued to an older tab stops
// validating after a refresh elsewhere. That single-token behavior is
// deliberate and load-bearing for the session lifecycle.
type CSRFStore interface {
	// Generate issues a fresh token for the session, replacing any prior one.
	Generate(ctx context.Context, sessionID string) (string, error)

	// Validate compares token against the stored token in constant time.
	// A missing entry validates false, not an error.
	Validate(ctx context.Context, sessionID, token string) (bool, error)

	// Revoke deletes the session's token (idempotent).
	Revoke(ctx context.Context, sessionID string) error
}

// Key prefixes for consistent cache key naming
const (
	SessionPrefix   = "csb:session:"
	RateLimitPrefix = "csb:ratelimit:"
	CSRFPrefix      = "csb:csrf:"
)

// ErrKeyNotFound is returned when a cache key doesn't exist
type ErrKeyNotFound struct {
	Key string
}

func (e ErrKeyNotFound) Error() string {
	return "cache key not found: " + e.Key
}
