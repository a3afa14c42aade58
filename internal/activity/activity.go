// Package activity caches per-user, per-day reading activity counters with a
// TTL. The cache is advisory: day buckets can always be rebuilt from session
// history, so callers treat failures here as non-fatal.
package activity

import (
	"context"
	"time"
)

// KeyPrefix namespaces every daily activity key.
const KeyPrefix = "readtrack:activity:"

// DefaultTTL keeps a day's counter for a week.
const DefaultTTL = 7 * 24 * time.Hour

// Counter is a TTL key/value counter store.
type Counter interface {
	// Incr adds by to key, creating it at zero, and returns the new value.
	Incr(ctx context.Context, key string, by int64) (int64, error)
	// Expire sets key to expire after ttl.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// IncrWithTTL adds by to key and resets its expiry to ttl in one atomic
	// step, returning the new value.
	IncrWithTTL(ctx context.Context, key string, by int64, ttl time.Duration) (int64, error)
	// Get returns the value of key, or 0 when it does not exist.
	Get(ctx context.Context, key string) (int64, error)
	Close() error
}

// Daily maps (user, day) pairs onto a Counter.
type Daily struct {
	counter Counter
	ttl     time.Duration
	loc     *time.Location
}

// NewDaily creates a daily activity cache. Days are computed in loc.
func NewDaily(counter Counter, ttl time.Duration, loc *time.Location) *Daily {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Daily{counter: counter, ttl: ttl, loc: loc}
}

// Key returns the counter key for a user's day, e.g. readtrack:activity:u1:2026-03-02.
func Key(userID, day string) string {
	return KeyPrefix + userID + ":" + day
}

// Day formats t as the YYYY-MM-DD day it falls on in the cache's location.
func (d *Daily) Day(t time.Time) string {
	return t.In(d.loc).Format(time.DateOnly)
}

// Record adds count to the user's counter for the day containing at and
// refreshes its TTL. A counter never exists without an expiry.
func (d *Daily) Record(ctx context.Context, userID string, at time.Time, count int64) (int64, error) {
	return d.counter.IncrWithTTL(ctx, Key(userID, d.Day(at)), count, d.ttl)
}

// Count returns the user's counter for the day containing at.
func (d *Daily) Count(ctx context.Context, userID string, at time.Time) (int64, error) {
	return d.counter.Get(ctx, Key(userID, d.Day(at)))
}

// Close releases the underlying counter store.
func (d *Daily) Close() error {
	return d.counter.Close()
}
