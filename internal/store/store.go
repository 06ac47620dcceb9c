// Package store provides expiring key-value backends for failed-login counters.
//
// Every backend performs TTL expiry itself: Get never returns an entry whose
// TTL has elapsed.
package store

import (
	"context"
	"time"
)

// Entry is a counter value together with its remaining time-to-live.
type Entry struct {
	Count int
	TTL   time.Duration
}

// Store is an expiring key-value store holding integer counters.
// Get returns models.ErrNotFound when the key is absent or expired.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, count int, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Incrementer is implemented by stores that can increment a counter and
// refresh its TTL in a single atomic step. An expired or absent key starts at 1.
type Incrementer interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int, error)
}
