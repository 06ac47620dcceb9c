package models

import "time"

// AttemptRecord is the failed-login counter stored for one (username, client IP) pair.
// An absent record is equivalent to Count == 0.
type AttemptRecord struct {
	Key       string
	Count     int
	ExpiresAt time.Time
}

// Expired reports whether the record should be treated as absent at now.
func (r AttemptRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
