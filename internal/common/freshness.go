// Package common provides shared utilities for dividendos
package common

import "time"

// IsFresh returns true if the given timestamp is within the TTL.
// A zero TTL means the data never goes stale once it has a timestamp.
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	if ttl <= 0 {
		return true
	}
	return time.Since(updated) < ttl
}
