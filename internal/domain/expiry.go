package domain

import "time"

// TTL returns how long a marker of category c stays active.
// Unknown categories have a zero TTL and are therefore never active.
func TTL(c Category) time.Duration {
	return ttls[c]
}

// ExpiresAt returns the instant a marker created at createdAt stops being active.
func ExpiresAt(c Category, createdAt time.Time) time.Time {
	return createdAt.Add(TTL(c))
}

// IsActive reports whether m is still active at now. The boundary is
// exclusive: a marker is expired at exactly CreatedAt + TTL.
func IsActive(m Marker, now time.Time) bool {
	return now.Before(ExpiresAt(m.Category, m.CreatedAt))
}
