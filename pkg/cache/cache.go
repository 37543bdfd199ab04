package cache

import "time"

// Backend stores encoded GraphQL responses.
type Backend interface {
	// Get returns a copy of the cached value. Expired entries are misses.
	Get(key string) (v []byte, ok bool)

	// Set stores a copy of v until expire.
	Set(key string, v []byte, expire time.Time)

	// Delete removes key and reports whether it was present.
	Delete(key string) bool

	// Clear drops every entry. Counters are kept.
	Clear()

	Len() int

	Stats() Stats
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Evictions uint64  `json:"evictions"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	HitRate   float64 `json:"hit_rate"`
}

// HitRate returns hits / (hits + misses), or 0 if there were no lookups.
func HitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
