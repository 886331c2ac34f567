package engine

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Dedup is the idempotency boundary: an external request id keys a
// short-lived cache of completed results. Replaying an id within the
// TTL returns the prior result verbatim with zero stage re-execution.
// Only successful results are cached, so a failed run can be retried
// under the same id.
type Dedup struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewDedup creates a dedup cache holding up to capacity results, each
// expiring after ttl.
func NewDedup(capacity int64, ttl time.Duration) (*Dedup, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("dedup: capacity must be positive")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("dedup: ttl must be positive")
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: capacity * 10,
		MaxCost:     capacity,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("dedup: create cache: %w", err)
	}
	return &Dedup{cache: cache, ttl: ttl}, nil
}

// Get returns the cached result for a request id, if any.
func (d *Dedup) Get(requestID string) (*Result, bool) {
	v, ok := d.cache.Get(requestID)
	if !ok {
		return nil, false
	}
	result, ok := v.(*Result)
	return result, ok
}

// Put caches a result under a request id. The write is synchronous: a
// replay arriving right after Put returns sees the cached result.
func (d *Dedup) Put(requestID string, result *Result) {
	d.cache.SetWithTTL(requestID, result, 1, d.ttl)
	d.cache.Wait()
}

// Close releases the cache resources.
func (d *Dedup) Close() {
	d.cache.Close()
}
