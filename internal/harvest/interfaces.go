package harvest

import (
	"context"
	"time"
)

// ProxyPool hands out scored egress endpoints and consumes feedback
// about how they performed. Implementations must be safe for use from
// many fetch goroutines at once.
type ProxyPool interface {
	// Acquire returns a proxy endpoint, triggering a refill first when
	// the pool has drained below its threshold. Returns ErrPoolExhausted
	// when no endpoint is available even after a refill attempt.
	Acquire(ctx context.Context) (string, error)

	// ReleaseBad removes the endpoint unconditionally. Used on hard
	// failures: transport errors, non-2xx, confirmed anti-bot markers.
	ReleaseBad(endpoint string)

	// UpdateScore applies success/failure feedback. An endpoint whose
	// score drops below the floor is evicted.
	UpdateScore(endpoint string, success bool)

	// Len reports the current number of pooled endpoints.
	Len() int
}

// Fetcher retrieves one list page through the proxy pool and validates
// its content. A nil-payload result means the site reported an empty
// feed for that page.
type Fetcher interface {
	FetchList(ctx context.Context, url string) (FetchResult, error)
}

// RecordStore persists normalized records, keeping at most one row per
// natural key. Insert returns the number of records actually inserted;
// duplicates are silently skipped, never errors.
type RecordStore interface {
	Insert(ctx context.Context, records []Record) (int, error)
}

// StockSource yields the stock universe to harvest.
type StockSource interface {
	Stocks(ctx context.Context) ([]string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }
