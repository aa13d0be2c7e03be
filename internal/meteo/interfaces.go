package meteo

import (
	"context"
	"time"
)

// Fetcher abstracts the upstream open-data provider. Implementations own
// their retry policy; after exhausting it they return an error wrapping
// ErrUpstreamUnavailable, or ErrNotFound when the provider reports that
// no data exists for the window.
type Fetcher interface {
	// FetchWindow retrieves every observation for the station in the
	// UTC window [start, end]. Records are returned as received, with
	// timestamps normalized to UTC.
	FetchWindow(ctx context.Context, station Station, start, end time.Time) ([]Observation, error)
}

// Store is the contract the cache backends must satisfy. All mutation is
// transaction-scoped: a failed BulkInsert leaves no partial batch visible.
type Store interface {
	// Query returns all observations for the station whose timestamp
	// lies in [start, end], both inclusive. Order is not guaranteed.
	Query(ctx context.Context, station Station, start, end time.Time) ([]Observation, error)

	// BulkInsert persists the records atomically. A record whose
	// (station, timestamp) pair already exists is silently skipped.
	BulkInsert(ctx context.Context, records []Observation) error

	// EvictOlderThan deletes records whose insertion time (not
	// observation time) is older than age, returning the number removed.
	EvictOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
