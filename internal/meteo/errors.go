package meteo

import "errors"

var (
	// ErrInvalidInput covers unparseable datetimes, unknown timezones or
	// offsets, and unsupported station, granularity or data type names.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRange is returned when a window's start is not strictly
	// before its end.
	ErrInvalidRange = errors.New("datetime_start must be before datetime_end")

	// ErrRangeTooLarge is returned when the requested span exceeds the
	// one-month maximum.
	ErrRangeTooLarge = errors.New("the maximum allowed range is one month")

	// ErrNotFound means the upstream provider reported that no data
	// exists for the requested station and window. Distinct from an
	// empty filtered result, which is a no-content response.
	ErrNotFound = errors.New("no data for requested station and window")

	// ErrUpstreamUnavailable means the upstream call failed or timed out
	// after exhausting its retries.
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

	// ErrPersistence means a cache read or write failed at the storage
	// layer. No partial batch state remains visible after it.
	ErrPersistence = errors.New("cache persistence failure")
)
