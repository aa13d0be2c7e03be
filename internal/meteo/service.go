package meteo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service resolves observation requests against the cache, falling back
// to the upstream fetcher when the stored data does not cover the full
// ten-minute sampling grid of the requested window.
type Service struct {
	store     Store
	fetcher   Fetcher
	retention time.Duration
	log       *zap.SugaredLogger
}

// NewService creates a Service. retention bounds the age of cache entries,
// measured from insertion time, and is enforced on every persist.
func NewService(store Store, fetcher Fetcher, retention time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{
		store:     store,
		fetcher:   fetcher,
		retention: retention,
		log:       log,
	}
}

// Resolve returns every observation for the station in the UTC window
// [start, end], with timestamps converted to the output location.
//
// The cache fully answers the request only when it holds a record for
// every ten-minute-aligned instant in the window. On any gap the whole
// window is re-fetched upstream, persisted, and merged over the cached
// rows, with the fresh fetch winning on conflicting timestamps.
// Re-fetching the entire window instead of just the gap trades upstream
// call volume for a single, well-tested code path.
func (s *Service) Resolve(ctx context.Context, station Station, start, end time.Time, output *time.Location) ([]Observation, error) {
	start, end = start.UTC(), end.UTC()

	cached, err := s.store.Query(ctx, station, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrPersistence, station, err)
	}

	if len(cached) > 0 {
		missing := missingGridInstants(cached, start, end)
		if len(missing) == 0 {
			s.log.Infow("complete cache hit", "station", station, "start", start, "end", end, "records", len(cached))
			return finalize(cached, output), nil
		}
		s.log.Infow("partial cache hit, re-fetching window",
			"station", station, "start", start, "end", end, "cached", len(cached), "missing", len(missing))
	} else {
		s.log.Infow("cache miss", "station", station, "start", start, "end", end)
	}

	fetched, err := s.fetcher.FetchWindow(ctx, station, start, end)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, station, fetched); err != nil {
		return nil, err
	}

	return finalize(merge(cached, fetched), output), nil
}

// persist writes freshly fetched records to the cache. The eviction sweep
// runs first, cut off by insertion age, so rows written by this batch can
// never be swept by it. A failed eviction is maintenance debt, not a
// request failure; a failed insert is.
func (s *Service) persist(ctx context.Context, station Station, records []Observation) error {
	batchID := uuid.NewString()

	evicted, err := s.store.EvictOlderThan(ctx, s.retention)
	if err != nil {
		s.log.Warnw("cache eviction failed", "batch", batchID, "error", err)
	} else if evicted > 0 {
		s.log.Infow("evicted expired cache entries", "batch", batchID, "evicted", evicted)
	}

	if err := s.store.BulkInsert(ctx, records); err != nil {
		return fmt.Errorf("%w: insert %d records for %s: %v", ErrPersistence, len(records), station, err)
	}
	s.log.Infow("cached fetched records", "batch", batchID, "station", station, "records", len(records))
	return nil
}

// missingGridInstants returns the ten-minute-aligned instants of
// [floor(start), ceil(end)] that no cached record covers.
func missingGridInstants(cached []Observation, start, end time.Time) []time.Time {
	have := make(map[int64]struct{}, len(cached))
	for _, rec := range cached {
		have[rec.Time.Unix()] = struct{}{}
	}

	var missing []time.Time
	gridEnd := ceilToGrid(end)
	for t := start.Truncate(SampleInterval); !t.After(gridEnd); t = t.Add(SampleInterval) {
		if _, ok := have[t.Unix()]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

func ceilToGrid(t time.Time) time.Time {
	floored := t.Truncate(SampleInterval)
	if floored.Equal(t) {
		return t
	}
	return floored.Add(SampleInterval)
}

// merge overlays fresh records on top of cached ones. On a shared
// (station, timestamp) key the fresh record is authoritative.
func merge(cached, fresh []Observation) []Observation {
	byInstant := make(map[string]Observation, len(cached)+len(fresh))
	for _, rec := range cached {
		byInstant[mergeKey(rec)] = rec
	}
	for _, rec := range fresh {
		byInstant[mergeKey(rec)] = rec
	}

	out := make([]Observation, 0, len(byInstant))
	for _, rec := range byInstant {
		out = append(out, rec)
	}
	return out
}

func mergeKey(rec Observation) string {
	return rec.StationID + "@" + rec.Time.UTC().Format(time.RFC3339)
}

// finalize orders records by time and converts them to the output zone,
// rewriting the textual timestamp to match.
func finalize(records []Observation, output *time.Location) []Observation {
	out := make([]Observation, len(records))
	copy(out, records)
	for i := range out {
		out[i].Time = out[i].Time.In(output)
		out[i].FHora = out[i].Time.Format(isoLayout)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
