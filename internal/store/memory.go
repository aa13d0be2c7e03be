package store

import (
	"context"
	"sync"
	"time"

	"github.com/mfenerich/meteoanalytics/internal/meteo"
)

// entry pairs an observation with the moment it entered the cache, which
// is what the eviction sweep keys on.
type entry struct {
	obs        meteo.Observation
	insertedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory observation cache. It backs
// the service tests and deployments without a configured database.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station id, inner key: unix timestamp of the sample
	data map[string]map[int64]entry

	// now is swapped out in tests to steer insertion ages.
	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[int64]entry),
		now:  time.Now,
	}
}

// Query returns all observations for the station with a timestamp in
// [start, end]. Order is not guaranteed.
func (s *MemoryStore) Query(_ context.Context, station meteo.Station, start, end time.Time) ([]meteo.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byInstant := s.data[string(station)]
	result := make([]meteo.Observation, 0, len(byInstant))
	for _, e := range byInstant {
		ts := e.obs.Time
		if ts.Before(start) || ts.After(end) {
			continue
		}
		result = append(result, e.obs)
	}
	return result, nil
}

// BulkInsert stores the records, silently skipping any (station,
// timestamp) pair already present.
func (s *MemoryStore) BulkInsert(_ context.Context, records []meteo.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	insertedAt := s.now()
	for _, rec := range records {
		byInstant, ok := s.data[rec.StationID]
		if !ok {
			byInstant = make(map[int64]entry)
			s.data[rec.StationID] = byInstant
		}

		key := rec.Time.UTC().Unix()
		if _, exists := byInstant[key]; exists {
			continue
		}
		rec.Time = rec.Time.UTC()
		byInstant[key] = entry{obs: rec, insertedAt: insertedAt}
	}
	return nil
}

// EvictOlderThan removes entries inserted before now minus age.
func (s *MemoryStore) EvictOlderThan(_ context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-age)
	var removed int64
	for station, byInstant := range s.data {
		for key, e := range byInstant {
			if e.insertedAt.Before(cutoff) {
				delete(byInstant, key)
				removed++
			}
		}
		if len(byInstant) == 0 {
			delete(s.data, station)
		}
	}
	return removed, nil
}
