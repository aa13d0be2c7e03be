package meteo_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mfenerich/meteoanalytics/internal/meteo"
	"github.com/mfenerich/meteoanalytics/internal/store"
)

type fakeFetcher struct {
	records []meteo.Observation
	err     error
	calls   int
}

func (f *fakeFetcher) FetchWindow(_ context.Context, _ meteo.Station, _, _ time.Time) ([]meteo.Observation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func newService(s meteo.Store, f meteo.Fetcher) *meteo.Service {
	return meteo.NewService(s, f, 12*time.Hour, zap.NewNop().Sugar())
}

// failingStore errors on the configured operations and succeeds on the
// rest, standing in for a broken storage backend.
type failingStore struct {
	queryErr  error
	insertErr error
}

func (f *failingStore) Query(context.Context, meteo.Station, time.Time, time.Time) ([]meteo.Observation, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return nil, nil
}

func (f *failingStore) BulkInsert(context.Context, []meteo.Observation) error {
	return f.insertErr
}

func (f *failingStore) EvictOlderThan(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

// gridRecords builds one observation per ten-minute instant in
// [start, end], temperature temp.
func gridRecords(station meteo.Station, start, end time.Time, temp float64) []meteo.Observation {
	var records []meteo.Observation
	for t := start; !t.After(end); t = t.Add(meteo.SampleInterval) {
		v := temp
		records = append(records, meteo.Observation{
			StationID: string(station),
			Name:      "JCI Estacion meteorologica",
			Time:      t,
			FHora:     t.Format(time.RFC3339),
			Temp:      &v,
		})
	}
	return records
}

func window() (time.Time, time.Time) {
	return time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 1, 1, 0, 0, 0, time.UTC)
}

func TestResolveFullHitSkipsUpstream(t *testing.T) {
	start, end := window()
	cache := store.NewMemoryStore()
	if err := cache.BulkInsert(context.Background(), gridRecords(meteo.StationJuanCarlosI, start, end, 1.0)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fetcher := &fakeFetcher{}
	svc := newService(cache, fetcher)

	records, err := svc.Resolve(context.Background(), meteo.StationJuanCarlosI, start, end, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("upstream called %d times on a full hit, want 0", fetcher.calls)
	}
	if len(records) != 7 { // 00:00 through 01:00 inclusive, every 10 minutes
		t.Errorf("expected 7 records, got %d", len(records))
	}
}

func TestResolveCacheMissFetchesAndPersists(t *testing.T) {
	start, end := window()
	cache := store.NewMemoryStore()
	fetcher := &fakeFetcher{records: gridRecords(meteo.StationJuanCarlosI, start, end, 2.0)}
	svc := newService(cache, fetcher)

	records, err := svc.Resolve(context.Background(), meteo.StationJuanCarlosI, start, end, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", fetcher.calls)
	}
	if len(records) != 7 {
		t.Errorf("expected 7 records, got %d", len(records))
	}

	// The fetched window is now cached: a second resolve is a full hit.
	if _, err := svc.Resolve(context.Background(), meteo.StationJuanCarlosI, start, end, time.UTC); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("upstream calls after warm cache = %d, want 1", fetcher.calls)
	}
}

func TestResolvePartialHitRefetchesWholeWindowAndFreshWins(t *testing.T) {
	start, end := window()
	cache := store.NewMemoryStore()

	// Seed only the first two grid instants with stale values.
	stale := gridRecords(meteo.StationJuanCarlosI, start, start.Add(meteo.SampleInterval), 1.0)
	if err := cache.BulkInsert(context.Background(), stale); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fetcher := &fakeFetcher{records: gridRecords(meteo.StationJuanCarlosI, start, end, 2.0)}
	svc := newService(cache, fetcher)

	records, err := svc.Resolve(context.Background(), meteo.StationJuanCarlosI, start, end, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (whole-window re-fetch)", fetcher.calls)
	}
	if len(records) != 7 {
		t.Fatalf("expected 7 merged records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Temp == nil || *rec.Temp != 2.0 {
			t.Errorf("record at %v carries stale value %v, want fresh 2.0", rec.Time, rec.Temp)
		}
	}
}

func TestResolveSortsAndConvertsToOutputZone(t *testing.T) {
	start, end := window()
	cache := store.NewMemoryStore()
	fetcher := &fakeFetcher{records: gridRecords(meteo.StationJuanCarlosI, start, end, 2.0)}
	svc := newService(cache, fetcher)

	berlin := time.FixedZone("+01:00", 3600)
	records, err := svc.Resolve(context.Background(), meteo.StationJuanCarlosI, start, end, berlin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, rec := range records {
		if i > 0 && rec.Time.Before(records[i-1].Time) {
			t.Fatal("records are not sorted by timestamp")
		}
		_, offset := rec.Time.Zone()
		if offset != 3600 {
			t.Errorf("record zone offset = %d, want 3600", offset)
		}
		if !strings.HasSuffix(rec.FHora, "+01:00") {
			t.Errorf("fhora = %q, want +01:00 suffix", rec.FHora)
		}
	}
}

func TestResolveUpstreamFailureLeavesCacheUntouched(t *testing.T) {
	start, end := window()
	cache := store.NewMemoryStore()
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: boom", meteo.ErrUpstreamUnavailable)}
	svc := newService(cache, fetcher)

	_, err := svc.Resolve(context.Background(), meteo.StationJuanCarlosI, start, end, time.UTC)
	if !errors.Is(err, meteo.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}

	cached, err := cache.Query(context.Background(), meteo.StationJuanCarlosI, start, end)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(cached) != 0 {
		t.Errorf("cache holds %d records after failed fetch, want 0", len(cached))
	}
}

func TestResolveStoreReadFailureIsPersistenceError(t *testing.T) {
	start, end := window()
	fetcher := &fakeFetcher{}
	svc := newService(&failingStore{queryErr: errors.New("connection reset")}, fetcher)

	_, err := svc.Resolve(context.Background(), meteo.StationJuanCarlosI, start, end, time.UTC)
	if !errors.Is(err, meteo.ErrPersistence) {
		t.Fatalf("error = %v, want ErrPersistence", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("upstream called %d times after a failed cache read, want 0", fetcher.calls)
	}
}

func TestResolveStoreWriteFailureIsPersistenceError(t *testing.T) {
	start, end := window()
	fetcher := &fakeFetcher{records: gridRecords(meteo.StationJuanCarlosI, start, end, 2.0)}
	svc := newService(&failingStore{insertErr: errors.New("disk full")}, fetcher)

	_, err := svc.Resolve(context.Background(), meteo.StationJuanCarlosI, start, end, time.UTC)
	if !errors.Is(err, meteo.ErrPersistence) {
		t.Fatalf("error = %v, want ErrPersistence", err)
	}
}

func TestResolveNotFoundPropagates(t *testing.T) {
	start, end := window()
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: no data for that station", meteo.ErrNotFound)}
	svc := newService(store.NewMemoryStore(), fetcher)

	_, err := svc.Resolve(context.Background(), meteo.StationJuanCarlosI, start, end, time.UTC)
	if !errors.Is(err, meteo.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
