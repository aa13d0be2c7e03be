package meteo

import (
	"fmt"
	"sort"
	"time"
)

// bucket accumulates per-column sums over the records that fall into one
// granularity interval. Columns with no non-null contribution stay null
// in the reduced row.
type bucket struct {
	start     time.Time
	stationID string
	name      string
	named     bool
	sums      []float64
	counts    []int
}

// Aggregate resamples records into one averaged row per calendar-aligned
// bucket of the chosen granularity, bucketing in the records' own zone.
// Records are first filtered to the half-open window [start, end), which
// pins per-granularity row counts even when the cache returned rows
// outside the nominal window. GranularityNone skips bucketing and returns
// the filtered rows unchanged.
func Aggregate(records []Observation, granularity Granularity, start, end time.Time) ([]Observation, error) {
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}

	if !granularity.Valid() {
		return nil, fmt.Errorf("%w: invalid aggregation level %q", ErrInvalidInput, string(granularity))
	}

	filtered := make([]Observation, 0, len(records))
	for _, rec := range records {
		if rec.Time.IsZero() {
			return nil, fmt.Errorf("%w: timestamps must be timezone-aware", ErrInvalidInput)
		}
		if rec.Time.Before(start) || !rec.Time.Before(end) {
			continue
		}
		filtered = append(filtered, rec)
	}

	if granularity == GranularityNone {
		return filtered, nil
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Time.Before(filtered[j].Time) })

	buckets := make(map[int64]*bucket)
	order := make([]int64, 0)
	for i := range filtered {
		rec := &filtered[i]
		bs := bucketStart(rec.Time, granularity)
		key := bs.Unix()

		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				start:  bs,
				sums:   make([]float64, len(numericFields)),
				counts: make([]int, len(numericFields)),
			}
			buckets[key] = b
			order = append(order, key)
		}
		if !b.named {
			b.stationID = rec.StationID
			b.name = rec.Name
			b.named = true
		}
		for fi, f := range numericFields {
			if v := f.get(rec); v != nil {
				b.sums[fi] += *v
				b.counts[fi]++
			}
		}
	}

	out := make([]Observation, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		row := Observation{
			StationID: b.stationID,
			Name:      b.name,
			Time:      b.start,
			FHora:     b.start.Format(isoLayout),
		}
		for fi, f := range numericFields {
			if b.counts[fi] == 0 {
				continue
			}
			mean := b.sums[fi] / float64(b.counts[fi])
			f.set(&row, &mean)
		}
		out = append(out, row)
	}
	return out, nil
}

// bucketStart floors t to the calendar boundary of the granularity in
// t's own location.
func bucketStart(t time.Time, granularity Granularity) time.Time {
	loc := t.Location()
	switch granularity {
	case GranularityHourly:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
	case GranularityDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	case GranularityMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	}
	return t
}
