package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mfenerich/meteoanalytics/internal/meteo"
)

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS weather_observations (
	    station_id  TEXT        NOT NULL,
	    ts          TIMESTAMPTZ NOT NULL,
	    payload     JSONB       NOT NULL,
	    inserted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	    PRIMARY KEY (station_id, ts)
	)`,
	`CREATE INDEX IF NOT EXISTS weather_observations_inserted_at_idx
	    ON weather_observations (inserted_at)`,
}

// PostgresStore is the pgx-backed observation cache.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// NewPostgresStore connects a pool and ensures the cache table exists.
func NewPostgresStore(ctx context.Context, databaseURL string, log *zap.SugaredLogger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schemaSQL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &PostgresStore{pool: pool, log: log}, nil
}

// Close releases the pool resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const queryRangeSQL = `
    SELECT ts, payload
    FROM weather_observations
    WHERE station_id = $1 AND ts >= $2 AND ts <= $3
`

// Query returns all observations for the station with ts in [start, end].
func (s *PostgresStore) Query(ctx context.Context, station meteo.Station, start, end time.Time) ([]meteo.Observation, error) {
	rows, err := s.pool.Query(ctx, queryRangeSQL, string(station), start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	observations := make([]meteo.Observation, 0)
	for rows.Next() {
		var ts time.Time
		var payload []byte
		if err := rows.Scan(&ts, &payload); err != nil {
			return nil, err
		}

		var obs meteo.Observation
		if err := json.Unmarshal(payload, &obs); err != nil {
			return nil, err
		}
		obs.Time = ts.UTC()
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

const insertSQL = `
    INSERT INTO weather_observations (station_id, ts, payload, inserted_at)
    VALUES ($1, $2, $3, NOW())
    ON CONFLICT (station_id, ts) DO NOTHING
`

// BulkInsert writes the batch in one transaction. Records whose
// (station_id, ts) already exists are skipped, never overwritten.
func (s *PostgresStore) BulkInsert(ctx context.Context, records []meteo.Observation) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		batch.Queue(insertSQL, rec.StationID, rec.Time.UTC(), payload)
	}

	res := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := res.Exec(); err != nil {
			res.Close()
			return err
		}
	}
	if err := res.Close(); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.log.Debugw("committed observation batch", "records", len(records))
	return nil
}

const evictSQL = `
    DELETE FROM weather_observations
    WHERE inserted_at < $1
`

// EvictOlderThan removes records inserted more than age ago. The cutoff
// is insertion time, so a batch inserted after the sweep is never touched.
func (s *PostgresStore) EvictOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)
	tag, err := s.pool.Exec(ctx, evictSQL, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
