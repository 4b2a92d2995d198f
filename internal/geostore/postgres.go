package geostore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store on a pgx pool, for deployments where
// multiple instances share one geocode cache.
type PostgresStore struct {
	pool Pool
	ttl  time.Duration
}

// NewPostgres connects to the given database URL.
func NewPostgres(ctx context.Context, dsn string, ttlSeconds int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "geostore: postgres connect")
	}
	return NewPostgresWithPool(pool, ttlSeconds), nil
}

// NewPostgresWithPool wraps an existing pool, for tests.
func NewPostgresWithPool(pool Pool, ttlSeconds int) *PostgresStore {
	return &PostgresStore{pool: pool, ttl: time.Duration(ttlSeconds) * time.Second}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address       TEXT NOT NULL,
	area          TEXT NOT NULL,
	lat           DOUBLE PRECISION NOT NULL,
	lon           DOUBLE PRECISION NOT NULL,
	approximate   BOOLEAN NOT NULL DEFAULT FALSE,
	strategy      TEXT NOT NULL,
	centroid_used TEXT,
	cached_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (address, area)
)`

// Migrate creates the cache table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "geostore: postgres migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Get returns the cached result for (address, area), or nil when absent or
// older than the TTL.
func (s *PostgresStore) Get(ctx context.Context, address, area string) (*geocode.Result, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT lat, lon, approximate, strategy, COALESCE(centroid_used, '')
		 FROM geocode_cache
		 WHERE address = $1 AND area = $2 AND cached_at > now() - make_interval(secs => $3)`,
		address, area, s.ttl.Seconds(),
	)

	var r geocode.Result
	err := row.Scan(&r.Lat, &r.Lon, &r.Approximate, &r.Strategy, &r.CentroidUsed)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "geostore: postgres get")
	}

	r.Matched = true
	return &r, nil
}

// Save upserts a successful result. Unmatched results are never persisted.
func (s *PostgresStore) Save(ctx context.Context, address, area string, res geocode.Result) error {
	if !res.Matched {
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (address, area, lat, lon, approximate, strategy, centroid_used, cached_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (address, area) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			approximate = EXCLUDED.approximate,
			strategy = EXCLUDED.strategy,
			centroid_used = EXCLUDED.centroid_used,
			cached_at = now()`,
		address, area, res.Lat, res.Lon, res.Approximate, res.Strategy, nilIfEmpty(res.CentroidUsed),
	)
	return eris.Wrap(err, "geostore: postgres save")
}

// PurgeExpired removes rows older than the TTL.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM geocode_cache WHERE cached_at <= now() - make_interval(secs => $1)`,
		s.ttl.Seconds(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "geostore: postgres purge")
	}
	return tag.RowsAffected(), nil
}
