package geostore

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, ttlSeconds int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "geostore: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "geostore: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, ttl: time.Duration(ttlSeconds) * time.Second}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address       TEXT NOT NULL,
	area          TEXT NOT NULL,
	lat           REAL NOT NULL,
	lon           REAL NOT NULL,
	approximate   INTEGER NOT NULL DEFAULT 0,
	strategy      TEXT NOT NULL,
	centroid_used TEXT,
	cached_at     DATETIME NOT NULL,
	PRIMARY KEY (address, area)
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
`

// Migrate creates the cache table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "geostore: sqlite migrate")
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the cached result for (address, area), or nil when absent or
// older than the TTL.
func (s *SQLiteStore) Get(ctx context.Context, address, area string) (*geocode.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT lat, lon, approximate, strategy, centroid_used
		 FROM geocode_cache
		 WHERE address = ? AND area = ? AND cached_at > ?`,
		address, area, s.cutoff(),
	)

	var r geocode.Result
	var centroid sql.NullString
	err := row.Scan(&r.Lat, &r.Lon, &r.Approximate, &r.Strategy, &centroid)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "geostore: sqlite get")
	}

	r.Matched = true
	if centroid.Valid {
		r.CentroidUsed = centroid.String
	}
	return &r, nil
}

// Save upserts a successful result. Unmatched results are never persisted.
func (s *SQLiteStore) Save(ctx context.Context, address, area string, res geocode.Result) error {
	if !res.Matched {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (address, area, lat, lon, approximate, strategy, centroid_used, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (address, area) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			approximate = excluded.approximate,
			strategy = excluded.strategy,
			centroid_used = excluded.centroid_used,
			cached_at = excluded.cached_at`,
		address, area, res.Lat, res.Lon, res.Approximate, res.Strategy, nilIfEmpty(res.CentroidUsed), time.Now().UTC(),
	)
	return eris.Wrap(err, "geostore: sqlite save")
}

// PurgeExpired removes rows older than the TTL.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM geocode_cache WHERE cached_at <= ?`, s.cutoff(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "geostore: sqlite purge")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "geostore: sqlite purge rows affected")
	}
	return n, nil
}

func (s *SQLiteStore) cutoff() time.Time {
	return time.Now().UTC().Add(-s.ttl)
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage.
func nilIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
