// Package geostore implements the shared persistent geocode cache tier over
// SQLite or Postgres, keyed by (address, area).
package geostore

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

// Store is the persistent geocode cache. It extends the resolver-facing
// geocode.Store with lifecycle and maintenance operations.
type Store interface {
	geocode.Store

	// PurgeExpired deletes rows older than the store's TTL and returns how
	// many were removed.
	PurgeExpired(ctx context.Context) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the configured driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string, ttlSeconds int) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn, ttlSeconds)
	case "postgres":
		return NewPostgres(ctx, dsn, ttlSeconds)
	default:
		return nil, eris.Errorf("geostore: unknown driver %q", driver)
	}
}
