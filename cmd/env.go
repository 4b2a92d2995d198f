package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/feed"
	"github.com/sells-group/dispatch-cli/internal/geostore"
	"github.com/sells-group/dispatch-cli/internal/ingest"
	"github.com/sells-group/dispatch-cli/internal/mirror"
	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

// env bundles the wired services a command needs.
type env struct {
	store    geostore.Store
	resolver *geocode.Resolver
	service  *ingest.Service
}

func (e *env) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			zap.L().Warn("closing geocode store", zap.Error(err))
		}
	}
}

// initStore opens and migrates the persistent geocode cache.
func initStore(ctx context.Context) (geostore.Store, error) {
	st, err := geostore.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Geocode.CacheTTLSecs)
	if err != nil {
		return nil, eris.Wrap(err, "open geocode store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate geocode store")
	}
	return st, nil
}

// buildResolver assembles the provider chain in fallback order.
func buildResolver(store geostore.Store) *geocode.Resolver {
	hc := &http.Client{Timeout: 15 * time.Second}

	var providers []geocode.Provider
	if cfg.Geocode.AppleToken != "" {
		providers = append(providers, geocode.NewAppleProvider(hc, geocode.StaticTokenSource(cfg.Geocode.AppleToken)))
	}
	census := geocode.NewCensusProvider(hc, cfg.Geocode.CensusBaseURL, cfg.Region.County, cfg.Region.State)
	nominatim := geocode.NewNominatimProvider(hc, cfg.Geocode.NominatimDelay(), cfg.Region.County, cfg.Region.State)
	providers = append(providers, census, nominatim)

	return geocode.NewResolver(cfg.Geocode.CacheTTL(), providers, geocode.WithStore(store))
}

// initServices wires the full ingestion stack.
func initServices(ctx context.Context) (*env, error) {
	loc, err := cfg.Region.Location()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	resolver := buildResolver(st)
	feedClient := feed.NewClient(cfg.Feed.BaseURL, loc, feed.WithPageSize(cfg.Feed.PageSize))
	mirrors := mirror.New(cfg.Mirror.URLs, loc)

	svc := ingest.NewService(feedClient, mirrors, resolver, cfg.Ingest.ResponseTTL(),
		ingest.WithMaxPages(cfg.Feed.MaxPages))

	return &env{store: st, resolver: resolver, service: svc}, nil
}
