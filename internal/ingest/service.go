// Package ingest orchestrates one ingestion run: fetch incidents from the
// feed (or the HTML mirrors when the feed is down), optionally geocode a
// bounded batch of them, and cache the assembled list.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/pkg/batch"
	"github.com/sells-group/dispatch-cli/pkg/geocode"
	"github.com/sells-group/dispatch-cli/pkg/ttlcache"
)

const (
	// DefaultMaxGeocode bounds how many addresses one run will geocode.
	DefaultMaxGeocode = 40
	// DefaultConcurrency bounds simultaneous provider calls. Nominatim's
	// usage policy is the binding constraint here.
	DefaultConcurrency = 3
	// DefaultResponseTTL is how long an assembled incident list stays
	// servable without re-fetching.
	DefaultResponseTTL = 60 * time.Second
	// DefaultMaxPages caps feed pagination per run.
	DefaultMaxPages = 10
)

// Fetcher pages through the upstream feed.
type Fetcher interface {
	FetchUntil(ctx context.Context, since *time.Time, maxPages int, station string) ([]model.Incident, error)
}

// MirrorFetcher scrapes the HTML mirror pages.
type MirrorFetcher interface {
	Fetch(ctx context.Context) ([]model.Incident, error)
}

// Resolver turns an address into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, address *string, area string, opts geocode.ResolveOpts) geocode.Result
}

// Params configures one ingestion run.
type Params struct {
	// Geocode attaches coordinates to up to MaxGeocode addressed records.
	Geocode bool
	// Since drops records older than this instant and stops pagination
	// early. Nil means no cutoff.
	Since *time.Time
	// Station restricts the feed query to one dispatch station code.
	Station string
	// MaxGeocode caps the geocode batch size. Zero means DefaultMaxGeocode.
	MaxGeocode int
	// Concurrency bounds simultaneous geocode calls. Zero means
	// DefaultConcurrency.
	Concurrency int
	// OnProgress, when set, is invoked as the geocode batch advances.
	OnProgress func(stage string, done, total int)
}

// Service runs ingestions. Results are cached per parameter combination,
// so repeated identical requests inside the TTL cost no I/O.
type Service struct {
	feed     Fetcher
	mirror   MirrorFetcher
	resolver Resolver
	cache    *ttlcache.Cache[[]model.Incident]
	maxPages int
}

// Option configures the Service.
type Option func(*Service)

// WithMaxPages caps feed pagination per run.
func WithMaxPages(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// WithResponseCache replaces the response cache, mainly for tests that
// need a controllable clock.
func WithResponseCache(c *ttlcache.Cache[[]model.Incident]) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// NewService wires an ingestion Service.
func NewService(feed Fetcher, mirror MirrorFetcher, resolver Resolver, responseTTL time.Duration, opts ...Option) *Service {
	if responseTTL <= 0 {
		responseTTL = DefaultResponseTTL
	}
	s := &Service{
		feed:     feed,
		mirror:   mirror,
		resolver: resolver,
		cache:    ttlcache.New[[]model.Incident](responseTTL),
		maxPages: DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape runs one ingestion. A cache hit returns immediately with no
// network calls and no progress reporting. The assembled list is cached
// even when some geocode lookups came back empty.
func (s *Service) Scrape(ctx context.Context, p Params) ([]model.Incident, error) {
	if p.MaxGeocode <= 0 {
		p.MaxGeocode = DefaultMaxGeocode
	}
	if p.Concurrency <= 0 {
		p.Concurrency = DefaultConcurrency
	}

	key := responseKey(p)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	logger := zap.L().With(
		zap.String("run_id", uuid.NewString()),
		zap.String("station", p.Station),
		zap.Bool("geocode", p.Geocode),
	)

	incidents, err := s.feed.FetchUntil(ctx, p.Since, s.maxPages, p.Station)
	if err != nil || len(incidents) == 0 {
		logger.Warn("feed path unavailable, falling back to mirrors",
			zap.Int("fetched", len(incidents)),
			zap.Error(err),
		)
		incidents, err = s.mirror.Fetch(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: feed and mirrors both failed")
		}
	}

	if p.Geocode {
		s.geocodeBatch(ctx, logger, incidents, p)
	}

	s.cache.Set(key, incidents)
	logger.Info("ingestion complete", zap.Int("incidents", len(incidents)))
	return incidents, nil
}

// geocodeBatch resolves up to MaxGeocode addressed incidents in place.
// Lookups that come back unmatched leave their incident untouched.
func (s *Service) geocodeBatch(ctx context.Context, logger *zap.Logger, incidents []model.Incident, p Params) {
	var candidates []int
	for i := range incidents {
		if incidents[i].HasAddress() {
			candidates = append(candidates, i)
		}
		if len(candidates) == p.MaxGeocode {
			break
		}
	}
	total := len(candidates)
	if total == 0 {
		return
	}

	var done atomic.Int64
	results, _ := batch.MapLimit(ctx, candidates, p.Concurrency, func(ctx context.Context, _ int, idx int) (geocode.Result, error) {
		inc := &incidents[idx]
		area := ""
		if inc.Area != nil {
			area = *inc.Area
		}
		res := s.resolver.Resolve(ctx, inc.AddressRaw, area, geocode.ResolveOpts{Station: p.Station})

		if p.OnProgress != nil {
			p.OnProgress("Geocoding", int(done.Add(1)), total)
		}
		return res, nil
	})

	matched := 0
	for i, res := range results {
		if !res.Matched {
			continue
		}
		incidents[candidates[i]].SetLocation(res.Lat, res.Lon, res.Approximate)
		matched++
	}
	logger.Info("geocode batch finished",
		zap.Int("candidates", total),
		zap.Int("matched", matched),
	)
}

func responseKey(p Params) string {
	since := ""
	if p.Since != nil {
		since = p.Since.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%t|%s|%s", p.Geocode, since, p.Station)
}
