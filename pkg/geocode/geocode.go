// Package geocode resolves dispatch addresses to coordinates via a provider
// fallback chain (Apple Maps, then Census, then Nominatim) with a local TTL
// cache in front of a shared persistent store.
package geocode

import "context"

// Provider strategy names, also used as forced-provider selectors.
const (
	StrategyAppleMaps = "apple_maps"
	StrategyCensus    = "census"
	StrategyNominatim = "nominatim"
)

// Query is one address lookup with its location bias.
type Query struct {
	Address string
	Area    string
	Bias    Centroid
}

// Result holds the outcome of one address lookup. Matched implies Lat, Lon
// and Strategy are set; unmatched results carry zero coordinates and are
// never cached.
type Result struct {
	Matched      bool    `json:"matched"`
	Lat          float64 `json:"lat,omitempty"`
	Lon          float64 `json:"lon,omitempty"`
	Approximate  bool    `json:"approximate"`
	Strategy     string  `json:"strategy,omitempty"`
	CentroidUsed string  `json:"centroid_used,omitempty"`
	Err          string  `json:"error,omitempty"`
	Query        string  `json:"query,omitempty"`
	UserLocation string  `json:"user_location,omitempty"`
}

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, q Query) (*Result, error)
}

// Store is the shared persistent cache tier, keyed by (address, area).
// Both methods may fail freely; the resolver logs and continues.
type Store interface {
	Get(ctx context.Context, address, area string) (*Result, error)
	Save(ctx context.Context, address, area string, res Result) error
}
