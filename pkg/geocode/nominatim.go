package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

	// Nominatim's usage policy requires an identifying client string and at
	// most one request per second per client.
	nominatimUserAgent = "dispatch-cli/1.0 (github.com/sells-group/dispatch-cli)"

	// DefaultNominatimDelay is the minimum spacing between Nominatim calls.
	DefaultNominatimDelay = 800 * time.Millisecond
)

// nominatimResult is one entry of the Nominatim search response. Coordinates
// arrive as strings.
type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// NominatimProvider is the final fallback tier. It simplifies block
// addresses best-effort and paces its calls to honor the usage policy.
type NominatimProvider struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	county     string
	state      string
}

// NewNominatimProvider creates a NominatimProvider enforcing minDelay
// between calls. A zero minDelay uses DefaultNominatimDelay.
func NewNominatimProvider(hc *http.Client, minDelay time.Duration, county, state string) *NominatimProvider {
	if minDelay <= 0 {
		minDelay = DefaultNominatimDelay
	}
	return &NominatimProvider{
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Every(minDelay), 1),
		county:     county,
		state:      state,
	}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return StrategyNominatim }

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, q Query) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim pacing")
	}

	address := q.Address
	simplified, wasBlock := SimplifyBlockAddress(address)
	if wasBlock {
		address = simplified
	}
	query := joinParts(address, q.Area, p.county, p.state)

	params := url.Values{
		"format": {"json"},
		"q":      {query},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, nominatimSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d for %q", resp.StatusCode, query)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var hits []nominatimResult
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(hits) == 0 {
		zap.L().Debug("nominatim provider: no results", zap.String("query", query))
		return &Result{Matched: false, Strategy: StrategyNominatim, Query: query}, nil
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", hits[0].Lat)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", hits[0].Lon)
	}

	return &Result{
		Matched:     true,
		Lat:         lat,
		Lon:         lon,
		Approximate: wasBlock,
		Strategy:    StrategyNominatim,
		Query:       query,
	}, nil
}
