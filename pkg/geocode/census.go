package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	// DefaultCensusBaseURL is the public Census geocoder endpoint; override
	// it in config for tests or a proxy.
	DefaultCensusBaseURL = "https://geocoding.geo.census.gov"

	censusOneLinePath = "/geocoder/locations/onelineaddress"
	censusBenchmark   = "Public_AR_Current"
)

// censusOneLineResponse is the JSON response from the Census one-line API.
type censusOneLineResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
			MatchedAddress string `json:"matchedAddress"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// CensusProvider geocodes via the US Census one-line API. An exact-address
// miss on a block address retries with just the street, marked approximate.
type CensusProvider struct {
	httpClient *http.Client
	baseURL    string
	county     string
	state      string
}

// NewCensusProvider creates a CensusProvider for the given county and state
// context. An empty baseURL uses the public endpoint.
func NewCensusProvider(hc *http.Client, baseURL, county, state string) *CensusProvider {
	if baseURL == "" {
		baseURL = DefaultCensusBaseURL
	}
	return &CensusProvider{httpClient: hc, baseURL: baseURL, county: county, state: state}
}

// Name implements Provider.
func (p *CensusProvider) Name() string { return StrategyCensus }

// Geocode implements Provider.
func (p *CensusProvider) Geocode(ctx context.Context, q Query) (*Result, error) {
	exact := joinParts(q.Address, q.Area, p.county, p.state)
	result, err := p.lookup(ctx, exact)
	if err != nil {
		return nil, err
	}
	if result.Matched {
		result.Approximate = false
		return result, nil
	}

	// Redacted block addresses rarely match exactly; retry with the bare
	// street and flag the hit as approximate.
	_, street, ok := ParseBlock(q.Address)
	if !ok {
		return result, nil
	}

	fallback := joinParts(street, q.Area, p.county, p.state)
	zap.L().Debug("census provider: block-address retry",
		zap.String("exact", exact),
		zap.String("fallback", fallback),
	)

	result, err = p.lookup(ctx, fallback)
	if err != nil {
		return nil, err
	}
	if result.Matched {
		result.Approximate = true
	}
	return result, nil
}

// lookup runs one one-line address query.
func (p *CensusProvider) lookup(ctx context.Context, oneLine string) (*Result, error) {
	params := url.Values{
		"address":   {oneLine},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	reqURL := p.baseURL + censusOneLinePath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census returned status %d for %q", resp.StatusCode, oneLine)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census read body")
	}

	var censusResp censusOneLineResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Strategy: StrategyCensus, Query: oneLine}, nil
	}

	match := censusResp.Result.AddressMatches[0]
	return &Result{
		Matched:  true,
		Lat:      match.Coordinates.Y,
		Lon:      match.Coordinates.X,
		Strategy: StrategyCensus,
		Query:    oneLine,
	}, nil
}
