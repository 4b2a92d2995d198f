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

const appleGeocodeURL = "https://maps-api.apple.com/v1/geocode"

// TokenSource supplies short-lived Apple Maps access tokens. Issuing the
// token is an external concern; a failed Token call is treated as a provider
// miss, never a panic.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a TokenSource that always yields token.
func StaticTokenSource(token string) TokenSource {
	return staticToken(token)
}

type staticToken string

func (t staticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", eris.New("geocode: no apple maps token configured")
	}
	return string(t), nil
}

// appleGeocodeResponse is the JSON response from the Apple Maps geocode API.
type appleGeocodeResponse struct {
	Results []struct {
		Coordinate struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"coordinate"`
	} `json:"results"`
}

// AppleProvider geocodes via the Apple Maps server API with a location-bias
// hint. Results are treated as exact.
type AppleProvider struct {
	httpClient *http.Client
	tokens     TokenSource
}

// NewAppleProvider creates an AppleProvider backed by the given token source.
func NewAppleProvider(hc *http.Client, tokens TokenSource) *AppleProvider {
	return &AppleProvider{httpClient: hc, tokens: tokens}
}

// Name implements Provider.
func (p *AppleProvider) Name() string { return StrategyAppleMaps }

// Geocode implements Provider.
func (p *AppleProvider) Geocode(ctx context.Context, q Query) (*Result, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: apple token")
	}

	query := joinParts(q.Address, q.Area)
	params := url.Values{
		"q":                {query},
		"limitToCountries": {"US"},
		"userLocation":     {q.Bias.UserLocation()},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, appleGeocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: apple build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: apple request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: apple returned status %d for %q", resp.StatusCode, query)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: apple read body")
	}

	var appleResp appleGeocodeResponse
	if err := json.Unmarshal(body, &appleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: apple parse response")
	}

	if len(appleResp.Results) == 0 {
		zap.L().Debug("apple provider: no results", zap.String("query", query))
		return &Result{Matched: false, Strategy: StrategyAppleMaps, Query: query}, nil
	}

	coord := appleResp.Results[0].Coordinate
	return &Result{
		Matched:      true,
		Lat:          coord.Latitude,
		Lon:          coord.Longitude,
		Approximate:  false,
		Strategy:     StrategyAppleMaps,
		Query:        query,
		UserLocation: q.Bias.UserLocation(),
	}, nil
}
