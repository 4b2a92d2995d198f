// Package feed fetches and normalizes records from the upstream public
// incident feed.
package feed

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

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/resilience"
)

const incidentsPath = "/api/publicaccess/incidents"

// Client pages through the upstream incident feed. Pages are fetched
// strictly in order because the since-cutoff stopping rule depends on the
// feed's descending received-time ordering.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
	normalizer *Normalizer
	retry      resilience.RetryConfig
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPageSize sets the upstream page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRetryConfig overrides the per-page retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// NewClient creates a feed Client interpreting timestamps in loc.
func NewClient(baseURL string, loc *time.Location, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pageSize:   100,
		normalizer: NewNormalizer(loc),
		retry:      resilience.DefaultRetryConfig(),
	}
	c.retry.OnRetry = resilience.RetryLogger("feed", "fetch page")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchUntil fetches pages 1..maxPages, stopping early on an empty page, on
// the first record strictly older than since (that record and everything
// after it are discarded), or on a short page.
//
// A page failure mid-pagination is logged and returns what was accumulated;
// the error is non-nil only when nothing at all could be fetched.
func (c *Client) FetchUntil(ctx context.Context, since *time.Time, maxPages int, station string) ([]model.Incident, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	var out []model.Incident
	for page := 1; page <= maxPages; page++ {
		raws, err := c.fetchPage(ctx, page, station)
		if err != nil {
			if len(out) == 0 {
				return nil, eris.Wrapf(err, "feed: page %d", page)
			}
			zap.L().Warn("feed: pagination aborted, keeping partial results",
				zap.Int("page", page),
				zap.Int("collected", len(out)),
				zap.Error(err),
			)
			return out, nil
		}

		if len(raws) == 0 {
			break
		}

		cut := false
		for _, raw := range raws {
			inc, keep := c.normalizer.Normalize(raw)
			if since != nil && inc.ReceivedAt.Before(*since) {
				// Everything after this record is older still.
				cut = true
				break
			}
			if keep {
				out = append(out, inc)
			}
		}
		if cut {
			break
		}

		if len(raws) < c.pageSize {
			break
		}
	}

	return out, nil
}

// fetchPage retrieves one page of raw records, retrying transient failures.
func (c *Client) fetchPage(ctx context.Context, page int, station string) ([]model.RawIncident, error) {
	params := url.Values{
		"PageSize":   {strconv.Itoa(c.pageSize)},
		"PageNumber": {strconv.Itoa(page)},
	}
	if station != "" {
		params.Set("Cd_Station", station)
	}
	reqURL := c.baseURL + incidentsPath + "?" + params.Encode()

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]model.RawIncident, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "feed: build request")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "feed: request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("feed: status %d on page %d", resp.StatusCode, page)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "feed: read body")
		}

		var raws []model.RawIncident
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, eris.Wrap(err, "feed: parse response")
		}
		return raws, nil
	})
}
