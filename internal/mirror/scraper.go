// Package mirror scrapes the HTML mirror pages that shadow the incident
// feed. It is the fallback path when the JSON feed is down or empty.
package mirror

import (
	"context"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/feed"
	"github.com/sells-group/dispatch-cli/internal/model"
)

const userAgent = "dispatch-cli/1.0 (github.com/sells-group/dispatch-cli)"

// column is a logical field of the incident table.
type column int

const (
	colIncident column = iota
	colCallType
	colReceived
	colAddress
	colArea
	colDisposition
)

// headerAliases maps canonicalized header text to its logical column. The
// mirrors have changed their markup more than once; every spelling seen so
// far is listed here.
var headerAliases = map[string]column{
	"incident":         colIncident,
	"id":               colIncident,
	"incident number":  colIncident,
	"call type":        colCallType,
	"type":             colCallType,
	"incident type":    colCallType,
	"received":         colReceived,
	"time":             colReceived,
	"call received":    colReceived,
	"address":          colAddress,
	"location":         colAddress,
	"address location": colAddress,
	"area":             colArea,
	"region":           colArea,
	"station":          colArea,
	"disposition":      colDisposition,
	"dispo":            colDisposition,
	"status":           colDisposition,
}

// Scraper pulls incidents out of the first parseable table on a mirror
// page. Mirrors are tried in order; all of them failing is a terminal
// error for the caller.
type Scraper struct {
	urls       []string
	normalizer *feed.Normalizer
	timeout    time.Duration
}

// Option configures the Scraper.
type Option func(*Scraper)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		s.timeout = d
	}
}

// New creates a Scraper over the given mirror URLs, interpreting
// timestamps in loc.
func New(urls []string, loc *time.Location, opts ...Option) *Scraper {
	s := &Scraper{
		urls:       urls,
		normalizer: feed.NewNormalizer(loc),
		timeout:    15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch scrapes the mirrors in order and returns incidents from the first
// one that yields a parseable table.
func (s *Scraper) Fetch(ctx context.Context) ([]model.Incident, error) {
	if len(s.urls) == 0 {
		return nil, eris.New("mirror: no mirror URLs configured")
	}

	var lastErr error
	for _, u := range s.urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		incidents, err := s.scrapeOne(u)
		if err != nil {
			zap.L().Warn("mirror: scrape failed, trying next",
				zap.String("url", u),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		return incidents, nil
	}

	return nil, eris.Wrap(lastErr, "mirror: all mirrors exhausted")
}

func (s *Scraper) scrapeOne(pageURL string) ([]model.Incident, error) {
	c := colly.NewCollector(colly.UserAgent(userAgent))
	c.SetRequestTimeout(s.timeout)

	var out []model.Incident
	found := false

	c.OnHTML("table", func(e *colly.HTMLElement) {
		if found {
			return
		}
		cols := resolveHeader(e)
		if cols == nil {
			return
		}
		found = true

		e.ForEach("tr", func(i int, row *colly.HTMLElement) {
			if i == 0 {
				return
			}
			cells := row.ChildTexts("td")
			if len(cells) == 0 {
				return
			}
			raw, err := parseRow(cells, cols)
			if err != nil {
				zap.L().Debug("mirror: skipping row", zap.Int("row", i), zap.Error(err))
				return
			}
			inc, keep := s.normalizer.Normalize(raw)
			if keep {
				out = append(out, inc)
			}
		})
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, eris.Wrapf(err, "mirror: fetch %s", pageURL)
	}
	if !found {
		return nil, eris.Errorf("mirror: no parseable incident table at %s", pageURL)
	}
	return out, nil
}

// resolveHeader maps the table's first row to logical columns. A table
// counts as parseable only when both an incident and a call-type column
// resolve.
func resolveHeader(table *colly.HTMLElement) map[column]int {
	headers := table.ChildTexts("tr:first-child th")
	if len(headers) == 0 {
		headers = table.ChildTexts("tr:first-child td")
	}

	cols := make(map[column]int)
	for i, h := range headers {
		col, ok := headerAliases[canonicalHeader(h)]
		if !ok {
			continue
		}
		if _, dup := cols[col]; !dup {
			cols[col] = i
		}
	}

	if _, ok := cols[colIncident]; !ok {
		return nil
	}
	if _, ok := cols[colCallType]; !ok {
		return nil
	}
	return cols
}

// parseRow builds a raw record from one table row. Rows missing the
// incident id or call type are rejected rather than carried as blanks.
func parseRow(cells []string, cols map[column]int) (model.RawIncident, error) {
	cell := func(c column) string {
		i, ok := cols[c]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	raw := model.RawIncident{
		ID:         cell(colIncident),
		CallType:   cell(colCallType),
		ReceivedAt: cell(colReceived),
		Address:    cell(colAddress),
		Area:       cell(colArea),
		Dispo:      cell(colDisposition),
	}
	if raw.ID == "" {
		return model.RawIncident{}, eris.New("mirror: row has no incident id")
	}
	if raw.CallType == "" {
		return model.RawIncident{}, eris.New("mirror: row has no call type")
	}
	return raw, nil
}

func canonicalHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '/':
			return ' '
		}
		return r
	}, h)
	return strings.Join(strings.Fields(h), " ")
}
