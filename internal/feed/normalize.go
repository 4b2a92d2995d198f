package feed

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/classify"
	"github.com/sells-group/dispatch-cli/internal/model"
)

// addressSentinel marks records whose address the upstream replaced with a
// placeholder; those records carry no usable location text.
const addressSentinel = "undefined"

// timestampLayouts are tried in order against the feed's naive local
// timestamps.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
}

// Normalizer converts raw feed records to model.Incident.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
}

// NewNormalizer creates a Normalizer interpreting feed timestamps in loc.
func NewNormalizer(loc *time.Location) *Normalizer {
	return &Normalizer{loc: loc, now: time.Now}
}

// Normalize converts one raw record. keep is false for records whose address
// is the upstream's placeholder sentinel; the returned incident is still
// valid either way, so pagination cutoff checks can use its timestamp.
func (n *Normalizer) Normalize(raw model.RawIncident) (model.Incident, bool) {
	callType := strings.TrimSpace(raw.CallType)
	category, priority := classify.Classify(callType)

	inc := model.Incident{
		ID:          strings.TrimSpace(raw.ID),
		CallType:    callType,
		Category:    category,
		Priority:    priority,
		ReceivedAt:  n.parseReceived(raw.ReceivedAt),
		AddressRaw:  optional(raw.Address),
		Area:        optional(raw.Area),
		Disposition: optional(raw.Dispo),
	}

	addr := strings.TrimSpace(raw.Address)
	keep := !strings.Contains(strings.ToLower(addr), addressSentinel)
	return inc, keep
}

// parseReceived interprets the naive local timestamp in the feed's civil
// zone. Unparseable input falls back to ingestion time so ReceivedAt is
// always valid.
func (n *Normalizer) parseReceived(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t
		}
	}
	zap.L().Debug("feed: unparseable timestamp, using ingestion time",
		zap.String("received", s),
	)
	return n.now()
}

// optional trims s and returns nil for empty text.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
