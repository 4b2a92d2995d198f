package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-cli/internal/classify"
	"github.com/sells-group/dispatch-cli/internal/model"
)

func pacific(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestNormalize_TrimsAndClassifies(t *testing.T) {
	n := NewNormalizer(pacific(t))

	inc, keep := n.Normalize(model.RawIncident{
		ID:         "  SO26001234 ",
		CallType:   " ROBBERY IN PROGRESS ",
		ReceivedAt: "2026-08-27T14:03:22",
		Address:    " 2600 *** BLOCK AMANDA AV ",
		Area:       " Salinas ",
		Dispo:      "",
	})

	assert.True(t, keep)
	assert.Equal(t, "SO26001234", inc.ID)
	assert.Equal(t, "ROBBERY IN PROGRESS", inc.CallType)
	assert.Equal(t, classify.CategoryViolent, inc.Category)
	assert.Equal(t, 10, inc.Priority)
	require.NotNil(t, inc.AddressRaw)
	assert.Equal(t, "2600 *** BLOCK AMANDA AV", *inc.AddressRaw)
	require.NotNil(t, inc.Area)
	assert.Equal(t, "Salinas", *inc.Area)
	assert.Nil(t, inc.Disposition)
	assert.Nil(t, inc.Lat)
	assert.Nil(t, inc.Lon)
}

func TestNormalize_TimestampInCivilZone(t *testing.T) {
	loc := pacific(t)
	n := NewNormalizer(loc)

	inc, _ := n.Normalize(model.RawIncident{ReceivedAt: "2026-08-27T14:03:22"})

	want := time.Date(2026, 8, 27, 14, 3, 22, 0, loc)
	assert.True(t, inc.ReceivedAt.Equal(want))
}

func TestNormalize_UnparseableTimestampUsesIngestionTime(t *testing.T) {
	n := NewNormalizer(pacific(t))

	before := time.Now()
	inc, _ := n.Normalize(model.RawIncident{ReceivedAt: "yesterday-ish"})

	assert.WithinDuration(t, before, inc.ReceivedAt, 5*time.Second)
}

func TestNormalize_SentinelAddressDropped(t *testing.T) {
	n := NewNormalizer(pacific(t))

	_, keep := n.Normalize(model.RawIncident{
		CallType: "VEHICLE STOP",
		Address:  "undefined undefined",
	})
	assert.False(t, keep)

	_, keep = n.Normalize(model.RawIncident{
		CallType: "VEHICLE STOP",
		Address:  "100 MAIN ST",
	})
	assert.True(t, keep)
}

func TestNormalize_AlternateLayouts(t *testing.T) {
	loc := pacific(t)
	n := NewNormalizer(loc)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2026-08-27 14:03:22", time.Date(2026, 8, 27, 14, 3, 22, 0, loc)},
		{"08/27/2026 14:03:22", time.Date(2026, 8, 27, 14, 3, 22, 0, loc)},
		{"08/27/2026 14:03", time.Date(2026, 8, 27, 14, 3, 0, 0, loc)},
	}
	for _, tt := range tests {
		inc, _ := n.Normalize(model.RawIncident{ReceivedAt: tt.raw})
		assert.True(t, inc.ReceivedAt.Equal(tt.want), "layout %q", tt.raw)
	}
}
